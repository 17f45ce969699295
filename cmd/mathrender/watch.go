package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Krishna8167/mathrender/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-render HTML files whenever they change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (required; in-place rendering would retrigger the watch)")
	_ = watchCmd.MarkFlagRequired("out")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := watch.New(args, func(ctx context.Context, path string) error {
		return r.renderFile(ctx, path, outputPath(path, outDir))
	},
		watch.WithLogger(logger.Named("watch")),
		watch.WithMatch(isHTML))
	if err != nil {
		return err
	}

	logger.Info("watching for changes", zap.Strings("paths", args), zap.String("out", outDir))
	return w.Run(ctx)
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
