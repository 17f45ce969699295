package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var outDir string

var renderCmd = &cobra.Command{
	Use:   "render [files...]",
	Short: "Render formulas in HTML files",
	Long: `Render typesets every formula placeholder in the given HTML files.
Files are processed concurrently (render.concurrency) but share one engine,
so identical formulas across pages are typeset once.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: rewrite files in place)")
}

func runRender(cmd *cobra.Command, args []string) error {
	r, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Render.Concurrency)
	for _, src := range args {
		g.Go(func() error {
			return r.renderFile(ctx, src, outputPath(src, outDir))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m := r.orch.Metrics()
	fmt.Fprintf(cmd.OutOrStdout(), "rendered %d files: %d renders, %d cache hits (%.2f%%), %d failed, avg %s\n",
		len(args), m.TotalRenders, m.CacheHits, m.HitRate(), m.FailedRenders, m.AverageRenderTime)
	return nil
}
