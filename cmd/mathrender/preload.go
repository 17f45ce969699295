package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Krishna8167/mathrender/internal/catalog"
)

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Typeset the built-in formula catalog and report cache metrics",
	RunE:  runPreload,
}

func runPreload(cmd *cobra.Command, args []string) error {
	c, err := catalog.Builtin()
	if err != nil {
		return err
	}

	r, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.orch.WaitForReady(cmd.Context()); err != nil {
		return err
	}

	n := r.orch.Preload(cmd.Context(), c.Latex())
	m := r.orch.Metrics()

	logger.Debug("catalog preloaded", zap.String("catalog", c.Fingerprint()), zap.Int("rendered", n))
	fmt.Fprintf(cmd.OutOrStdout(), "preloaded %d/%d formulas, cache size %d, avg render %s\n",
		n, c.Len(), m.CacheSize, m.AverageRenderTime)
	return nil
}
