package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Krishna8167/mathrender"
	"github.com/Krishna8167/mathrender/internal/config"
	"github.com/Krishna8167/mathrender/internal/htmldoc"
	"github.com/Krishna8167/mathrender/internal/jsengine"
)

var errNoScript = errors.New("no typesetting script configured (set engine.script or --script)")

// renderer ties the hosted engine to an orchestrator.
type renderer struct {
	engine *jsengine.Engine
	orch   *mathrender.Orchestrator
	logger *zap.Logger
}

func newRenderer(cfg *config.Config, logger *zap.Logger) (*renderer, error) {
	if cfg.Engine.Script == "" {
		return nil, errNoScript
	}

	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}

	engine := jsengine.New(logger.Named("engine"))
	orch := mathrender.New(engine, opts...)
	engine.OnReady(orch.SignalReady)

	if err := engine.LoadFile(cfg.Engine.Script, cfg.Engine.Entry); err != nil {
		orch.Close()
		engine.Close()
		return nil, err
	}

	return &renderer{engine: engine, orch: orch, logger: logger}, nil
}

func (r *renderer) Close() {
	r.orch.Close()
	r.engine.Close()
}

// renderFile renders every placeholder in src and writes the page to dst.
// Formula failures are logged and left marked in the page; only I/O errors
// are returned.
func (r *renderer) renderFile(ctx context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	doc, err := htmldoc.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}

	items := doc.Items()
	if err := r.orch.RenderBatch(ctx, items); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("some formulas failed", zap.String("file", src), zap.Error(err))
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0644); err != nil {
		return err
	}

	r.logger.Info("page rendered", zap.String("file", src), zap.String("out", dst), zap.Int("formulas", len(items)))
	return nil
}

// outputPath maps src into outDir, or renders in place when outDir is empty.
func outputPath(src, outDir string) string {
	if outDir == "" {
		return src
	}
	return filepath.Join(outDir, filepath.Base(src))
}
