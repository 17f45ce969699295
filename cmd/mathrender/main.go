package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Krishna8167/mathrender/internal/config"
	"github.com/Krishna8167/mathrender/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	scriptPath string

	cfg    *config.Config
	logger *zap.Logger
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mathrender",
	Short: "Batch-render LaTeX formulas in HTML pages",
	Long: `mathrender finds formula placeholders in HTML pages and typesets them
server-side with a KaTeX-compatible script hosted in an embedded JavaScript
runtime. Renders are batched, retried with backoff, and cached.

Placeholders are elements with a data-formula attribute or the math-formula
class.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if scriptPath != "" {
			cfg.Engine.Script = scriptPath
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mathrender.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&scriptPath, "script", "", "Typesetting script (overrides engine.script)")

	rootCmd.AddCommand(renderCmd, watchCmd, preloadCmd, catalogCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
