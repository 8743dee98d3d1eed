package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgPath string
	verbose bool
	logger  *zap.Logger
)

// #region root
var rootCmd = &cobra.Command{
	Use:   "feasible",
	Short: "Check pruning solutions against a constraint tree",
	Long: `feasible decides whether candidate pruning solutions are admissible
before a search loop scores them.

A solution lists, per prunable layer, how many output channels to remove,
e.g. "3,0,12". Constraints, model, pruner and cache are read from --config.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
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
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("FEASIBLE_CONFIG"), "path to YAML config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(checkCmd, batchCmd, historyCmd, serveCmd)
}

// #endregion root

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
