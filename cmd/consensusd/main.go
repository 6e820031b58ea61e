// Package main is consensusd's entry point and command registration hub.
//
// File Index:
//   - main.go        - entry point, rootCmd, global flags
//   - cmd_run.go     - runCmd, wiring C1-C13 for a local smoke-test run
//   - cmd_migrate.go - migrateCmd, standalone schema migration
//   - mockgateway.go - in-memory model gateway used by `run`
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"consensuscore/internal/logging"
)

var (
	verbose    bool
	configPath string
	dbPath     string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "consensusd",
	Short: "consensuscore - multi-stage LLM consensus pipeline with a learning subsystem",
	Long: `consensusd drives a question through a four-stage consensus pipeline
(Generator, Refiner, Validator, Curator), fact-checking and quality-gating
each stage's answer, and feeds the result back into a continuous learner.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws, _ := os.Getwd()
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "consensuscore.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override the configured database path")

	rootCmd.AddCommand(runCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
