package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"parley/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "parley - real-time conversation copilot",
	Long: `parley watches a growing conversation transcript and keeps three
artifacts current: a spoken-ready answer to the latest exchange, research
sources backing that answer, and structured insights (topics, decisions,
open questions, action items).

Transcript capture is external: point parley at a file that a
speech-to-text process appends to, or pipe lines in on stdin.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
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

// loadConfig resolves the effective configuration for a command.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(diveCmd)
	rootCmd.AddCommand(replayCmd)
}

// defaultConfigPath prefers a per-user config under $HOME.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "parley.json"
	}
	return home + "/.parley/config.json"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
