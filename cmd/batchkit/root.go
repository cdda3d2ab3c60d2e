package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/batchkit/pkg/batch"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "batchkit",
	Short: "A batch update planning and execution tool",
	Long: `batchkit validates and executes batches of record updates against a REST API.
It detects conflicts between proposed updates (duplicate targets, overlapping
fields, dependency cycles), offers resolution strategies, and executes the
resulting plan with dependency ordering, per-operation retry, and optional
all-or-nothing failure semantics.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newPlanCommand())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of batchkit`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("batchkit version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// setupLogger builds the zerolog logger from config file and flag, flag
// winning when both are set.
func setupLogger(cfg *Config) (zerolog.Logger, error) {
	levelStr := cfg.LogLevel
	if logLevel != "" {
		levelStr = logLevel
	}
	if levelStr == "" {
		return batch.DefaultLogger(), nil
	}
	level, err := batch.LogLevelFromString(levelStr)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}
	return batch.NewLogger(os.Stderr, level), nil
}
