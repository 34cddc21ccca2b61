// Package cmd provides the CLI commands for jurisearch.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jurisearch/jurisearch/internal/config"
	"github.com/jurisearch/jurisearch/internal/logging"
	"github.com/jurisearch/jurisearch/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the jurisearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jurisearch",
		Short: "Legal-area-routed hybrid search over court decisions",
		Long: `jurisearch routes free-text legal queries to topical areas, searches
the per-area vector index shards, falls back to a live scan of the
backing store for decisions not yet indexed, and merges everything
into one ranked result list.

The incremental indexer classifies new decisions and appends them to
the matching shard; run 'jurisearch index' or keep it current with
'jurisearch sync'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("jurisearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.jurisearch/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog to the rotating log file; --debug raises the
// level and mirrors to stderr.
func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if debugMode {
		slog.Info("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Short()))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
