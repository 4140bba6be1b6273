// Package cmd provides the CLI commands for the retrieval engine.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tarunchinta/epsteinai/internal/config"
	"github.com/tarunchinta/epsteinai/internal/logging"
)

var (
	debugMode      bool
	loggingCleanup func()

	corpusDirFlag string
	storePathFlag string
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epsteinai",
		Short: "Three-tier document retrieval engine",
		Long: `epsteinai builds and queries a retrieval index over a corpus of
plain-text documents, blending BM25 lexical matching with structured
entity matching (persons, organizations, locations, dates, emails).`,
	}

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.epsteinai/logs/")
	cmd.PersistentFlags().StringVar(&corpusDirFlag, "corpus", "", "override the configured corpus directory")
	cmd.PersistentFlags().StringVar(&storePathFlag, "store", "", "override the configured metadata store path")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newBuildIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
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

// loadConfig loads layered configuration for the working directory and
// applies any --corpus/--store overrides given on the command line.
func loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if corpusDirFlag != "" {
		cfg.CorpusDir = corpusDirFlag
	}
	if storePathFlag != "" {
		cfg.StorePath = storePathFlag
	}
	return cfg, nil
}
