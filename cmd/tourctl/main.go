// Command tourctl maintains a tour and its submissions without the HTTP
// server: export, import, validate, clear, backup and restore.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tour-service/internal/bootstrap"
	"tour-service/internal/config"
	"tour-service/internal/logging"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "tourctl",
	Short:         "Offline maintenance for the tour service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var errs []error
		cfg, errs = config.Load(configPath)
		if len(errs) > 0 {
			return fmt.Errorf("invalid configuration: %v", errs)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(level, "console")
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
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("TOUR_CONFIG"), "path to an optional YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(exportCmd, importCmd, validateCmd, clearCmd, backupCmd, restoreCmd, submissionsCmd)
}

// openRuntime builds the services on the configured backends. With
// loadTour the persisted tour is opened as the server would.
func openRuntime(ctx context.Context, loadTour bool) (*bootstrap.Runtime, error) {
	rt, err := bootstrap.Build(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	if loadTour {
		rt.Editor.Open(ctx)
	}
	return rt, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
