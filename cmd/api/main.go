// Package main is the entry point of the LMS gamification API.
//
//	lms-api serve              run the HTTP API
//	lms-api migrate up         apply pending migrations
//	lms-api migrate down       roll back the last migration
//	lms-api migrate status     list migrations
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dororo-lms/lms-backend/config"
	"github.com/dororo-lms/lms-backend/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lms-api",
		Short:         "LMS gamification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	format := cfg.Observability.LogFormat
	if cfg.IsDevelopment() && os.Getenv("LOG_FORMAT") == "" {
		format = "console"
	}
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    format,
		AddCaller: true,
	})
	return cfg, log, nil
}
