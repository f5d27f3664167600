package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dororo-lms/lms-backend/config"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/persistence/postgres"
	"github.com/dororo-lms/lms-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator, log *logger.Logger) error {
					ran, err := m.Migrate(cmd.Context())
					if err != nil {
						return err
					}
					log.Info("migrations applied", logger.Int("count", ran))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last applied migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator, log *logger.Logger) error {
					version, err := m.Rollback(cmd.Context())
					if err != nil {
						return err
					}
					if version == 0 {
						log.Info("nothing to roll back")
						return nil
					}
					log.Info("migration rolled back", logger.Int("version", version))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(m *postgres.Migrator, _ *logger.Logger) error {
					migrations, err := m.Status(cmd.Context())
					if err != nil {
						return err
					}
					return printStatus(cmd, migrations)
				})
			},
		},
	)
	return cmd
}

func withMigrator(ctx context.Context, fn func(*postgres.Migrator, *logger.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required for migrations")
	}

	conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	return fn(postgres.NewMigrator(conn), log)
}

func printStatus(cmd *cobra.Command, migrations []postgres.Migration) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
	for _, m := range migrations {
		applied := "pending"
		if m.IsApplied {
			applied = m.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%03d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	return w.Flush()
}

func postgresConfig(db config.DatabaseConfig) postgres.Config {
	pg := postgres.DefaultConfig()
	pg.URL = db.URL
	pg.MaxConns = int32(db.MaxConns)
	pg.MinConns = int32(db.MinConns)
	pg.MaxConnLifetime = db.ConnMaxLifetime
	pg.MaxConnIdleTime = db.ConnMaxIdleTime
	pg.QueryTimeout = db.QueryTimeout
	pg.Schema = db.Schema
	return pg
}
