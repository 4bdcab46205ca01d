package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
)

var steps int

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *persistence.Migrator) error {
				return m.Down(ctx, steps)
			})
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *persistence.Migrator) error {
					return m.Up(ctx)
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *persistence.Migrator) error {
					return m.Status(ctx)
				})
			},
		},
	)

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *persistence.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	migrator, err := persistence.NewMigrator(pg.PoolHandle(), logger)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck

	if err := fn(ctx, migrator); err != nil {
		logger.Error("migration failed", zap.Error(err))
		return err
	}
	return nil
}
