package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded goose migrations against a pgx pool.
type Migrator struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMigrator bridges the pool to database/sql for goose.
func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) (*Migrator, error) {
	if pool == nil {
		return nil, ErrNoDatabase
	}
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{logger: logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{db: stdlib.OpenDBFromPool(pool), logger: logger}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	from, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	if err := goose.UpContext(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	to, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	m.logger.Info("migrations applied", zap.Int64("from_version", from), zap.Int64("to_version", to))
	return nil
}

// Down rolls back the given number of migrations.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db, migrationsDir); err != nil {
			return fmt.Errorf("roll back migration: %w", err)
		}
	}
	return nil
}

// Status logs the state of every known migration.
func (m *Migrator) Status(ctx context.Context) error {
	return goose.StatusContext(ctx, m.db, migrationsDir)
}

// Close releases the database/sql handle; the pool stays open.
func (m *Migrator) Close() error {
	return m.db.Close()
}

// RunMigrations applies pending migrations, skipping when no pool is configured.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}
	migrator, err := NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck
	return migrator.Up(ctx)
}

type gooseLogger struct {
	logger *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Infof(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf(format, v...)
}
