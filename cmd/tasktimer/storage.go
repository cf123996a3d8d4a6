package main

import (
	"context"
	"fmt"

	"github.com/Strob0t/tasktimer/internal/adapter/postgres"
	"github.com/Strob0t/tasktimer/internal/adapter/sqlite"
	"github.com/Strob0t/tasktimer/internal/config"
	"github.com/Strob0t/tasktimer/internal/port/database"
)

// storage bundles the configured store with its migration hooks.
type storage struct {
	store    database.Store
	migrate  func(ctx context.Context) error
	rollback func(ctx context.Context, steps int) error
	version  func(ctx context.Context) (int64, error)
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		dsn := cfg.Postgres.DSN
		return &storage{
			store:   postgres.NewStore(pool),
			migrate: func(ctx context.Context) error { return postgres.RunMigrations(ctx, dsn) },
			rollback: func(ctx context.Context, steps int) error {
				return postgres.RollbackMigrations(ctx, dsn, steps)
			},
			version: func(ctx context.Context) (int64, error) { return postgres.MigrationVersion(ctx, dsn) },
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return &storage{
			store:   sqlite.NewStore(db),
			migrate: func(ctx context.Context) error { return sqlite.RunMigrations(ctx, db) },
			rollback: func(ctx context.Context, steps int) error {
				return sqlite.RollbackMigrations(ctx, db, steps)
			},
			version: func(ctx context.Context) (int64, error) { return sqlite.MigrationVersion(ctx, db) },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// openMigratedStorage opens the store and applies pending migrations.
func openMigratedStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.migrate(ctx); err != nil {
		_ = st.store.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return st, nil
}
