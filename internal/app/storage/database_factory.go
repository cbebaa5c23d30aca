package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanmap/tilesync/internal/config"
	"github.com/urbanmap/tilesync/internal/db"
	"github.com/urbanmap/tilesync/internal/sync/state"
	"github.com/urbanmap/tilesync/internal/sync/writer"
)

// DatabaseFactory creates PostgreSQL/PostGIS backed storage components
// sharing one connection pool.
type DatabaseFactory struct {
	pool *pgxpool.Pool
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory connects to the configured database.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...db.PoolOption) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory",
		"host", cfg.Database.Host,
		"database", cfg.Database.Database)

	pool, err := db.NewPool(ctx, cfg.Database, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	return &DatabaseFactory{pool: pool}, nil
}

// NewDatabaseFactoryFromPool wraps an existing pool. Cleanup closes it.
func NewDatabaseFactoryFromPool(pool *pgxpool.Pool) (*DatabaseFactory, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	return &DatabaseFactory{pool: pool}, nil
}

// CreateRunStore creates a database-backed run store.
func (d *DatabaseFactory) CreateRunStore(_ context.Context) (state.RunStore, error) {
	slog.Debug("Creating database-backed run store")
	return state.NewDBRunStore(d.pool)
}

// CreateFeatureStore creates a database-backed feature store.
func (d *DatabaseFactory) CreateFeatureStore(_ context.Context) (writer.FeatureStore, error) {
	slog.Debug("Creating database-backed feature store")
	return writer.NewDBFeatureStore(d.pool)
}

// CheckReadiness pings the database.
func (d *DatabaseFactory) CheckReadiness(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Cleanup closes the database connection pool.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}
