// Package db builds the PostgreSQL connection pool used by the database
// backed stores.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/urbanmap/tilesync/internal/config"
)

// DefaultConnectTimeout bounds the time spent waiting for the database to
// accept connections.
const DefaultConnectTimeout = 30 * time.Second

// PoolOption configures NewPool
type PoolOption func(*poolOptions)

type poolOptions struct {
	connectTimeout time.Duration
	initialBackoff time.Duration
}

// WithConnectTimeout sets how long NewPool retries the initial ping
func WithConnectTimeout(d time.Duration) PoolOption {
	return func(o *poolOptions) {
		o.connectTimeout = d
	}
}

// WithInitialBackoff sets the first retry interval of the initial ping
func WithInitialBackoff(d time.Duration) PoolOption {
	return func(o *poolOptions) {
		o.initialBackoff = d
	}
}

// NewPool creates a connection pool from the database configuration and
// waits until the database answers a ping.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := PoolConfig(connStr, cfg)
	if err != nil {
		return nil, err
	}

	return Connect(ctx, poolConfig, opts...)
}

// PoolConfig parses the connection string and applies the pool limits of cfg.
func PoolConfig(connStr string, cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}
	if cfg == nil {
		return poolConfig, nil
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connMaxLifetime: %w", err)
		}
		poolConfig.MaxConnLifetime = lifetime
	}
	return poolConfig, nil
}

// Connect opens the pool and retries a ping with exponential backoff.
func Connect(ctx context.Context, poolConfig *pgxpool.Config, opts ...PoolOption) (*pgxpool.Pool, error) {
	o := poolOptions{
		connectTimeout: DefaultConnectTimeout,
		initialBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.initialBackoff

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(o.connectTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Database not ready, retrying",
				"host", poolConfig.ConnConfig.Host,
				"retry_in", next,
				"error", err)
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("database did not become ready: %w", err)
	}

	slog.Info("Database connection pool created successfully",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"max_conns", poolConfig.MaxConns)
	return pool, nil
}
