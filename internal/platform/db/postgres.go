// Package db opens the Postgres pool that backs the order and invoice stores.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a pool without dialling. The dashboard has to come up (and
// report diagnostics) even when the backend is unreachable, so connection
// failures surface on first use or through Ping.
func New(ctx context.Context, dsn string, queryTimeout time.Duration) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	config.MaxConnIdleTime = 5 * time.Minute
	if queryTimeout > 0 {
		config.ConnConfig.ConnectTimeout = queryTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}
	return pool, nil
}

// Ping checks connectivity with a short deadline.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("platform/db: ping: %w", err)
	}
	return nil
}
