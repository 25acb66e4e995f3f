package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxConns = 10
	// The LISTEN subscription hijacks one connection for its lifetime
	minMaxConns = 2
)

// PoolConfig holds tunable parameters for the realtime database pool
type PoolConfig struct {
	MaxConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewPostgresPool connects to the realtime database and verifies the
// connection with a ping.
func NewPostgresPool(ctx context.Context, dsn string, opts PoolConfig) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	config, err := poolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Infof("Connected to realtime database %s/%s (max %d connections)",
		config.ConnConfig.Host, config.ConnConfig.Database, config.MaxConns)
	return pool, nil
}

func poolConfig(dsn string, opts PoolConfig) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	if maxConns < minMaxConns {
		maxConns = minMaxConns
	}
	config.MaxConns = int32(maxConns)

	config.MaxConnLifetime = time.Hour
	if opts.MaxConnLifetime > 0 {
		config.MaxConnLifetime = opts.MaxConnLifetime
	}
	config.MaxConnIdleTime = 30 * time.Minute
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	return config, nil
}
