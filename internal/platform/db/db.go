// Package db opens Postgres pools and applies idempotent schema statements.
package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions sizes a pool. Zero fields take defaults, MaxConns from
// DB_MAX_CONNS when set.
type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	MaxConnIdle time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxConns <= 0 {
		o.MaxConns = 4
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("DB_MAX_CONNS"))); err == nil && n > 0 {
			o.MaxConns = int32(n)
		}
	}
	if o.MinConns <= 0 {
		o.MinConns = 1
	}
	o.MinConns = min(o.MinConns, o.MaxConns)
	if o.MaxConnIdle <= 0 {
		o.MaxConnIdle = 5 * time.Minute
	}
	return o
}

func poolConfig(dsn string, opts PoolOptions) (*pgxpool.Config, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	opts = opts.withDefaults()
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnIdleTime = opts.MaxConnIdle
	cfg.HealthCheckPeriod = 30 * time.Second
	return cfg, nil
}

// Open opens a pool for dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate runs idempotent DDL statements in one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool, stmts ...string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i, s := range stmts {
			if _, err := tx.Exec(ctx, s); err != nil {
				return fmt.Errorf("migrate statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}
