package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/trig-gallery/internal/platform/db"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS viewed_history (
	key        text PRIMARY KEY,
	ranges     jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// PostgresBackend stores history in a shared Postgres table, for gallery
// deployments running more than one instance.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the viewed_history table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := db.Open(ctx, dsn, db.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("history: postgres open: %w", err)
	}
	if err := db.Migrate(ctx, pool, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: postgres schema: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var v string
	err := p.pool.QueryRow(ctx, `SELECT ranges::text FROM viewed_history WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (p *PostgresBackend) Save(ctx context.Context, key string, value []byte) error {
	const q = `INSERT INTO viewed_history (key, ranges, updated_at)
	           VALUES ($1, $2::jsonb, now())
	           ON CONFLICT (key) DO UPDATE SET ranges = EXCLUDED.ranges, updated_at = EXCLUDED.updated_at`
	_, err := p.pool.Exec(ctx, q, key, string(value))
	return err
}

func (p *PostgresBackend) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM viewed_history WHERE key = $1`, key)
	return err
}

func (p *PostgresBackend) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}
