package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS viewed_history (
	key        TEXT PRIMARY KEY,
	ranges     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteBackend stores history in a local SQLite database. It is the
// default for single-machine deployments and the admin CLI.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: sqlite open: %w", err)
	}
	if path == ":memory:" {
		// each connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: sqlite %s: %w", p, err)
		}
	}
	b, err := NewSQLiteBackend(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLiteBackend wraps an already open database and ensures the schema.
func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("history: sqlite schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT ranges FROM viewed_history WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (s *SQLiteBackend) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO viewed_history (key, ranges, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET ranges = excluded.ranges, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UnixMilli())
	return err
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM viewed_history WHERE key = ?`, key)
	return err
}

// Keys lists every stored history key, oldest write first.
func (s *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM viewed_history ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLiteBackend) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteBackend) Close() error { return s.db.Close() }
