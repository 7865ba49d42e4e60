package history

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Backend.Load when no history is stored under key.
var ErrNotFound = errors.New("history: not found")

// Backend is durable key/value storage for serialized history. Every
// implementation stores the JSON array verbatim under a single key, so any
// backend can read what another wrote.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Pinger is implemented by backends that reach a remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that b can reach its store. Backends without a connection
// (memory, file) are always reachable.
func Ping(ctx context.Context, b Backend) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Options selects and configures a Backend. See NewBackend.
type Options struct {
	RedisURL    string
	DatabaseURL string
	SQLitePath  string
	Dir         string
	IsProd      bool
}

// NewBackend creates the best configured backend:
// Redis > Postgres > SQLite > file directory > in-memory (dev fallback).
// In production the in-memory fallback is refused.
func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch {
	case opts.RedisURL != "":
		b, err = NewRedisBackend(opts.RedisURL)
	case opts.DatabaseURL != "":
		b, err = OpenPostgres(ctx, opts.DatabaseURL)
	case opts.SQLitePath != "":
		b, err = OpenSQLite(opts.SQLitePath)
	case opts.Dir != "":
		b, err = NewFileBackend(opts.Dir)
	}
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	if opts.IsProd {
		return nil, errors.New("production requires HISTORY_REDIS_URL, HISTORY_DATABASE_URL, HISTORY_SQLITE_PATH or HISTORY_DIR; in-memory history is not allowed")
	}
	return NewMemoryBackend(), nil
}
