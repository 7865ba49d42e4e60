// Command photohist inspects and repairs a visitor's viewed-photo history.
//
// Usage:
//
//	photohist -db history.db show            # ranges with sizes and gaps
//	photohist -db history.db -visitor u1 stats
//	photohist -dir ./history compact         # re-merge with the compact tolerance
//	photohist -db history.db add 100 200     # mark IDs 100..200 viewed
//	photohist -db history.db clear
//	photohist -db history.db keys            # list stored history keys (sqlite only)
//
// Without -db, -dir, -redis or -postgres the HISTORY_* environment variables
// select the backend, as in the gallery service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/logging"
	"github.com/example/trig-gallery/services/gallery/internal/history"
)

const usage = "usage: photohist [-db path | -dir path | -redis url | -postgres dsn] [-visitor id] [-json] show|stats|compact|clear|add MIN MAX|keys"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "photohist:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("photohist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "path to SQLite history database")
	dir := fs.String("dir", "", "directory of JSON history files")
	redisURL := fs.String("redis", "", "redis URL")
	pgDSN := fs.String("postgres", "", "postgres DSN")
	visitor := fs.String("visitor", "", "visitor id; empty selects the single-visitor key")
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New(usage)
	}

	log, err := logging.New(*logLevel, "photohist")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := history.Options{
		RedisURL:    *redisURL,
		DatabaseURL: *pgDSN,
		SQLitePath:  *dbPath,
		Dir:         *dir,
	}
	if opts == (history.Options{}) {
		opts = history.Options{
			RedisURL:    strings.TrimSpace(os.Getenv("HISTORY_REDIS_URL")),
			DatabaseURL: strings.TrimSpace(os.Getenv("HISTORY_DATABASE_URL")),
			SQLitePath:  strings.TrimSpace(os.Getenv("HISTORY_SQLITE_PATH")),
			Dir:         strings.TrimSpace(os.Getenv("HISTORY_DIR")),
		}
	}
	// an in-memory history would vanish on exit
	opts.IsProd = true
	backend, err := history.NewBackend(ctx, opts)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := history.NewStore(backend, history.KeyFor(*visitor), history.WithLogger(log))
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "show":
		d := store.Diagnostics(ctx)
		if *asJSON {
			return writeJSON(stdout, d)
		}
		_, err := io.WriteString(stdout, d.String())
		return err
	case "stats":
		st := store.Stats(ctx)
		if *asJSON {
			return writeJSON(stdout, st)
		}
		_, err := fmt.Fprintf(stdout, "ranges: %d\nphotos viewed (upper bound): %d\n", st.RangeCount, st.TotalPhotosViewed)
		return err
	case "compact":
		res := store.Compact(ctx)
		if *asJSON {
			return writeJSON(stdout, res)
		}
		_, err := fmt.Fprintf(stdout, "compacted %d ranges into %d\n", res.Before, res.After)
		return err
	case "clear":
		store.Clear(ctx)
		_, err := fmt.Fprintf(stdout, "cleared %s\n", store.Key())
		return err
	case "add":
		if len(rest) != 2 {
			return errors.New("add needs MIN and MAX")
		}
		lo, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("MIN: %w", err)
		}
		hi, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return fmt.Errorf("MAX: %w", err)
		}
		store.AddViewedRange(ctx, lo, hi)
		log.Info("range added", zap.Int64("min", lo), zap.Int64("max", hi))
		return nil
	case "keys":
		sb, ok := backend.(*history.SQLiteBackend)
		if !ok {
			return errors.New("keys is only supported by the sqlite backend")
		}
		keys, err := sb.Keys(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if _, err := fmt.Fprintln(stdout, k); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
