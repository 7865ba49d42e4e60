// Package natsconn opens the NATS connection that carries gallery events and
// cross-instance invalidations.
package natsconn

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/logging"
)

const defaultURL = "nats://127.0.0.1:4222"

// Options configures the connection. Zero values fall back to env vars or
// built-in defaults.
type Options struct {
	URL           string
	Name          string        // client name shown in NATS monitoring
	MaxReconnects int           // NATS_MAX_RECONNECTS, default 5
	ReconnectWait time.Duration // NATS_RECONNECT_WAIT, default 2s
	Logger        *zap.Logger
}

// Enabled reports whether NATS_URL is set. The gallery runs without an
// event bus otherwise.
func Enabled() bool {
	return strings.TrimSpace(os.Getenv("NATS_URL")) != ""
}

func (o Options) resolve() Options {
	if o.URL = strings.TrimSpace(o.URL); o.URL == "" {
		o.URL = strings.TrimSpace(os.Getenv("NATS_URL"))
	}
	if o.URL == "" {
		o.URL = defaultURL
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = envInt("NATS_MAX_RECONNECTS", 5)
	}
	if o.ReconnectWait == 0 {
		o.ReconnectWait = envDuration("NATS_RECONNECT_WAIT", 2*time.Second)
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Connect dials once and fails fast; reconnects apply only after the
// initial connection succeeded. Connection state changes are logged.
func Connect(opts Options) (*nats.Conn, error) {
	opts = opts.resolve()
	log := opts.Logger.With(zap.String("nats_url", opts.URL))

	natsOpts := []nats.Option{
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("server", nc.ConnectedUrlRedacted()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed")
		}),
	}
	if opts.Name != "" {
		natsOpts = append(natsOpts, nats.Name(opts.Name))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
