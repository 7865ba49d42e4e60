// Package run wires process lifetime to SIGINT/SIGTERM and maps the outcome
// to an exit code.
package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/logging"
)

type Runner struct {
	Logger *zap.Logger
	// StopTimeout bounds how long fn may take to return once a signal
	// arrived; zero means 15s.
	StopTimeout time.Duration

	signals []os.Signal
}

func New(log *zap.Logger) *Runner {
	return &Runner{
		Logger:      logging.OrNop(log),
		StopTimeout: 15 * time.Second,
		signals:     []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Run calls fn with a context cancelled on SIGINT/SIGTERM and returns the
// exit code: 0 for a nil error or http.ErrServerClosed, 1 otherwise or when
// fn overruns StopTimeout after a signal.
func (r *Runner) Run(fn func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), r.signals...)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- fn(ctx) }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
		timeout := r.StopTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		select {
		case err = <-errCh:
		case <-time.After(timeout):
			r.Logger.Error("shutdown timed out", zap.Duration("timeout", timeout))
			return 1
		}
	}
	return r.code(err)
}

func (r *Runner) code(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func Exit(code int) {
	os.Exit(code)
}
