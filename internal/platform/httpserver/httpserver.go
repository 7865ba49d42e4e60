package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/logging"
)

// Options configures Server. Zero durations take defaults.
type Options struct {
	Addr        string
	ServiceName string
	Logger      *zap.Logger
	Handler     http.Handler

	ReadHeaderTimeout time.Duration
	// WriteTimeout bounds a whole response; skip-ahead requests can chain
	// several upstream fetches so this is longer than the header timeout.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server runs an http.Server until its context is cancelled.
type Server struct {
	http     *http.Server
	name     string
	log      *zap.Logger
	shutdown time.Duration

	mu   sync.Mutex
	addr net.Addr
}

func New(opts Options) *Server {
	if opts.Handler == nil {
		opts.Handler = http.NotFoundHandler()
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           opts.Handler,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
		name:     opts.ServiceName,
		log:      logging.OrNop(opts.Logger),
		shutdown: opts.ShutdownTimeout,
	}
}

// Addr is the bound listener address, nil until Run is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run listens and serves until ctx is done, then drains in-flight requests
// for at most the shutdown timeout. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.log.Info("http server starting", zap.String("addr", ln.Addr().String()), zap.String("service", s.name))

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	s.log.Info("http server draining", zap.Duration("timeout", s.shutdown))
	if err := s.http.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
