package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/analytics"
	"github.com/example/trig-gallery/internal/platform/auth"
	"github.com/example/trig-gallery/internal/platform/config"
	"github.com/example/trig-gallery/internal/platform/httpserver"
	"github.com/example/trig-gallery/internal/platform/logging"
	"github.com/example/trig-gallery/internal/platform/natsconn"
	"github.com/example/trig-gallery/internal/platform/ratelimit"
	"github.com/example/trig-gallery/internal/platform/run"
	galleryconfig "github.com/example/trig-gallery/services/gallery/internal/config"
	"github.com/example/trig-gallery/services/gallery/internal/handlers"
	"github.com/example/trig-gallery/services/gallery/internal/history"
	"github.com/example/trig-gallery/services/gallery/internal/paginator"
	"github.com/example/trig-gallery/services/gallery/internal/photos"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}

	code := serve(cfg, log)
	_ = log.Sync()
	run.Exit(code)
}

func serve(cfg config.AppConfig, log *zap.Logger) int {
	gcfg, err := galleryconfig.Load()
	if err != nil {
		log.Error("load gallery config", zap.Error(err))
		return 1
	}

	backend, err := history.NewBackend(context.Background(), history.Options{
		RedisURL:    gcfg.History.RedisURL,
		DatabaseURL: gcfg.History.DatabaseURL,
		SQLitePath:  gcfg.History.SQLitePath,
		Dir:         gcfg.History.Dir,
		IsProd:      cfg.IsProd(),
	})
	if err != nil {
		log.Error("init history backend", zap.Error(err))
		return 1
	}
	stores := history.NewFactory(backend, history.WithLogger(log), history.WithTolerances(gcfg.Tolerances))
	defer func() {
		if err := stores.Close(); err != nil {
			log.Warn("close history backend", zap.Error(err))
		}
	}()

	client := photos.New(gcfg.PhotoAPIBaseURL)
	client.Limiter = ratelimit.NewRPS(gcfg.UpstreamRPS)
	defer client.Limiter.Stop()

	cache, err := paginator.NewPageCache(gcfg.CacheSize)
	if err != nil {
		log.Error("init page cache", zap.Error(err))
		return 1
	}

	instance := uuid.NewString()
	var (
		nc  *nats.Conn
		pub *analytics.Publisher
	)
	if gcfg.NATSURL != "" {
		nc, err = natsconn.Connect(natsconn.Options{URL: gcfg.NATSURL, Name: cfg.ServiceName, Logger: log})
		if err != nil {
			log.Error("nats connect", zap.Error(err))
			return 1
		}
		defer nc.Close()
		js, err := nc.JetStream()
		if err != nil {
			log.Error("nats jetstream", zap.Error(err))
			return 1
		}
		pub = analytics.New(js, log)
	} else {
		log.Info("NATS_URL not set, gallery events disabled")
	}

	reg := paginator.NewRegistry(client, stores, cache, gcfg.Tuning, pub, log)
	defer reg.Close()

	if nc != nil {
		sub, err := nc.Subscribe(analytics.SubjectHistoryCleared, historyCleared(reg, instance, log))
		if err != nil {
			log.Error("subscribe history cleared", zap.Error(err))
			return 1
		}
		defer func() { _ = sub.Unsubscribe() }()
	}

	var verifier *auth.JWTVerifier
	if len(gcfg.JWTSecret) > 0 {
		verifier = &auth.JWTVerifier{Secret: gcfg.JWTSecret, Leeway: 30 * time.Second}
	}
	var limiter *ratelimit.Buckets
	if gcfg.VisitorRPS > 0 {
		limiter = ratelimit.NewBuckets(gcfg.VisitorRPS, max(gcfg.VisitorBurst, 1), handlers.VisitorKey)
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		if nc != nil && !nc.IsConnected() {
			return errors.New("nats disconnected")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := history.Ping(ctx, backend); err != nil {
			return fmt.Errorf("history backend: %w", err)
		}
		return nil
	}})
	handlers.Mount(r, handlers.Deps{
		Registry:  reg,
		Rotator:   client,
		Publisher: pub,
		Verifier:  verifier,
		Limiter:   limiter,
		Instance:  instance,
		Logger:    log,
	})

	srv := httpserver.New(httpserver.Options{
		Addr:        cfg.HTTP.Addr,
		ServiceName: cfg.ServiceName,
		Logger:      log,
		Handler:     r,
	})

	log.Info("gallery starting",
		zap.String("photo_api", gcfg.PhotoAPIBaseURL),
		zap.Int("page_size", gcfg.Tuning.PageSize),
		zap.Bool("jwt", verifier != nil),
		zap.String("instance", instance),
	)

	code := run.New(log).Run(srv.Run)
	log.Info("exit", zap.Int("code", code))
	return code
}

// historyCleared restarts local sessions when another instance cleared a
// visitor's history.
func historyCleared(reg *paginator.Registry, instance string, log *zap.Logger) nats.MsgHandler {
	return func(m *nats.Msg) {
		ev, err := analytics.Decode(m.Data)
		if err != nil {
			log.Warn("decode history cleared event", zap.Error(err))
			return
		}
		if from, _ := ev.Properties["instance"].(string); from == instance || ev.VisitorID == "" {
			return
		}
		n := reg.ResetVisitor(ev.VisitorID)
		log.Debug("sessions reset by remote clear", zap.String("visitor_id", ev.VisitorID), zap.Int("sessions", n))
	}
}
