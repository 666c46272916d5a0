package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/cropple-dashboard/internal/cache"
	"github.com/i474232898/cropple-dashboard/internal/config"
	"github.com/i474232898/cropple-dashboard/internal/dashboard"
	"github.com/i474232898/cropple-dashboard/internal/events"
	"github.com/i474232898/cropple-dashboard/internal/geo"
	"github.com/i474232898/cropple-dashboard/internal/logging"
	"github.com/i474232898/cropple-dashboard/internal/store"
	"github.com/i474232898/cropple-dashboard/internal/upstream"
)

// runtime holds the backends shared by every command.
type runtime struct {
	cfg      *config.AppConfig
	log      *zap.Logger
	deps     dashboard.Deps
	archive  store.Archive
	geocoder geo.Resolver
	closers  []func() error
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if !cfg.EnvFileLoaded {
		log.Info("no .env file found; using process environment")
	}

	rt := &runtime{cfg: cfg, log: log}
	if err := rt.wire(); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) wire() error {
	cfg, log := rt.cfg, rt.log

	// Shared HTTP client for outbound upstream calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := upstream.NewClient(upstream.Config{
		BaseURL:    cfg.UpstreamBaseURL,
		HTTPClient: httpClient,
		Backoff: upstream.BackoffConfig{
			MaxRetries:      cfg.UpstreamMaxRetries,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		Logger: log,
	})

	var cacheStore cache.Store = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return fmt.Errorf("redis ping: %w", err)
		}
		rt.closers = append(rt.closers, rs.Close)
		cacheStore = rs
		log.Info("using redis cache", zap.String("url", redactedURL(cfg.RedisURL)))
	}

	if cfg.HistoryDBPath != "" {
		db, err := store.OpenSQLite(cfg.HistoryDBPath, cfg.StoreMaxHistory, cfg.StoreMaxAge)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, db.Close)
		rt.archive = db
		log.Info("using sqlite snapshot archive", zap.String("path", cfg.HistoryDBPath))
	} else {
		rt.archive = store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, np.Close)
		pub = np
		log.Info("publishing dashboard events to nats")
	}

	if cfg.GeocoderAPIKey != "" {
		rt.geocoder = geo.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}

	rt.deps = dashboard.Deps{
		Source:             client,
		Store:              cacheStore,
		CacheTTL:           cfg.CacheTTL,
		MaxRecommendations: cfg.MaxRecommendations,
		Archive:            rt.archive,
		Publisher:          pub,
		Logger:             log,
	}
	return nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.log.Warn("shutdown: close failed", zap.Error(err))
		}
	}
	_ = rt.log.Sync()
}
