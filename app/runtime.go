package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/winhowes/RemoteData/app/cache"
	"github.com/winhowes/RemoteData/app/datasource"
	"github.com/winhowes/RemoteData/app/datasource/services"
	"github.com/winhowes/RemoteData/app/metrics"
	"github.com/winhowes/RemoteData/app/redis"
	"github.com/winhowes/RemoteData/app/runner"
	"github.com/winhowes/RemoteData/app/sqldb"
	"github.com/winhowes/RemoteData/app/store"
	"github.com/winhowes/RemoteData/app/transport"
)

// runtime holds everything built from one configuration. A reload builds a
// new runtime and closes the old one once it is swapped out.
type runtime struct {
	cfg      *Config
	registry *datasource.Registry
	runner   *runner.Runner
	files    *store.FileStore
	store    store.Store
	limiter  *transport.RateLimiter

	mu      sync.RWMutex
	catalog *catalog

	cancel  context.CancelFunc
	closers []func() error
}

func parseDuration(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}

func newRedisPool() *redis.Pool {
	return redis.NewPool(*redisAddr, *redisTimeout, 4)
}

// newRuntime opens the storage and cache backends, builds the senders and
// the catalog. On error everything opened so far is released.
func newRuntime(ctx context.Context, cfg *Config, m *metrics.Metrics, logger *zap.Logger) (_ *runtime, err error) {
	bg, cancel := context.WithCancel(context.Background())
	rt := &runtime{cfg: cfg, cancel: cancel}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	var db *sqldb.DB
	if cfg.Storage != nil {
		if db, err = sqldb.Open(ctx, *cfg.Storage); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		rt.closers = append(rt.closers, db.Close)
	}

	var observe func(string, int, time.Duration)
	if m != nil {
		observe = m.ObserveUpstream
	}
	t := cfg.Transport
	var hostLimiter *transport.RateLimiter
	if t.HostRateLimit > 0 {
		var pool *redis.Pool
		if *redisAddr != "" {
			pool = newRedisPool()
		}
		hostLimiter = transport.NewRateLimiter(t.HostRateLimit, parseDuration(t.HostRateLimitWindow, time.Minute), pool, logger)
		rt.closers = append(rt.closers, func() error { hostLimiter.Stop(); return nil })
	}
	topts := transport.Options{
		MaxRetries:  t.MaxRetries,
		MaxBodySize: t.MaxBodySize,
		Limiter:     hostLimiter,
		UserAgent:   t.UserAgent,
		Logger:      logger,
		Observe:     observe,
	}
	timeout := parseDuration(t.Timeout, 30*time.Second)
	sender := transport.New(withTimeout(topts, timeout))
	rt.closers = append(rt.closers, sender.Close)

	var (
		h3Once sync.Once
		h3     *transport.HTTPSender
	)
	rt.registry = services.NewRegistry(services.Options{
		HTTP3: func() transport.Sender {
			h3Once.Do(func() {
				h3 = transport.NewHTTP3(withTimeout(topts, timeout), nil)
			})
			return h3
		},
	})
	rt.closers = append(rt.closers, func() error {
		if h3 != nil {
			return h3.Close()
		}
		return nil
	})

	mw, err := rt.newCache(bg, cfg.Cache, db, m, logger)
	if err != nil {
		return nil, err
	}
	var obs runner.Observer
	if m != nil {
		obs = m
	}
	rt.runner = runner.New(runner.Options{
		Sender:           sender,
		Cache:            mw,
		AllowedSchemes:   t.AllowedSchemes,
		BatchConcurrency: t.BatchConcurrency,
		Logger:           logger,
		Observer:         obs,
	})

	if cfg.RateLimit.Requests > 0 {
		var pool *redis.Pool
		if *redisAddr != "" {
			pool = newRedisPool()
		}
		rt.limiter = transport.NewRateLimiter(cfg.RateLimit.Requests, parseDuration(cfg.RateLimit.Window, time.Minute), pool, logger)
		rt.closers = append(rt.closers, func() error { rt.limiter.Stop(); return nil })
	}

	if rt.files, err = fileStore(rt.registry, cfg.DataSources); err != nil {
		return nil, err
	}
	merged := &store.Merged{File: rt.files}
	if db != nil {
		sqlStore, err := store.NewSQLStore(ctx, db)
		if err != nil {
			return nil, err
		}
		merged.Storage = sqlStore
	}
	rt.store = merged

	if err := rt.rebuild(ctx, logger); err != nil {
		return nil, err
	}
	return rt, nil
}

func withTimeout(opts transport.Options, d time.Duration) transport.Options {
	opts.Client = &http.Client{Timeout: d}
	return opts
}

func (rt *runtime) newCache(ctx context.Context, cfg CacheConfig, db *sqldb.DB, m *metrics.Metrics, logger *zap.Logger) (*cache.Middleware, error) {
	var (
		st    cache.Store
		sweep func(context.Context)
	)
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "redis":
		if *redisAddr == "" {
			return nil, fmt.Errorf("cache backend redis requires -redis-addr")
		}
		rs := cache.NewRedisStore(newRedisPool())
		rt.closers = append(rt.closers, rs.Close)
		st = rs
	case "sql":
		ss, err := cache.NewSQLStore(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		st = ss
		sweep = func(ctx context.Context) {
			if n, err := ss.Purge(ctx); err != nil {
				logger.Warn("cache purge failed", zap.Error(err))
			} else if n > 0 {
				logger.Debug("purged cache entries", zap.Int64("count", n))
			}
		}
	default:
		ms := cache.NewMemoryStore()
		st = ms
		sweep = func(context.Context) { ms.Sweep() }
	}
	if sweep != nil {
		go sweepLoop(ctx, parseDuration(cfg.SweepInterval, time.Minute), sweep)
	}

	opts := cache.Options{
		DefaultTTL: cfg.DefaultTTL,
		Coalesce:   cfg.Coalesce,
		Logger:     logger,
	}
	if m != nil {
		opts.OnEvent = m.CacheEvent
	}
	return cache.New(st, opts)
}

func sweepLoop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}

// fileStore builds the data sources of the config file once to derive
// missing UUIDs, then indexes them.
func fileStore(reg *datasource.Registry, entries []DataSourceConfig) (*store.FileStore, error) {
	cfgs := make([]datasource.Config, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		ds, err := reg.FromConfig(e.Config)
		if err != nil {
			return nil, fmt.Errorf("data source %s: %w", e.Name, err)
		}
		e.UUID = ds.UUID()
		cfgs = append(cfgs, e.Config)
	}
	return store.NewFileStore(cfgs)
}

// rebuild recomputes the catalog from the store, for example after a data
// source was written through the API.
func (rt *runtime) rebuild(ctx context.Context, logger *zap.Logger) error {
	c, err := buildCatalog(ctx, rt.cfg, rt.registry, rt.store, logger)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	rt.catalog = c
	rt.mu.Unlock()
	return nil
}

func (rt *runtime) currentCatalog() *catalog {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.catalog
}

// Close stops background work and releases connections.
func (rt *runtime) Close() {
	if rt.cancel != nil {
		rt.cancel()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
