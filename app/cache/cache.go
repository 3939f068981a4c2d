// Package cache wraps a transport.Sender with a response cache keyed by the
// request signature. Stores are pluggable: in-process memory, Redis, or a SQL
// table.
package cache

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/winhowes/RemoteData/app/transport"
)

const (
	// DefaultLifetime is the TTL in seconds applied when a query has no
	// opinion.
	DefaultLifetime = 60
	// NoStore marks a request that must never be cached.
	NoStore = -1
)

// Events reported through Options.OnEvent.
const (
	EventHit    = "hit"
	EventMiss   = "miss"
	EventStore  = "store"
	EventBypass = "bypass"
	EventError  = "error"
)

// Store persists encoded cache entries.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Options configure a Middleware.
type Options struct {
	// DefaultTTL resolves a TTL of zero. Zero selects DefaultLifetime and a
	// negative value disables caching for such requests.
	DefaultTTL int
	// Coalesce shares one upstream call between identical concurrent misses.
	Coalesce bool
	Logger   *zap.Logger
	OnEvent  func(event string)
	Now      func() time.Time
}

// Middleware caches successful GET and POST responses.
type Middleware struct {
	store      Store
	defaultTTL int
	coalesce   bool
	logger     *zap.Logger
	onEvent    func(string)
	now        func() time.Time
	codec      *codec
	group      singleflight.Group
}

// New returns a Middleware over store.
func New(store Store, opts Options) (*Middleware, error) {
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	m := &Middleware{
		store:      store,
		defaultTTL: opts.DefaultTTL,
		coalesce:   opts.Coalesce,
		logger:     opts.Logger,
		onEvent:    opts.OnEvent,
		now:        opts.Now,
		codec:      c,
	}
	if m.defaultTTL == 0 {
		m.defaultTTL = DefaultLifetime
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// ResolveTTL maps a per-request TTL onto the effective expiry in seconds.
// Negative means bypass, zero defers to the configured default.
func (m *Middleware) ResolveTTL(ttl int) int {
	switch {
	case ttl < 0:
		return NoStore
	case ttl == 0:
		if m.defaultTTL < 0 {
			return NoStore
		}
		return m.defaultTTL
	default:
		return ttl
	}
}

func cacheable(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodPost:
		return true
	}
	return false
}

func (m *Middleware) event(e string) {
	if m.onEvent != nil {
		m.onEvent(e)
	}
}

// Fetch serves req from the store when possible and otherwise forwards it to
// next, storing a 2xx response for ttl seconds.
func (m *Middleware) Fetch(ctx context.Context, next transport.Sender, req *transport.Request, ttl int) (*transport.Response, error) {
	ttl = m.ResolveTTL(ttl)
	if ttl <= 0 || m.store == nil || !cacheable(req.Method) {
		m.event(EventBypass)
		return next.Send(ctx, req)
	}

	key := Key(req)
	if resp, ok := m.lookup(ctx, key); ok {
		m.event(EventHit)
		return resp, nil
	}
	m.event(EventMiss)

	if !m.coalesce {
		return m.fill(ctx, next, req, key, ttl)
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.fill(ctx, next, req, key, ttl)
	})
	if err != nil {
		return nil, err
	}
	shared := *v.(*transport.Response)
	return &shared, nil
}

// Sender returns a transport.Sender that routes every request through the
// cache with a fixed TTL.
func (m *Middleware) Sender(next transport.Sender, ttl int) transport.Sender {
	return transport.SenderFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		return m.Fetch(ctx, next, req, ttl)
	})
}

func (m *Middleware) lookup(ctx context.Context, key string) (*transport.Response, bool) {
	b, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.event(EventError)
		m.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	resp, err := m.codec.decode(b)
	if err != nil {
		m.event(EventError)
		m.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return resp, true
}

func (m *Middleware) fill(ctx context.Context, next transport.Sender, req *transport.Request, key string, ttl int) (*transport.Response, error) {
	resp, err := next.Send(ctx, req)
	if err != nil || !resp.OK() {
		return resp, err
	}
	resp.StoredAt = m.now()
	b, err := m.codec.encode(resp)
	if err != nil {
		m.event(EventError)
		m.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return resp, nil
	}
	if err := m.store.Set(ctx, key, b, time.Duration(ttl)*time.Second); err != nil {
		m.event(EventError)
		m.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return resp, nil
	}
	m.event(EventStore)
	m.logger.Debug("cached response", zap.String("url", req.URL), zap.Int("ttl", ttl))
	return resp, nil
}
