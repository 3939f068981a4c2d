package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/winhowes/RemoteData/app/redis"
)

// RateLimiter is a fixed-window counter keyed by upstream host. When a Redis
// pool is configured counts are shared between processes; on Redis errors it
// falls back to local counting.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	requests    map[string]int
	resetTicker *time.Ticker
	done        chan struct{}
	stopOnce    sync.Once
	redis       *redis.Pool
	logger      *zap.Logger
}

// NewRateLimiter allows limit requests per key per window. A limit of zero or
// less disables limiting.
func NewRateLimiter(limit int, window time.Duration, pool *redis.Pool, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := &RateLimiter{
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
		requests: make(map[string]int),
		redis:    pool,
		logger:   logger,
	}

	if limit > 0 {
		rl.resetTicker = time.NewTicker(window)
		go func() {
			for {
				select {
				case <-rl.resetTicker.C:
					rl.mu.Lock()
					rl.requests = make(map[string]int)
					rl.mu.Unlock()
				case <-rl.done:
					return
				}
			}
		}()
	}
	return rl
}

// Stop halts the reset goroutine and closes pooled Redis connections.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		if rl.resetTicker != nil {
			rl.resetTicker.Stop()
		}
		close(rl.done)
		if rl.redis != nil {
			rl.redis.Close()
		}
	})
}

// Allow records a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	if rl.redis != nil {
		ok, err := rl.allowRedis(ctx, key)
		if err == nil {
			return ok
		}
		rl.logger.Error("redis limiter failed, falling back to memory", zap.Error(err))
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.requests[key] >= rl.limit {
		return false
	}
	rl.requests[key]++
	return true
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	key = "remotedata:ratelimit:" + key
	n, err := rl.redis.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := rl.redis.Expire(ctx, key, rl.window); err != nil {
			return false, err
		}
	}
	return n <= int64(rl.limit), nil
}
