package cache

import (
	"context"
	"time"

	"github.com/winhowes/RemoteData/app/redis"
)

// RedisStore keeps entries in Redis with native expiry.
type RedisStore struct {
	pool *redis.Pool
}

// NewRedisStore returns a store backed by pool.
func NewRedisStore(pool *redis.Pool) *RedisStore { return &RedisStore{pool: pool} }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.pool.Get(ctx, key)
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.pool.SetEX(ctx, key, val, ttl)
}

// Close releases pooled connections.
func (s *RedisStore) Close() error {
	s.pool.Close()
	return nil
}
