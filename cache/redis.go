package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the Redis-backed cache. Every infrastructure error is logged
// and absorbed: reads degrade to a miss and writes are dropped.
type RedisStore struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedisStore parses url and pings the server. A failed ping is returned
// alongside a usable store so callers can start degraded.
func NewRedisStore(url string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	store := &RedisStore{
		rdb:    redis.NewClient(opts),
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return store, fmt.Errorf("redis ping failed: %w", err)
	}
	return store, nil
}

func NewRedisStoreFromClient(rdb *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("Cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Warn("Cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// NoopStore always misses. It stands in when no Redis is configured.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (NoopStore) Set(context.Context, string, []byte, time.Duration) {}
func (NoopStore) Ping(context.Context) error                         { return nil }
func (NoopStore) Close() error                                       { return nil }
