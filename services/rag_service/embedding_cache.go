package rag_service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"
)

// CacheStore is the ephemeral key-value capability. Implementations absorb
// infrastructure errors: an unreachable cache reads as a miss and drops writes.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

const embeddingKeyPrefix = "embedding:"

// EmbeddingCache maps text to its embedding vector, keyed by content hash.
type EmbeddingCache struct {
	store  CacheStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewEmbeddingCache(store CacheStore, ttl time.Duration, logger *slog.Logger) *EmbeddingCache {
	return &EmbeddingCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, ok := c.store.Get(ctx, EmbeddingCacheKey(text))
	if !ok {
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil || len(vector) == 0 {
		c.logger.Warn("Discarding unreadable cached embedding",
			slog.String("key", EmbeddingCacheKey(text)))
		return nil, false
	}
	return vector, true
}

func (c *EmbeddingCache) Put(ctx context.Context, text string, vector []float32) {
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	c.store.Set(ctx, EmbeddingCacheKey(text), raw, c.ttl)
}

// EmbeddingCacheKey is the namespaced SHA-256 of the UTF-8 bytes of text.
func EmbeddingCacheKey(text string) string {
	return embeddingKeyPrefix + hashHex(text)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
