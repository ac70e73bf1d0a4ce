package rag_service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheKey(t *testing.T) {
	// sha256("hello")
	assert.Equal(t,
		"embedding:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		EmbeddingCacheKey("hello"))
	assert.NotEqual(t, EmbeddingCacheKey("hello"), EmbeddingCacheKey("hello "))
}

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemCache()
	cache := NewEmbeddingCache(store, 30*24*time.Hour, discardLogger())

	_, ok := cache.Get(ctx, "some chunk")
	assert.False(t, ok)

	cache.Put(ctx, "some chunk", []float32{0.25, -0.5, 1})

	got, ok := cache.Get(ctx, "some chunk")
	require.True(t, ok)
	assert.Equal(t, []float32{0.25, -0.5, 1}, got)
	assert.Equal(t, 30*24*time.Hour, store.ttls[EmbeddingCacheKey("some chunk")])
}

func TestEmbeddingCacheTreatsCorruptEntryAsMiss(t *testing.T) {
	ctx := context.Background()
	store := newMemCache()
	cache := NewEmbeddingCache(store, time.Hour, discardLogger())

	store.Set(ctx, EmbeddingCacheKey("broken"), []byte("not json"), time.Hour)
	store.Set(ctx, EmbeddingCacheKey("empty"), []byte("[]"), time.Hour)

	_, ok := cache.Get(ctx, "broken")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "empty")
	assert.False(t, ok)
}

func TestEmbeddingCacheOutageDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	store := &downCache{}
	cache := NewEmbeddingCache(store, time.Hour, discardLogger())

	cache.Put(ctx, "text", []float32{1, 2, 3})
	_, ok := cache.Get(ctx, "text")

	assert.False(t, ok)
	assert.Equal(t, 1, store.writes)
}
