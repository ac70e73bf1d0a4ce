package rag_service

import (
	"context"
	"fmt"
	"log/slog"
)

// EmbeddingBatchSize bounds the number of texts per provider request.
const EmbeddingBatchSize = 20

// Embedder is the external embedding capability.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CachedEmbedder consults the EmbeddingCache before calling the provider and
// writes fresh vectors back into it.
type CachedEmbedder struct {
	provider Embedder
	cache    *EmbeddingCache
	logger   *slog.Logger
}

func NewCachedEmbedder(provider Embedder, cache *EmbeddingCache, logger *slog.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		provider: provider,
		cache:    cache,
		logger:   logger,
	}
}

// EmbedTexts returns one vector per text, in input order.
func (e *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	hits := 0

	for start := 0; start < len(texts); start += EmbeddingBatchSize {
		end := min(start+EmbeddingBatchSize, len(texts))

		var missing []int
		for i := start; i < end; i++ {
			if v, ok := e.cache.Get(ctx, texts[i]); ok {
				vectors[i] = v
				hits++
				continue
			}
			missing = append(missing, i)
		}
		if len(missing) == 0 {
			continue
		}

		batch := make([]string, len(missing))
		for j, idx := range missing {
			batch[j] = texts[idx]
		}

		fresh, err := e.provider.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(fresh) != len(batch) {
			return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(fresh), len(batch))
		}

		for j, idx := range missing {
			vectors[idx] = fresh[j]
			e.cache.Put(ctx, texts[idx], fresh[j])
		}
	}

	e.logger.Debug("Embedded texts",
		slog.Int("total", len(texts)),
		slog.Int("cache_hits", hits))

	return vectors, nil
}

// EmbedQuery embeds a single query text, treating it exactly like a chunk
// for caching purposes.
func (e *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
