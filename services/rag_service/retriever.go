package rag_service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/smartdoc/rag_type"
)

const (
	DefaultSimilarityThreshold = 0.7
	overFetchFactor            = 2
)

// VectorSearcher is the nearest-neighbour capability of the durable store.
// Results are restricted to completed documents (and to documentIDs when
// non-empty) and ordered by similarity, highest first.
type VectorSearcher interface {
	SearchChunks(ctx context.Context, vector []float32, documentIDs []string, limit int) ([]rag_type.RetrievedChunk, error)
}

type Retriever struct {
	searcher  VectorSearcher
	threshold float64
	logger    *slog.Logger
}

func NewRetriever(searcher VectorSearcher, threshold float64, logger *slog.Logger) *Retriever {
	return &Retriever{
		searcher:  searcher,
		threshold: threshold,
		logger:    logger,
	}
}

// Retrieve returns at most k chunks whose similarity clears the floor. An
// empty result means no relevant context and is not an error.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32, documentIDs []string, k int) ([]rag_type.RetrievedChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	candidates, err := r.searcher.SearchChunks(ctx, vector, documentIDs, k*overFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]rag_type.RetrievedChunk, 0, k)
	for _, c := range candidates {
		if c.Similarity < r.threshold {
			continue
		}
		results = append(results, c)
		if len(results) == k {
			break
		}
	}

	r.logger.Debug("Retrieved chunks",
		slog.Int("candidates", len(candidates)),
		slog.Int("kept", len(results)),
		slog.Float64("threshold", r.threshold))

	return results, nil
}
