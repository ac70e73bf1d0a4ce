package rag_service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/serisow/smartdoc/rag_type"
)

const (
	queryKeyPrefix = "query_cache:"
	allDocuments   = "all"
)

// QueryCache maps a (query, document filter) pair to a synthesized answer.
type QueryCache struct {
	store  CacheStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewQueryCache(store CacheStore, ttl time.Duration, logger *slog.Logger) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, documentIDs []string) (*rag_type.Answer, bool) {
	key := QueryCacheKey(query, documentIDs)
	raw, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var answer rag_type.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		c.logger.Warn("Discarding unreadable cached answer",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	return &answer, true
}

func (c *QueryCache) Put(ctx context.Context, query string, documentIDs []string, answer rag_type.Answer) {
	raw, err := json.Marshal(answer)
	if err != nil {
		return
	}
	c.store.Set(ctx, QueryCacheKey(query, documentIDs), raw, c.ttl)
}

// QueryCacheKey hashes the query together with the canonical filter: the
// sorted, comma-joined document ids, or "all" when the filter is nil or empty.
func QueryCacheKey(query string, documentIDs []string) string {
	return queryKeyPrefix + hashHex(query+"::"+canonicalFilter(documentIDs))
}

func canonicalFilter(documentIDs []string) string {
	if len(documentIDs) == 0 {
		return allDocuments
	}
	sorted := append([]string(nil), documentIDs...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
