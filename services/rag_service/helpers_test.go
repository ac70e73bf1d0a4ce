package rag_service

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/serisow/smartdoc/rag_type"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memCache is an in-memory CacheStore that records the TTL of every write.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
}

func (m *memCache) keysWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// downCache behaves like an unreachable cache: every read misses and
// every write is dropped.
type downCache struct{ writes int }

func (d *downCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (d *downCache) Set(context.Context, string, []byte, time.Duration) {
	d.writes++
}

type statusChange struct {
	documentID string
	status     rag_type.DocumentStatus
}

// memStore is an in-memory ChunkStore and VectorSearcher using cosine
// similarity.
type memStore struct {
	mu        sync.Mutex
	titles    map[string]string
	chunks    map[string][]rag_type.Chunk
	statuses  map[string]rag_type.DocumentStatus
	changes   []statusChange
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		titles:   make(map[string]string),
		chunks:   make(map[string][]rag_type.Chunk),
		statuses: make(map[string]rag_type.DocumentStatus),
	}
}

func (s *memStore) addDocument(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[id] = title
	s.statuses[id] = rag_type.StatusProcessing
}

func (s *memStore) InsertChunks(_ context.Context, documentID string, chunks []rag_type.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.chunks[documentID] = append([]rag_type.Chunk(nil), chunks...)
	return nil
}

func (s *memStore) SetDocumentStatus(_ context.Context, documentID string, status rag_type.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[documentID] = status
	s.changes = append(s.changes, statusChange{documentID, status})
	return nil
}

func (s *memStore) SearchChunks(_ context.Context, vector []float32, documentIDs []string, limit int) ([]rag_type.RetrievedChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := map[string]bool{}
	for _, id := range documentIDs {
		allowed[id] = true
	}

	var out []rag_type.RetrievedChunk
	for docID, chunks := range s.chunks {
		if s.statuses[docID] != rag_type.StatusCompleted {
			continue
		}
		if len(documentIDs) > 0 && !allowed[docID] {
			continue
		}
		for _, c := range chunks {
			out = append(out, rag_type.RetrievedChunk{
				ChunkID:       docID + "#" + string(rune('a'+c.Index)),
				DocumentID:    docID,
				DocumentTitle: s.titles[docID],
				Content:       c.Content,
				PageNumber:    c.PageNumber,
				Similarity:    cosine(vector, c.Embedding),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type fakeExtractor struct {
	pages []rag_type.Page
	err   error
}

func (f *fakeExtractor) ExtractPages(string, []byte) ([]rag_type.Page, error) {
	return f.pages, f.err
}

// wordTokenizer counts whitespace-separated words.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int { return len(strings.Fields(text)) }
