package rag_service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/smartdoc/rag_type"
	"github.com/serisow/smartdoc/services/llm_service"
)

type ingestFixture struct {
	store    *memStore
	cache    *EmbeddingCache
	provider *recordingEmbedder
	ingestor *Ingestor
}

func newIngestFixture(t *testing.T, extractor PageExtractor) *ingestFixture {
	t.Helper()
	chunker, err := NewChunker(50, 10, nil)
	require.NoError(t, err)

	f := &ingestFixture{
		store:    newMemStore(),
		cache:    NewEmbeddingCache(newMemCache(), time.Hour, discardLogger()),
		provider: &recordingEmbedder{},
	}
	f.store.addDocument("doc-1", "Report")
	f.ingestor = NewIngestor(extractor, chunker, NewCachedEmbedder(f.provider, f.cache, discardLogger()), f.store, discardLogger())
	return f
}

func job() IngestJob {
	return IngestJob{DocumentID: "doc-1", Filename: "report.pdf", Content: []byte("%PDF")}
}

func TestIngestRenumbersChunksAcrossPages(t *testing.T) {
	extractor := &fakeExtractor{pages: []rag_type.Page{
		{Number: 1, Text: strings.Repeat("first page words ", 20)},
		{Number: 2, Text: "\n  2  \n"},
		{Number: 3, Text: strings.Repeat("third page words ", 10)},
	}}
	f := newIngestFixture(t, extractor)

	require.NoError(t, f.ingestor.Ingest(context.Background(), job()))

	chunks := f.store.chunks["doc-1"]
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Embedding)
	}
	assert.Equal(t, []int{1, 1, 3}, []int{chunks[0].PageNumber, chunks[1].PageNumber, chunks[2].PageNumber})
	assert.Equal(t, rag_type.StatusCompleted, f.store.statuses["doc-1"])
	assert.Equal(t, []statusChange{{"doc-1", rag_type.StatusCompleted}}, f.store.changes)
}

func TestBuildChunksSkipsPagesThatCleanToNothing(t *testing.T) {
	f := newIngestFixture(t, &fakeExtractor{})

	chunks := f.ingestor.BuildChunks([]rag_type.Page{
		{Number: 1, Text: "Header"},
		{Number: 2, Text: "A real sentence lives here."},
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 2, chunks[0].PageNumber)
	assert.Equal(t, "A real sentence lives here.", chunks[0].Content)
}

func TestIngestEmbedsOnlyUncachedChunks(t *testing.T) {
	text := "A cached sentence is already embedded."
	other := "A second sentence needs embedding."
	extractor := &fakeExtractor{pages: []rag_type.Page{{Number: 1, Text: text}, {Number: 2, Text: other}}}
	f := newIngestFixture(t, extractor)
	f.cache.Put(context.Background(), text, []float32{9, 9})

	require.NoError(t, f.ingestor.Ingest(context.Background(), job()))

	require.Len(t, f.provider.batches, 1)
	assert.Equal(t, []string{other}, f.provider.batches[0])
	assert.Equal(t, []float32{9, 9}, f.store.chunks["doc-1"][0].Embedding)
}

func TestIngestFailureMarksDocumentFailed(t *testing.T) {
	errBoom := errors.New("boom")
	page := []rag_type.Page{{Number: 1, Text: "Some perfectly fine text content."}}

	tests := []struct {
		name    string
		setup   func(f *ingestFixture)
		extract *fakeExtractor
		wantErr error
	}{
		{
			name:    "extraction error",
			extract: &fakeExtractor{err: errBoom},
			wantErr: errBoom,
		},
		{
			name:    "no text",
			extract: &fakeExtractor{pages: []rag_type.Page{{Number: 1, Text: "  "}}},
			wantErr: ErrNoTextContent,
		},
		{
			name:    "embedding error",
			extract: &fakeExtractor{pages: page},
			setup:   func(f *ingestFixture) { f.provider.err = errBoom },
			wantErr: errBoom,
		},
		{
			name:    "storage error",
			extract: &fakeExtractor{pages: page},
			setup:   func(f *ingestFixture) { f.store.insertErr = errBoom },
			wantErr: errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, tt.extract)
			if tt.setup != nil {
				tt.setup(f)
			}

			err := f.ingestor.Ingest(context.Background(), job())

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, rag_type.StatusFailed, f.store.statuses["doc-1"])
			assert.Empty(t, f.store.chunks["doc-1"])
		})
	}
}

func TestIngestMarksFailedEvenWhenContextCancelled(t *testing.T) {
	provider := &llm_service.MockEmbedder{
		EmbedBatchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, ctx.Err()
		},
	}
	chunker, err := NewChunker(50, 10, nil)
	require.NoError(t, err)
	store := newMemStore()
	store.addDocument("doc-1", "Report")
	ingestor := NewIngestor(
		&fakeExtractor{pages: []rag_type.Page{{Number: 1, Text: "Some perfectly fine text content."}}},
		chunker,
		NewCachedEmbedder(provider, NewEmbeddingCache(newMemCache(), time.Hour, discardLogger()), discardLogger()),
		store,
		discardLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = ingestor.Ingest(ctx, job())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, rag_type.StatusFailed, store.statuses["doc-1"])
}

type panickingTokenizer struct{}

func (panickingTokenizer) CountTokens(string) int { panic("tokenizer exploded") }

func TestIngestPanicMarksDocumentFailed(t *testing.T) {
	chunker, err := NewChunker(50, 10, panickingTokenizer{})
	require.NoError(t, err)
	store := newMemStore()
	store.addDocument("doc-1", "Report")
	ingestor := NewIngestor(
		&fakeExtractor{pages: []rag_type.Page{{Number: 1, Text: "Some perfectly fine text content."}}},
		chunker,
		NewCachedEmbedder(&recordingEmbedder{}, NewEmbeddingCache(newMemCache(), time.Hour, discardLogger()), discardLogger()),
		store,
		discardLogger(),
	)

	var ingestErr error
	assert.NotPanics(t, func() {
		ingestErr = ingestor.Ingest(context.Background(), job())
	})

	require.Error(t, ingestErr)
	assert.Contains(t, ingestErr.Error(), "tokenizer exploded")
	assert.Equal(t, rag_type.StatusFailed, store.statuses["doc-1"])
	assert.Empty(t, store.chunks["doc-1"])
}
