package rag_service

import (
	"context"
	"log/slog"

	"github.com/serisow/smartdoc/rag_type"
)

const (
	NoRelevantInformation = "I couldn't find any relevant information in the documents to answer your question."
	DefaultTopK           = 5
)

type QueryRequest struct {
	Query string
	// DocumentIDs restricts retrieval; nil and empty both mean every document.
	DocumentIDs []string
	TopK        int
	History     []rag_type.Message
}

// RagOrchestrator answers a question end to end: query cache, query
// embedding, retrieval, synthesis, cache write-through.
type RagOrchestrator struct {
	queryCache  *QueryCache
	embedder    *CachedEmbedder
	retriever   *Retriever
	synthesizer *Synthesizer
	logger      *slog.Logger
}

func NewRagOrchestrator(queryCache *QueryCache, embedder *CachedEmbedder, retriever *Retriever, synthesizer *Synthesizer, logger *slog.Logger) *RagOrchestrator {
	return &RagOrchestrator{
		queryCache:  queryCache,
		embedder:    embedder,
		retriever:   retriever,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

func (o *RagOrchestrator) Answer(ctx context.Context, req QueryRequest) (*rag_type.QueryResult, error) {
	return o.AnswerWithChunks(ctx, req, nil)
}

// AnswerWithChunks is Answer that also reports the chunks the answer was
// synthesized from through onRetrieved. It is not called on cache hits.
func (o *RagOrchestrator) AnswerWithChunks(ctx context.Context, req QueryRequest, onRetrieved func([]rag_type.RetrievedChunk)) (*rag_type.QueryResult, error) {
	if cached, ok := o.queryCache.Get(ctx, req.Query, req.DocumentIDs); ok {
		o.logger.Info("Query cache hit", slog.Int("query_length", len(req.Query)))
		return &rag_type.QueryResult{Answer: *cached, CacheHit: true}, nil
	}

	vector, err := o.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	chunks, err := o.retriever.Retrieve(ctx, vector, req.DocumentIDs, topK)
	if err != nil {
		return nil, err
	}
	if onRetrieved != nil {
		onRetrieved(chunks)
	}

	if len(chunks) == 0 {
		o.logger.Info("No relevant chunks found",
			slog.Int("document_filter", len(req.DocumentIDs)))
		return &rag_type.QueryResult{
			Answer: rag_type.Answer{
				Answer:    NoRelevantInformation,
				Citations: []rag_type.Citation{},
				HasAnswer: false,
			},
		}, nil
	}

	answer, err := o.synthesizer.Synthesize(ctx, req.Query, chunks, req.History)
	if err != nil {
		return nil, err
	}

	o.queryCache.Put(ctx, req.Query, req.DocumentIDs, answer)

	return &rag_type.QueryResult{Answer: answer}, nil
}
