package rag_service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/serisow/smartdoc/rag_type"
)

var ErrNoTextContent = errors.New("no text content extracted from document")

// PageExtractor turns an uploaded file into ordered pages of raw text.
type PageExtractor interface {
	ExtractPages(filename string, data []byte) ([]rag_type.Page, error)
}

// ChunkStore is the persistence side of ingestion.
type ChunkStore interface {
	// InsertChunks writes all chunks of a document in one transaction.
	InsertChunks(ctx context.Context, documentID string, chunks []rag_type.Chunk) error
	SetDocumentStatus(ctx context.Context, documentID string, status rag_type.DocumentStatus) error
}

type IngestJob struct {
	DocumentID string
	Filename   string
	Content    []byte
}

// Ingestor runs the per-document pipeline and owns the document's
// processing -> completed | failed transition.
type Ingestor struct {
	extractor PageExtractor
	chunker   *Chunker
	embedder  *CachedEmbedder
	store     ChunkStore
	logger    *slog.Logger
}

func NewIngestor(extractor PageExtractor, chunker *Chunker, embedder *CachedEmbedder, store ChunkStore, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		logger:    logger,
	}
}

// Ingest processes the job and records the terminal status. The returned
// error is informational; callers learn the outcome from the status.
func (in *Ingestor) Ingest(ctx context.Context, job IngestJob) error {
	start := time.Now()

	count, err := in.processRecovered(ctx, job)
	if err != nil {
		in.logger.Error("Document processing failed",
			slog.String("document_id", job.DocumentID),
			slog.String("filename", job.Filename),
			slog.String("error", err.Error()))

		if serr := in.store.SetDocumentStatus(context.WithoutCancel(ctx), job.DocumentID, rag_type.StatusFailed); serr != nil {
			in.logger.Error("Failed to mark document as failed",
				slog.String("document_id", job.DocumentID),
				slog.String("error", serr.Error()))
		}
		return err
	}

	in.logger.Info("Document processed successfully",
		slog.String("document_id", job.DocumentID),
		slog.Int("chunks", count),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// processRecovered turns a panic anywhere in the pipeline into an error so
// the document still ends up failed.
func (in *Ingestor) processRecovered(ctx context.Context, job IngestJob) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing document: %v", r)
		}
	}()
	return in.process(ctx, job)
}

func (in *Ingestor) process(ctx context.Context, job IngestJob) (int, error) {
	pages, err := in.extractor.ExtractPages(job.Filename, job.Content)
	if err != nil {
		return 0, fmt.Errorf("failed to extract text: %w", err)
	}

	chunks := in.BuildChunks(pages)
	if len(chunks) == 0 {
		return 0, ErrNoTextContent
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vectors, err := in.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, err
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := in.store.InsertChunks(ctx, job.DocumentID, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	if err := in.store.SetDocumentStatus(ctx, job.DocumentID, rag_type.StatusCompleted); err != nil {
		return 0, fmt.Errorf("failed to mark document completed: %w", err)
	}
	return len(chunks), nil
}

// BuildChunks cleans every page, drops the empty ones and chunks the rest,
// numbering chunks contiguously across the whole document.
func (in *Ingestor) BuildChunks(pages []rag_type.Page) []rag_type.Chunk {
	var all []rag_type.Chunk
	for _, page := range pages {
		text := CleanText(page.Text)
		if text == "" {
			continue
		}
		for _, c := range in.chunker.Chunk(text, page.Number) {
			c.Index = len(all)
			all = append(all, c)
		}
	}
	return all
}
