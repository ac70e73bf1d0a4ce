// Package scheduler runs the periodic maintenance of ingestion state.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/serisow/smartdoc/rag_type"
)

// DocumentStore is the slice of the durable store the sweeper needs.
type DocumentStore interface {
	ProcessingSince(ctx context.Context, cutoff time.Time) ([]rag_type.Document, error)
	SetDocumentStatus(ctx context.Context, id string, status rag_type.DocumentStatus) error
}

// PendingChecker reports whether the ingestion queue still holds a document.
type PendingChecker interface {
	Pending(documentID string) bool
}

// Sweeper fails documents that stay in processing with no ingestion job
// behind them, e.g. after a restart dropped the in-memory queue.
type Sweeper struct {
	store         DocumentStore
	queue         PendingChecker
	staleAfter    time.Duration
	checkInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

func NewSweeper(store DocumentStore, queue PendingChecker, staleAfter, checkInterval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:         store,
		queue:         queue,
		staleAfter:    staleAfter,
		checkInterval: checkInterval,
		now:           time.Now,
		logger:        logger,
	}
}

// Start sweeps immediately and then every checkInterval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting stale document sweeper",
		slog.Duration("stale_after", s.staleAfter),
		slog.Duration("interval", s.checkInterval))

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Error sweeping stale documents", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep marks every stale document failed and returns how many it marked.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	docs, err := s.store.ProcessingSince(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, doc := range docs {
		if !s.ShouldFail(doc, now) {
			continue
		}
		if err := s.store.SetDocumentStatus(ctx, doc.ID, rag_type.StatusFailed); err != nil {
			s.logger.Warn("Failed to mark stale document",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Warn("Marked stale document as failed",
			slog.String("document_id", doc.ID),
			slog.Time("uploaded_at", doc.UploadedAt))
		failed++
	}
	return failed, nil
}

// ShouldFail reports whether doc has been processing longer than staleAfter
// without a queued or running job.
func (s *Sweeper) ShouldFail(doc rag_type.Document, now time.Time) bool {
	if doc.Status != rag_type.StatusProcessing {
		return false
	}
	if now.Sub(doc.UploadedAt) < s.staleAfter {
		return false
	}
	return !s.queue.Pending(doc.ID)
}
