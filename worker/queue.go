package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/serisow/smartdoc/services/rag_service"
)

var (
	ErrAlreadyQueued = errors.New("document is already queued or being processed")
	ErrQueueFull     = errors.New("ingestion queue is full")
	ErrQueueClosed   = errors.New("ingestion queue is closed")
)

// Processor runs one ingestion job to completion.
type Processor interface {
	Ingest(ctx context.Context, job rag_service.IngestJob) error
}

// Queue is a bounded in-process ingestion queue drained by a fixed pool of
// workers. A document id is held from Enqueue until its job finishes.
type Queue struct {
	processor Processor
	jobs      chan rag_service.IngestJob
	workers   int
	logger    *slog.Logger

	// Prevent two jobs for the same document running at the same time.
	inflight sync.Map

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(processor Processor, workers, size int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	return &Queue{
		processor: processor,
		jobs:      make(chan rag_service.IngestJob, size),
		workers:   workers,
		logger:    logger,
	}
}

// Start launches the workers. Jobs run under ctx.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("Starting ingestion workers", slog.Int("workers", q.workers))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx, i)
	}
}

// Enqueue hands the job to the pool without blocking.
func (q *Queue) Enqueue(job rag_service.IngestJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	if _, loaded := q.inflight.LoadOrStore(job.DocumentID, struct{}{}); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, job.DocumentID)
	}

	select {
	case q.jobs <- job:
		q.logger.Debug("Ingestion job queued", slog.String("document_id", job.DocumentID))
		return nil
	default:
		q.inflight.Delete(job.DocumentID)
		return ErrQueueFull
	}
}

// Pending reports whether a job for documentID is queued or running.
func (q *Queue) Pending(documentID string) bool {
	_, ok := q.inflight.Load(documentID)
	return ok
}

// Stop refuses new jobs, lets the workers drain the queue and waits for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.process(ctx, id, job)
	}
}

func (q *Queue) process(ctx context.Context, id int, job rag_service.IngestJob) {
	defer q.inflight.Delete(job.DocumentID)
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Ingestion job panicked",
				slog.Int("worker", id),
				slog.String("document_id", job.DocumentID),
				slog.Any("panic", r))
		}
	}()

	if err := q.processor.Ingest(ctx, job); err != nil {
		q.logger.Warn("Ingestion job finished with error",
			slog.Int("worker", id),
			slog.String("document_id", job.DocumentID),
			slog.String("error", err.Error()))
	}
}
