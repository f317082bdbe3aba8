package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brunobiangulo/quizforge/store"
)

// Handler processes one job. A returned error triggers a retry via the
// delayed sorted set, up to maxAttempts, after which the job is marked
// Failed in the jobs table and its durable Redis job record is deleted.
type Handler func(ctx context.Context, j Job) error

// WorkerPool runs a bounded number of goroutines pulling jobs off a
// Queue, mirroring Job state into the store's jobs table as a durable
// audit trail. The channel+WaitGroup shape is grounded on the Nadhila
// pipeline queue's Start/Stop/worker methods.
type WorkerPool struct {
	q       *Queue
	store   *store.Store
	handler Handler

	maxAttempts int
	retryDelay  time.Duration
	popTimeout  time.Duration

	wg sync.WaitGroup
}

// NewWorkerPool constructs a pool. maxAttempts and retryDelay default to
// 3 and 10s respectively when zero.
func NewWorkerPool(q *Queue, s *store.Store, h Handler, maxAttempts int, retryDelay time.Duration) *WorkerPool {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if retryDelay <= 0 {
		retryDelay = 10 * time.Second
	}
	return &WorkerPool{
		q: q, store: s, handler: h,
		maxAttempts: maxAttempts, retryDelay: retryDelay,
		popTimeout: 2 * time.Second,
	}
}

// Start launches n worker goroutines and the delayed-set promotion loop.
// It returns immediately; callers stop the pool via ctx cancellation
// followed by Wait.
func (wp *WorkerPool) Start(ctx context.Context, n int) {
	go wp.q.RunPromotionLoop(ctx)
	for i := 0; i < n; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until all worker goroutines have returned, i.e. until ctx
// passed to Start is cancelled and in-flight jobs finish.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := wp.q.pop(ctx, wp.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("queue worker: pop failed", "worker", id, "error", err)
			continue
		}
		if job == nil {
			continue // timed out waiting for a ready job
		}

		wp.processJob(ctx, *job)
	}
}

func (wp *WorkerPool) processJob(ctx context.Context, job Job) {
	if err := wp.store.RecordJob(ctx, store.Job{
		ID: job.ID, QuizID: job.QuizID, DocumentURL: job.DocumentURL,
		DocumentType: job.DocumentType, Attempts: job.Attempts, State: "Processing",
	}); err != nil {
		slog.Error("queue worker: failed to record job state", "job_id", job.ID, "error", err)
	}

	err := wp.handler(ctx, job)
	if err == nil {
		if err := wp.store.UpdateJobState(ctx, job.ID, "Completed", job.Attempts); err != nil {
			slog.Error("queue worker: failed to record completion", "job_id", job.ID, "error", err)
		}
		if err := wp.q.Delete(ctx, job.ID); err != nil {
			slog.Error("queue worker: failed to clean up completed job", "job_id", job.ID, "error", err)
		}
		return
	}

	slog.Warn("queue worker: job handler failed", "job_id", job.ID, "attempts", job.Attempts, "error", err)

	if job.Attempts+1 >= wp.maxAttempts {
		if err := wp.store.UpdateJobState(ctx, job.ID, "Failed", job.Attempts+1); err != nil {
			slog.Error("queue worker: failed to record terminal failure", "job_id", job.ID, "error", err)
		}
		if err := wp.q.Delete(ctx, job.ID); err != nil {
			slog.Error("queue worker: failed to clean up failed job", "job_id", job.ID, "error", err)
		}
		return
	}

	if err := wp.store.UpdateJobState(ctx, job.ID, "Pending", job.Attempts+1); err != nil {
		slog.Error("queue worker: failed to record retry state", "job_id", job.ID, "error", err)
	}
	if err := wp.q.Requeue(ctx, job, wp.retryDelay); err != nil {
		slog.Error("queue worker: failed to requeue job", "job_id", job.ID, "error", err)
	}
}
