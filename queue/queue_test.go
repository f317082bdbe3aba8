package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brunobiangulo/quizforge/store"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb), mr
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueAndPop(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Job{QuizID: 1, DocumentURL: "a.txt", DocumentType: "txt"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job, err := q.pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if job == nil {
		t.Fatal("pop returned nil job")
	}
	if job.QuizID != 1 || job.DocumentURL != "a.txt" {
		t.Errorf("pop returned %+v, want QuizID=1 DocumentURL=a.txt", job)
	}
}

func TestPopTimesOutWhenEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	job, err := q.pop(context.Background(), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if job != nil {
		t.Errorf("pop on empty queue = %+v, want nil", job)
	}
}

func TestRequeueSchedulesIntoDelayedSet(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	j := Job{ID: "job-1", QuizID: 2}
	if err := q.Requeue(ctx, j, 50*time.Millisecond); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	// Not yet due: PromoteDue should not move it.
	if err := q.PromoteDue(ctx); err != nil {
		t.Fatalf("PromoteDue: %v", err)
	}
	if job, _ := q.pop(ctx, 50*time.Millisecond); job != nil {
		t.Fatalf("job promoted before its delay elapsed: %+v", job)
	}

	mr.FastForward(100 * time.Millisecond)
	if err := q.PromoteDue(ctx); err != nil {
		t.Fatalf("PromoteDue: %v", err)
	}
	job, err := q.pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if job == nil || job.ID != "job-1" {
		t.Errorf("pop after promotion = %+v, want job-1", job)
	}
	if job.Attempts != 1 {
		t.Errorf("job.Attempts = %d, want 1 (Requeue increments)", job.Attempts)
	}
}

func TestWorkerPoolRetriesThenSucceeds(t *testing.T) {
	q, _ := newTestQueue(t)
	s := newTestStore(t)
	ctx := context.Background()

	var calls int32
	handler := func(ctx context.Context, j Job) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			return errors.New("transient failure")
		}
		return nil
	}

	wp := NewWorkerPool(q, s, handler, 5, 10*time.Millisecond)

	if err := q.Enqueue(ctx, Job{ID: "retry-job", QuizID: 3}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	wp.Start(runCtx, 1)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt32(&calls) < 2 {
		time.Sleep(20 * time.Millisecond)
		// promote the retried job manually since the promotion loop
		// runs on a 500ms tick and the retry delay here is 10ms
		_ = q.PromoteDue(ctx)
	}
	cancel()
	wp.Wait()

	if got := atomic.LoadInt32(&calls); got < 2 {
		t.Fatalf("handler called %d times, want >= 2", got)
	}
}

func TestWorkerPoolMarksTerminalFailure(t *testing.T) {
	q, _ := newTestQueue(t)
	s := newTestStore(t)
	ctx := context.Background()

	var calls int32
	handler := func(ctx context.Context, j Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent failure")
	}
	wp := NewWorkerPool(q, s, handler, 1, time.Millisecond)

	if err := q.Enqueue(ctx, Job{ID: "doomed-job", QuizID: 4}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	wp.Start(runCtx, 1)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt32(&calls) < 1 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	wp.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("handler called %d times, want exactly 1 (maxAttempts=1, no retry)", atomic.LoadInt32(&calls))
	}

	job, err := q.loadJob(ctx, "doomed-job")
	if err != nil {
		t.Fatalf("loadJob: %v", err)
	}
	if job != nil {
		t.Errorf("job record still present after terminal failure: %+v", job)
	}
}
