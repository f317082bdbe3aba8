// Package queue implements the durable Job Queue: a Redis-backed FIFO
// with a delayed/retry sorted set and a bounded-concurrency worker pool
// (SPEC_FULL §4.7), BullMQ-equivalent in spirit. The manager shape
// (*redis.Client field + context-scoped calls; all job state lives in
// Redis) is grounded on the teacher pack's
// goadesign-goa-ai resultStreamManager; the worker-pool loop is grounded
// on the Nadhila pipeline queue's channel+WaitGroup worker shape.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	readyListKey   = "quizforge:queue:ready"
	delayedSetKey  = "quizforge:queue:delayed"
	jobHashPrefix  = "quizforge:queue:job:"
	pollInterval   = 500 * time.Millisecond
)

// Job is one unit of work: parse-and-resolve a single quiz upload.
type Job struct {
	ID           string    `json:"id"`
	QuizID       int64     `json:"quiz_id"`
	DocumentURL  string    `json:"document_url"`
	DocumentType string    `json:"document_type"`
	Attempts     int       `json:"attempts"`
	NextAttempt  time.Time `json:"next_attempt,omitempty"`
}

// ErrClosed is returned by operations on a queue that has been stopped.
var ErrClosed = errors.New("queue: closed")

// Queue wraps a Redis-backed ready list (LPUSH/BRPOP) and a delayed
// sorted set scored by the job's next-attempt unix time in milliseconds.
// A background
// promotion loop moves due delayed jobs onto the ready list.
type Queue struct {
	rdb *redis.Client

	mu     sync.Mutex
	closed bool
}

func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue pushes a new job onto the ready list.
func (q *Queue) Enqueue(ctx context.Context, j Job) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return q.push(ctx, j)
}

// Requeue schedules a job for retry after delay, via the delayed sorted
// set, incrementing its attempt counter (SPEC_FULL §4.7 fixed-backoff
// retry policy).
func (q *Queue) Requeue(ctx context.Context, j Job, delay time.Duration) error {
	j.Attempts++
	j.NextAttempt = time.Now().Add(delay)

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	if err := q.rdb.Set(ctx, jobHashPrefix+j.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("storing job: %w", err)
	}
	return q.rdb.ZAdd(ctx, delayedSetKey, redis.Z{
		Score:  float64(j.NextAttempt.UnixMilli()),
		Member: j.ID,
	}).Err()
}

func (q *Queue) push(ctx context.Context, j Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	if err := q.rdb.Set(ctx, jobHashPrefix+j.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("storing job: %w", err)
	}
	return q.rdb.LPush(ctx, readyListKey, j.ID).Err()
}

// pop blocks until a ready job is available or ctx is done.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	id, err := q.rdb.BRPop(ctx, timeout, readyListKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPop returns [key, value]; value is the job ID.
	jobID := id[1]
	return q.loadJob(ctx, jobID)
}

func (q *Queue) loadJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.rdb.Get(ctx, jobHashPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshaling job %s: %w", jobID, err)
	}
	return &j, nil
}

// Delete removes a job's durable record after terminal success or
// terminal failure (SPEC_FULL §4.7 "terminal-failure cleanup").
func (q *Queue) Delete(ctx context.Context, jobID string) error {
	return q.rdb.Del(ctx, jobHashPrefix+jobID).Err()
}

// PromoteDue moves delayed jobs whose next-attempt time has passed onto
// the ready list. Called periodically by RunPromotionLoop.
func (q *Queue) PromoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())
	ids, err := q.rdb.ZRangeByScore(ctx, delayedSetKey, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := q.rdb.ZRem(ctx, delayedSetKey, id).Err(); err != nil {
			slog.Warn("queue: failed to remove promoted job from delayed set", "job_id", id, "error", err)
			continue
		}
		if err := q.rdb.LPush(ctx, readyListKey, id).Err(); err != nil {
			slog.Warn("queue: failed to push promoted job to ready list", "job_id", id, "error", err)
		}
	}
	return nil
}

// RunPromotionLoop runs PromoteDue on a fixed interval until ctx is
// cancelled.
func (q *Queue) RunPromotionLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.PromoteDue(ctx); err != nil {
				slog.Warn("queue: promotion loop error", "error", err)
			}
		}
	}
}
