package queue

import (
	"context"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// DefaultCapacity bounds the number of claimed jobs waiting for a worker.
const DefaultCapacity = 1000

// JobQueue hands claimed scheduled notifications from the scheduler worker
// to the worker pool through a buffered channel.
//
// The buffer is the back-pressure point: when workers fall behind, Enqueue
// fails fast with ErrQueueFull and the scheduler worker stops claiming until
// there is room again.
type JobQueue struct {
	jobs chan domain.ScheduledNotification
}

func New(capacity int) *JobQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &JobQueue{jobs: make(chan domain.ScheduledNotification, capacity)}
}

// Enqueue places a job on the queue without blocking.
func (q *JobQueue) Enqueue(job domain.ScheduledNotification) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job is available or ctx is cancelled.
// Returns false when ctx is cancelled (graceful shutdown signal).
func (q *JobQueue) Dequeue(ctx context.Context) (domain.ScheduledNotification, bool) {
	select {
	case job := <-q.jobs:
		return job, true
	case <-ctx.Done():
		return domain.ScheduledNotification{}, false
	}
}

// Depth returns the number of jobs waiting.
func (q *JobQueue) Depth() int {
	return len(q.jobs)
}

// Free returns the remaining capacity.
func (q *JobQueue) Free() int {
	return cap(q.jobs) - len(q.jobs)
}
