// Package queue holds the candidates of one ranking until a worker takes them.
//
// A queue is filled once, closed, and then drained by the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Job is one candidate to score. Index is the candidate's position in the
// input so results can be ordered stably.
type Job struct {
	Index     int
	Candidate model.Profile
}

// Queue provides non-blocking enqueue and context-aware dequeue.
type Queue interface {
	// Enqueue adds a job. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Next blocks until a job is available. It returns false once the queue
	// is closed and empty, or when ctx is done.
	Next(ctx context.Context) (Job, bool)

	// Len returns the current number of queued jobs.
	Len() int

	// Close stops further enqueues; queued jobs can still be taken.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.jobs <- j:
		metrics.AddFanOutQueueDepth(1)
		return true
	case <-ctx.Done():
		return false
	default:
		return false
	}
}

// Next takes the next job.
func (q *InMemoryQueue) Next(ctx context.Context) (Job, bool) {
	// Stop handing out work as soon as the caller is gone, even if jobs remain.
	if ctx.Err() != nil {
		return Job{}, false
	}
	select {
	case j, ok := <-q.jobs:
		if ok {
			metrics.AddFanOutQueueDepth(-1)
		}
		return j, ok
	case <-ctx.Done():
		return Job{}, false
	}
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len() int {
	return len(q.jobs)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Discard drops jobs nobody will take and returns how many were dropped.
// Call it only after Close.
func (q *InMemoryQueue) Discard() int {
	n := 0
	for range q.jobs {
		n++
	}
	metrics.AddFanOutQueueDepth(-n)
	return n
}
