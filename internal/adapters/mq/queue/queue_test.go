package queue

import (
	"context"
	"testing"
	"time"

	"github.com/okian/affinity/internal/domain/model"
)

func job(i int) Job {
	return Job{Index: i, Candidate: model.Profile{ID: string(rune('a' + i))}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, job(0)) || !q.Enqueue(ctx, job(1)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job(2)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}

	j, ok := q.Next(ctx)
	if !ok || j.Index != 0 {
		t.Errorf("expected job 0, got %v (ok=%v)", j.Index, ok)
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()
	q.Enqueue(ctx, job(0))
	q.Enqueue(ctx, job(1))

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, job(2)) {
		t.Error("expected enqueue after close to fail")
	}

	for want := 0; want < 2; want++ {
		j, ok := q.Next(ctx)
		if !ok || j.Index != want {
			t.Fatalf("expected job %d, got %d (ok=%v)", want, j.Index, ok)
		}
	}
	if _, ok := q.Next(ctx); ok {
		t.Error("expected no job from a closed, empty queue")
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	q.Enqueue(context.Background(), job(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := q.Next(ctx); ok {
		t.Error("expected cancelled context to stop dequeue even with jobs left")
	}

	_ = q.Close()
	if n := q.Discard(); n != 1 {
		t.Errorf("expected 1 discarded job, got %d", n)
	}
}

func TestInMemoryQueue_NextBlocksUntilJob(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(context.Background(), job(3))
	}()

	j, ok := q.Next(ctx)
	if !ok || j.Index != 3 {
		t.Errorf("expected job 3, got %d (ok=%v)", j.Index, ok)
	}
}
