package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	item := crawler.QueueItem{JobID: "job-1", Params: crawler.BuildParameters{MaxSections: 3}}
	if err := q.Enqueue(context.Background(), item); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if got.JobID != "job-1" || got.Params.MaxSections != 3 {
		t.Fatalf("unexpected item %+v", got)
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewQueue(1).Dequeue(ctx); err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	full := NewQueue(1)
	if err := full.Enqueue(context.Background(), crawler.QueueItem{JobID: "primed"}); err != nil {
		t.Fatalf("failed to prime queue: %v", err)
	}
	if err := full.Enqueue(ctx, crawler.QueueItem{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, crawler.ErrQueueClosed) {
		t.Fatalf("expected crawler.ErrQueueClosed from Dequeue, got %v", err)
	}
	if err := q.Enqueue(context.Background(), crawler.QueueItem{}); !errors.Is(err, crawler.ErrQueueClosed) {
		t.Fatalf("expected crawler.ErrQueueClosed from Enqueue, got %v", err)
	}
	q.Close()
}
