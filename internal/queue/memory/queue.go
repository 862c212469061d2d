// Package memory holds the in-process build job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

// Queue is a bounded channel of index build requests.
type Queue struct {
	items   chan crawler.QueueItem
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a queue holding at most capacity pending builds.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{items: make(chan crawler.QueueItem, capacity)}
}

// Enqueue blocks until the build is accepted or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return crawler.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.items <- item:
		return nil
	}
}

// Dequeue waits for the next build request.
func (q *Queue) Dequeue(ctx context.Context) (crawler.QueueItem, error) {
	select {
	case <-ctx.Done():
		return crawler.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.items:
		if !ok {
			return crawler.QueueItem{}, crawler.ErrQueueClosed
		}
		return item, nil
	}
}

// Len reports how many builds are waiting.
func (q *Queue) Len() int {
	return len(q.items)
}

// Close stops the queue. Pending items can still be drained.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.items)
	q.closed = true
}
