package crawler

import (
	"context"
	"fmt"
)

// Gate is a counting admission gate bounding in-flight fetches.
type Gate struct {
	slots chan struct{}
}

// NewGate builds a gate admitting up to limit holders; limits below one are
// raised to one.
func NewGate(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{slots: make(chan struct{}, limit)}
}

// Acquire blocks until a slot is free or ctx ends. A done ctx is never
// admitted, even when a slot is free.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("gate acquire canceled: %w", err)
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gate acquire canceled: %w", ctx.Err())
	}
}

// Release frees a slot taken by Acquire.
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
	}
}

// Limit returns the gate capacity.
func (g *Gate) Limit() int {
	return cap(g.slots)
}
