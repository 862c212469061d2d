package crawler

import "time"

// Budget is a wall-clock ceiling shared by every fetch of one crawl. It reads
// the monotonic clock, so wall-clock adjustments do not affect it. A limit of
// zero or less is exhausted from the start.
type Budget struct {
	start time.Time
	limit time.Duration
	now   func() time.Time
}

// NewBudget starts a budget of the given length now.
func NewBudget(limit time.Duration) Budget {
	return newBudget(limit, time.Now)
}

func newBudget(limit time.Duration, now func() time.Time) Budget {
	return Budget{start: now(), limit: limit, now: now}
}

// Exhausted reports whether no new work may be admitted.
func (b Budget) Exhausted() bool {
	if b.limit <= 0 {
		return true
	}
	return b.Elapsed() >= b.limit
}

// Elapsed returns the time since the budget started.
func (b Budget) Elapsed() time.Duration {
	if b.now == nil {
		return 0
	}
	return b.now().Sub(b.start)
}

// Remaining returns the unspent part of the budget, never negative.
func (b Budget) Remaining() time.Duration {
	left := b.limit - b.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}
