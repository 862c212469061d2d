package index

import (
	"sync"
	"time"
)

// Progress is reported after each deep-phase section completes.
type Progress struct {
	Done    int
	Total   int
	Elapsed time.Duration
	// ETA is remaining × mean task duration so far; valid only when HasETA.
	ETA    time.Duration
	HasETA bool
}

// ProgressFunc receives deep-phase progress. Calls are serialized.
type ProgressFunc func(Progress)

// etaTracker aggregates task completions in completion order.
type etaTracker struct {
	mu    sync.Mutex
	total int
	done  int
	sum   time.Duration
	start time.Time
	now   func() time.Time
}

func newETATracker(total int, now func() time.Time) *etaTracker {
	return &etaTracker{total: total, start: now(), now: now}
}

// complete records one task of duration d and returns the resulting progress.
func (t *etaTracker) complete(d time.Duration) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	t.sum += max(d, 0)
	p := Progress{Done: t.done, Total: t.total, Elapsed: t.now().Sub(t.start)}
	if t.sum > 0 {
		mean := t.sum / time.Duration(t.done)
		p.ETA = time.Duration(max(t.total-t.done, 0)) * mean
		p.HasETA = true
	}
	return p
}
