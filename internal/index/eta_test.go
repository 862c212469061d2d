package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestETATrackerMeanOfCompletions(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	tracker := newETATracker(4, func() time.Time { return now })

	now = base.Add(2 * time.Second)
	p := tracker.complete(2 * time.Second)
	assert.Equal(t, Progress{Done: 1, Total: 4, Elapsed: 2 * time.Second, ETA: 6 * time.Second, HasETA: true}, p)

	now = base.Add(3 * time.Second)
	p = tracker.complete(4 * time.Second)
	assert.Equal(t, 2, p.Done)
	assert.Equal(t, 6*time.Second, p.ETA, "two remaining at a mean of three seconds")

	tracker.complete(time.Second)
	p = tracker.complete(time.Second)
	assert.Equal(t, 4, p.Done)
	assert.True(t, p.HasETA)
	assert.Zero(t, p.ETA)
}

func TestETATrackerWithoutDurations(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := newETATracker(2, func() time.Time { return now })

	p := tracker.complete(0)
	assert.Equal(t, 1, p.Done)
	assert.False(t, p.HasETA)
	assert.Zero(t, p.ETA)
}
