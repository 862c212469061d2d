package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/progress"
)

// TestStoreSinkWritesLatestProgress ensures only the newest section event per job is stored.
func TestStoreSinkWritesLatestProgress(t *testing.T) {
	t.Parallel()

	jobs := &fakeJobStore{}
	sink := NewStoreSink(jobs, nil)
	first, second := uuid.New(), uuid.New()
	now := time.Now()

	batch := []progress.Event{
		{JobID: progress.UUIDToBytes(first), Stage: progress.StageBuildStart, TS: now},
		{JobID: progress.UUIDToBytes(first), Stage: progress.StageSectionDone, TS: now, Done: 1, Total: 3},
		{JobID: progress.UUIDToBytes(second), Stage: progress.StageSectionDone, TS: now, Done: 1, Total: 2, Elapsed: time.Second},
		{
			JobID:   progress.UUIDToBytes(first),
			Stage:   progress.StageSectionDone,
			TS:      now,
			Done:    2,
			Total:   3,
			Elapsed: 4 * time.Second,
			ETA:     2 * time.Second,
			HasETA:  true,
		},
		{JobID: progress.UUIDToBytes(first), Stage: progress.StageBuildDone, TS: now},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Len(t, jobs.calls, 2)
	require.Equal(t, first.String(), jobs.calls[0].jobID)
	require.Equal(t, crawler.JobProgress{Done: 2, Total: 3, ElapsedMs: 4000, ETAMs: 2000, HasETA: true}, jobs.calls[0].progress)
	require.Equal(t, second.String(), jobs.calls[1].jobID)
	require.False(t, jobs.calls[1].progress.HasETA)
}

// TestStoreSinkHandlesErrors surfaces store failures back to the hub.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(&fakeJobStore{fail: true}, nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{JobID: progress.UUIDToBytes(uuid.New()), Stage: progress.StageSectionDone, TS: time.Now(), Done: 1, Total: 1},
	})
	require.Error(t, err)
}

type progressCall struct {
	jobID    string
	progress crawler.JobProgress
}

type fakeJobStore struct {
	crawler.JobStore
	fail  bool
	calls []progressCall
}

func (f *fakeJobStore) UpdateJobProgress(_ context.Context, jobID string, p crawler.JobProgress) error {
	if f.fail {
		return errors.New("store unavailable")
	}
	f.calls = append(f.calls, progressCall{jobID: jobID, progress: p})
	return nil
}
