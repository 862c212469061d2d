package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/progress"
)

// StoreSink mirrors deep-phase progress into a job store so API clients can
// poll it. Only the latest section event per job in a batch is written.
type StoreSink struct {
	jobs   crawler.JobStore
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided job store.
func NewStoreSink(jobs crawler.JobStore, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{jobs: jobs, logger: logger}
}

// Consume collapses section events per job and forwards the latest.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.jobs == nil {
		return nil
	}
	latest := make(map[[16]byte]progress.Event)
	var order [][16]byte
	for _, evt := range batch {
		if evt.Stage != progress.StageSectionDone {
			continue
		}
		if _, seen := latest[evt.JobID]; !seen {
			order = append(order, evt.JobID)
		}
		latest[evt.JobID] = evt
	}
	for _, id := range order {
		evt := latest[id]
		jobID := evt.JobUUID().String()
		update := crawler.JobProgress{
			Done:      evt.Done,
			Total:     evt.Total,
			ElapsedMs: evt.Elapsed.Milliseconds(),
			HasETA:    evt.HasETA,
		}
		if evt.HasETA {
			update.ETAMs = evt.ETA.Milliseconds()
		}
		if err := s.jobs.UpdateJobProgress(ctx, jobID, update); err != nil {
			return fmt.Errorf("update job progress %s: %w", jobID, err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
