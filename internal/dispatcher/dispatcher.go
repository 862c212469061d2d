// Package dispatcher accepts index build jobs and fans them out to workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

// Runner consumes the queue until its context ends.
type Runner interface {
	Run(ctx context.Context)
}

// Dispatcher records submitted jobs and runs the worker pool.
type Dispatcher struct {
	queue    crawler.Queue
	jobStore crawler.JobStore
	ids      crawler.IDGenerator
	clock    crawler.Clock
	workers  []Runner
	logger   *zap.Logger
}

// New creates a Dispatcher.
func New(
	queue crawler.Queue,
	jobStore crawler.JobStore,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	workers []Runner,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:    queue,
		jobStore: jobStore,
		ids:      ids,
		clock:    clock,
		workers:  workers,
		logger:   logger,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(r Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(w)
	}
	d.logger.Info("dispatcher started", zap.Int("workers", len(d.workers)))
	<-ctx.Done()
	wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Submit records a queued job and hands it to the workers.
func (d *Dispatcher) Submit(ctx context.Context, params crawler.BuildParameters) (crawler.Job, error) {
	id, err := d.ids.NewID()
	if err != nil {
		return crawler.Job{}, fmt.Errorf("new job id: %w", err)
	}
	job := crawler.Job{
		ID:         id,
		Status:     crawler.JobStatusQueued,
		Submitted:  d.clock.Now(),
		Parameters: params,
	}
	if err := d.jobStore.CreateJob(ctx, job); err != nil {
		return crawler.Job{}, fmt.Errorf("create job: %w", err)
	}
	item := crawler.QueueItem{JobID: id, Params: params, Submitted: job.Submitted.Unix()}
	if err := d.Enqueue(ctx, item); err != nil {
		if updErr := d.jobStore.UpdateJobStatus(ctx, id, crawler.JobStatusFailed, err.Error()); updErr != nil {
			d.logger.Error("mark unqueued job failed", zap.String("job_id", id), zap.Error(updErr))
		}
		return crawler.Job{}, err
	}
	d.logger.Info("job submitted", zap.String("job_id", id), zap.Int("max_sections", params.MaxSections))
	return job, nil
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Job looks up a submitted job.
func (d *Dispatcher) Job(ctx context.Context, id string) (crawler.Job, error) {
	job, err := d.jobStore.GetJob(ctx, id)
	if err != nil {
		return crawler.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}
