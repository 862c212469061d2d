// Package worker runs board index builds taken from the job queue.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/boardindex"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/index"
	"github.com/JakeFAU/nga-crawler/internal/metrics"
	"github.com/JakeFAU/nga-crawler/internal/progress"
)

// EventIndexBuilt is the event type published after a successful build.
const EventIndexBuilt = "index.built"

// IndexBuilder produces a board index.
type IndexBuilder interface {
	Build(ctx context.Context, src index.LandingSource, maxSections int, report index.ProgressFunc) (crawler.BoardIndex, error)
}

// IndexSaver persists the built index document and returns where it went.
type IndexSaver interface {
	Save(ctx context.Context, idx crawler.BoardIndex) (string, error)
}

// Config controls Worker behavior.
type Config struct {
	ContentType string
	BlobPrefix  string
	Topic       string
}

// BuildResult describes one finished build.
type BuildResult struct {
	RunID      string
	Index      crawler.BoardIndex
	Path       string
	ArchiveURI string
	Hash       string
	Duration   time.Duration
}

// Worker consumes queued build requests. Build can also be called directly,
// as the CLI does.
type Worker struct {
	queue     crawler.Queue
	jobStore  crawler.JobStore
	builder   IndexBuilder
	saver     IndexSaver
	blobStore crawler.BlobStore
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock
	events    progress.Emitter
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. saver, blobStore, publisher and events are
// optional; hasher is required when blobStore is set.
func New(
	queue crawler.Queue,
	jobStore crawler.JobStore,
	builder IndexBuilder,
	saver IndexSaver,
	blobStore crawler.BlobStore,
	publisher crawler.Publisher,
	hasher crawler.Hasher,
	clock crawler.Clock,
	events progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = progress.Discard{}
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		builder:   builder,
		saver:     saver,
		blobStore: blobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		events:    events,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item crawler.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if w.builder == nil {
		w.logger.Error("no index builder configured", zap.String("job_id", item.JobID))
		w.finish(ctx, item.JobID, crawler.JobStatusFailed, "no index builder configured")
		return
	}
	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, crawler.JobStatusRunning, ""); err != nil {
		w.logger.Error("update job status failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}

	res, err := w.Build(ctx, item.JobID, item.Params)
	status, errText := w.deriveFinalStatus(ctx, err)
	if status == crawler.JobStatusFailed {
		w.finish(ctx, item.JobID, status, errText)
		return
	}
	location := res.ArchiveURI
	if location == "" {
		location = res.Path
	}
	if err := w.jobStore.CompleteJob(ctx, item.JobID, len(res.Index.Boards), location); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
	metrics.ObserveJob(string(crawler.JobStatusSucceeded))
}

func (w *Worker) finish(ctx context.Context, jobID string, status crawler.JobStatus, errText string) {
	metrics.ObserveJob(string(status))
	// The job context may already be done; the final status still has to land.
	if err := w.jobStore.UpdateJobStatus(context.WithoutCancel(ctx), jobID, status, errText); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// Build runs one index build end to end: both builder phases, the local
// document save, the archive copy and the completion notification.
func (w *Worker) Build(ctx context.Context, runID string, params crawler.BuildParameters) (BuildResult, error) {
	return w.BuildFrom(ctx, runID, index.LandingSource{URL: params.LandingURL}, params.MaxSections)
}

// BuildFrom is Build over an explicit landing source, such as a saved page.
func (w *Worker) BuildFrom(ctx context.Context, runID string, src index.LandingSource, maxSections int) (BuildResult, error) {
	started := w.clock.Now()
	res := BuildResult{RunID: runID}
	logger := w.logger.With(zap.String("run_id", runID))
	emit := w.emitter(runID)

	emit(progress.Event{Stage: progress.StageBuildStart})
	logger.Info("index build started",
		zap.String("landing_url", src.URL),
		zap.Bool("offline", len(src.HTML) > 0),
		zap.Int("max_sections", maxSections),
	)

	report := func(p index.Progress) {
		emit(progress.Event{
			Stage:   progress.StageSectionDone,
			Done:    p.Done,
			Total:   p.Total,
			Elapsed: p.Elapsed,
			ETA:     p.ETA,
			HasETA:  p.HasETA,
		})
	}
	fail := func(err error) (BuildResult, error) {
		res.Duration = w.clock.Now().Sub(started)
		emit(progress.Event{Stage: progress.StageBuildError, Dur: res.Duration, Note: err.Error()})
		logger.Error("index build failed", zap.Duration("duration", res.Duration), zap.Error(err))
		return res, err
	}

	idx, err := w.builder.Build(ctx, src, maxSections, report)
	if err != nil {
		return fail(fmt.Errorf("build index: %w", err))
	}
	res.Index = idx

	if w.saver != nil {
		path, err := w.saver.Save(ctx, idx)
		if err != nil {
			return fail(fmt.Errorf("save index: %w", err))
		}
		res.Path = path
	}

	if err := w.persistAndPublish(ctx, &res); err != nil {
		return fail(err)
	}

	res.Duration = w.clock.Now().Sub(started)
	emit(progress.Event{
		Stage:  progress.StageBuildDone,
		Boards: len(idx.Boards),
		Dur:    res.Duration,
		Note:   res.ArchiveURI,
	})
	logger.Info("index build finished",
		zap.Int("boards", len(idx.Boards)),
		zap.String("path", res.Path),
		zap.String("archive_uri", res.ArchiveURI),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// emitter stamps events with the run's job id. Run ids that are not UUIDs
// get no progress events.
func (w *Worker) emitter(runID string) func(progress.Event) {
	jobID, err := progress.ParseJobID(runID)
	if err != nil {
		w.logger.Debug("progress disabled for run", zap.String("run_id", runID), zap.Error(err))
		return func(progress.Event) {}
	}
	return func(evt progress.Event) {
		evt.JobID = jobID
		evt.TS = w.clock.Now().UTC()
		w.events.Emit(evt)
	}
}

func (w *Worker) buildBlobPath(runID, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", runID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.json", prefix, runID, hash)
}

func (w *Worker) persistAndPublish(ctx context.Context, res *BuildResult) error {
	if w.blobStore == nil {
		return w.publishResult(ctx, res)
	}
	data, err := boardindex.Encode(res.Index)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	hash, err := w.hasher.Hash(data)
	if err != nil {
		return fmt.Errorf("hash index: %w", err)
	}
	uri, err := w.blobStore.PutObject(ctx, w.buildBlobPath(res.RunID, hash), w.cfg.ContentType, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	res.Hash = hash
	res.ArchiveURI = uri
	return w.publishResult(ctx, res)
}

func (w *Worker) publishResult(ctx context.Context, res *BuildResult) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	payload := map[string]any{
		"event":        EventIndexBuilt,
		"run_id":       res.RunID,
		"generated_at": res.Index.GeneratedAt,
		"boards":       len(res.Index.Boards),
		"path":         res.Path,
		"archive_uri":  res.ArchiveURI,
		"hash":         res.Hash,
		"timestamp":    w.clock.Now().Format(time.RFC3339),
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, payload)
	if err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	w.logger.Info("index build published",
		zap.String("run_id", res.RunID),
		zap.String("message_id", id),
		zap.String("archive_uri", res.ArchiveURI),
	)
	return nil
}

func (w *Worker) deriveFinalStatus(ctx context.Context, err error) (crawler.JobStatus, string) {
	switch {
	case ctx.Err() != nil:
		return crawler.JobStatusFailed, "canceled"
	case err != nil:
		return crawler.JobStatusFailed, err.Error()
	default:
		return crawler.JobStatusSucceeded, ""
	}
}
