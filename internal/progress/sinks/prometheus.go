package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/nga-crawler/internal/progress"
)

// PrometheusSink exports index build progress via Prometheus. It owns the
// collectors for builds started, completed and running plus section
// throughput and the completion ratio of running builds.
type PrometheusSink struct {
	buildsStarted   prometheus.Counter
	buildsCompleted *prometheus.CounterVec
	buildsRunning   prometheus.Gauge
	buildRuntime    *prometheus.HistogramVec
	sectionsDone    prometheus.Counter
	buildRatio      *prometheus.GaugeVec

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		buildsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nga_index_builds_started_total",
			Help: "Index builds that have started.",
		}),
		buildsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nga_index_builds_completed_total",
			Help: "Index builds completed partitioned by result.",
		}, []string{"result"}),
		buildsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nga_index_builds_running",
			Help: "Index builds currently running.",
		}),
		buildRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nga_index_build_runtime_seconds",
			Help:    "Wall time per completed index build.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}, []string{"result"}),
		sectionsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nga_index_sections_done_total",
			Help: "Sections visited by the deep index phase.",
		}),
		buildRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nga_index_build_progress_ratio",
			Help: "Deep-phase completion ratio of each running build.",
		}, []string{"job_id"}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.buildsStarted,
		s.buildsCompleted,
		s.buildsRunning,
		s.buildRuntime,
		s.sectionsDone,
		s.buildRatio,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	jobID := evt.JobUUID().String()
	switch evt.Stage {
	case progress.StageBuildStart:
		s.buildsStarted.Inc()
		if s.tracker.start(evt.JobID) {
			s.buildsRunning.Inc()
		}
	case progress.StageSectionDone:
		s.sectionsDone.Inc()
		s.buildRatio.WithLabelValues(jobID).Set(float64(evt.Done) / float64(evt.Total))
	case progress.StageBuildDone:
		s.finish(evt, jobID, "success")
	case progress.StageBuildError:
		s.finish(evt, jobID, "error")
	}
}

func (s *PrometheusSink) finish(evt progress.Event, jobID, result string) {
	s.buildsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.buildRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	s.buildRatio.DeleteLabelValues(jobID)
	if s.tracker.complete(evt.JobID) {
		s.buildsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type jobTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[[16]byte]struct{})}
}

func (t *jobTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
