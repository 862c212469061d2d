// Package server runs the HTTP service: the API, the background index build
// runner and the progress hub feeding job state and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/api"
	"github.com/JakeFAU/nga-crawler/internal/config"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/dispatcher"
	"github.com/JakeFAU/nga-crawler/internal/id/uuid"
	"github.com/JakeFAU/nga-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/nga-crawler/internal/progress/sinks"
	"github.com/JakeFAU/nga-crawler/internal/query"
	queuememory "github.com/JakeFAU/nga-crawler/internal/queue/memory"
	"github.com/JakeFAU/nga-crawler/internal/storage/memory"
	"github.com/JakeFAU/nga-crawler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Services is the slice of the application container the server needs.
type Services interface {
	Config() config.Config
	Logger() *zap.Logger
	Clock() crawler.Clock
	Threads() *crawler.ThreadCrawler
	Topics() *crawler.TopicLister
	Engine() *query.Engine
	NewWorker(queue crawler.Queue, jobs crawler.JobStore, events progress.Emitter, logger *zap.Logger) *worker.Worker
}

// Server owns the request-serving half of the process.
type Server struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	dispatch  *dispatcher.Dispatcher
	hub       *progress.Hub
	queue     *queuememory.Queue
	jobs      *memory.JobStore
}

// New wires the job runner, progress hub and API over the shared services.
// Build metrics are registered with reg.
func New(a Services, reg prometheus.Registerer) (*Server, error) {
	cfg := a.Config()
	logger := a.Logger()
	s := &Server{
		cfg:    cfg,
		logger: logger,
		queue:  queuememory.NewQueue(cfg.Jobs.QueueDepth),
		jobs:   memory.NewJobStore(),
	}

	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	s.hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		progresssinks.NewStoreSink(s.jobs, logger.Named("progress_store")),
		promSink,
		progresssinks.NewLogSink(logger.Named("progress_log")),
	)

	workers := make([]dispatcher.Runner, 0, cfg.Jobs.Workers)
	for i := range cfg.Jobs.Workers {
		workers = append(workers, a.NewWorker(s.queue, s.jobs, s.hub, logger.Named("worker").With(zap.Int("index", i))))
	}
	s.dispatch = dispatcher.New(s.queue, s.jobs, uuid.New(), a.Clock(), workers, logger.Named("dispatcher"))

	s.apiServer = api.NewServer(
		a.Threads(),
		a.Topics(),
		a.Engine(),
		api.NewJobHandler(s.dispatch, s.jobs, cfg.Index.MaxSections, logger.Named("jobs")),
		cfg,
		logger.Named("api"),
	)
	return s, nil
}

// Handler exposes the API router.
func (s *Server) Handler() http.Handler {
	return s.apiServer.Handler()
}

// Run serves on the configured port until ctx is canceled or a signal arrives.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the job runner and the HTTP server on ln, then shuts both down
// when ctx finishes. Queued jobs that never started are abandoned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("dispatcher started", zap.Int("workers", s.cfg.Jobs.Workers))
		s.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Handler:           s.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	s.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}
	s.queue.Close()
	wg.Wait()
	if err := s.hub.Close(shutdownCtx); err != nil {
		s.logger.Warn("progress hub close failed", zap.Error(err))
	}
	s.logger.Info("shutdown complete", zap.Int64("dropped_progress_events", s.hub.Dropped()))

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
