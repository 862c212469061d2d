// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/config"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/metrics"
	"github.com/JakeFAU/nga-crawler/internal/query"
)

// Request defaults.
const (
	DefaultMaxComments = 50
	DefaultTopicTopK   = 30
)

// ThreadCrawler crawls one thread.
type ThreadCrawler interface {
	Crawl(ctx context.Context, rawURL string, maxComments int) crawler.CrawlResult
}

// TopicLister lists the topics of a board page.
type TopicLister interface {
	List(ctx context.Context, rawURL string, topk int) crawler.TopicListResult
}

// IndexReader answers lookups over the saved board index.
type IndexReader interface {
	Query(ctx context.Context, name string, topk int) query.Result
	Structure(ctx context.Context) query.StructureResult
}

// Server wires HTTP handlers to the crawlers, the index and the job runner.
type Server struct {
	router  chi.Router
	threads ThreadCrawler
	topics  TopicLister
	index   IndexReader
	jobs    *JobHandler
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	threads ThreadCrawler,
	topics TopicLister,
	index IndexReader,
	jobs *JobHandler,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobs == nil {
		jobs = NewJobHandler(nil, nil, 0, logger)
	}
	s := &Server{
		threads: threads,
		topics:  topics,
		index:   index,
		jobs:    jobs,
		cfg:     cfg,
		logger:  logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/threads/crawl", s.crawlThread)
		r.Post("/topics", s.listTopics)
		r.Route("/index", func(r chi.Router) {
			r.Get("/query", s.queryIndex)
			r.Get("/structure", s.structure)
			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", s.jobs.Submit)
				r.Get("/", s.jobs.ListJobs)
				r.Get("/{job_id}", s.jobs.GetJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.threads == nil || s.topics == nil || s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	URL         string `json:"url"`
	MaxComments *int   `json:"max_comments"`
}

type topicsRequest struct {
	URL  string `json:"url"`
	TopK *int   `json:"topk"`
}

// crawlThread answers with the crawl result; failures are reported in-band
// through success and error.
func (s *Server) crawlThread(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	maxComments := valueOrDefault(req.MaxComments, DefaultMaxComments)
	if maxComments < 0 {
		writeError(w, http.StatusBadRequest, "max_comments must be >= 0")
		return
	}
	writeJSON(w, http.StatusOK, s.threads.Crawl(r.Context(), url, maxComments))
}

func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	var req topicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	writeJSON(w, http.StatusOK, s.topics.List(r.Context(), url, valueOrDefault(req.TopK, DefaultTopicTopK)))
}

func (s *Server) queryIndex(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	topk := query.DefaultTopK
	if raw := r.URL.Query().Get("topk"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid topk")
			return
		}
		topk = val
	}
	writeJSON(w, http.StatusOK, s.index.Query(r.Context(), name, topk))
}

func (s *Server) structure(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.index.Structure(r.Context()))
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("error", rec),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body := map[string]string{"error": msg}
	if status == http.StatusBadRequest {
		body["code"] = crawler.CodeInvalidRequest
	}
	writeJSON(w, status, body)
}
