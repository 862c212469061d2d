package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
	jobReadTimeout  = 3 * time.Second
	enqueueTimeout  = 5 * time.Second
)

// JobSubmitter starts background index builds.
type JobSubmitter interface {
	Submit(ctx context.Context, params crawler.BuildParameters) (crawler.Job, error)
}

// JobReader reads build jobs back.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (crawler.Job, error)
	ListJobs(ctx context.Context) ([]crawler.Job, error)
}

// JobHandler exposes index build job endpoints.
type JobHandler struct {
	submitter          JobSubmitter
	reader             JobReader
	defaultMaxSections int
	timeout            time.Duration
	logger             *zap.Logger
}

// NewJobHandler wires the submitter, reader and logger. Requests without
// max_sections use defaultMaxSections.
func NewJobHandler(submitter JobSubmitter, reader JobReader, defaultMaxSections int, logger *zap.Logger) *JobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobHandler{
		submitter:          submitter,
		reader:             reader,
		defaultMaxSections: defaultMaxSections,
		timeout:            jobReadTimeout,
		logger:             logger,
	}
}

type buildJobRequest struct {
	LandingURL  string `json:"landing_url"`
	MaxSections *int   `json:"max_sections"`
}

// Submit handles POST /v1/index/jobs. An empty body builds with defaults.
// It answers 202 {"job_id": ...}, 400 for invalid input, or 503 when the
// queue does not accept the job in time.
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.submitter == nil {
		writeError(w, http.StatusServiceUnavailable, "job runner unavailable")
		return
	}
	var req buildJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	params := crawler.BuildParameters{
		LandingURL:  strings.TrimSpace(req.LandingURL),
		MaxSections: valueOrDefault(req.MaxSections, h.defaultMaxSections),
	}
	if params.MaxSections < 0 {
		writeError(w, http.StatusBadRequest, "max_sections must be >= 0")
		return
	}
	if params.LandingURL != "" && !strings.HasPrefix(params.LandingURL, "http") {
		writeError(w, http.StatusBadRequest, "landing_url must be an http(s) URL")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	job, err := h.submitter.Submit(ctx, params)
	if err != nil {
		h.logger.Error("submit build job failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to queue build job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// ListJobs handles GET /v1/index/jobs?status=&limit=&offset=. It returns
// {"jobs": [...]} newest first, or 400 for invalid filters.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultJobLimit, maxJobLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status crawler.JobStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		if status, err = parseStatus(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	jobs, err := h.reader.ListJobs(ctx)
	if err != nil {
		h.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	filtered := make([]crawler.Job, 0, len(jobs))
	for _, job := range jobs {
		if status == "" || job.Status == status {
			filtered = append(filtered, job)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": page(filtered, limit, offset)})
}

// GetJob handles GET /v1/index/jobs/{job_id}. It returns {"job": {...}}
// including live progress, 400 for malformed ids, or 404 for unknown ones.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	jobID, err := parseJobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	job, err := h.reader.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, crawler.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("get job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func parseJobID(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "job_id")
	if raw == "" {
		return "", errors.New("job_id is required")
	}
	if err := uuid.Validate(raw); err != nil {
		return "", errors.New("invalid job_id")
	}
	return raw, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (crawler.JobStatus, error) {
	switch strings.ToLower(input) {
	case "queued":
		return crawler.JobStatusQueued, nil
	case "running":
		return crawler.JobStatusRunning, nil
	case "succeeded", "success":
		return crawler.JobStatusSucceeded, nil
	case "failed", "error", "failure":
		return crawler.JobStatusFailed, nil
	default:
		return "", errors.New("invalid status")
	}
}

func page(jobs []crawler.Job, limit, offset int) []crawler.Job {
	if offset >= len(jobs) {
		return []crawler.Job{}
	}
	end := min(offset+limit, len(jobs))
	return jobs[offset:end]
}
