package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

// JobStore keeps index build jobs in memory for the lifetime of the process.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]crawler.Job
	now  func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]crawler.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus moves a job to status, stamping start and finish times.
func (s *JobStore) UpdateJobStatus(_ context.Context, jobID string, status crawler.JobStatus, errText string) error {
	return s.update(jobID, func(job *crawler.Job) {
		job.Status = status
		job.ErrorText = errText
		now := s.now()
		if status == crawler.JobStatusRunning && job.Started == nil {
			job.Started = pointerTime(now)
		}
		if isTerminal(status) {
			job.Finished = pointerTime(now)
		}
	})
}

// UpdateJobProgress records the latest deep-phase progress of a running job.
// Progress never moves backwards.
func (s *JobStore) UpdateJobProgress(_ context.Context, jobID string, progress crawler.JobProgress) error {
	return s.update(jobID, func(job *crawler.Job) {
		if progress.Done >= job.Progress.Done {
			job.Progress = progress
		}
	})
}

// CompleteJob marks a job succeeded with its results.
func (s *JobStore) CompleteJob(_ context.Context, jobID string, boards int, archiveURI string) error {
	return s.update(jobID, func(job *crawler.Job) {
		job.Status = crawler.JobStatusSucceeded
		job.ErrorText = ""
		job.Boards = boards
		job.ArchiveURI = archiveURI
		job.Finished = pointerTime(s.now())
	})
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.Job{}, fmt.Errorf("%w: %s", crawler.ErrJobNotFound, jobID)
	}
	return job, nil
}

// ListJobs returns all jobs, newest submission first.
func (s *JobStore) ListJobs(_ context.Context) ([]crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Submitted.Equal(out[j].Submitted) {
			return out[i].Submitted.After(out[j].Submitted)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *JobStore) update(jobID string, apply func(*crawler.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", crawler.ErrJobNotFound, jobID)
	}
	apply(&job)
	s.jobs[jobID] = job
	return nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status crawler.JobStatus) bool {
	switch status {
	case crawler.JobStatusSucceeded, crawler.JobStatusFailed:
		return true
	default:
		return false
	}
}
