// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// Post is a single reply within a thread. Floor 0 is the opening post.
type Post struct {
	PID         string `json:"pid,omitempty"`
	Floor       *int   `json:"floor"`
	Time        string `json:"time"`
	Content     string `json:"content"`
	QuotedFloor *int   `json:"quoted_floor"`
	Likes       int    `json:"likes"`
}

// Topic is one row of a board's topic listing.
type Topic struct {
	Title         string `json:"title"`
	Replies       int    `json:"replies"`
	PostDate      string `json:"post_date"`
	LastReplyTime string `json:"last_reply_time"`
	URL           string `json:"url"`
}

// ForumRef references a child forum of a board.
type ForumRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	FID  string `json:"fid"`
}

// CollectionRef references a curated collection (stid) of a board.
type CollectionRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	STID string `json:"stid"`
}

// Board is a top-level section of the site. FID is the dedup key across an index.
type Board struct {
	Name        string          `json:"name"`
	URL         string          `json:"url"`
	FID         string          `json:"fid"`
	Description string          `json:"description"`
	CategoryL1  string          `json:"category_l1"`
	CategoryL2  string          `json:"category_l2"`
	Forums      []ForumRef      `json:"forums"`
	Collections []CollectionRef `json:"collections"`
}

// BoardIndex is the persisted root document.
type BoardIndex struct {
	GeneratedAt string  `json:"generated_at"`
	Boards      []Board `json:"boards"`
}

// CrawlResult is returned by ThreadCrawler.Crawl.
type CrawlResult struct {
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	OpeningPostTime string `json:"time"`
	TotalComments   int    `json:"total_comments"`
	Posts           []Post `json:"comments"`
	Source          string `json:"source"`
}

// TopicListResult is returned by TopicLister.List.
type TopicListResult struct {
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Total   int     `json:"total"`
	Topics  []Topic `json:"posts"`
	Source  string  `json:"source"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the raw result of a single fetch.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// JobStatus represents the lifecycle state of an index build job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// BuildParameters are the inputs of an index build job.
type BuildParameters struct {
	LandingURL  string `json:"landing_url,omitempty"`
	MaxSections int    `json:"max_sections,omitempty"`
}

// JobProgress mirrors the latest deep-phase progress report of a job.
type JobProgress struct {
	Done      int   `json:"done"`
	Total     int   `json:"total"`
	ElapsedMs int64 `json:"elapsed_ms"`
	ETAMs     int64 `json:"eta_ms,omitempty"`
	HasETA    bool  `json:"has_eta"`
}

// Job represents the metadata persisted for each submitted index build.
type Job struct {
	ID         string          `json:"id"`
	Status     JobStatus       `json:"status"`
	Submitted  time.Time       `json:"submitted_at"`
	Started    *time.Time      `json:"started_at,omitempty"`
	Finished   *time.Time      `json:"finished_at,omitempty"`
	ErrorText  string          `json:"error_text,omitempty"`
	Parameters BuildParameters `json:"parameters"`
	Progress   JobProgress     `json:"progress"`
	Boards     int             `json:"boards"`
	ArchiveURI string          `json:"archive_uri,omitempty"`
}

// QueueItem wraps a build job ready to run.
type QueueItem struct {
	JobID     string
	Params    BuildParameters
	Submitted int64
}
