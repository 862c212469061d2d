package crawler

import (
	"context"
	"io"
	"time"
)

// Browser navigates to a URL and returns a handle on the loaded page.
type Browser interface {
	Navigate(ctx context.Context, url string) (Page, error)
}

// Page is a loaded page. Extraction methods return raw records that are
// validated by the core before entering the typed data model.
type Page interface {
	URL() string
	// Title returns the thread subject, falling back to the document title.
	Title(ctx context.Context) (string, error)
	// Description returns the opening post body text.
	Description(ctx context.Context) (string, error)
	ExtractPosts(ctx context.Context) ([]RawPost, error)
	ExtractPostsFallback(ctx context.Context) ([]RawPost, error)
	ExtractTopicRows(ctx context.Context) ([]RawTopic, error)
	// ExtractSectionEvents flattens the landing page category blocks into
	// document-ordered events.
	ExtractSectionEvents(ctx context.Context) ([]SectionEvent, error)
	// ExtractSectionLinks returns every section link on a flat site map page.
	ExtractSectionLinks(ctx context.Context) ([]RawSection, error)
	ExtractChildLinks(ctx context.Context) (ChildLinks, error)
	// InferTotalPages returns 1 when the page has no pagination evidence.
	InferTotalPages(ctx context.Context) int
	// FindNextPageURL returns "" when no next link exists.
	FindNextPageURL(ctx context.Context) string
	Close()
}

// RawPost is a post record as extracted from a page.
type RawPost struct {
	PID         string
	Floor       *int
	Time        string
	ContentText string
	QuotedPID   string
	Likes       int
}

// RawTopic is a topic row as extracted from a listing page.
type RawTopic struct {
	Title         string
	Replies       int
	PostDate      string
	LastReplyTime string
	URL           string
}

// RawSection is a section link as extracted from a landing or site map page.
type RawSection struct {
	Name        string
	URL         string
	FID         string
	Description string
	CategoryL1  string
	CategoryL2  string
}

// SectionEventKind tags a SectionEvent.
type SectionEventKind int

// Section event kinds, in the order they may appear inside a category block.
const (
	EventCategory SectionEventKind = iota
	EventSubCategory
	EventLink
)

// SectionEvent is one element of a landing page walk. Label carries the
// header text for category events; Section carries the link for link events.
type SectionEvent struct {
	Kind    SectionEventKind
	Label   string
	Section RawSection
}

// ChildLinks are the child references found on a section page.
type ChildLinks struct {
	Forums      []ForumRef
	Collections []CollectionRef
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// JobStore persists index build jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string) error
	UpdateJobProgress(ctx context.Context, jobID string, progress JobProgress) error
	CompleteJob(ctx context.Context, jobID string, boards int, archiveURI string) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Queue provides enqueue/dequeue semantics for build jobs.
type Queue interface {
	Enqueue(ctx context.Context, job QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// BlobStore writes archived artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archive keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
