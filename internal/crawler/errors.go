package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried on unsuccessful results.
const (
	CodeNavigationFailed = "navigation_failed"
	CodeFailedToParse    = "failed_to_parse"
	CodeIndexNotFound    = "index_not_found_or_invalid"
	CodeInvalidRequest   = "invalid_request"
)

var (
	// ErrNavigation is returned by browsers when a page cannot be reached.
	ErrNavigation = errors.New("navigation failed")
	// ErrExtraction is returned by pages when a selector walk fails.
	ErrExtraction = errors.New("extraction failed")
	// ErrIndexNotFound means no index document exists at any candidate path.
	ErrIndexNotFound = errors.New("board index not found")
	// ErrMalformedIndex means an index document exists but cannot be decoded.
	ErrMalformedIndex = errors.New("board index malformed")
	// ErrJobNotFound is returned by job stores for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned by queues after shutdown.
	ErrQueueClosed = errors.New("queue closed")
)

// ErrorCode maps an error to the code reported on results.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIndexNotFound), errors.Is(err, ErrMalformedIndex):
		return CodeIndexNotFound
	case errors.Is(err, ErrNavigation):
		return CodeNavigationFailed
	default:
		return CodeFailedToParse
	}
}

// StatusError reports an HTTP response status that ended a fetch.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Code)
}

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}
