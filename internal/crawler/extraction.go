package crawler

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

// DefaultMinPlausiblePosts is the primary-extraction yield below which the
// fallback extraction runs.
const DefaultMinPlausiblePosts = 5

// ExtractionPipeline turns a loaded page into normalized posts.
type ExtractionPipeline struct {
	minPlausible int
	logger       *zap.Logger
}

// NewExtractionPipeline builds a pipeline; minPlausible <= 0 selects the default.
func NewExtractionPipeline(minPlausible int, logger *zap.Logger) *ExtractionPipeline {
	if minPlausible <= 0 {
		minPlausible = DefaultMinPlausiblePosts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionPipeline{minPlausible: minPlausible, logger: logger}
}

// Extract runs the primary extraction and, when it errors or yields fewer than
// the plausibility threshold, the fallback extraction; the larger result wins
// and ties keep the primary. Failures degrade to an empty result.
func (p *ExtractionPipeline) Extract(ctx context.Context, page Page) []Post {
	primary, err := page.ExtractPosts(ctx)
	if err != nil {
		p.logger.Debug("primary extraction failed", zap.String("url", page.URL()), zap.Error(err))
		primary = nil
	}
	if len(primary) >= p.minPlausible {
		return normalizePosts(primary)
	}
	fallback, err := page.ExtractPostsFallback(ctx)
	if err != nil {
		p.logger.Debug("fallback extraction failed", zap.String("url", page.URL()), zap.Error(err))
		fallback = nil
	}
	if len(fallback) > len(primary) {
		ExtractionFallbacks.WithLabelValues("true").Inc()
		return normalizePosts(fallback)
	}
	ExtractionFallbacks.WithLabelValues("false").Inc()
	return normalizePosts(primary)
}

// normalizePosts cleans content and resolves quoted PIDs to floors using the
// PIDs seen within the same batch.
func normalizePosts(raw []RawPost) []Post {
	pidFloor := make(map[string]int, len(raw))
	for _, r := range raw {
		if r.PID != "" && r.Floor != nil {
			pidFloor[r.PID] = *r.Floor
		}
	}
	out := make([]Post, 0, len(raw))
	for _, r := range raw {
		post := Post{
			PID:     r.PID,
			Time:    CleanText(r.Time),
			Content: CleanText(r.ContentText),
			Likes:   max(r.Likes, 0),
		}
		if r.Floor != nil && *r.Floor >= 0 {
			post.Floor = intPtr(*r.Floor)
		}
		if r.QuotedPID != "" {
			if floor, ok := pidFloor[r.QuotedPID]; ok {
				post.QuotedFloor = intPtr(floor)
			}
		}
		out = append(out, post)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}

// ParseFloor parses a decimal floor number, returning nil when s is not one.
func ParseFloor(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return intPtr(n)
}
