package page

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/metrics"
)

// Waiter paces requests per host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Browser implements crawler.Browser with a static probe that is promoted to
// a headless fetch when the detector asks for it.
type Browser struct {
	probe    crawler.Fetcher
	headless crawler.Fetcher
	detector crawler.HeadlessDetector
	limiter  Waiter
	retry    crawler.RetryPolicy
	headers  http.Header
	logger   *zap.Logger
}

// BrowserOption customizes a Browser.
type BrowserOption func(*Browser)

// WithHeadless enables promotion to fetcher when detector says so.
func WithHeadless(fetcher crawler.Fetcher, detector crawler.HeadlessDetector) BrowserOption {
	return func(b *Browser) {
		b.headless = fetcher
		b.detector = detector
	}
}

// WithLimiter paces every fetch attempt through w.
func WithLimiter(w Waiter) BrowserOption {
	return func(b *Browser) {
		b.limiter = w
	}
}

// WithRetry retries failed fetch attempts per policy.
func WithRetry(policy crawler.RetryPolicy) BrowserOption {
	return func(b *Browser) {
		b.retry = policy
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(h http.Header) BrowserOption {
	return func(b *Browser) {
		b.headers = h.Clone()
	}
}

// NewBrowser builds a Browser around the static probe fetcher.
func NewBrowser(probe crawler.Fetcher, logger *zap.Logger, opts ...BrowserOption) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Browser{probe: probe, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Navigate fetches url and parses the result. Failures wrap crawler.ErrNavigation.
func (b *Browser) Navigate(ctx context.Context, url string) (crawler.Page, error) {
	resp, err := b.fetchProbe(ctx, url)
	if promoted, ok := b.maybePromote(ctx, url, resp, err); ok {
		resp, err = promoted, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", crawler.ErrNavigation, url, err)
	}
	pageURL := resp.URL
	if pageURL == "" {
		pageURL = url
	}
	doc, err := FromHTML(pageURL, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crawler.ErrNavigation, err)
	}
	return doc, nil
}

func (b *Browser) fetchProbe(ctx context.Context, url string) (crawler.FetchResponse, error) {
	resp, err := b.fetch(ctx, b.probe, "static", url)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("probe fetch: %w", err)
	}
	return resp, nil
}

// maybePromote re-fetches url headlessly when the probe was refused or the
// detector flags its body. ok is false when the probe result stands.
func (b *Browser) maybePromote(
	ctx context.Context,
	url string,
	resp crawler.FetchResponse,
	probeErr error,
) (crawler.FetchResponse, bool) {
	if b.headless == nil || b.detector == nil {
		return resp, false
	}
	if probeErr != nil {
		var statusErr *crawler.StatusError
		if !errors.As(probeErr, &statusErr) || statusErr.Code != http.StatusForbidden {
			return resp, false
		}
	} else if !b.detector.ShouldPromote(resp) {
		return resp, false
	}

	metrics.ObserveHeadlessPromotion(url)
	headlessResp, err := b.fetch(ctx, b.headless, "headless", url)
	if err != nil {
		b.logger.Warn("headless promotion failed", zap.String("url", url), zap.Error(err))
		return resp, false
	}
	headlessResp.UsedHeadless = true
	b.logger.Debug("headless promotion applied", zap.String("url", url))
	return headlessResp, true
}

func (b *Browser) fetch(ctx context.Context, f crawler.Fetcher, kind, url string) (crawler.FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx, url); err != nil {
				return crawler.FetchResponse{}, err
			}
		}
		resp, err := f.Fetch(ctx, crawler.FetchRequest{URL: url, Headers: b.headers})
		if err == nil {
			metrics.ObserveFetch(url, kind, "ok", len(resp.Body))
			return resp, nil
		}
		metrics.ObserveFetch(url, kind, "error", 0)
		if b.retry == nil || !b.retry.ShouldRetry(err, attempt) {
			return crawler.FetchResponse{}, err
		}
		delay := b.retry.Backoff(attempt)
		b.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.String("fetcher", kind),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return crawler.FetchResponse{}, fmt.Errorf("retry wait canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}
