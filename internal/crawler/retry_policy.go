package crawler

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"
)

// ExponentialRetryPolicy retries transient fetch failures with doubling,
// half-jittered delays.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy; non-positive arguments select
// 3 attempts, 250ms base delay and 5s maximum delay.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	p := &ExponentialRetryPolicy{maxAttempts: 3, baseDelay: 250 * time.Millisecond, maxDelay: 5 * time.Second}
	if maxAttempts > 0 {
		p.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		p.baseDelay = baseDelay
	}
	if maxDelay > 0 {
		p.maxDelay = maxDelay
	}
	return p
}

// ShouldRetry reports whether attempt (counted from 1) may be followed by
// another. Cancellation, client errors and refused connections are final;
// throttling, server errors and timeouts are not.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns the wait before the attempt after attempt: half of the
// capped exponential delay plus up to the same amount of jitter.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.maxDelay
	if attempt < 30 {
		if d := p.baseDelay << attempt; d > 0 && d < p.maxDelay {
			delay = d
		}
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + rand.N(half)
}
