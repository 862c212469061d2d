package headless

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

// ErrDisabled is returned by Noop when headless browsing is switched off.
var ErrDisabled = errors.New("headless fetcher disabled")

// Noop implements Fetcher but always fails, so pages that need rendering
// degrade to their static probe.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns ErrDisabled.
func (Noop) Fetch(_ context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{}, fmt.Errorf("%s: %w", request.URL, ErrDisabled)
}
