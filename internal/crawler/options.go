package crawler

import "time"

// Thread crawl defaults.
const (
	DefaultBudget               = 120 * time.Second
	DefaultForwardSweepPages    = 30
	DefaultChainFallbackCeiling = 30
)

// Options tune one orchestrator. They are passed explicitly to constructors;
// there are no package-level knobs.
type Options struct {
	// Concurrency bounds simultaneous page fetches.
	Concurrency int
	// Budget is the wall-clock ceiling of one crawl. Zero or less admits no
	// fetch beyond the first page.
	Budget time.Duration
	// EmptyPageStop is the number of consecutive empty pages ending a sweep.
	EmptyPageStop int
	// MaxChainSteps caps next-link traversal.
	MaxChainSteps int
	// ForwardSweepPages is how far past the estimated page count the first
	// widening sweep reaches.
	ForwardSweepPages int
	// ChainFallbackCeiling is the last page number tried sequentially when
	// the page count is unknown and link chasing came up short.
	ChainFallbackCeiling int
	// MinPlausiblePosts is the primary extraction yield that skips the fallback.
	MinPlausiblePosts int
}

// DefaultOptions returns the stock crawl settings.
func DefaultOptions() Options {
	return Options{
		Concurrency:          DefaultConcurrency,
		Budget:               DefaultBudget,
		EmptyPageStop:        DefaultEmptyPageStop,
		MaxChainSteps:        DefaultMaxChainSteps,
		ForwardSweepPages:    DefaultForwardSweepPages,
		ChainFallbackCeiling: DefaultChainFallbackCeiling,
		MinPlausiblePosts:    DefaultMinPlausiblePosts,
	}
}

// withDefaults fills unset counts. Budget is left alone: zero is meaningful.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.EmptyPageStop <= 0 {
		o.EmptyPageStop = d.EmptyPageStop
	}
	if o.MaxChainSteps <= 0 {
		o.MaxChainSteps = d.MaxChainSteps
	}
	if o.ForwardSweepPages < 0 {
		o.ForwardSweepPages = 0
	}
	if o.ChainFallbackCeiling < 0 {
		o.ChainFallbackCeiling = 0
	}
	if o.MinPlausiblePosts <= 0 {
		o.MinPlausiblePosts = d.MinPlausiblePosts
	}
	return o
}
