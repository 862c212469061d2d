package crawler

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler defaults.
const (
	DefaultConcurrency   = 5
	DefaultEmptyPageStop = 2
	DefaultMaxChainSteps = 30
)

// State is a scheduler lifecycle state. A run moves from StateInit to
// StateFetching, then to one of the stop states, then to StateDone.
type State int

// Scheduler states.
const (
	StateInit State = iota
	StateFetching
	StateBudgetExhausted
	StateTraversalExhausted
	StateEmptyStreakStop
	StateTargetReached
	StateMaxSteps
	StateCanceled
	StateDone
)

var stateNames = map[State]string{
	StateInit:               "INIT",
	StateFetching:           "FETCHING",
	StateBudgetExhausted:    "BUDGET_EXHAUSTED",
	StateTraversalExhausted: "TRAVERSAL_EXHAUSTED",
	StateEmptyStreakStop:    "EMPTY_STREAK_STOP",
	StateTargetReached:      "TARGET_REACHED",
	StateMaxSteps:           "MAX_STEPS",
	StateCanceled:           "CANCELED",
	StateDone:               "DONE",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// DirectRequest describes a page-number sweep over Start..End inclusive.
type DirectRequest struct {
	Template    URLTemplate
	Start       int
	End         int
	Concurrency int
	// Skip lists page numbers that must not be fetched.
	Skip map[int]bool
	// Have is the number of posts the caller already holds.
	Have int
	// Target stops admission once Have plus collected posts reaches it; 0 disables.
	Target int
}

// ChainRequest describes a walk along next-page links.
type ChainRequest struct {
	StartURL string
	MaxSteps int
	Have     int
	Target   int
}

// Outcome is the result of one scheduler run. Posts are in completion order.
type Outcome struct {
	Posts   []Post
	Fetched int
	// Yielded lists, in ascending order, the page numbers that produced posts.
	Yielded []int
	Stop    State
}

// Scheduler admits page fetches under a concurrency gate and a crawl budget.
type Scheduler struct {
	browser   Browser
	pipeline  *ExtractionPipeline
	emptyStop int
	logger    *zap.Logger
}

// NewScheduler builds a Scheduler. emptyStop is the number of consecutive
// empty pages that ends a direct sweep.
func NewScheduler(browser Browser, pipeline *ExtractionPipeline, emptyStop int, logger *zap.Logger) *Scheduler {
	if emptyStop <= 0 {
		emptyStop = DefaultEmptyPageStop
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if pipeline == nil {
		pipeline = NewExtractionPipeline(0, logger)
	}
	return &Scheduler{browser: browser, pipeline: pipeline, emptyStop: emptyStop, logger: logger}
}

// Direct fetches pages in page order. Each admission first takes a gate slot,
// then checks cancellation, the budget, the empty streak and the target; once
// any check fails no further page is admitted while in-flight fetches finish.
func (s *Scheduler) Direct(ctx context.Context, budget Budget, req DirectRequest) Outcome {
	run := &directRun{
		results:   make(map[int]int),
		emptyStop: s.emptyStop,
		have:      req.Have,
		target:    req.Target,
	}
	gate := NewGate(req.Concurrency)
	stop := StateTraversalExhausted

	var g errgroup.Group
	for page := req.Start; page <= req.End; page++ {
		if req.Skip[page] {
			continue
		}
		if err := gate.Acquire(ctx); err != nil {
			stop = StateCanceled
			break
		}
		if reason, halt := run.admit(ctx, budget); halt {
			gate.Release()
			stop = reason
			break
		}
		g.Go(func() error {
			defer gate.Release()
			posts := s.fetch(ctx, req.Template.Instantiate(page), "direct")
			run.record(page, posts)
			return nil
		})
	}
	_ = g.Wait()

	out := run.outcome(stop)
	s.finish("direct", out)
	return out
}

// Chain follows next-page links from StartURL, at most MaxSteps pages,
// never visiting a URL twice.
func (s *Scheduler) Chain(ctx context.Context, budget Budget, req ChainRequest) Outcome {
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxChainSteps
	}
	var (
		out     = Outcome{Stop: StateTraversalExhausted}
		visited = make(map[string]struct{})
		next    = req.StartURL
		steps   = 0
	)
	for {
		if next == "" {
			out.Stop = StateTraversalExhausted
			break
		}
		if steps >= maxSteps {
			out.Stop = StateMaxSteps
			break
		}
		if _, seen := visited[next]; seen {
			out.Stop = StateTraversalExhausted
			break
		}
		if ctx.Err() != nil {
			out.Stop = StateCanceled
			break
		}
		if budget.Exhausted() {
			out.Stop = StateBudgetExhausted
			break
		}
		visited[next] = struct{}{}
		steps++

		posts, nextURL, ok := s.fetchWithNext(ctx, next)
		out.Fetched++
		if !ok {
			out.Stop = StateTraversalExhausted
			break
		}
		out.Posts = append(out.Posts, posts...)
		if req.Target > 0 && req.Have+len(out.Posts) >= req.Target {
			out.Stop = StateTargetReached
			break
		}
		next = nextURL
	}
	s.finish("chain", out)
	return out
}

func (s *Scheduler) fetch(ctx context.Context, url, mode string) []Post {
	page, err := s.browser.Navigate(ctx, url)
	if err != nil {
		PagesFetched.WithLabelValues(mode, "navigation_failed").Inc()
		s.logger.Warn("page navigation failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	defer page.Close()
	posts := s.pipeline.Extract(ctx, page)
	s.observe(mode, len(posts))
	return posts
}

func (s *Scheduler) fetchWithNext(ctx context.Context, url string) ([]Post, string, bool) {
	page, err := s.browser.Navigate(ctx, url)
	if err != nil {
		PagesFetched.WithLabelValues("chain", "navigation_failed").Inc()
		s.logger.Warn("chain navigation failed", zap.String("url", url), zap.Error(err))
		return nil, "", false
	}
	defer page.Close()
	posts := s.pipeline.Extract(ctx, page)
	s.observe("chain", len(posts))
	return posts, page.FindNextPageURL(ctx), true
}

func (s *Scheduler) observe(mode string, count int) {
	outcome := "ok"
	if count == 0 {
		outcome = "empty"
	}
	PagesFetched.WithLabelValues(mode, outcome).Inc()
}

func (s *Scheduler) finish(mode string, out Outcome) {
	SchedulerStops.WithLabelValues(mode, out.Stop.String()).Inc()
	s.logger.Debug("scheduler run finished",
		zap.String("mode", mode),
		zap.Stringer("stop", out.Stop),
		zap.Int("fetched", out.Fetched),
		zap.Int("posts", len(out.Posts)),
	)
}

// directRun is the state shared by the admission loop and fetch goroutines.
type directRun struct {
	mu        sync.Mutex
	results   map[int]int
	posts     []Post
	emptyStop int
	streak    bool
	have      int
	target    int
}

func (r *directRun) admit(ctx context.Context, budget Budget) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case ctx.Err() != nil:
		return StateCanceled, true
	case budget.Exhausted():
		return StateBudgetExhausted, true
	case r.streak:
		return StateEmptyStreakStop, true
	case r.target > 0 && r.have+len(r.posts) >= r.target:
		return StateTargetReached, true
	}
	return StateFetching, false
}

func (r *directRun) record(page int, posts []Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[page] = len(posts)
	r.posts = append(r.posts, posts...)
	if len(posts) == 0 && r.emptyRunAround(page) >= r.emptyStop {
		r.streak = true
	}
}

// emptyRunAround counts consecutive completed empty page numbers through page.
func (r *directRun) emptyRunAround(page int) int {
	run := 1
	for p := page - 1; ; p-- {
		if n, ok := r.results[p]; !ok || n != 0 {
			break
		}
		run++
	}
	for p := page + 1; ; p++ {
		if n, ok := r.results[p]; !ok || n != 0 {
			break
		}
		run++
	}
	return run
}

func (r *directRun) outcome(stop State) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := Outcome{Posts: r.posts, Fetched: len(r.results), Stop: stop}
	for page, n := range r.results {
		if n > 0 {
			out.Yielded = append(out.Yielded, page)
		}
	}
	slices.Sort(out.Yielded)
	return out
}
