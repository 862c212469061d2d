package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ThreadCrawler collects the posts of one thread across its pages.
type ThreadCrawler struct {
	browser   Browser
	opts      Options
	pipeline  *ExtractionPipeline
	scheduler *Scheduler
	logger    *zap.Logger
	now       func() time.Time
}

// NewThreadCrawler wires a crawler over browser with the given options.
func NewThreadCrawler(browser Browser, opts Options, logger *zap.Logger) *ThreadCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	pipeline := NewExtractionPipeline(opts.MinPlausiblePosts, logger.Named("extract"))
	return &ThreadCrawler{
		browser:   browser,
		opts:      opts,
		pipeline:  pipeline,
		scheduler: NewScheduler(browser, pipeline, opts.EmptyPageStop, logger.Named("scheduler")),
		logger:    logger,
		now:       time.Now,
	}
}

// firstPage is what the crawl learns from page 1.
type firstPage struct {
	title       string
	description string
	openingTime string
	posts       []Post
	totalPages  int
	nextURL     string
}

// Crawl returns up to maxComments posts of the thread at rawURL; maxComments
// <= 0 means no limit. Only failing to load page 1 is unsuccessful; any
// partial result after that is a success.
func (c *ThreadCrawler) Crawl(ctx context.Context, rawURL string, maxComments int) CrawlResult {
	budget := newBudget(c.opts.Budget, c.now)
	tmpl := NewURLTemplate(rawURL)
	logger := c.logger.With(zap.String("source", rawURL))

	first, err := c.loadFirstPage(ctx, tmpl.Instantiate(1))
	if err != nil {
		logger.Warn("first page unreachable", zap.Error(err))
		ThreadCrawls.WithLabelValues("failed").Inc()
		return CrawlResult{Success: false, Error: CodeNavigationFailed, Posts: []Post{}, Source: rawURL}
	}

	acc := &accumulator{posts: first.posts, limit: maxComments}
	if first.totalPages > 1 {
		c.sweepKnownRange(ctx, budget, tmpl, first, acc)
	} else {
		c.sweepUnknownRange(ctx, budget, tmpl, first, acc)
	}

	merged := MergePosts(acc.posts, maxComments)
	logger.Info("thread crawled",
		zap.Int("total_pages", first.totalPages),
		zap.Int("collected", len(acc.posts)),
		zap.Int("returned", len(merged)),
		zap.Duration("elapsed", budget.Elapsed()),
		zap.Duration("budget_left", budget.Remaining()),
	)
	ThreadCrawls.WithLabelValues("ok").Inc()
	return CrawlResult{
		Success:         true,
		Title:           first.title,
		Description:     first.description,
		OpeningPostTime: first.openingTime,
		Posts:           merged,
		TotalComments:   len(merged),
		Source:          rawURL,
	}
}

func (c *ThreadCrawler) loadFirstPage(ctx context.Context, url string) (firstPage, error) {
	page, err := c.browser.Navigate(ctx, url)
	if err != nil {
		return firstPage{}, err
	}
	defer page.Close()

	var first firstPage
	if title, err := page.Title(ctx); err == nil {
		first.title = CleanTitle(title)
	}
	if desc, err := page.Description(ctx); err == nil {
		first.description = CleanText(desc)
	}
	first.posts = c.pipeline.Extract(ctx, page)
	for _, p := range first.posts {
		if p.Floor != nil && *p.Floor == 0 {
			first.openingTime = p.Time
			break
		}
	}
	first.totalPages = max(page.InferTotalPages(ctx), 1)
	first.nextURL = page.FindNextPageURL(ctx)
	return first, nil
}

// sweepKnownRange fetches the pages needed for the cap concurrently, then
// widens twice while still short: forward past the estimate, then a rescan
// of the inferred range skipping pages that already produced posts.
func (c *ThreadCrawler) sweepKnownRange(ctx context.Context, budget Budget, tmpl URLTemplate, first firstPage, acc *accumulator) {
	last := c.pagesNeeded(first, acc)
	yielded := map[int]bool{1: len(first.posts) > 0}

	out := c.scheduler.Direct(ctx, budget, DirectRequest{
		Template:    tmpl,
		Start:       2,
		End:         last,
		Concurrency: c.opts.Concurrency,
		Have:        len(acc.posts),
		Target:      acc.limit,
	})
	acc.add(out, yielded)

	if acc.short() && c.opts.ForwardSweepPages > 0 {
		out = c.scheduler.Direct(ctx, budget, DirectRequest{
			Template:    tmpl,
			Start:       last + 1,
			End:         last + c.opts.ForwardSweepPages,
			Concurrency: 1,
			Have:        len(acc.posts),
			Target:      acc.limit,
		})
		acc.add(out, yielded)
	}

	if acc.short() {
		out = c.scheduler.Direct(ctx, budget, DirectRequest{
			Template:    tmpl,
			Start:       2,
			End:         first.totalPages,
			Concurrency: 1,
			Skip:        yielded,
			Have:        len(acc.posts),
			Target:      acc.limit,
		})
		acc.add(out, yielded)
	}
}

// sweepUnknownRange chases next links from page 1 and, when still short,
// tries page numbers sequentially up to the fallback ceiling.
func (c *ThreadCrawler) sweepUnknownRange(ctx context.Context, budget Budget, tmpl URLTemplate, first firstPage, acc *accumulator) {
	out := c.scheduler.Chain(ctx, budget, ChainRequest{
		StartURL: first.nextURL,
		MaxSteps: c.opts.MaxChainSteps,
		Have:     len(acc.posts),
		Target:   acc.limit,
	})
	acc.posts = append(acc.posts, out.Posts...)

	if acc.short() && c.opts.ChainFallbackCeiling >= 2 {
		out = c.scheduler.Direct(ctx, budget, DirectRequest{
			Template:    tmpl,
			Start:       2,
			End:         c.opts.ChainFallbackCeiling,
			Concurrency: 1,
			Have:        len(acc.posts),
			Target:      acc.limit,
		})
		acc.posts = append(acc.posts, out.Posts...)
	}
}

// pagesNeeded estimates the last page to fetch from page 1's reply yield.
func (c *ThreadCrawler) pagesNeeded(first firstPage, acc *accumulator) int {
	if acc.limit <= 0 {
		return first.totalPages
	}
	need := acc.limit - len(acc.posts)
	if need <= 0 {
		return first.totalPages
	}
	replies := 0
	for _, p := range first.posts {
		if p.Floor != nil && *p.Floor != 0 {
			replies++
		}
	}
	perPage := max(replies, 1)
	extra := (need + perPage - 1) / perPage
	return min(first.totalPages, 1+extra)
}

type accumulator struct {
	posts []Post
	limit int
}

func (a *accumulator) short() bool {
	return a.limit <= 0 || len(a.posts) < a.limit
}

func (a *accumulator) add(out Outcome, yielded map[int]bool) {
	a.posts = append(a.posts, out.Posts...)
	for _, page := range out.Yielded {
		yielded[page] = true
	}
}
