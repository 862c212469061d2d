package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/nga-crawler/internal/clock/system"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/metrics"
)

// Default entry points of the site.
const (
	DefaultLandingURL = "https://bbs.nga.cn/"
	DefaultSiteMapURL = "https://bbs.nga.cn/forum.php"
)

// Options tune a Builder.
type Options struct {
	// Concurrency bounds simultaneous section fetches in the deep phase.
	Concurrency int
	LandingURL  string
	SiteMapURL  string
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = crawler.DefaultConcurrency
	}
	if o.LandingURL == "" {
		o.LandingURL = DefaultLandingURL
	}
	if o.SiteMapURL == "" {
		o.SiteMapURL = DefaultSiteMapURL
	}
	return o
}

// ParseFunc turns a saved HTML document into a page handle.
type ParseFunc func(rawURL string, body []byte) (crawler.Page, error)

// LandingSource names where the shallow phase reads sections from. When HTML
// is set it is parsed directly, with BaseURL (or URL) resolving relative
// links; otherwise URL (or the configured landing URL) is navigated.
type LandingSource struct {
	URL     string
	HTML    []byte
	BaseURL string
}

// Builder produces board indexes.
type Builder struct {
	browser crawler.Browser
	parse   ParseFunc
	clock   crawler.Clock
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// NewBuilder wires a Builder. parse may be nil when offline sources are not
// used; clock defaults to the system clock.
func NewBuilder(browser crawler.Browser, parse ParseFunc, clock crawler.Clock, opts Options, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Builder{
		browser: browser,
		parse:   parse,
		clock:   clock,
		opts:    opts.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// Build runs both phases.
func (b *Builder) Build(ctx context.Context, src LandingSource, maxSections int, report ProgressFunc) (crawler.BoardIndex, error) {
	started := b.now()
	boards, err := b.BuildShallow(ctx, src, maxSections)
	if err != nil {
		metrics.ObserveIndexBuild("error", 0, b.now().Sub(started))
		return crawler.BoardIndex{}, err
	}
	idx, err := b.Deepen(ctx, boards, report)
	if err != nil {
		metrics.ObserveIndexBuild("error", 0, b.now().Sub(started))
		return crawler.BoardIndex{}, err
	}
	metrics.ObserveIndexBuild("ok", len(idx.Boards), b.now().Sub(started))
	return idx, nil
}

// BuildShallow collects the top-level sections, unique by fid in discovery
// order and capped at maxSections when positive. Children are left empty.
func (b *Builder) BuildShallow(ctx context.Context, src LandingSource, maxSections int) ([]crawler.Board, error) {
	sections, err := b.shallowSections(ctx, src)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(sections))
	boards := make([]crawler.Board, 0, len(sections))
	for _, s := range sections {
		if seen[s.FID] {
			continue
		}
		seen[s.FID] = true
		boards = append(boards, crawler.Board{
			Name:        s.Name,
			URL:         s.URL,
			FID:         s.FID,
			Description: crawler.CleanText(s.Description),
			CategoryL1:  s.CategoryL1,
			CategoryL2:  s.CategoryL2,
			Forums:      []crawler.ForumRef{},
			Collections: []crawler.CollectionRef{},
		})
		if maxSections > 0 && len(boards) == maxSections {
			break
		}
	}
	b.logger.Info("shallow index built", zap.Int("sections", len(sections)), zap.Int("boards", len(boards)))
	return boards, nil
}

func (b *Builder) shallowSections(ctx context.Context, src LandingSource) ([]crawler.RawSection, error) {
	if len(src.HTML) > 0 {
		return b.offlineSections(ctx, src)
	}
	landingURL := src.URL
	if landingURL == "" {
		landingURL = b.opts.LandingURL
	}
	page, err := b.browser.Navigate(ctx, landingURL)
	if err != nil {
		b.logger.Warn("landing page unreachable", zap.String("url", landingURL), zap.Error(err))
	} else {
		sections := landingSections(ctx, page, b.logger)
		page.Close()
		if len(sections) > 0 {
			return sections, nil
		}
		b.logger.Info("landing page has no sections, reading site map", zap.String("url", b.opts.SiteMapURL))
	}

	siteMap, mapErr := b.browser.Navigate(ctx, b.opts.SiteMapURL)
	if mapErr != nil {
		return nil, fmt.Errorf("index entry points unreachable: %w", errors.Join(err, mapErr))
	}
	defer siteMap.Close()
	return flatLinks(ctx, siteMap, b.logger), nil
}

func (b *Builder) offlineSections(ctx context.Context, src LandingSource) ([]crawler.RawSection, error) {
	if b.parse == nil {
		return nil, fmt.Errorf("offline landing source: no parser configured: %w", crawler.ErrExtraction)
	}
	base := src.BaseURL
	if base == "" {
		base = src.URL
	}
	if base == "" {
		base = b.opts.LandingURL
	}
	page, err := b.parse(base, src.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse landing html: %w", err)
	}
	defer page.Close()
	if sections := landingSections(ctx, page, b.logger); len(sections) > 0 {
		return sections, nil
	}
	return flatLinks(ctx, page, b.logger), nil
}

func landingSections(ctx context.Context, page crawler.Page, logger *zap.Logger) []crawler.RawSection {
	events, err := page.ExtractSectionEvents(ctx)
	if err != nil {
		logger.Warn("section walk failed", zap.String("url", page.URL()), zap.Error(err))
		return nil
	}
	return ScanSections(events)
}

func flatLinks(ctx context.Context, page crawler.Page, logger *zap.Logger) []crawler.RawSection {
	links, err := page.ExtractSectionLinks(ctx)
	if err != nil {
		logger.Warn("section links unreadable", zap.String("url", page.URL()), zap.Error(err))
		return nil
	}
	return flatSections(links)
}

// Deepen visits every board with a URL, at most Concurrency at a time, and
// fills in its children. Sections that fail keep empty child lists. Results
// land in per-board slots, so the output order matches boards whatever the
// completion order; report is called after each completion. When ctx ends
// before the phase completes, no index is returned: sections cut short by
// cancellation are indistinguishable from empty ones.
func (b *Builder) Deepen(ctx context.Context, boards []crawler.Board, report ProgressFunc) (crawler.BoardIndex, error) {
	targets := make([]crawler.Board, 0, len(boards))
	for _, board := range boards {
		if board.URL != "" {
			targets = append(targets, board)
		}
	}

	slots := make([]crawler.Board, len(targets))
	for i, board := range targets {
		slots[i] = withChildren(board, crawler.ChildLinks{})
	}
	gate := crawler.NewGate(b.opts.Concurrency)
	tracker := newETATracker(len(targets), b.now)
	var (
		g        errgroup.Group
		reportMu sync.Mutex
	)
	for i, board := range targets {
		if err := gate.Acquire(ctx); err != nil {
			b.logger.Warn("deep phase canceled", zap.Int("pending", len(targets)-i), zap.Error(err))
			break
		}
		g.Go(func() error {
			defer gate.Release()
			started := b.now()
			slots[i] = withChildren(board, b.children(ctx, board))

			reportMu.Lock()
			defer reportMu.Unlock()
			p := tracker.complete(b.now().Sub(started))
			if report != nil {
				report(p)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return crawler.BoardIndex{}, fmt.Errorf("deep phase interrupted: %w", err)
	}

	b.logger.Info("deep index built", zap.Int("boards", len(slots)))
	return crawler.BoardIndex{
		GeneratedAt: b.clock.Now().UTC().Format(time.RFC3339),
		Boards:      slots,
	}, nil
}

func (b *Builder) children(ctx context.Context, board crawler.Board) crawler.ChildLinks {
	page, err := b.browser.Navigate(ctx, board.URL)
	if err != nil {
		b.logger.Warn("section unreachable", zap.String("fid", board.FID), zap.String("url", board.URL), zap.Error(err))
		return crawler.ChildLinks{}
	}
	defer page.Close()
	links, err := page.ExtractChildLinks(ctx)
	if err != nil {
		b.logger.Warn("section children unreadable", zap.String("fid", board.FID), zap.Error(err))
		return crawler.ChildLinks{}
	}
	return links
}

func withChildren(board crawler.Board, links crawler.ChildLinks) crawler.Board {
	board.Forums = make([]crawler.ForumRef, 0, len(links.Forums))
	for _, f := range links.Forums {
		if f.URL != "" && f.FID != "" {
			board.Forums = append(board.Forums, f)
		}
	}
	board.Collections = make([]crawler.CollectionRef, 0, len(links.Collections))
	for _, c := range links.Collections {
		if c.URL != "" && c.STID != "" {
			board.Collections = append(board.Collections, c)
		}
	}
	return board
}
