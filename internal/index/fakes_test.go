package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

type fakePage struct {
	url      string
	events   []crawler.SectionEvent
	links    []crawler.RawSection
	children crawler.ChildLinks
}

func (p *fakePage) URL() string { return p.url }
func (p *fakePage) Title(context.Context) (string, error) { return "", nil }
func (p *fakePage) Description(context.Context) (string, error) { return "", nil }
func (p *fakePage) InferTotalPages(context.Context) int { return 1 }
func (p *fakePage) FindNextPageURL(context.Context) string { return "" }
func (p *fakePage) Close() {}
func (p *fakePage) ExtractPosts(context.Context) ([]crawler.RawPost, error) {
	return nil, nil
}

func (p *fakePage) ExtractPostsFallback(context.Context) ([]crawler.RawPost, error) {
	return nil, nil
}

func (p *fakePage) ExtractTopicRows(context.Context) ([]crawler.RawTopic, error) {
	return nil, nil
}

func (p *fakePage) ExtractSectionEvents(context.Context) ([]crawler.SectionEvent, error) {
	return p.events, nil
}

func (p *fakePage) ExtractSectionLinks(context.Context) ([]crawler.RawSection, error) {
	return p.links, nil
}

func (p *fakePage) ExtractChildLinks(context.Context) (crawler.ChildLinks, error) {
	return p.children, nil
}

// fakeBrowser serves pages by URL and tracks concurrent navigations.
type fakeBrowser struct {
	mu      sync.Mutex
	pages   map[string]*fakePage
	visits  []string
	delay   time.Duration
	current atomic.Int32
	peak    atomic.Int32
}

func newFakeBrowser(pages ...*fakePage) *fakeBrowser {
	b := &fakeBrowser{pages: map[string]*fakePage{}}
	for _, p := range pages {
		b.pages[p.url] = p
	}
	return b
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) (crawler.Page, error) {
	n := b.current.Add(1)
	defer b.current.Add(-1)
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	b.mu.Lock()
	b.visits = append(b.visits, url)
	page, ok := b.pages[url]
	b.mu.Unlock()
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, errors.Join(crawler.ErrNavigation, errors.New("no such page: "+url))
	}
	return page, nil
}

func (b *fakeBrowser) visited() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func link(name, fid string) crawler.SectionEvent {
	return crawler.SectionEvent{Kind: crawler.EventLink, Section: section(name, fid)}
}

func section(name, fid string) crawler.RawSection {
	return crawler.RawSection{Name: name, FID: fid, URL: "https://bbs.nga.cn/thread.php?fid=" + fid}
}

func category(label string) crawler.SectionEvent {
	return crawler.SectionEvent{Kind: crawler.EventCategory, Label: label}
}

func subCategory(label string) crawler.SectionEvent {
	return crawler.SectionEvent{Kind: crawler.EventSubCategory, Label: label}
}
