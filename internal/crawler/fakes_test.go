package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// fakePage serves canned extraction results.
type fakePage struct {
	url        string
	title      string
	desc       string
	posts      []RawPost
	postsErr   error
	fallback   []RawPost
	topics     []RawTopic
	topicsErr  error
	events     []SectionEvent
	sections   []RawSection
	children   ChildLinks
	childErr   error
	totalPages int
	next       string
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Title(context.Context) (string, error) { return p.title, nil }

func (p *fakePage) Description(context.Context) (string, error) { return p.desc, nil }

func (p *fakePage) ExtractPosts(context.Context) ([]RawPost, error) { return p.posts, p.postsErr }

func (p *fakePage) ExtractPostsFallback(context.Context) ([]RawPost, error) { return p.fallback, nil }

func (p *fakePage) ExtractTopicRows(context.Context) ([]RawTopic, error) { return p.topics, p.topicsErr }

func (p *fakePage) ExtractSectionEvents(context.Context) ([]SectionEvent, error) { return p.events, nil }

func (p *fakePage) ExtractSectionLinks(context.Context) ([]RawSection, error) { return p.sections, nil }

func (p *fakePage) ExtractChildLinks(context.Context) (ChildLinks, error) { return p.children, p.childErr }

func (p *fakePage) InferTotalPages(context.Context) int {
	if p.totalPages == 0 {
		return 1
	}
	return p.totalPages
}

func (p *fakePage) FindNextPageURL(context.Context) string { return p.next }

func (p *fakePage) Close() {}

// fakeBrowser maps URLs to pages and records visits and peak concurrency.
type fakeBrowser struct {
	mu       sync.Mutex
	pages    map[string]*fakePage
	failures map[string]error
	delay    time.Duration
	visits   []string
	inFlight int
	peak     int
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{pages: map[string]*fakePage{}, failures: map[string]error{}}
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) (Page, error) {
	b.mu.Lock()
	b.visits = append(b.visits, url)
	b.inFlight++
	if b.inFlight > b.peak {
		b.peak = b.inFlight
	}
	page, ok := b.pages[url]
	failure := b.failures[url]
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNavigation, url)
	}
	return page, nil
}

func (b *fakeBrowser) visited() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

func (b *fakeBrowser) peakInFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}

var errBoom = errors.New("boom")

// threadPosts builds n raw posts starting at floor with pid = 1000+floor.
func threadPosts(floor, n int) []RawPost {
	out := make([]RawPost, 0, n)
	for f := floor; f < floor+n; f++ {
		out = append(out, RawPost{
			PID:         strconv.Itoa(1000 + f),
			Floor:       intPtr(f),
			Time:        "2024-01-01 10:" + strconv.Itoa(f%60),
			ContentText: "reply " + strconv.Itoa(f),
		})
	}
	return out
}

const threadURL = "https://bbs.nga.cn/read.php?tid=42"

func pageURL(n int) string {
	return "https://bbs.nga.cn/read.php?tid=42&page=" + strconv.Itoa(n)
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}
