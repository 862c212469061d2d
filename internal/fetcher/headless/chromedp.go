// Package headless contains fetchers that execute JavaScript via browsers.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/nga-crawler/internal/cookies"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

const (
	defaultNavTimeout = 90 * time.Second
	settleDelay       = 500 * time.Millisecond
	clickTimeout      = 3 * time.Second

	guestMarker     = "访客不能直接访问"
	guestRedirectXP = `//a[contains(., "如不能自动跳转")]`
)

// skipButtons are the interstitial controls tried in order; the first present one is clicked.
var skipButtons = []string{
	`//a[contains(., "跳过")]`,
	`//a[contains(., "进入")]`,
	`//a[contains(., "继续")]`,
	`//button[contains(., "跳过")]`,
}

// forumMarkers indicate a rendered forum document, which is never an interstitial.
var forumMarkers = []string{"postrow", "topicrow", "indexblock", "sub_forums", "postcontent"}

// Config controls the behavior of the headless fetcher.
type Config struct {
	// MaxParallel bounds concurrently open tabs; 0 means unbounded.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	Headless          bool
	Cookies           []cookies.Cookie
}

// Fetcher renders pages in a shared Chrome process. Each fetch gets its own
// tab, seeded with the session cookies.
type Fetcher struct {
	cfg       Config
	tabs      *semaphore.Weighted
	allocator context.Context
	shutdown  context.CancelFunc
}

// NewChromedp starts the exec allocator. Chrome itself is launched lazily on
// the first fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0, got %d", cfg.MaxParallel)
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	f := &Fetcher{cfg: cfg}
	if cfg.MaxParallel > 0 {
		f.tabs = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}

	mode := any(false)
	if cfg.Headless {
		mode = "new"
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", mode),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	f.allocator, f.shutdown = chromedp.NewExecAllocator(context.Background(), opts...)
	return f, nil
}

// Close stops Chrome.
func (f *Fetcher) Close() {
	f.shutdown()
}

// Fetch navigates with a headless browser, steps past guest interstitials and
// returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if f.tabs != nil {
		if err := f.tabs.Acquire(ctx, 1); err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("headless slot wait canceled: %w", err)
		}
		defer f.tabs.Release(1)
	}

	tab, closeTab := chromedp.NewContext(f.allocator)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()
	tab, cancel := context.WithTimeout(tab, f.cfg.NavigationTimeout)
	defer cancel()

	doc := &documentResponse{}
	chromedp.ListenTarget(tab, doc.observe)

	start := time.Now()
	html, finalURL, err := f.runHeadless(tab, request)
	if err != nil {
		return crawler.FetchResponse{}, err
	}

	status, headers, url := doc.result(request.URL, finalURL)
	if status >= http.StatusBadRequest {
		return crawler.FetchResponse{}, &crawler.StatusError{URL: request.URL, Code: status}
	}
	return crawler.FetchResponse{
		URL:          url,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) runHeadless(ctx context.Context, request crawler.FetchRequest) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		bypassInterstitialAction(),
		chromedp.Sleep(settleDelay),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		if len(f.cfg.Cookies) > 0 {
			if err := network.SetCookies(toCookieParams(f.cfg.Cookies)).Do(ctx); err != nil {
				return fmt.Errorf("set cookies: %w", err)
			}
		}
		return nil
	})
}

// bypassInterstitialAction follows the guest redirect link and clicks the
// first skip control on pages that do not yet show forum markup. Failures are
// ignored: the caller extracts whatever the page ends up showing.
func bypassInterstitialAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var html string
		if err := chromedp.OuterHTML("html", &html, chromedp.ByQuery).Do(ctx); err != nil {
			return nil
		}
		if !isInterstitial(html) {
			return nil
		}
		if strings.Contains(html, guestMarker) {
			clickThenWait(ctx, guestRedirectXP)
		}
		for _, sel := range skipButtons {
			if clickThenWait(ctx, sel) {
				break
			}
		}
		return nil
	})
}

func clickThenWait(ctx context.Context, xpath string) bool {
	clickCtx, cancel := context.WithTimeout(ctx, clickTimeout)
	defer cancel()
	var nodes []*cdp.Node
	if err := chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0)).Do(clickCtx); err != nil || len(nodes) == 0 {
		return false
	}
	if err := chromedp.MouseClickNode(nodes[0]).Do(clickCtx); err != nil {
		return false
	}
	_ = chromedp.WaitReady("body", chromedp.ByQuery).Do(clickCtx)
	return true
}

func isInterstitial(html string) bool {
	if strings.Contains(html, guestMarker) {
		return true
	}
	for _, marker := range forumMarkers {
		if strings.Contains(html, marker) {
			return false
		}
	}
	return true
}

// documentResponse records the status line of the main document, which the
// rendered DOM no longer carries.
type documentResponse struct {
	mu      sync.Mutex
	status  int
	headers http.Header
	url     string
}

func (d *documentResponse) observe(ev any) {
	event, ok := ev.(*network.EventResponseReceived)
	if !ok || event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = int(event.Response.Status)
	d.headers = headers
	d.url = event.Response.URL
}

// result falls back to the final location and a 200 status when no document
// response was observed.
func (d *documentResponse) result(requestURL, finalURL string) (int, http.Header, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, headers, url := d.status, d.headers.Clone(), d.url
	if url == "" {
		url = finalURL
	}
	if url == "" {
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := make(network.Headers, len(h))
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}

func toCookieParams(src []cookies.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(src))
	for _, c := range src {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			URL:      c.URL,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		switch c.SameSite {
		case "Strict":
			p.SameSite = network.CookieSameSiteStrict
		case "Lax":
			p.SameSite = network.CookieSameSiteLax
		case "None":
			p.SameSite = network.CookieSameSiteNone
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(c.Expires, 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}
