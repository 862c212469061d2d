// Package collyfetcher implements the static probe Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/nga-crawler/internal/cookies"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

const defaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Cookies are installed in the collector jar before every visit.
	Cookies []cookies.Cookie
}

// Fetcher is the plain HTTP half of the page browser. Forum pages are GBK
// encoded; colly converts them to UTF-8 before they reach the parsers.
type Fetcher struct {
	cfg  Config
	base *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. robots.txt is never consulted.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	base := colly.NewCollector(colly.AllowURLRevisit())
	base.DetectCharset = true
	base.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		base.UserAgent = cfg.UserAgent
	}
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	})
	base.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{cfg: cfg, base: base}
}

// visit is the state of one page load.
type visit struct {
	req    crawler.FetchRequest
	start  time.Time
	result crawler.FetchResponse
	err    error
}

func (v *visit) attach(hooks collectorHooks) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range v.req.Headers {
			for _, value := range values {
				r.Headers.Add(key, value)
			}
		}
	})
	hooks.OnResponse(func(r *colly.Response) {
		v.result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(v.start),
		}
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusBadRequest {
			v.err = &crawler.StatusError{URL: v.req.URL, Code: r.StatusCode}
			return
		}
		v.err = err
	})
}

// collector clones the base collector for a single visit with the session
// cookies installed and the visit hooks attached.
func (f *Fetcher) collector(v *visit) *colly.Collector {
	c := f.base.Clone()
	if len(f.cfg.Cookies) > 0 {
		// Cookies the jar rejects for this host are simply not sent.
		_ = c.SetCookies(v.req.URL, cookies.HTTPCookies(f.cfg.Cookies))
	}
	v.attach(c)
	return c
}

// Fetch loads request.URL. Status codes of 400 and above come back as
// *crawler.StatusError so the browser can decide on retry or promotion.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	v := &visit{req: request, start: time.Now()}
	c := f.collector(v)

	done := make(chan error, 1)
	go func() { done <- c.Visit(request.URL) }()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if v.err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly response failed: %w", v.err)
		}
		if err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly visit failed: %w", err)
		}
		return v.result, nil
	}
}
