package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/nga-crawler/internal/cookies"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

func TestFetcherCollectorSettings(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "nga-probe", Timeout: time.Second})
	c := f.collector(&visit{req: crawler.FetchRequest{URL: "https://bbs.nga.cn/read.php?tid=1"}})
	assert.Equal(t, "nga-probe", c.UserAgent)
	assert.True(t, c.IgnoreRobotsTxt)
	assert.True(t, c.DetectCharset)
	assert.True(t, c.AllowURLRevisit)
}

func TestFetchServesBodyHeadersAndCookies(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("ngaPassportUid")
		if err != nil || c.Value != "42" {
			http.Error(w, "no session", http.StatusForbidden)
			return
		}
		assert.Equal(t, "yes", r.Header.Get("X-Trace"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><table id=\"topicrows\"></table></body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Cookies: []cookies.Cookie{{Name: "ngaPassportUid", Value: "42", Path: "/"}}})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{
		URL:     srv.URL + "/thread.php?fid=7",
		Headers: http.Header{"X-Trace": {"yes"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "topicrows")
	assert.False(t, resp.UsedHeadless)
}

func TestFetchReportsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := New(Config{}).Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	var statusErr *crawler.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.True(t, statusErr.Temporary())
}

func TestFetchCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{}).Fetch(ctx, crawler.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVisitHooks(t *testing.T) {
	t.Parallel()

	v := &visit{
		req: crawler.FetchRequest{
			URL:     "https://bbs.nga.cn/read.php?tid=1",
			Headers: http.Header{"X-Trace": {"yes"}},
		},
		start: time.Unix(0, 0),
	}
	hooks := &stubHooks{}
	v.attach(hooks)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://bbs.nga.cn/read.php?tid=1")},
	})
	assert.Equal(t, "body", string(v.result.Body))
	assert.Equal(t, "ok", v.result.Headers.Get("X-Resp"))
	assert.False(t, v.result.UsedHeadless)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, v.err, "boom")

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("Not Found"))
	var statusErr *crawler.StatusError
	require.ErrorAs(t, v.err, &statusErr)
	assert.False(t, statusErr.Temporary())
}

func TestVisitWithoutHeaders(t *testing.T) {
	t.Parallel()

	hooks := &stubHooks{}
	(&visit{}).attach(hooks)
	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
