package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/clock/system"
	"github.com/JakeFAU/nga-crawler/internal/config"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
	"github.com/JakeFAU/nga-crawler/internal/dispatcher"
	"github.com/JakeFAU/nga-crawler/internal/id/uuid"
	"github.com/JakeFAU/nga-crawler/internal/query"
	queuememory "github.com/JakeFAU/nga-crawler/internal/queue/memory"
	"github.com/JakeFAU/nga-crawler/internal/storage/memory"
)

type fakeThreads struct {
	mu    sync.Mutex
	url   string
	limit int
}

func (f *fakeThreads) Crawl(_ context.Context, rawURL string, maxComments int) crawler.CrawlResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url, f.limit = rawURL, maxComments
	return crawler.CrawlResult{Success: true, Title: "版本更新", TotalComments: 1, Source: rawURL}
}

type fakeTopics struct {
	topk int
}

func (f *fakeTopics) List(_ context.Context, rawURL string, topk int) crawler.TopicListResult {
	f.topk = topk
	return crawler.TopicListResult{Success: false, Error: crawler.CodeNavigationFailed, Source: rawURL}
}

type fakeIndex struct {
	name string
	topk int
}

func (f *fakeIndex) Query(_ context.Context, name string, topk int) query.Result {
	f.name, f.topk = name, topk
	return query.Result{Success: true, Query: name, QueryType: query.TypeFuzzy, TopK: topk, Results: []crawler.Board{{Name: "炉石传说", FID: "422"}}}
}

func (f *fakeIndex) Structure(context.Context) query.StructureResult {
	return query.StructureResult{Success: true, TotalCategories: 1}
}

type testEnv struct {
	server  *Server
	threads *fakeThreads
	topics  *fakeTopics
	index   *fakeIndex
	queue   *queuememory.Queue
	jobs    *memory.JobStore
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		threads: &fakeThreads{},
		topics:  &fakeTopics{},
		index:   &fakeIndex{},
		queue:   queuememory.NewQueue(4),
		jobs:    memory.NewJobStore(),
	}
	dispatch := dispatcher.New(env.queue, env.jobs, uuid.New(), system.New(), nil, zap.NewNop())
	handler := NewJobHandler(dispatch, env.jobs, 7, zap.NewNop())
	env.server = NewServer(env.threads, env.topics, env.index, handler, cfg, zap.NewNop())
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_HealthAndReady(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	bare := NewServer(nil, nil, nil, nil, config.Config{}, nil)
	rec = httptest.NewRecorder()
	bare.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	env.do(t, http.MethodGet, "/healthz", "")
	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_CrawlThread(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodPost, "/v1/threads/crawl", `{"url":" https://bbs.nga.cn/read.php?tid=1 "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[crawler.CrawlResult](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, "版本更新", res.Title)
	assert.Equal(t, "https://bbs.nga.cn/read.php?tid=1", env.threads.url)
	assert.Equal(t, DefaultMaxComments, env.threads.limit)

	rec = env.do(t, http.MethodPost, "/v1/threads/crawl", `{"url":"https://bbs.nga.cn/read.php?tid=1","max_comments":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.threads.limit, "zero means all comments")
}

func TestServer_CrawlThreadValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	tests := []struct {
		body string
		want string
	}{
		{"{invalid", "invalid JSON"},
		{`{"url":""}`, "url required"},
		{`{"url":"https://bbs.nga.cn/read.php?tid=1","max_comments":-1}`, "max_comments"},
	}
	for _, tc := range tests {
		rec := env.do(t, http.MethodPost, "/v1/threads/crawl", tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
		assert.Contains(t, rec.Body.String(), tc.want)
		assert.Contains(t, rec.Body.String(), crawler.CodeInvalidRequest)
	}
}

func TestServer_ListTopics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodPost, "/v1/topics", `{"url":"https://bbs.nga.cn/thread.php?fid=422"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[crawler.TopicListResult](t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, crawler.CodeNavigationFailed, res.Error)
	assert.Equal(t, DefaultTopicTopK, env.topics.topk)

	rec = env.do(t, http.MethodPost, "/v1/topics", `{"topk":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_QueryIndex(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodGet, "/v1/index/query?name=%E7%82%89%E7%9F%B3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "炉石", env.index.name)
	assert.Equal(t, query.DefaultTopK, env.index.topk)
	assert.Contains(t, rec.Body.String(), "炉石传说")

	rec = env.do(t, http.MethodGet, "/v1/index/query?name=x&topk=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, env.index.topk)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/index/query", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/index/query?name=x&topk=many", "").Code)
}

func TestServer_Structure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodGet, "/v1/index/structure", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[query.StructureResult](t, rec)
	assert.Equal(t, 1, res.TotalCategories)
}

func TestServer_SubmitAndReadJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodPost, "/v1/index/jobs", `{"landing_url":"https://bbs.nga.cn/"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode[map[string]string](t, rec)["job_id"]
	require.NotEmpty(t, jobID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, jobID, item.JobID)
	assert.Equal(t, 7, item.Params.MaxSections, "handler default applies")

	require.NoError(t, env.jobs.UpdateJobProgress(context.Background(), jobID, crawler.JobProgress{Done: 3, Total: 9}))
	rec = env.do(t, http.MethodGet, "/v1/index/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Job crawler.Job `json:"job"`
	}](t, rec)
	assert.Equal(t, crawler.JobStatusQueued, got.Job.Status)
	assert.Equal(t, 3, got.Job.Progress.Done)
	assert.Equal(t, "https://bbs.nga.cn/", got.Job.Parameters.LandingURL)

	rec = env.do(t, http.MethodGet, "/v1/index/jobs?status=queued", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Jobs []crawler.Job `json:"jobs"`
	}](t, rec)
	require.Len(t, list.Jobs, 1)

	rec = env.do(t, http.MethodGet, "/v1/index/jobs?status=running", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobs":[]`)
}

func TestServer_SubmitJobDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	rec := env.do(t, http.MethodPost, "/v1/index/jobs", "")
	require.Equal(t, http.StatusAccepted, rec.Code, "empty body builds with defaults")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/index/jobs", `{"max_sections":-1}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/index/jobs", `{"landing_url":"ftp://x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/index/jobs", `{bad`).Code)
}

func TestServer_GetJobErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{})
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/index/jobs/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/index/jobs/01890a5d-ac96-774b-bcce-b302099a8057", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/index/jobs?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/index/jobs?status=paused", "").Code)
}

func TestServer_SubmitFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	handler := NewJobHandler(failingSubmitter{}, memory.NewJobStore(), 0, nil)
	server := NewServer(&fakeThreads{}, &fakeTopics{}, &fakeIndex{}, handler, config.Config{}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/index/jobs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_APIKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}})
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/v1/index/structure", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/index/structure?api_key=secret", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/index/structure", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "").Code, "probes stay open")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, crawler.BuildParameters) (crawler.Job, error) {
	return crawler.Job{}, errors.New("queue full")
}
