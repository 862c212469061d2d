package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/nga-crawler/internal/app"
	"github.com/JakeFAU/nga-crawler/internal/config"
	"github.com/JakeFAU/nga-crawler/internal/crawler"
)

func newTestServer(t *testing.T, forum string) *Server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Browser.HeadlessEnabled = false
	cfg.Browser.MaxRetries = 0
	cfg.Browser.RateLimitRPS = 0
	cfg.Index.Path = filepath.Join(t.TempDir(), "boards_index.json")
	cfg.Index.LandingURL = forum + "/"
	cfg.Index.SiteMapURL = forum + "/forum.php"

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	s, err := New(a, prometheus.NewRegistry())
	require.NoError(t, err)
	return s
}

func TestServeLifecycle(t *testing.T) {
	t.Parallel()

	forum := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(forum.Close)

	s := newTestServer(t, forum.URL)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/v1/index/jobs/", "application/json", strings.NewReader(`{"max_sections":1}`))
	require.NoError(t, err)
	var submitted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, submitted.JobID)

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/v1/index/jobs/" + submitted.JobID)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var got struct {
			Job crawler.Job `json:"job"`
		}
		if json.NewDecoder(resp.Body).Decode(&got) != nil {
			return false
		}
		return got.Job.Status == crawler.JobStatusFailed
	}, 10*time.Second, 50*time.Millisecond, "a build against an unreachable forum fails")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
