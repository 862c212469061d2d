package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if fetchesTotal == nil || fetchBytesTotal == nil ||
		httpRequestsTotal == nil || queriesTotal == nil || indexBuildsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(fetchesTotal.WithLabelValues("bbs.nga.cn", "static", "ok"))
	ObserveFetch("https://bbs.nga.cn/read.php?tid=1", "static", "ok", 2048)
	if val := testutil.ToFloat64(fetchesTotal.WithLabelValues("bbs.nga.cn", "static", "ok")); val != before+1 {
		t.Errorf("Expected fetch counter to grow by 1, got %f", val-before)
	}
}

func TestObserveIndexBuildSetsBoardGauge(t *testing.T) {
	ObserveIndexBuild("ok", 42, 3*time.Second)
	if val := testutil.ToFloat64(indexBoards); val != 42 {
		t.Errorf("Expected board gauge 42, got %f", val)
	}
	ObserveIndexBuild("error", 0, time.Second)
	if val := testutil.ToFloat64(indexBoards); val != 42 {
		t.Errorf("Expected failed build to leave gauge at 42, got %f", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
