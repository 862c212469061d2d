package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByStatus(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/index/query", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	r.Get("/v1/index/jobs/{job_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	tests := []struct {
		target string
		code   string
	}{
		{"/v1/index/query?name=炉石", "200"},
		{"/v1/index/jobs/0190", "404"},
	}
	for _, tc := range tests {
		before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, tc.code))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.target, nil))
		after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, tc.code))
		if after-before != 1 {
			t.Errorf("%s: expected one request counted under %s, got %v", tc.target, tc.code, after-before)
		}
	}
	if n := testutil.CollectAndCount(httpRequestDurationSeconds); n < 2 {
		t.Errorf("expected a duration series per route pattern, got %d", n)
	}
}
