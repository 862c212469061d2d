package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts scheduler page visits by traversal mode and outcome.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nga_crawler_pages_fetched_total",
		Help: "Pages visited by the fetch scheduler, labeled by mode and outcome.",
	}, []string{"mode", "outcome"})
	// ExtractionFallbacks counts pages where the loose post extraction ran.
	ExtractionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nga_crawler_extraction_fallbacks_total",
		Help: "Fallback extractions, labeled by whether the fallback result was kept.",
	}, []string{"kept"})
	// SchedulerStops counts scheduler runs by terminal state.
	SchedulerStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nga_crawler_scheduler_stops_total",
		Help: "Fetch scheduler runs partitioned by mode and stop reason.",
	}, []string{"mode", "reason"})
	// ThreadCrawls counts thread crawls by result.
	ThreadCrawls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nga_crawler_thread_crawls_total",
		Help: "Thread crawls partitioned by result.",
	}, []string{"result"})
)
