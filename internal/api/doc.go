// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
//   - POST /v1/threads/crawl and POST /v1/topics for live forum reads.
//   - POST /v1/index/jobs to start a board index build, and GET
//     /v1/index/jobs[/{job_id}] to follow it.
//   - GET /v1/index/query and /v1/index/structure over the saved index.
package api
