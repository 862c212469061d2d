// Package sinks implements concrete progress consumers: a terminal progress
// bar, job-store progress updates for the API, Prometheus collectors and
// structured logging. Each satisfies progress.Sink.
package sinks
