// Package progress carries index-build milestones from the worker to
// whatever is watching: a terminal bar, the job store behind the API, logs
// and Prometheus. Builds emit Events into a non-blocking Hub that batches them
// on a background goroutine and fans each batch out to pluggable sinks.
package progress
