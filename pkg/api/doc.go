// Package api exposes the coordinator over HTTP. All control operations
// (nodes, tasks, jobs, clusters) live under /v1 and speak JSON; node agents
// push execution results to /v1/tasks/{id}/result and the coordinator's
// event feed streams from /v1/events as JSON lines. Prometheus metrics are
// mounted at /metrics.
package api
