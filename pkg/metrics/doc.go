// Package metrics exposes Prometheus instrumentation for the coordinator.
//
// Counters and histograms are package-level collectors registered at init
// and incremented at the call sites that own the event (scheduling passes,
// dispatch failures, task completions). Gauges that mirror aggregate state
// (queue length, node and task counts, rollup figures) are republished by
// a Collector polling a Source on a fixed interval.
//
// All metric names carry the gridmesh_ prefix. Handler returns the standard
// promhttp handler for mounting under /metrics.
package metrics
