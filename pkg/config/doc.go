// Package config loads coordinator configuration from YAML over documented
// defaults. Scoring weights, tick intervals, heartbeat timeouts, retry
// backoff and per-node concurrency are all tunable without code changes.
package config
