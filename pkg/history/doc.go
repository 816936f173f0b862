// Package history archives terminal tasks to BoltDB so operators can
// inspect past executions after the in-memory store is gone. The archive
// is write-once observability data, not coordinator state: nothing is
// read back into the scheduler on restart.
package history
