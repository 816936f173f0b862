// Package coordinator is the control plane core. It owns every piece of
// scheduling state behind a single mutex: the node registry, the task store
// and backlog, the job orchestrator, and the cluster aggregator. Control
// API handlers, the scheduler tick, the heartbeat sweep, and asynchronous
// dispatch callbacks all serialize through that one lock, which is what
// lets the inner packages stay lock-free.
//
// Two background loops run once Start is called. The scheduler loop places
// the schedulable backlog onto the best-scoring nodes each tick, expiring
// deadlines and reaping execution timeouts on the way. The heartbeat loop
// marks silent nodes offline and migrates their in-flight work.
//
// Task outcomes arrive out-of-band from node agents. The coordinator drops
// any outcome for a task that is no longer assigned or running on the
// reporting node, so cancelled and migrated tasks can never be resurrected
// by a late result.
package coordinator
