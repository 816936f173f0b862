/*
Package queue implements the task store and pending queue.

Every submitted task lives in the store for its whole lifetime; the pending
set tracks which of them are waiting for placement. NextBatch yields the
schedulable backlog (pending tasks whose dependencies have all completed),
ordered by priority descending with creation-time and id tie-breaks, so two
identical store states always schedule in the same order.

Requeue returns a task to the backlog with its original priority after a
retryable failure or a migration off a lost node; it never penalizes the
task's position beyond what the deterministic ordering implies.
*/
package queue
