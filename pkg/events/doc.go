/*
Package events implements the outbound event stream of the coordinator.

The Broker fans scheduler events (node joined/left/timeout/overloaded, task
lifecycle transitions, job submission, cluster scaling) out to any number of
subscribers. Publishing never blocks the coordinator: slow subscribers whose
buffers are full miss events rather than stalling scheduling. Observability
collectors consume the stream read-only; nothing in this package mutates
scheduler state.
*/
package events
