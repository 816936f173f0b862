/*
Package registry tracks registered compute nodes and their live state.

The Registry is the source of truth for node capabilities, utilization,
workload counters and heartbeats. It is deliberately lock-free: the
coordinator serializes every access together with the task queue and store,
so the scheduler tick, heartbeat sweep and dispatch callbacks can never
observe torn node state.

Capacity admission is centralized in CanAcceptTasks: a node takes new work
only while its active-task count is under the per-node cap and cpu/memory
utilization are under 80%. Crossing 90% on any dimension flags the node
overloaded; the transition is edge-triggered so the coordinator emits a
single overload event per episode.
*/
package registry
