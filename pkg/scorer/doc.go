/*
Package scorer ranks eligible nodes for a task.

Selection runs in two phases. The hard filter rejects nodes that cannot run
the task at all: insufficient cores, memory or GPU memory, a missing
capability tag, or network latency above the task's ceiling. The survivors
are then scored on free utilization, capacity headroom, latency, and
region/zone/node-type affinity, with every coefficient exposed in Weights.

Ties are broken by node id ascending so placement is deterministic. The
result is capped at one node for exclusive-access and ml_inference tasks and
at three otherwise; the extra entries are a ranked fallback list, not
redundant execution targets. The scheduler assigns exactly one node.
*/
package scorer
