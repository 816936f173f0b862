/*
Package types defines the core data structures used throughout gridmesh.

This package contains the fundamental types of the scheduling domain model:
compute nodes, tasks, jobs, edge clusters, capability tags, and the sentinel
errors shared by every component. All other packages depend on it; it depends
on nothing but the standard library.

# Core Types

Cluster topology:
  - ComputeNode: a registered compute unit with static capabilities,
    a live utilization snapshot, and workload counters
  - NodeType: edge, cloud, hybrid, mobile
  - NodeStatus: online, busy, offline, maintenance, error
  - EdgeCluster: a locality grouping of nodes used as a scheduling hint

Work:
  - ComputeTask: a unit of schedulable work with resource requirements,
    retry/timeout constraints, and a dependency set
  - TaskStatus: pending, assigned, running, completed, failed, cancelled
  - DistributedJob: a group of tasks with dependency edges and a derived
    aggregate status and progress

Capabilities:
  - Capability / CapabilitySet: an enumerable feature-tag set with subset
    containment, replacing ad-hoc string arrays. Serializes as a sorted
    array so wire output is stable.

# Invariants

A task holds a node assignment (AssignedNode non-empty) if and only if its
status is assigned or running. RetriesLeft only ever decreases. Terminal
task and job statuses are final. Node workload counters are maintained by
the registry and coordinator, never by callers.

All types serialize to JSON for the control API and task history archive;
spec-like fields additionally carry YAML tags for manifest submission.
*/
package types
