package types

import (
	"time"
)

// NodeType classifies where a compute node runs.
type NodeType string

const (
	NodeTypeEdge   NodeType = "edge"
	NodeTypeCloud  NodeType = "cloud"
	NodeTypeHybrid NodeType = "hybrid"
	NodeTypeMobile NodeType = "mobile"
)

// NodeStatus represents the current state of a node
type NodeStatus string

const (
	NodeStatusOnline      NodeStatus = "online"
	NodeStatusBusy        NodeStatus = "busy"
	NodeStatusOffline     NodeStatus = "offline"
	NodeStatusMaintenance NodeStatus = "maintenance"
	NodeStatusError       NodeStatus = "error"
)

// NetworkProfile describes a node's network characteristics
type NetworkProfile struct {
	BandwidthMbps float64 `json:"bandwidth_mbps" yaml:"bandwidth_mbps"`
	LatencyMs     float64 `json:"latency_ms" yaml:"latency_ms"`
}

// NodeCapabilities tracks the static capacity of a node
type NodeCapabilities struct {
	CPUCores       int            `json:"cpu_cores" yaml:"cpu_cores"`
	MemoryBytes    int64          `json:"memory_bytes" yaml:"memory_bytes"`
	GPUCount       int            `json:"gpu_count" yaml:"gpu_count"`
	GPUMemoryBytes int64          `json:"gpu_memory_bytes" yaml:"gpu_memory_bytes"`
	StorageBytes   int64          `json:"storage_bytes" yaml:"storage_bytes"`
	Network        NetworkProfile `json:"network" yaml:"network"`
	Tags           CapabilitySet  `json:"tags" yaml:"tags"`
}

// ResourceUsage is a live utilization snapshot reported by a node
type ResourceUsage struct {
	CPUPercent    float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent" yaml:"memory_percent"`
	GPUPercent    float64 `json:"gpu_percent" yaml:"gpu_percent"`
	Temperature   float64 `json:"temperature" yaml:"temperature"`
}

// WorkloadStats tracks per-node task counters
type WorkloadStats struct {
	ActiveTasks    int           `json:"active_tasks"`
	QueuedTasks    int           `json:"queued_tasks"`
	CompletedTasks int64         `json:"completed_tasks"`
	FailedTasks    int64         `json:"failed_tasks"`
	AvgTaskTime    time.Duration `json:"avg_task_time"`
}

// ComputeNode represents a registered compute node.
// Owned exclusively by the node registry; mutate only through registry methods.
type ComputeNode struct {
	ID            string           `json:"id"`
	Address       string           `json:"address"`
	Region        string           `json:"region"`
	Zone          string           `json:"zone"`
	Type          NodeType         `json:"type"`
	Status        NodeStatus       `json:"status"`
	Capabilities  NodeCapabilities `json:"capabilities"`
	Usage         ResourceUsage    `json:"usage"`
	Workload      WorkloadStats    `json:"workload"`
	Overloaded    bool             `json:"overloaded"`
	LastHeartbeat time.Time        `json:"last_heartbeat"`
	CreatedAt     time.Time        `json:"created_at"`
}

// TaskType tags the kind of work a task performs
type TaskType string

const (
	TaskTypeGeneric     TaskType = "generic"
	TaskTypeBatch       TaskType = "batch"
	TaskTypeStream      TaskType = "stream_processing"
	TaskTypeMLInference TaskType = "ml_inference"
	TaskTypeMLTraining  TaskType = "ml_training"
)

// TaskStatus represents the state of a task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusAssigned  TaskStatus = "assigned"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status is final
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Active reports whether the task currently holds a node assignment
func (s TaskStatus) Active() bool {
	return s == TaskStatusAssigned || s == TaskStatusRunning
}

// SecurityLevel constrains where a task may be placed
type SecurityLevel string

const (
	SecurityStandard   SecurityLevel = "standard"
	SecurityElevated   SecurityLevel = "elevated"
	SecurityRestricted SecurityLevel = "restricted"
)

// TaskRequirements describes the resources a task needs from a node
type TaskRequirements struct {
	MinCPUCores          int           `json:"min_cpu_cores" yaml:"min_cpu_cores"`
	MinMemoryBytes       int64         `json:"min_memory_bytes" yaml:"min_memory_bytes"`
	MinGPUMemoryBytes    int64         `json:"min_gpu_memory_bytes" yaml:"min_gpu_memory_bytes"`
	MaxLatencyMs         float64       `json:"max_latency_ms" yaml:"max_latency_ms"`
	RequiredCapabilities CapabilitySet `json:"required_capabilities" yaml:"required_capabilities"`
	PreferredRegion      string        `json:"preferred_region" yaml:"preferred_region"`
	PreferredZone        string        `json:"preferred_zone" yaml:"preferred_zone"`
	Exclusive            bool          `json:"exclusive" yaml:"exclusive"`
	EstimatedDuration    time.Duration `json:"estimated_duration" yaml:"estimated_duration"`
}

// TaskConstraints bounds a task's execution
type TaskConstraints struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	Deadline      *time.Time    `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	DataLocality  bool          `json:"data_locality" yaml:"data_locality"`
	SecurityLevel SecurityLevel `json:"security_level" yaml:"security_level"`
}

// TaskMetrics captures execution outcome details
type TaskMetrics struct {
	ExecutionTime time.Duration `json:"execution_time"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemoryPercent float64       `json:"memory_percent"`
	Error         string        `json:"error,omitempty"`
}

// ComputeTask is a unit of schedulable work
type ComputeTask struct {
	ID           string           `json:"id"`
	Type         TaskType         `json:"type"`
	Priority     int              `json:"priority"`
	Payload      []byte           `json:"payload,omitempty"`
	Requirements TaskRequirements `json:"requirements"`
	Constraints  TaskConstraints  `json:"constraints"`
	DependsOn    []string         `json:"depends_on,omitempty"`
	Status       TaskStatus       `json:"status"`
	AssignedNode string           `json:"assigned_node,omitempty"`
	RetriesLeft  int              `json:"retries_left"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  time.Time        `json:"completed_at"`
	Metrics      TaskMetrics      `json:"metrics"`
}

// JobStatus represents the derived state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job status is final
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// EdgeKind tags a dependency edge between two tasks in a job
type EdgeKind string

const (
	EdgeSequential  EdgeKind = "sequential"
	EdgeParallel    EdgeKind = "parallel"
	EdgeConditional EdgeKind = "conditional"
)

// JobEdge is a dependency edge from one task to another
type JobEdge struct {
	From string   `json:"from" yaml:"from"`
	To   string   `json:"to" yaml:"to"`
	Kind EdgeKind `json:"kind" yaml:"kind"`
}

// DistributedJob groups tasks with dependency edges and derives aggregate status
type DistributedJob struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	TaskIDs          []string  `json:"task_ids"`
	Edges            []JobEdge `json:"edges,omitempty"`
	Priority         int       `json:"priority"`
	Status           JobStatus `json:"status"`
	Progress         float64   `json:"progress"`
	FailureThreshold float64   `json:"failure_threshold"`
	CreatedAt        time.Time `json:"created_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// LoadBalancingPolicy selects how work spreads across a cluster's members
type LoadBalancingPolicy string

const (
	PolicyRoundRobin  LoadBalancingPolicy = "round_robin"
	PolicyLeastLoaded LoadBalancingPolicy = "least_loaded"
	PolicyLocality    LoadBalancingPolicy = "locality"
)

// ConsistencyLevel is carried declaratively for cluster-level replication
type ConsistencyLevel string

const (
	ConsistencyEventual ConsistencyLevel = "eventual"
	ConsistencyStrong   ConsistencyLevel = "strong"
)

// ClusterRollup aggregates member capacity and utilization
type ClusterRollup struct {
	TotalCPUCores     int     `json:"total_cpu_cores"`
	TotalMemoryBytes  int64   `json:"total_memory_bytes"`
	TotalGPUCount     int     `json:"total_gpu_count"`
	MeanCPUPercent    float64 `json:"mean_cpu_percent"`
	MeanMemoryPercent float64 `json:"mean_memory_percent"`
}

// EdgeCluster is a locality grouping of nodes used as a scheduling hint
type EdgeCluster struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Region            string              `json:"region"`
	Zone              string              `json:"zone"`
	NodeIDs           []string            `json:"node_ids"`
	Policy            LoadBalancingPolicy `json:"policy"`
	ReplicationFactor int                 `json:"replication_factor"`
	Consistency       ConsistencyLevel    `json:"consistency"`
	Rollup            ClusterRollup       `json:"rollup"`
	CreatedAt         time.Time           `json:"created_at"`
}

// ClusterSnapshot is a read-only rollup of coordinator state
type ClusterSnapshot struct {
	TotalNodes         int           `json:"total_nodes"`
	ActiveNodes        int           `json:"active_nodes"`
	RunningTasks       int           `json:"running_tasks"`
	QueueLength        int           `json:"queue_length"`
	AverageTaskTime    time.Duration `json:"average_task_time"`
	ClusterUtilization float64       `json:"cluster_utilization"`
	Throughput         float64       `json:"throughput"`
	ErrorRate          float64       `json:"error_rate"`
	Timestamp          time.Time     `json:"timestamp"`
}
