package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxConcurrentPerNode caps active tasks per node
	DefaultMaxConcurrentPerNode = 10

	// Utilization gates for accepting new work
	acceptCPUThreshold = 80.0
	acceptMemThreshold = 80.0

	// Crossing this utilization on any dimension marks a node overloaded
	overloadThreshold = 90.0
)

// ResourceUpdate is a partial update to a node's live state.
// Nil fields are left untouched.
type ResourceUpdate struct {
	Usage        *types.ResourceUsage    `json:"usage,omitempty"`
	Capabilities *types.NodeCapabilities `json:"capabilities,omitempty"`
	Status       *types.NodeStatus       `json:"status,omitempty"`
	QueuedTasks  *int                    `json:"queued_tasks,omitempty"`
}

// Registry is the source of truth for known compute nodes.
//
// It performs no locking of its own: the coordinator serializes all access
// (scheduler tick, heartbeat sweep, and dispatch callbacks go through one
// mutex). Nodes returned by Get/List are live pointers; callers outside the
// coordinator must treat them as read-only.
type Registry struct {
	nodes         map[string]*types.ComputeNode
	maxConcurrent int
	logger        zerolog.Logger
}

// New creates a node registry. maxConcurrent <= 0 selects the default.
func New(maxConcurrent int) *Registry {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentPerNode
	}
	return &Registry{
		nodes:         make(map[string]*types.ComputeNode),
		maxConcurrent: maxConcurrent,
		logger:        log.WithComponent("registry"),
	}
}

// Register adds a node, filling defaults and marking it online.
func (r *Registry) Register(spec *types.ComputeNode) (*types.ComputeNode, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil node spec", types.ErrInvalidSpec)
	}
	node := *spec
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if _, exists := r.nodes[node.ID]; exists {
		return nil, fmt.Errorf("%w: node %s already registered", types.ErrInvalidSpec, node.ID)
	}
	types.ApplyNodeDefaults(&node)
	node.Status = types.NodeStatusOnline
	now := time.Now()
	node.LastHeartbeat = now
	node.CreatedAt = now
	node.Workload = types.WorkloadStats{}

	r.nodes[node.ID] = &node
	r.logger.Info().Str("node_id", node.ID).Str("region", node.Region).
		Str("type", string(node.Type)).Msg("node registered")
	return &node, nil
}

// Unregister removes a node and returns it so the caller can migrate
// its in-flight tasks first.
func (r *Registry) Unregister(id string) (*types.ComputeNode, error) {
	node, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
	}
	delete(r.nodes, id)
	r.logger.Info().Str("node_id", id).Msg("node unregistered")
	return node, nil
}

// Get returns a node by id
func (r *Registry) Get(id string) (*types.ComputeNode, error) {
	node, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
	}
	return node, nil
}

// List returns all nodes sorted by id for deterministic iteration
func (r *Registry) List() []*types.ComputeNode {
	out := make([]*types.ComputeNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateResources merges a partial update and refreshes the heartbeat.
// The returned flag is true only when the update newly pushes any
// utilization dimension past the overload threshold (edge-triggered).
func (r *Registry) UpdateResources(id string, update ResourceUpdate) (bool, error) {
	node, ok := r.nodes[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
	}

	if update.Usage != nil {
		node.Usage = *update.Usage
	}
	if update.Capabilities != nil {
		node.Capabilities = *update.Capabilities
	}
	if update.Status != nil {
		node.Status = *update.Status
	}
	if update.QueuedTasks != nil {
		node.Workload.QueuedTasks = *update.QueuedTasks
	}
	node.LastHeartbeat = time.Now()

	wasOverloaded := node.Overloaded
	node.Overloaded = node.Usage.CPUPercent >= overloadThreshold ||
		node.Usage.MemoryPercent >= overloadThreshold ||
		node.Usage.GPUPercent >= overloadThreshold

	return node.Overloaded && !wasOverloaded, nil
}

// Heartbeat refreshes a node's liveness timestamp. A heartbeat from a node
// previously marked offline brings it back online.
func (r *Registry) Heartbeat(id string) error {
	node, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
	}
	node.LastHeartbeat = time.Now()
	if node.Status == types.NodeStatusOffline {
		node.Status = types.NodeStatusOnline
		r.logger.Info().Str("node_id", id).Msg("node back online")
	}
	return nil
}

// CanAcceptTasks reports whether a node has headroom for another task
func (r *Registry) CanAcceptTasks(node *types.ComputeNode) bool {
	return node.Workload.ActiveTasks < r.maxConcurrent &&
		node.Usage.CPUPercent < acceptCPUThreshold &&
		node.Usage.MemoryPercent < acceptMemThreshold
}

// Reserve increments a node's active-task counter
func (r *Registry) Reserve(id string) error {
	node, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
	}
	node.Workload.ActiveTasks++
	return nil
}

// Release decrements a node's active-task counter. Releasing a node that
// has already been unregistered is a no-op.
func (r *Registry) Release(id string) {
	node, ok := r.nodes[id]
	if !ok {
		return
	}
	if node.Workload.ActiveTasks > 0 {
		node.Workload.ActiveTasks--
	}
}

// RecordCompletion updates a node's workload counters after a task finishes
func (r *Registry) RecordCompletion(id string, duration time.Duration, failed bool) {
	node, ok := r.nodes[id]
	if !ok {
		return
	}
	if failed {
		node.Workload.FailedTasks++
		return
	}
	node.Workload.CompletedTasks++
	// Running mean over completed tasks
	n := node.Workload.CompletedTasks
	prev := node.Workload.AvgTaskTime
	node.Workload.AvgTaskTime = prev + (duration-prev)/time.Duration(n)
}

// MarkOffline transitions a node to offline
func (r *Registry) MarkOffline(id string) error {
	node, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
	}
	node.Status = types.NodeStatusOffline
	return nil
}

// SetStatus transitions a node to an arbitrary status
func (r *Registry) SetStatus(id string, status types.NodeStatus) error {
	node, ok := r.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
	}
	node.Status = status
	return nil
}

// TimedOut returns nodes whose last heartbeat is older than timeout and
// that are not already offline.
func (r *Registry) TimedOut(now time.Time, timeout time.Duration) []*types.ComputeNode {
	var out []*types.ComputeNode
	for _, node := range r.List() {
		if node.Status == types.NodeStatusOffline {
			continue
		}
		if now.Sub(node.LastHeartbeat) > timeout {
			out = append(out, node)
		}
	}
	return out
}

// Candidates returns online nodes that can accept tasks, sorted by id
func (r *Registry) Candidates() []*types.ComputeNode {
	var out []*types.ComputeNode
	for _, node := range r.List() {
		if node.Status == types.NodeStatusOnline && r.CanAcceptTasks(node) {
			out = append(out, node)
		}
	}
	return out
}

// Count returns total and active (online or busy) node counts
func (r *Registry) Count() (total, active int) {
	total = len(r.nodes)
	for _, node := range r.nodes {
		if node.Status == types.NodeStatusOnline || node.Status == types.NodeStatusBusy {
			active++
		}
	}
	return total, active
}
