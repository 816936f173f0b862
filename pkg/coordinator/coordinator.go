package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gridmesh/gridmesh/pkg/cluster"
	"github.com/gridmesh/gridmesh/pkg/config"
	"github.com/gridmesh/gridmesh/pkg/dispatch"
	"github.com/gridmesh/gridmesh/pkg/events"
	"github.com/gridmesh/gridmesh/pkg/history"
	"github.com/gridmesh/gridmesh/pkg/job"
	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/metrics"
	"github.com/gridmesh/gridmesh/pkg/queue"
	"github.com/gridmesh/gridmesh/pkg/registry"
	"github.com/gridmesh/gridmesh/pkg/retry"
	"github.com/gridmesh/gridmesh/pkg/scorer"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
)

// Coordinator is the single writer over all scheduling state. Every control
// operation, scheduler tick, heartbeat sweep, and dispatch callback takes the
// one mutex, so the inner components (registry, task store, orchestrator,
// aggregator) stay lock-free.
type Coordinator struct {
	mu sync.Mutex

	cfg *config.Config

	registry   *registry.Registry
	tasks      *queue.Store
	jobs       *job.Orchestrator
	clusters   *cluster.Aggregator
	scorer     *scorer.Scorer
	retry      retry.Policy
	dispatcher *dispatch.Dispatcher
	broker     *events.Broker
	archive    *history.Archive

	// Lifetime counters feeding the snapshot rollup
	completedCount int64
	failedCount    int64
	totalExecTime  time.Duration
	completions    []time.Time

	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

// New creates a coordinator over the given transport. The archive may be nil
// to disable terminal-task history.
func New(cfg *config.Config, tr transport.Transport, archive *history.Archive) *Coordinator {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Coordinator{
		cfg:      cfg,
		registry: registry.New(cfg.Scheduler.MaxConcurrentPerNode),
		tasks:    queue.New(),
		jobs:     job.New(nil),
		clusters: cluster.New(),
		scorer:   scorer.New(cfg.Scoring),
		retry:    retry.Policy{Backoff: cfg.Retry.Backoff.D()},
		broker:   events.NewBroker(),
		archive:  archive,
		logger:   log.WithComponent("coordinator"),
	}
	c.dispatcher = dispatch.New(tr, c, cfg.Scheduler.SendTimeout.D())
	return c
}

// Start launches the scheduler and heartbeat loops
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("coordinator already started")
	}
	c.started = true
	c.stopCh = make(chan struct{})

	c.broker.Start()
	c.dispatcher.Start()

	c.wg.Add(2)
	go c.schedulerLoop()
	go c.heartbeatLoop()

	c.logger.Info().
		Dur("tick_interval", c.cfg.Scheduler.TickInterval.D()).
		Dur("heartbeat_timeout", c.cfg.Heartbeat.Timeout.D()).
		Msg("coordinator started")
	return nil
}

// Stop halts the loops and the event fan-out
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()

	close(c.stopCh)
	c.wg.Wait()
	c.dispatcher.Stop()
	c.broker.Stop()
	c.logger.Info().Msg("coordinator stopped")
}

// Broker exposes the event stream for external observers
func (c *Coordinator) Broker() *events.Broker {
	return c.broker
}

// History exposes the terminal-task archive, nil when disabled
func (c *Coordinator) History() *history.Archive {
	return c.archive
}

// --- Node operations ---

// RegisterNode adds a node to the pool
func (c *Coordinator) RegisterNode(spec *types.ComputeNode) (*types.ComputeNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, err := c.registry.Register(spec)
	if err != nil {
		return nil, err
	}
	c.publish(&events.Event{
		Type:    events.EventNodeJoined,
		NodeID:  node.ID,
		Message: fmt.Sprintf("node joined in %s/%s", node.Region, node.Zone),
	})
	return node, nil
}

// UnregisterNode removes a node after migrating its in-flight tasks back to
// the queue. Administrative removal does not consume task retries.
func (c *Coordinator) UnregisterNode(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.registry.Get(id); err != nil {
		return err
	}
	c.migrateNodeTasksLocked(id, false)

	node, err := c.registry.Unregister(id)
	if err != nil {
		return err
	}
	c.clusters.NodeRemoved(id, c.registry.Get)
	c.publish(&events.Event{
		Type:    events.EventNodeLeft,
		NodeID:  node.ID,
		Message: "node unregistered",
	})
	return nil
}

// GetNode returns a copy of a node
func (c *Coordinator) GetNode(id string) (*types.ComputeNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, err := c.registry.Get(id)
	if err != nil {
		return nil, err
	}
	cp := *node
	return &cp, nil
}

// ListNodes returns copies of all nodes
func (c *Coordinator) ListNodes() []*types.ComputeNode {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes := c.registry.List()
	out := make([]*types.ComputeNode, len(nodes))
	for i, n := range nodes {
		cp := *n
		out[i] = &cp
	}
	return out
}

// Heartbeat refreshes a node's liveness
func (c *Coordinator) Heartbeat(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Heartbeat(id)
}

// UpdateNodeResources merges a live resource report. Crossing into overload
// publishes a single node.overloaded event.
func (c *Coordinator) UpdateNodeResources(id string, update registry.ResourceUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newlyOverloaded, err := c.registry.UpdateResources(id, update)
	if err != nil {
		return err
	}
	c.clusters.RefreshFor(id, c.registry.Get)
	if newlyOverloaded {
		c.publish(&events.Event{
			Type:    events.EventNodeOverloaded,
			NodeID:  id,
			Message: "node crossed the overload threshold",
		})
	}
	return nil
}

// --- Task operations ---

// SubmitTask validates and enqueues a task
func (c *Coordinator) SubmitTask(spec *types.ComputeTask) (*types.ComputeTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.tasks.Submit(spec)
	if err != nil {
		return nil, err
	}
	c.publish(&events.Event{
		Type:   events.EventTaskSubmitted,
		TaskID: task.ID,
	})
	cp := *task
	return &cp, nil
}

// GetTask returns a copy of a task
func (c *Coordinator) GetTask(id string) (*types.ComputeTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.tasks.Get(id)
	if err != nil {
		return nil, err
	}
	cp := *task
	return &cp, nil
}

// ListTasks returns copies of all tasks
func (c *Coordinator) ListTasks() []*types.ComputeTask {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks := c.tasks.List()
	out := make([]*types.ComputeTask, len(tasks))
	for i, t := range tasks {
		cp := *t
		out[i] = &cp
	}
	return out
}

// CancelTask cancels a task. Cancelling a terminal task is a no-op.
func (c *Coordinator) CancelTask(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.tasks.Get(id)
	if err != nil {
		return err
	}
	c.cancelLocked(task)
	return nil
}

// --- Cluster operations ---

// CreateCluster registers an edge cluster
func (c *Coordinator) CreateCluster(spec *types.EdgeCluster) (*types.EdgeCluster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.clusters.Create(spec)
	if err != nil {
		return nil, err
	}
	metrics.ClustersTotal.Inc()
	cp := *cl
	return &cp, nil
}

// GetCluster returns a copy of a cluster
func (c *Coordinator) GetCluster(id string) (*types.EdgeCluster, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.clusters.Get(id)
	if err != nil {
		return nil, err
	}
	cp := *cl
	return &cp, nil
}

// ListClusters returns copies of all clusters
func (c *Coordinator) ListClusters() []*types.EdgeCluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	clusters := c.clusters.List()
	out := make([]*types.EdgeCluster, len(clusters))
	for i, cl := range clusters {
		cp := *cl
		out[i] = &cp
	}
	return out
}

// AddNodeToCluster places a registered node into a cluster
func (c *Coordinator) AddNodeToCluster(clusterID, nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.registry.Get(nodeID); err != nil {
		return err
	}
	return c.clusters.AddNode(clusterID, nodeID, c.registry.Get)
}

// RemoveNodeFromCluster detaches a node from a cluster
func (c *Coordinator) RemoveNodeFromCluster(clusterID, nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clusters.RemoveNode(clusterID, nodeID, c.registry.Get)
}

// ScaleCluster adjusts a cluster toward the target member count. Scaling up
// is advisory (the coordinator cannot create nodes, it announces demand);
// scaling down drains the least-loaded members into maintenance and migrates
// their tasks without consuming retries.
func (c *Coordinator) ScaleCluster(clusterID string, target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.clusters.Get(clusterID)
	if err != nil {
		return err
	}
	if target < 0 {
		return fmt.Errorf("%w: negative scale target", types.ErrInvalidSpec)
	}

	current := len(cl.NodeIDs)
	switch {
	case target > current:
		c.publish(&events.Event{
			Type:      events.EventClusterScaleUp,
			ClusterID: clusterID,
			Message:   fmt.Sprintf("cluster wants %d more nodes", target-current),
			Metadata:  map[string]string{"target": fmt.Sprintf("%d", target)},
		})
	case target < current:
		drain, err := c.clusters.ScaleDownCandidates(clusterID, target, c.registry.Get)
		if err != nil {
			return err
		}
		for _, nodeID := range drain {
			c.migrateNodeTasksLocked(nodeID, false)
			if err := c.registry.SetStatus(nodeID, types.NodeStatusMaintenance); err == nil {
				c.logger.Info().Str("node_id", nodeID).
					Str("cluster_id", clusterID).Msg("node drained for scale-down")
			}
			if err := c.clusters.RemoveNode(clusterID, nodeID, c.registry.Get); err != nil {
				return err
			}
		}
		c.publish(&events.Event{
			Type:      events.EventClusterScaleDn,
			ClusterID: clusterID,
			Message:   fmt.Sprintf("cluster drained to %d nodes", target),
		})
	}
	return nil
}

// --- Rollup ---

// Snapshot computes the cluster-wide rollup
func (c *Coordinator) Snapshot() types.ClusterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	total, active := c.registry.Count()

	var utilization float64
	if active > 0 {
		for _, node := range c.registry.List() {
			if node.Status == types.NodeStatusOnline || node.Status == types.NodeStatusBusy {
				utilization += (node.Usage.CPUPercent + node.Usage.MemoryPercent) / 2
			}
		}
		utilization /= float64(active)
	}

	var avgTime time.Duration
	if c.completedCount > 0 {
		avgTime = c.totalExecTime / time.Duration(c.completedCount)
	}

	var errorRate float64
	if c.completedCount+c.failedCount > 0 {
		errorRate = float64(c.failedCount) / float64(c.completedCount+c.failedCount)
	}

	window := c.cfg.Metrics.ThroughputWindow.D()
	c.pruneCompletionsLocked(time.Now().Add(-window))
	throughput := float64(len(c.completions)) / window.Minutes()

	return types.ClusterSnapshot{
		TotalNodes:         total,
		ActiveNodes:        active,
		RunningTasks:       c.tasks.CountByStatus(types.TaskStatusRunning),
		QueueLength:        c.tasks.QueueLength(),
		AverageTaskTime:    avgTime,
		ClusterUtilization: utilization,
		Throughput:         throughput,
		ErrorRate:          errorRate,
		Timestamp:          time.Now(),
	}
}

// TaskCounts returns the number of tasks per status
func (c *Coordinator) TaskCounts() map[types.TaskStatus]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[types.TaskStatus]int)
	for _, t := range c.tasks.List() {
		out[t.Status]++
	}
	return out
}

// NodeCounts returns the number of nodes per type and status
func (c *Coordinator) NodeCounts() map[types.NodeType]map[types.NodeStatus]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[types.NodeType]map[types.NodeStatus]int)
	for _, n := range c.registry.List() {
		if out[n.Type] == nil {
			out[n.Type] = make(map[types.NodeStatus]int)
		}
		out[n.Type][n.Status]++
	}
	return out
}

// JobCounts returns the number of jobs per status
func (c *Coordinator) JobCounts() map[types.JobStatus]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[types.JobStatus]int)
	for _, j := range c.jobs.List() {
		out[j.Status]++
	}
	return out
}

func (c *Coordinator) pruneCompletionsLocked(cutoff time.Time) {
	i := 0
	for i < len(c.completions) && c.completions[i].Before(cutoff) {
		i++
	}
	c.completions = c.completions[i:]
}

func (c *Coordinator) publish(event *events.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	c.broker.Publish(event)
}
