package coordinator

import (
	"time"

	"github.com/gridmesh/gridmesh/pkg/events"
	"github.com/gridmesh/gridmesh/pkg/metrics"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
)

func (c *Coordinator) schedulerLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Scheduler.TickInterval.D())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.SchedulePass()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) heartbeatLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Heartbeat.CheckInterval.D())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.HeartbeatSweep()
		case <-c.stopCh:
			return
		}
	}
}

// SchedulePass runs one scheduling tick: expire deadlines, reap execution
// timeouts, then place the schedulable backlog onto the best nodes.
func (c *Coordinator) SchedulePass() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)
	metrics.SchedulingPasses.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.sweepDeadlinesLocked(now)
	c.sweepRunningTimeoutsLocked(now)

	candidates := c.registry.Candidates()
	if len(candidates) == 0 {
		return
	}

	for _, task := range c.tasks.NextBatch() {
		hints := c.clusters.HintsFor(task)
		selected := c.scorer.SelectNodes(task, candidates, hints)
		if len(selected) == 0 {
			continue
		}
		node := selected[0]
		c.assignLocked(task, node)

		// An exclusive assignment removes the node from this tick entirely;
		// otherwise the node stays a candidate while it has headroom.
		if task.Requirements.Exclusive || !c.registry.CanAcceptTasks(node) {
			candidates = dropNode(candidates, node.ID)
			if len(candidates) == 0 {
				return
			}
		}
	}
}

func dropNode(nodes []*types.ComputeNode, id string) []*types.ComputeNode {
	for i, n := range nodes {
		if n.ID == id {
			return append(nodes[:i], nodes[i+1:]...)
		}
	}
	return nodes
}

func (c *Coordinator) assignLocked(task *types.ComputeTask, node *types.ComputeNode) {
	c.tasks.Dequeue(task.ID)
	task.Status = types.TaskStatusAssigned
	task.AssignedNode = node.ID
	task.StartedAt = time.Now()
	if err := c.registry.Reserve(node.ID); err != nil {
		// Node vanished between candidate listing and reservation
		c.tasks.Requeue(task)
		return
	}
	if task.Requirements.Exclusive {
		_ = c.registry.SetStatus(node.ID, types.NodeStatusBusy)
	}

	c.dispatcher.Assign(task, node)
	metrics.TasksScheduled.Inc()
	c.publish(&events.Event{
		Type:   events.EventTaskAssigned,
		TaskID: task.ID,
		NodeID: node.ID,
	})
	c.logger.Debug().Str("task_id", task.ID).Str("node_id", node.ID).
		Int("priority", task.Priority).Msg("task assigned")
}

// sweepDeadlinesLocked fails queued tasks whose absolute deadline has passed.
// Deadline expiry is terminal regardless of remaining retries.
func (c *Coordinator) sweepDeadlinesLocked(now time.Time) {
	for _, task := range c.tasks.PendingTasks() {
		dl := task.Constraints.Deadline
		if dl != nil && now.After(*dl) {
			c.tasks.Dequeue(task.ID)
			c.failLocked(task, types.ErrDeadlineExceeded.Error())
		}
	}
}

// sweepRunningTimeoutsLocked reaps tasks whose attempt has outlived the
// per-attempt timeout. The remote is told to cancel best-effort; the attempt
// counts as a failure and flows through the retry policy. Tasks stuck in
// assigned (the ack never arrived) are reaped on the same clock, since
// StartedAt marks the attempt start, not the ack.
func (c *Coordinator) sweepRunningTimeoutsLocked(now time.Time) {
	for _, task := range c.tasks.List() {
		if !task.Status.Active() || task.Constraints.Timeout <= 0 {
			continue
		}
		if task.StartedAt.IsZero() || now.Sub(task.StartedAt) <= task.Constraints.Timeout {
			continue
		}
		if node, err := c.registry.Get(task.AssignedNode); err == nil {
			c.dispatcher.Cancel(task.ID, node)
		}
		c.releaseAssignmentLocked(task)
		c.registry.RecordCompletion(task.AssignedNode, 0, true)
		c.handleFailureLocked(task, "execution timed out")
	}
}

// HeartbeatSweep marks silent nodes offline and migrates their in-flight
// tasks. Node loss consumes one retry per task.
func (c *Coordinator) HeartbeatSweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for _, node := range c.registry.TimedOut(now, c.cfg.Heartbeat.Timeout.D()) {
		_ = c.registry.MarkOffline(node.ID)
		metrics.NodeTimeouts.Inc()
		c.publish(&events.Event{
			Type:    events.EventNodeTimeout,
			NodeID:  node.ID,
			Message: "heartbeat timeout, node marked offline",
		})
		c.logger.Warn().Str("node_id", node.ID).
			Time("last_heartbeat", node.LastHeartbeat).Msg("node timed out")
		c.migrateNodeTasksLocked(node.ID, true)
	}
}

// migrateNodeTasksLocked requeues every task assigned to or running on a
// node. When consumeRetry is set (node loss) each migration spends one retry
// and exhausted tasks fail; administrative drains requeue unconditionally.
func (c *Coordinator) migrateNodeTasksLocked(nodeID string, consumeRetry bool) {
	for _, task := range c.tasks.ListByNode(nodeID) {
		c.releaseAssignmentLocked(task)
		if !consumeRetry {
			c.tasks.Requeue(task)
			metrics.Migrations.Inc()
			continue
		}
		decision := c.retry.Decide(task.RetriesLeft)
		if decision.Requeue {
			task.RetriesLeft--
			c.tasks.RequeueAfter(task, decision.Delay)
			metrics.Migrations.Inc()
			metrics.TaskRetries.Inc()
			continue
		}
		c.failLocked(task, "node lost and retries exhausted")
	}
}

// --- dispatch.Sink ---

// TaskRunning records that a node acknowledged an assignment
func (c *Coordinator) TaskRunning(taskID, nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.tasks.Get(taskID)
	if err != nil {
		return
	}
	// The task may have been cancelled or migrated while the send was in
	// flight; a stale ack must not resurrect it. StartedAt was already set
	// at assignment.
	if task.Status != types.TaskStatusAssigned || task.AssignedNode != nodeID {
		return
	}
	task.Status = types.TaskStatusRunning
}

// TaskOutcome reconciles an asynchronous execution result
func (c *Coordinator) TaskOutcome(res transport.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.tasks.Get(res.TaskID)
	if err != nil {
		return
	}
	// Stale outcomes (task already terminal, requeued, or reassigned to a
	// different node) are dropped.
	if !task.Status.Active() || task.AssignedNode != res.NodeID {
		return
	}

	task.Metrics = types.TaskMetrics{
		ExecutionTime: res.ExecutionTime,
		CPUPercent:    res.CPUPercent,
		MemoryPercent: res.MemoryPercent,
		Error:         res.Error,
	}
	c.releaseAssignmentLocked(task)

	if res.Outcome == transport.OutcomeCompleted {
		c.registry.RecordCompletion(res.NodeID, res.ExecutionTime, false)
		c.completeLocked(task, res.ExecutionTime)
		return
	}
	c.registry.RecordCompletion(res.NodeID, res.ExecutionTime, true)
	c.handleFailureLocked(task, res.Error)
}

// DispatchFailed handles a failed command send. The node never received the
// task, so the failure flows through the same retry path as an execution
// error.
func (c *Coordinator) DispatchFailed(taskID, nodeID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metrics.DispatchFailures.Inc()

	task, lookupErr := c.tasks.Get(taskID)
	if lookupErr != nil {
		return
	}
	if task.Status != types.TaskStatusAssigned || task.AssignedNode != nodeID {
		return
	}
	c.releaseAssignmentLocked(task)
	c.handleFailureLocked(task, err.Error())
}

// --- task transitions (lock held) ---

// releaseAssignmentLocked returns the node's concurrency credit and lifts an
// exclusive hold. The task's AssignedNode field is left for the caller.
func (c *Coordinator) releaseAssignmentLocked(task *types.ComputeTask) {
	nodeID := task.AssignedNode
	if nodeID == "" {
		return
	}
	c.registry.Release(nodeID)
	if task.Requirements.Exclusive {
		if node, err := c.registry.Get(nodeID); err == nil && node.Status == types.NodeStatusBusy {
			_ = c.registry.SetStatus(nodeID, types.NodeStatusOnline)
		}
	}
}

func (c *Coordinator) handleFailureLocked(task *types.ComputeTask, reason string) {
	decision := c.retry.Decide(task.RetriesLeft)
	if decision.Requeue {
		task.RetriesLeft--
		c.tasks.RequeueAfter(task, decision.Delay)
		metrics.TaskRetries.Inc()
		c.logger.Info().Str("task_id", task.ID).Int("retries_left", task.RetriesLeft).
			Str("reason", reason).Msg("task requeued for retry")
		return
	}
	c.failLocked(task, reason)
}

func (c *Coordinator) completeLocked(task *types.ComputeTask, execTime time.Duration) {
	nodeID := task.AssignedNode
	task.Status = types.TaskStatusCompleted
	task.AssignedNode = ""
	task.CompletedAt = time.Now()

	c.completedCount++
	c.totalExecTime += execTime
	c.completions = append(c.completions, task.CompletedAt)
	metrics.TasksCompleted.Inc()

	c.publish(&events.Event{
		Type:   events.EventTaskCompleted,
		TaskID: task.ID,
		NodeID: nodeID,
	})
	c.onTerminalLocked(task)
}

func (c *Coordinator) failLocked(task *types.ComputeTask, reason string) {
	nodeID := task.AssignedNode
	task.Status = types.TaskStatusFailed
	task.AssignedNode = ""
	task.CompletedAt = time.Now()
	if task.Metrics.Error == "" {
		task.Metrics.Error = reason
	}

	c.failedCount++
	metrics.TasksFailed.Inc()

	c.publish(&events.Event{
		Type:    events.EventTaskFailed,
		TaskID:  task.ID,
		NodeID:  nodeID,
		Message: reason,
	})
	c.logger.Warn().Str("task_id", task.ID).Str("reason", reason).Msg("task failed")
	c.onTerminalLocked(task)
}

// cancelLocked cancels a task wherever it is. Terminal tasks are untouched.
func (c *Coordinator) cancelLocked(task *types.ComputeTask) {
	if task.Status.Terminal() {
		return
	}
	if task.Status.Active() {
		if node, err := c.registry.Get(task.AssignedNode); err == nil {
			c.dispatcher.Cancel(task.ID, node)
		}
		c.releaseAssignmentLocked(task)
	} else {
		c.tasks.Dequeue(task.ID)
	}
	task.Status = types.TaskStatusCancelled
	task.AssignedNode = ""
	task.CompletedAt = time.Now()

	c.publish(&events.Event{
		Type:   events.EventTaskCancelled,
		TaskID: task.ID,
	})
	c.onTerminalLocked(task)
}

// onTerminalLocked runs the shared epilogue of every terminal transition:
// archive the record, cascade to dependents, and re-derive the owning job.
func (c *Coordinator) onTerminalLocked(task *types.ComputeTask) {
	if c.archive != nil {
		cp := *task
		if err := c.archive.Put(&cp); err != nil {
			c.logger.Warn().Err(err).Str("task_id", task.ID).Msg("history archive write failed")
		}
	}

	// A dependent of a failed or cancelled task can never become
	// schedulable, so the whole downstream chain is cancelled.
	if task.Status != types.TaskStatusCompleted {
		for _, depID := range c.tasks.Dependents(task.ID) {
			if dep, err := c.tasks.Get(depID); err == nil {
				c.cancelLocked(dep)
			}
		}
	}

	// Conditional edges whose condition failed cancel their downstream
	// tasks even when the upstream terminal state is benign.
	for _, downID := range c.jobs.ConditionalCancellations(task) {
		if down, err := c.tasks.Get(downID); err == nil {
			c.cancelLocked(down)
		}
	}

	if owner, ok := c.jobs.JobFor(task.ID); ok {
		c.jobs.Recompute(owner.ID, c.tasks.Get)
	}
}
