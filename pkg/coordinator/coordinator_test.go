package coordinator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmesh/gridmesh/pkg/config"
	"github.com/gridmesh/gridmesh/pkg/events"
	"github.com/gridmesh/gridmesh/pkg/registry"
	"github.com/gridmesh/gridmesh/pkg/transport"
	"github.com/gridmesh/gridmesh/pkg/types"
)

func newTestCoordinator(t *testing.T, mutate func(*config.Config)) (*Coordinator, *transport.Fake) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	tr := transport.NewFake()
	return New(cfg, tr, nil), tr
}

func testNode(id, region string, cores int) *types.ComputeNode {
	return &types.ComputeNode{
		ID:      id,
		Address: id + ":9401",
		Region:  region,
		Type:    types.NodeTypeCloud,
		Capabilities: types.NodeCapabilities{
			CPUCores:    cores,
			MemoryBytes: 8 << 30,
		},
	}
}

func waitTaskStatus(t *testing.T, c *Coordinator, taskID string, want types.TaskStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		task, err := c.GetTask(taskID)
		return err == nil && task.Status == want
	}, 2*time.Second, 5*time.Millisecond, "task %s never reached %s", taskID, want)
}

func waitActive(t *testing.T, c *Coordinator, taskID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		task, err := c.GetTask(taskID)
		return err == nil && task.Status.Active()
	}, 2*time.Second, 5*time.Millisecond, "task %s never became active", taskID)
}

func TestScheduleAssignsTaskToNode(t *testing.T) {
	c, tr := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)

	task, err := c.SubmitTask(&types.ComputeTask{Type: types.TaskTypeBatch})
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, task.Status)

	c.SchedulePass()
	waitTaskStatus(t, c, task.ID, types.TaskStatusRunning)

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "node-a", got.AssignedNode)
	assert.False(t, got.StartedAt.IsZero())

	sent := tr.SentFor(task.ID)
	require.Len(t, sent, 1)
	assert.Equal(t, transport.CommandExecuteTask, sent[0].Cmd.Type)
	assert.Equal(t, "node-a", sent[0].NodeID)

	node, err := c.GetNode("node-a")
	require.NoError(t, err)
	assert.Equal(t, 1, node.Workload.ActiveTasks)
}

func TestScheduleSkipsTaskWithNoEligibleNode(t *testing.T) {
	c, tr := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 2))
	require.NoError(t, err)

	task, err := c.SubmitTask(&types.ComputeTask{
		Requirements: types.TaskRequirements{MinCPUCores: 16},
	})
	require.NoError(t, err)

	c.SchedulePass()
	time.Sleep(20 * time.Millisecond)

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, got.Status)
	assert.Empty(t, tr.SentFor(task.ID))
}

func TestTaskCompletionUpdatesRollup(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)
	task, err := c.SubmitTask(&types.ComputeTask{})
	require.NoError(t, err)

	c.SchedulePass()
	waitActive(t, c, task.ID)

	c.TaskOutcome(transport.Result{
		TaskID:        task.ID,
		NodeID:        "node-a",
		Outcome:       transport.OutcomeCompleted,
		ExecutionTime: 2 * time.Second,
	})

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, got.Status)
	assert.Empty(t, got.AssignedNode)
	assert.Equal(t, 2*time.Second, got.Metrics.ExecutionTime)

	node, err := c.GetNode("node-a")
	require.NoError(t, err)
	assert.Equal(t, 0, node.Workload.ActiveTasks)
	assert.Equal(t, int64(1), node.Workload.CompletedTasks)

	snap := c.Snapshot()
	assert.Equal(t, 0.0, snap.ErrorRate)
	assert.Equal(t, 2*time.Second, snap.AverageTaskTime)
	assert.Greater(t, snap.Throughput, 0.0)
}

func TestExecutionFailureConsumesRetriesThenFails(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)
	task, err := c.SubmitTask(&types.ComputeTask{
		Constraints: types.TaskConstraints{MaxRetries: 1},
	})
	require.NoError(t, err)

	c.SchedulePass()
	waitActive(t, c, task.ID)

	// First failure consumes the single retry
	c.TaskOutcome(transport.Result{
		TaskID: task.ID, NodeID: "node-a",
		Outcome: transport.OutcomeFailed, Error: "boom",
	})
	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, got.Status)
	assert.Equal(t, 0, got.RetriesLeft)
	assert.Empty(t, got.AssignedNode)

	// Second attempt fails terminally
	c.SchedulePass()
	waitActive(t, c, task.ID)
	c.TaskOutcome(transport.Result{
		TaskID: task.ID, NodeID: "node-a",
		Outcome: transport.OutcomeFailed, Error: "boom again",
	})

	got, err = c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusFailed, got.Status)
	assert.Empty(t, got.AssignedNode)
	assert.Equal(t, "boom again", got.Metrics.Error)

	snap := c.Snapshot()
	assert.Equal(t, 1.0, snap.ErrorRate)
}

func TestRetriedTaskCompletesOnThirdAttempt(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)
	task, err := c.SubmitTask(&types.ComputeTask{
		Constraints: types.TaskConstraints{MaxRetries: 3},
	})
	require.NoError(t, err)

	sub := c.Broker().Subscribe()
	defer c.Broker().Unsubscribe(sub)
	c.Broker().Start()
	defer c.Broker().Stop()

	// Two transient failures, each consuming one retry
	for attempt := 0; attempt < 2; attempt++ {
		c.SchedulePass()
		waitActive(t, c, task.ID)
		c.TaskOutcome(transport.Result{
			TaskID: task.ID, NodeID: "node-a",
			Outcome: transport.OutcomeFailed, Error: "transient",
		})
	}

	// Third attempt succeeds
	c.SchedulePass()
	waitActive(t, c, task.ID)
	c.TaskOutcome(transport.Result{
		TaskID: task.ID, NodeID: "node-a",
		Outcome: transport.OutcomeCompleted, ExecutionTime: time.Second,
	})

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, got.Status)
	assert.Equal(t, 1, got.RetriesLeft)
	assert.Empty(t, got.AssignedNode)
	assert.Empty(t, got.Metrics.Error)

	completions := 0
	deadline := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case ev := <-sub:
			if ev.Type == events.EventTaskCompleted {
				completions++
			}
		case <-deadline:
			done = true
		}
	}
	assert.Equal(t, 1, completions)
}

func TestDispatchFailureFlowsThroughRetryPolicy(t *testing.T) {
	c, tr := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)
	task, err := c.SubmitTask(&types.ComputeTask{
		Constraints: types.TaskConstraints{MaxRetries: 2},
	})
	require.NoError(t, err)

	tr.FailSendOnce(task.ID, errors.New("connection refused"))
	c.SchedulePass()

	require.Eventually(t, func() bool {
		got, err := c.GetTask(task.ID)
		return err == nil && got.Status == types.TaskStatusPending && got.RetriesLeft == 1
	}, 2*time.Second, 5*time.Millisecond)

	// The node credit was returned, so the next pass can place it again
	c.SchedulePass()
	waitTaskStatus(t, c, task.ID, types.TaskStatusRunning)
	assert.Len(t, tr.SentFor(task.ID), 2)
}

func TestCancelIsIdempotentAndDropsLateOutcome(t *testing.T) {
	c, tr := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)
	task, err := c.SubmitTask(&types.ComputeTask{})
	require.NoError(t, err)

	sub := c.Broker().Subscribe()
	defer c.Broker().Unsubscribe(sub)
	c.Broker().Start()
	defer c.Broker().Stop()

	c.SchedulePass()
	waitTaskStatus(t, c, task.ID, types.TaskStatusRunning)

	require.NoError(t, c.CancelTask(task.ID))
	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCancelled, got.Status)
	assert.Empty(t, got.AssignedNode)

	// Cancelling again is a no-op and emits nothing
	require.NoError(t, c.CancelTask(task.ID))

	// A best-effort cancel command goes to the node
	require.Eventually(t, func() bool {
		for _, s := range tr.SentFor(task.ID) {
			if s.Cmd.Type == transport.CommandCancelTask {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	// A late completion must not resurrect the task
	c.TaskOutcome(transport.Result{
		TaskID: task.ID, NodeID: "node-a",
		Outcome: transport.OutcomeCompleted, ExecutionTime: time.Second,
	})
	got, err = c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCancelled, got.Status)

	node, err := c.GetNode("node-a")
	require.NoError(t, err)
	assert.Equal(t, 0, node.Workload.ActiveTasks)
	assert.Equal(t, int64(0), node.Workload.CompletedTasks)

	// Exactly one cancellation event for the whole sequence
	cancels := 0
	deadline := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case ev := <-sub:
			if ev.Type == events.EventTaskCancelled {
				cancels++
			}
		case <-deadline:
			done = true
		}
	}
	assert.Equal(t, 1, cancels)
}

func TestCancelPendingTaskLeavesQueue(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	task, err := c.SubmitTask(&types.ComputeTask{})
	require.NoError(t, err)
	require.NoError(t, c.CancelTask(task.ID))

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCancelled, got.Status)
	assert.Zero(t, c.Snapshot().QueueLength)
}

func TestHeartbeatTimeoutMigratesTasks(t *testing.T) {
	c, _ := newTestCoordinator(t, func(cfg *config.Config) {
		cfg.Heartbeat.Timeout = config.Duration(20 * time.Millisecond)
	})

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)
	task, err := c.SubmitTask(&types.ComputeTask{
		Constraints: types.TaskConstraints{MaxRetries: 3},
	})
	require.NoError(t, err)

	c.SchedulePass()
	waitActive(t, c, task.ID)

	time.Sleep(30 * time.Millisecond)
	c.HeartbeatSweep()

	node, err := c.GetNode("node-a")
	require.NoError(t, err)
	assert.Equal(t, types.NodeStatusOffline, node.Status)

	// Node loss consumed one retry and put the task back in the queue
	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, got.Status)
	assert.Equal(t, 2, got.RetriesLeft)

	// A fresh node picks the task up on the next pass
	_, err = c.RegisterNode(testNode("node-b", "us-east", 8))
	require.NoError(t, err)
	c.SchedulePass()
	waitActive(t, c, task.ID)

	got, err = c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "node-b", got.AssignedNode)
}

func TestHeartbeatRevivesOfflineNode(t *testing.T) {
	c, _ := newTestCoordinator(t, func(cfg *config.Config) {
		cfg.Heartbeat.Timeout = config.Duration(10 * time.Millisecond)
	})

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	c.HeartbeatSweep()
	node, err := c.GetNode("node-a")
	require.NoError(t, err)
	require.Equal(t, types.NodeStatusOffline, node.Status)

	require.NoError(t, c.Heartbeat("node-a"))
	node, err = c.GetNode("node-a")
	require.NoError(t, err)
	assert.Equal(t, types.NodeStatusOnline, node.Status)
}

func TestUnregisterMigratesWithoutConsumingRetry(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)
	task, err := c.SubmitTask(&types.ComputeTask{
		Constraints: types.TaskConstraints{MaxRetries: 3},
	})
	require.NoError(t, err)

	c.SchedulePass()
	waitActive(t, c, task.ID)

	require.NoError(t, c.UnregisterNode("node-a"))

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, got.Status)
	assert.Equal(t, 3, got.RetriesLeft)

	_, err = c.GetNode("node-a")
	assert.ErrorIs(t, err, types.ErrNodeNotFound)
}

func TestDeadlineExpiryIsTerminal(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	past := time.Now().Add(-time.Minute)
	task, err := c.SubmitTask(&types.ComputeTask{
		Constraints: types.TaskConstraints{MaxRetries: 5, Deadline: &past},
	})
	require.NoError(t, err)

	c.SchedulePass()

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusFailed, got.Status)
	assert.Contains(t, got.Metrics.Error, "deadline")
}

func TestRunningTimeoutReapsTask(t *testing.T) {
	c, tr := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)
	task, err := c.SubmitTask(&types.ComputeTask{
		Constraints: types.TaskConstraints{MaxRetries: 1, Timeout: 20 * time.Millisecond},
	})
	require.NoError(t, err)

	c.SchedulePass()
	waitTaskStatus(t, c, task.ID, types.TaskStatusRunning)

	// The reap consumes the retry; the same pass re-dispatches the task
	time.Sleep(30 * time.Millisecond)
	c.SchedulePass()
	waitTaskStatus(t, c, task.ID, types.TaskStatusRunning)

	got, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RetriesLeft)

	executes := 0
	for _, s := range tr.SentFor(task.ID) {
		if s.Cmd.Type == transport.CommandExecuteTask {
			executes++
		}
	}
	assert.Equal(t, 2, executes)

	// Retries exhausted, so the second timeout is terminal
	time.Sleep(30 * time.Millisecond)
	c.SchedulePass()

	got, err = c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusFailed, got.Status)
	assert.Empty(t, got.AssignedNode)
	assert.Equal(t, "execution timed out", got.Metrics.Error)
}

func TestExclusiveTaskHoldsNode(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)

	exclusive, err := c.SubmitTask(&types.ComputeTask{
		Priority:     10,
		Requirements: types.TaskRequirements{Exclusive: true},
	})
	require.NoError(t, err)
	other, err := c.SubmitTask(&types.ComputeTask{Priority: 1})
	require.NoError(t, err)

	c.SchedulePass()
	waitActive(t, c, exclusive.ID)

	node, err := c.GetNode("node-a")
	require.NoError(t, err)
	assert.Equal(t, types.NodeStatusBusy, node.Status)

	// The busy node is not a candidate, so the second task waits
	c.SchedulePass()
	time.Sleep(20 * time.Millisecond)
	got, err := c.GetTask(other.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, got.Status)

	c.TaskOutcome(transport.Result{
		TaskID: exclusive.ID, NodeID: "node-a",
		Outcome: transport.OutcomeCompleted, ExecutionTime: time.Second,
	})
	node, err = c.GetNode("node-a")
	require.NoError(t, err)
	assert.Equal(t, types.NodeStatusOnline, node.Status)

	c.SchedulePass()
	waitActive(t, c, other.ID)
}

func TestOverloadEventIsEdgeTriggered(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	_, err := c.RegisterNode(testNode("node-a", "us-east", 8))
	require.NoError(t, err)

	sub := c.Broker().Subscribe()
	defer c.Broker().Unsubscribe(sub)
	c.Broker().Start()
	defer c.Broker().Stop()

	hot := types.ResourceUsage{CPUPercent: 95}
	require.NoError(t, c.UpdateNodeResources("node-a", nodeUsage(hot)))
	require.NoError(t, c.UpdateNodeResources("node-a", nodeUsage(hot)))

	overloads := 0
	deadline := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case ev := <-sub:
			if ev.Type == events.EventNodeOverloaded {
				overloads++
			}
		case <-deadline:
			done = true
		}
	}
	assert.Equal(t, 1, overloads)
}

func nodeUsage(u types.ResourceUsage) registry.ResourceUpdate {
	return registry.ResourceUpdate{Usage: &u}
}
