package queue

import (
	"testing"
	"time"

	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitDefaultsAndQueueing(t *testing.T) {
	s := New()

	task, err := s.Submit(&types.ComputeTask{Priority: 5})
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, types.TaskStatusPending, task.Status)
	assert.Empty(t, task.AssignedNode)
	assert.Equal(t, types.DefaultMaxRetries, task.RetriesLeft)
	assert.True(t, s.Queued(task.ID))
	assert.Equal(t, 1, s.QueueLength())
}

func TestSubmitValidation(t *testing.T) {
	s := New()

	tests := []struct {
		name string
		spec *types.ComputeTask
	}{
		{"nil spec", nil},
		{"negative cores", &types.ComputeTask{
			Requirements: types.TaskRequirements{MinCPUCores: -1},
		}},
		{"negative retries", &types.ComputeTask{
			Constraints: types.TaskConstraints{MaxRetries: -2},
		}},
		{"unknown dependency", &types.ComputeTask{
			DependsOn: []string{"nope"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Submit(tt.spec)
			assert.ErrorIs(t, err, types.ErrInvalidSpec)
		})
	}
}

func TestNextBatchPriorityOrder(t *testing.T) {
	s := New()

	// Submitted in order with priorities 1, 5, 3
	t1, err := s.Submit(&types.ComputeTask{Priority: 1})
	require.NoError(t, err)
	t2, err := s.Submit(&types.ComputeTask{Priority: 5})
	require.NoError(t, err)
	t3, err := s.Submit(&types.ComputeTask{Priority: 3})
	require.NoError(t, err)

	batch := s.NextBatch()
	require.Len(t, batch, 3)
	assert.Equal(t, t2.ID, batch[0].ID)
	assert.Equal(t, t3.ID, batch[1].ID)
	assert.Equal(t, t1.ID, batch[2].ID)
}

func TestNextBatchFIFOWithinPriority(t *testing.T) {
	s := New()

	first, err := s.Submit(&types.ComputeTask{Priority: 2})
	require.NoError(t, err)
	second, err := s.Submit(&types.ComputeTask{Priority: 2})
	require.NoError(t, err)

	// Force distinct creation times in case the clock did not advance
	second.CreatedAt = first.CreatedAt.Add(time.Millisecond)

	batch := s.NextBatch()
	require.Len(t, batch, 2)
	assert.Equal(t, first.ID, batch[0].ID)
	assert.Equal(t, second.ID, batch[1].ID)
}

func TestNextBatchGatesOnDependencies(t *testing.T) {
	s := New()

	dep, err := s.Submit(&types.ComputeTask{Priority: 1})
	require.NoError(t, err)
	child, err := s.Submit(&types.ComputeTask{Priority: 9, DependsOn: []string{dep.ID}})
	require.NoError(t, err)

	batch := s.NextBatch()
	require.Len(t, batch, 1, "blocked child must not appear")
	assert.Equal(t, dep.ID, batch[0].ID)

	// A failed dependency keeps the child blocked
	dep.Status = types.TaskStatusFailed
	s.Dequeue(dep.ID)
	assert.Empty(t, s.NextBatch())

	// Only completion releases it
	dep.Status = types.TaskStatusCompleted
	batch = s.NextBatch()
	require.Len(t, batch, 1)
	assert.Equal(t, child.ID, batch[0].ID)
}

func TestDequeueAndRequeue(t *testing.T) {
	s := New()
	task, err := s.Submit(&types.ComputeTask{Priority: 4})
	require.NoError(t, err)

	s.Dequeue(task.ID)
	task.Status = types.TaskStatusAssigned
	task.AssignedNode = "n1"
	task.StartedAt = time.Now()
	assert.Equal(t, 0, s.QueueLength())

	s.Requeue(task)
	assert.Equal(t, types.TaskStatusPending, task.Status)
	assert.Empty(t, task.AssignedNode)
	assert.True(t, task.StartedAt.IsZero())
	assert.True(t, s.Queued(task.ID))

	// Requeued task keeps its original priority position
	batch := s.NextBatch()
	require.Len(t, batch, 1)
	assert.Equal(t, 4, batch[0].Priority)
}

func TestListByNode(t *testing.T) {
	s := New()

	a, err := s.Submit(&types.ComputeTask{})
	require.NoError(t, err)
	b, err := s.Submit(&types.ComputeTask{})
	require.NoError(t, err)
	c, err := s.Submit(&types.ComputeTask{})
	require.NoError(t, err)

	a.Status = types.TaskStatusRunning
	a.AssignedNode = "n1"
	b.Status = types.TaskStatusAssigned
	b.AssignedNode = "n1"
	c.Status = types.TaskStatusCompleted
	c.AssignedNode = "" // terminal tasks hold no assignment

	got := s.ListByNode("n1")
	assert.Len(t, got, 2)
}

func TestDependents(t *testing.T) {
	s := New()

	root, err := s.Submit(&types.ComputeTask{})
	require.NoError(t, err)
	mid, err := s.Submit(&types.ComputeTask{DependsOn: []string{root.ID}})
	require.NoError(t, err)
	leaf, err := s.Submit(&types.ComputeTask{DependsOn: []string{root.ID, mid.ID}})
	require.NoError(t, err)

	deps := s.Dependents(root.ID)
	assert.ElementsMatch(t, []string{mid.ID, leaf.ID}, deps)
	assert.Equal(t, []string{leaf.ID}, s.Dependents(mid.ID))
	assert.Empty(t, s.Dependents(leaf.ID))
}
