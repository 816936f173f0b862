package registry

import (
	"testing"
	"time"

	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFillsDefaults(t *testing.T) {
	r := New(0)

	node, err := r.Register(&types.ComputeNode{Address: "10.0.0.1:9400"})
	require.NoError(t, err)

	assert.NotEmpty(t, node.ID)
	assert.Equal(t, types.NodeStatusOnline, node.Status)
	assert.Equal(t, types.NodeTypeCloud, node.Type)
	assert.False(t, node.LastHeartbeat.IsZero())
	assert.NotNil(t, node.Capabilities.Tags)
}

func TestRegisterDuplicateID(t *testing.T) {
	r := New(0)

	_, err := r.Register(&types.ComputeNode{ID: "n1"})
	require.NoError(t, err)

	_, err = r.Register(&types.ComputeNode{ID: "n1"})
	assert.ErrorIs(t, err, types.ErrInvalidSpec)
}

func TestUnregisterReturnsNode(t *testing.T) {
	r := New(0)
	_, err := r.Register(&types.ComputeNode{ID: "n1"})
	require.NoError(t, err)

	node, err := r.Unregister("n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", node.ID)

	_, err = r.Get("n1")
	assert.ErrorIs(t, err, types.ErrNodeNotFound)

	_, err = r.Unregister("n1")
	assert.ErrorIs(t, err, types.ErrNodeNotFound)
}

func TestCanAcceptTasks(t *testing.T) {
	r := New(2)

	tests := []struct {
		name     string
		node     *types.ComputeNode
		expected bool
	}{
		{
			name:     "idle node accepts",
			node:     &types.ComputeNode{},
			expected: true,
		},
		{
			name: "at concurrency cap",
			node: &types.ComputeNode{
				Workload: types.WorkloadStats{ActiveTasks: 2},
			},
			expected: false,
		},
		{
			name: "cpu too hot",
			node: &types.ComputeNode{
				Usage: types.ResourceUsage{CPUPercent: 85},
			},
			expected: false,
		},
		{
			name: "memory too hot",
			node: &types.ComputeNode{
				Usage: types.ResourceUsage{MemoryPercent: 92},
			},
			expected: false,
		},
		{
			name: "just under thresholds",
			node: &types.ComputeNode{
				Workload: types.WorkloadStats{ActiveTasks: 1},
				Usage:    types.ResourceUsage{CPUPercent: 79, MemoryPercent: 79},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.CanAcceptTasks(tt.node))
		})
	}
}

func TestUpdateResourcesOverloadEdgeTriggered(t *testing.T) {
	r := New(0)
	_, err := r.Register(&types.ComputeNode{ID: "n1"})
	require.NoError(t, err)

	crossed, err := r.UpdateResources("n1", ResourceUpdate{
		Usage: &types.ResourceUsage{CPUPercent: 95},
	})
	require.NoError(t, err)
	assert.True(t, crossed, "first crossing should fire")

	crossed, err = r.UpdateResources("n1", ResourceUpdate{
		Usage: &types.ResourceUsage{CPUPercent: 97},
	})
	require.NoError(t, err)
	assert.False(t, crossed, "staying overloaded should not re-fire")

	crossed, err = r.UpdateResources("n1", ResourceUpdate{
		Usage: &types.ResourceUsage{CPUPercent: 40},
	})
	require.NoError(t, err)
	assert.False(t, crossed)

	crossed, err = r.UpdateResources("n1", ResourceUpdate{
		Usage: &types.ResourceUsage{MemoryPercent: 91},
	})
	require.NoError(t, err)
	assert.True(t, crossed, "re-crossing after recovery should fire again")
}

func TestHeartbeatRevivesOfflineNode(t *testing.T) {
	r := New(0)
	_, err := r.Register(&types.ComputeNode{ID: "n1"})
	require.NoError(t, err)

	require.NoError(t, r.MarkOffline("n1"))
	node, err := r.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, types.NodeStatusOffline, node.Status)

	require.NoError(t, r.Heartbeat("n1"))
	assert.Equal(t, types.NodeStatusOnline, node.Status)
}

func TestTimedOut(t *testing.T) {
	r := New(0)
	_, err := r.Register(&types.ComputeNode{ID: "n1"})
	require.NoError(t, err)
	_, err = r.Register(&types.ComputeNode{ID: "n2"})
	require.NoError(t, err)

	// Backdate n1's heartbeat past the timeout
	n1, err := r.Get("n1")
	require.NoError(t, err)
	n1.LastHeartbeat = time.Now().Add(-3 * time.Minute)

	timedOut := r.TimedOut(time.Now(), 2*time.Minute)
	require.Len(t, timedOut, 1)
	assert.Equal(t, "n1", timedOut[0].ID)

	// Already-offline nodes are not reported again
	require.NoError(t, r.MarkOffline("n1"))
	assert.Empty(t, r.TimedOut(time.Now(), 2*time.Minute))
}

func TestReserveRelease(t *testing.T) {
	r := New(0)
	_, err := r.Register(&types.ComputeNode{ID: "n1"})
	require.NoError(t, err)

	require.NoError(t, r.Reserve("n1"))
	require.NoError(t, r.Reserve("n1"))
	node, err := r.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, 2, node.Workload.ActiveTasks)

	r.Release("n1")
	assert.Equal(t, 1, node.Workload.ActiveTasks)

	r.Release("n1")
	r.Release("n1") // extra release never goes negative
	assert.Equal(t, 0, node.Workload.ActiveTasks)

	r.Release("missing") // no-op
}

func TestRecordCompletionRunningMean(t *testing.T) {
	r := New(0)
	_, err := r.Register(&types.ComputeNode{ID: "n1"})
	require.NoError(t, err)

	r.RecordCompletion("n1", 2*time.Second, false)
	r.RecordCompletion("n1", 4*time.Second, false)
	r.RecordCompletion("n1", 1*time.Second, true)

	node, err := r.Get("n1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), node.Workload.CompletedTasks)
	assert.Equal(t, int64(1), node.Workload.FailedTasks)
	assert.Equal(t, 3*time.Second, node.Workload.AvgTaskTime)
}

func TestCandidatesSortedAndFiltered(t *testing.T) {
	r := New(1)
	_, err := r.Register(&types.ComputeNode{ID: "b"})
	require.NoError(t, err)
	_, err = r.Register(&types.ComputeNode{ID: "a"})
	require.NoError(t, err)
	_, err = r.Register(&types.ComputeNode{ID: "c"})
	require.NoError(t, err)

	require.NoError(t, r.MarkOffline("c"))
	require.NoError(t, r.Reserve("b")) // b at cap

	candidates := r.Candidates()
	require.Len(t, candidates, 1)
	assert.Equal(t, "a", candidates[0].ID)
}
