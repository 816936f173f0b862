package cluster

import (
	"fmt"
	"testing"

	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(nodes map[string]*types.ComputeNode) NodeLookup {
	return func(id string) (*types.ComputeNode, error) {
		n, ok := nodes[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrNodeNotFound, id)
		}
		return n, nil
	}
}

func TestCreateDefaults(t *testing.T) {
	a := New()

	c, err := a.Create(&types.EdgeCluster{Name: "west", Region: "us-west"})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, types.PolicyLeastLoaded, c.Policy)
	assert.Equal(t, types.DefaultReplicationFactor, c.ReplicationFactor)
	assert.Equal(t, types.ConsistencyEventual, c.Consistency)
	assert.Empty(t, c.NodeIDs)
}

func TestMembershipAndRollup(t *testing.T) {
	a := New()
	nodes := map[string]*types.ComputeNode{
		"n1": {ID: "n1", Capabilities: types.NodeCapabilities{CPUCores: 4, MemoryBytes: 8 << 30, GPUCount: 1},
			Usage: types.ResourceUsage{CPUPercent: 20, MemoryPercent: 40}},
		"n2": {ID: "n2", Capabilities: types.NodeCapabilities{CPUCores: 8, MemoryBytes: 16 << 30},
			Usage: types.ResourceUsage{CPUPercent: 60, MemoryPercent: 20}},
	}
	lookup := lookupFrom(nodes)

	c, err := a.Create(&types.EdgeCluster{ID: "c1", Region: "us-east"})
	require.NoError(t, err)

	require.NoError(t, a.AddNode("c1", "n1", lookup))
	require.NoError(t, a.AddNode("c1", "n2", lookup))

	assert.Equal(t, []string{"n1", "n2"}, c.NodeIDs)
	assert.Equal(t, 12, c.Rollup.TotalCPUCores)
	assert.Equal(t, int64(24<<30), c.Rollup.TotalMemoryBytes)
	assert.Equal(t, 1, c.Rollup.TotalGPUCount)
	assert.InDelta(t, 40, c.Rollup.MeanCPUPercent, 0.001)
	assert.InDelta(t, 30, c.Rollup.MeanMemoryPercent, 0.001)

	require.NoError(t, a.RemoveNode("c1", "n2", lookup))
	assert.Equal(t, []string{"n1"}, c.NodeIDs)
	assert.Equal(t, 4, c.Rollup.TotalCPUCores)

	err = a.RemoveNode("c1", "n2", lookup)
	assert.ErrorIs(t, err, types.ErrNodeNotFound)
}

func TestAddNodeMovesBetweenClusters(t *testing.T) {
	a := New()
	nodes := map[string]*types.ComputeNode{
		"n1": {ID: "n1", Capabilities: types.NodeCapabilities{CPUCores: 4}},
	}
	lookup := lookupFrom(nodes)

	c1, err := a.Create(&types.EdgeCluster{ID: "c1"})
	require.NoError(t, err)
	c2, err := a.Create(&types.EdgeCluster{ID: "c2"})
	require.NoError(t, err)

	require.NoError(t, a.AddNode("c1", "n1", lookup))
	require.NoError(t, a.AddNode("c2", "n1", lookup))

	assert.Empty(t, c1.NodeIDs)
	assert.Zero(t, c1.Rollup.TotalCPUCores)
	assert.Equal(t, []string{"n1"}, c2.NodeIDs)

	got, ok := a.ClusterFor("n1")
	require.True(t, ok)
	assert.Equal(t, "c2", got.ID)
}

func TestNodeRemoved(t *testing.T) {
	a := New()
	nodes := map[string]*types.ComputeNode{"n1": {ID: "n1"}}
	lookup := lookupFrom(nodes)

	c, err := a.Create(&types.EdgeCluster{ID: "c1"})
	require.NoError(t, err)
	require.NoError(t, a.AddNode("c1", "n1", lookup))

	a.NodeRemoved("n1", lookup)
	assert.Empty(t, c.NodeIDs)
	_, ok := a.ClusterFor("n1")
	assert.False(t, ok)

	a.NodeRemoved("unknown", lookup) // no-op
}

func TestHintsFor(t *testing.T) {
	a := New()
	nodes := map[string]*types.ComputeNode{"n1": {ID: "n1"}, "n2": {ID: "n2"}, "n3": {ID: "n3"}}
	lookup := lookupFrom(nodes)

	_, err := a.Create(&types.EdgeCluster{ID: "small", Region: "eu-west", Zone: "eu-west-1a"})
	require.NoError(t, err)
	_, err = a.Create(&types.EdgeCluster{ID: "big", Region: "us-east", Zone: "us-east-1b"})
	require.NoError(t, err)

	require.NoError(t, a.AddNode("small", "n1", lookup))
	require.NoError(t, a.AddNode("big", "n2", lookup))
	require.NoError(t, a.AddNode("big", "n3", lookup))

	local := &types.ComputeTask{Constraints: types.TaskConstraints{DataLocality: true}}
	hints := a.HintsFor(local)
	assert.Equal(t, "us-east", hints.PreferredRegion)
	assert.Equal(t, "us-east-1b", hints.PreferredZone)

	plain := &types.ComputeTask{}
	assert.Zero(t, a.HintsFor(plain))
}

func TestScaleDownCandidates(t *testing.T) {
	a := New()
	nodes := map[string]*types.ComputeNode{
		"n1": {ID: "n1", Workload: types.WorkloadStats{ActiveTasks: 5}},
		"n2": {ID: "n2", Workload: types.WorkloadStats{ActiveTasks: 0}},
		"n3": {ID: "n3", Workload: types.WorkloadStats{ActiveTasks: 2}},
	}
	lookup := lookupFrom(nodes)

	_, err := a.Create(&types.EdgeCluster{ID: "c1"})
	require.NoError(t, err)
	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, a.AddNode("c1", id, lookup))
	}

	candidates, err := a.ScaleDownCandidates("c1", 1, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n3"}, candidates, "least loaded drain first")

	candidates, err = a.ScaleDownCandidates("c1", 5, lookup)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, err = a.ScaleDownCandidates("missing", 1, lookup)
	assert.ErrorIs(t, err, types.ErrClusterNotFound)
}
