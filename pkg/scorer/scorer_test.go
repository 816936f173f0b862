package scorer

import (
	"testing"

	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gib = int64(1024 * 1024 * 1024)

func node(id string, cores int, memGiB int64) *types.ComputeNode {
	return &types.ComputeNode{
		ID:     id,
		Status: types.NodeStatusOnline,
		Capabilities: types.NodeCapabilities{
			CPUCores:    cores,
			MemoryBytes: memGiB * gib,
			Tags:        types.NewCapabilitySet(),
		},
	}
}

// Hard-filter scenario: only the node meeting the core requirement survives.
func TestSelectNodesHardFilter(t *testing.T) {
	n1 := node("n1", 4, 8)
	n2 := node("n2", 2, 4)
	task := &types.ComputeTask{
		Requirements: types.TaskRequirements{
			MinCPUCores:          4,
			RequiredCapabilities: types.NewCapabilitySet(),
		},
	}

	selected := New(DefaultWeights()).SelectNodes(task, []*types.ComputeNode{n1, n2}, Hints{})
	require.Len(t, selected, 1)
	assert.Equal(t, "n1", selected[0].ID)
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name     string
		task     types.TaskRequirements
		node     types.NodeCapabilities
		expected bool
	}{
		{
			name:     "meets everything",
			task:     types.TaskRequirements{MinCPUCores: 2, MinMemoryBytes: gib},
			node:     types.NodeCapabilities{CPUCores: 4, MemoryBytes: 2 * gib, Tags: types.NewCapabilitySet()},
			expected: true,
		},
		{
			name:     "insufficient memory",
			task:     types.TaskRequirements{MinMemoryBytes: 4 * gib},
			node:     types.NodeCapabilities{CPUCores: 8, MemoryBytes: 2 * gib, Tags: types.NewCapabilitySet()},
			expected: false,
		},
		{
			name:     "insufficient gpu memory",
			task:     types.TaskRequirements{MinGPUMemoryBytes: 8 * gib},
			node:     types.NodeCapabilities{CPUCores: 8, GPUMemoryBytes: 4 * gib, Tags: types.NewCapabilitySet()},
			expected: false,
		},
		{
			name: "missing capability tag",
			task: types.TaskRequirements{
				RequiredCapabilities: types.NewCapabilitySet(types.CapabilityVision),
			},
			node:     types.NodeCapabilities{CPUCores: 8, Tags: types.NewCapabilitySet(types.CapabilityAI)},
			expected: false,
		},
		{
			name: "capability subset satisfied",
			task: types.TaskRequirements{
				RequiredCapabilities: types.NewCapabilitySet(types.CapabilityAI),
			},
			node: types.NodeCapabilities{
				CPUCores: 8,
				Tags:     types.NewCapabilitySet(types.CapabilityAI, types.CapabilityVision),
			},
			expected: true,
		},
		{
			name:     "latency above ceiling",
			task:     types.TaskRequirements{MaxLatencyMs: 20},
			node:     types.NodeCapabilities{CPUCores: 8, Network: types.NetworkProfile{LatencyMs: 35}, Tags: types.NewCapabilitySet()},
			expected: false,
		},
		{
			name:     "no latency ceiling ignores latency",
			task:     types.TaskRequirements{},
			node:     types.NodeCapabilities{CPUCores: 8, Network: types.NetworkProfile{LatencyMs: 500}, Tags: types.NewCapabilitySet()},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &types.ComputeTask{Requirements: tt.task}
			n := &types.ComputeNode{Capabilities: tt.node}
			assert.Equal(t, tt.expected, Eligible(task, n))
		})
	}
}

func TestSelectNodesEmptyWhenNothingEligible(t *testing.T) {
	task := &types.ComputeTask{
		Requirements: types.TaskRequirements{MinCPUCores: 64},
	}
	selected := New(DefaultWeights()).SelectNodes(task, []*types.ComputeNode{node("n1", 4, 8)}, Hints{})
	assert.Empty(t, selected)
}

func TestSelectNodesRanking(t *testing.T) {
	idle := node("idle", 8, 16)
	busy := node("busy", 8, 16)
	busy.Usage = types.ResourceUsage{CPUPercent: 70, MemoryPercent: 70}

	task := &types.ComputeTask{Requirements: types.TaskRequirements{MinCPUCores: 1}}
	selected := New(DefaultWeights()).SelectNodes(task, []*types.ComputeNode{busy, idle}, Hints{})

	require.Len(t, selected, 2)
	assert.Equal(t, "idle", selected[0].ID, "less utilized node ranks first")
	assert.Equal(t, "busy", selected[1].ID)
}

func TestSelectNodesDeterministicTieBreak(t *testing.T) {
	// Identical nodes: order must come from id, not map iteration
	nb := node("b", 4, 8)
	na := node("a", 4, 8)
	nc := node("c", 4, 8)

	task := &types.ComputeTask{Requirements: types.TaskRequirements{}}
	s := New(DefaultWeights())
	for i := 0; i < 10; i++ {
		selected := s.SelectNodes(task, []*types.ComputeNode{nb, na, nc}, Hints{})
		require.Len(t, selected, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{selected[0].ID, selected[1].ID, selected[2].ID})
	}
}

func TestSelectNodesTopK(t *testing.T) {
	nodes := []*types.ComputeNode{node("a", 4, 8), node("b", 4, 8), node("c", 4, 8), node("d", 4, 8)}
	s := New(DefaultWeights())

	regular := &types.ComputeTask{Type: types.TaskTypeBatch}
	assert.Len(t, s.SelectNodes(regular, nodes, Hints{}), 3, "redundancy-capable tasks get up to 3")

	exclusive := &types.ComputeTask{Requirements: types.TaskRequirements{Exclusive: true}}
	assert.Len(t, s.SelectNodes(exclusive, nodes, Hints{}), 1)

	inference := &types.ComputeTask{Type: types.TaskTypeMLInference}
	assert.Len(t, s.SelectNodes(inference, nodes, Hints{}), 1)

	assert.Len(t, s.SelectNodes(regular, nodes[:2], Hints{}), 2, "K capped at eligible count")
}

func TestScoreAffinityBonuses(t *testing.T) {
	s := New(DefaultWeights())

	local := node("local", 4, 8)
	local.Region = "us-east"
	local.Zone = "us-east-1a"
	remote := node("remote", 4, 8)
	remote.Region = "eu-west"

	task := &types.ComputeTask{
		Requirements: types.TaskRequirements{
			PreferredRegion: "us-east",
			PreferredZone:   "us-east-1a",
		},
	}

	diff := s.Score(task, local, Hints{}) - s.Score(task, remote, Hints{})
	assert.InDelta(t, 40, diff, 0.001, "region (25) + zone (15) bonuses")
}

func TestScoreClusterHintsUsedWhenTaskHasNoPreference(t *testing.T) {
	s := New(DefaultWeights())

	local := node("local", 4, 8)
	local.Region = "us-east"
	remote := node("remote", 4, 8)
	remote.Region = "eu-west"

	task := &types.ComputeTask{}
	hints := Hints{PreferredRegion: "us-east"}

	assert.Greater(t, s.Score(task, local, hints), s.Score(task, remote, hints))
}

func TestScoreEdgeInferenceBonus(t *testing.T) {
	s := New(DefaultWeights())

	edge := node("edge", 4, 8)
	edge.Type = types.NodeTypeEdge
	cloud := node("cloud", 4, 8)
	cloud.Type = types.NodeTypeCloud

	inference := &types.ComputeTask{Type: types.TaskTypeMLInference}
	batch := &types.ComputeTask{Type: types.TaskTypeBatch}

	assert.InDelta(t, 30,
		s.Score(inference, edge, Hints{})-s.Score(inference, cloud, Hints{}), 0.001)
	assert.InDelta(t, 0,
		s.Score(batch, edge, Hints{})-s.Score(batch, cloud, Hints{}), 0.001)
}
