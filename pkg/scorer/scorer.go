package scorer

import (
	"sort"

	"github.com/gridmesh/gridmesh/pkg/types"
)

// Weights tunes the node scoring function. All the scoring constants are
// exposed here so placement behavior can change without code changes.
type Weights struct {
	// Free-utilization terms, multiplied by (100 - percent used)
	CPUFree    float64 `yaml:"cpu_free" json:"cpu_free"`
	MemoryFree float64 `yaml:"memory_free" json:"memory_free"`
	GPUFree    float64 `yaml:"gpu_free" json:"gpu_free"`

	// Headroom terms: spare cores beyond the requirement score 2 points
	// each (capped at 20), spare memory scores 1 point per MB (capped at 15)
	CoreHeadroom   float64 `yaml:"core_headroom" json:"core_headroom"`
	MemoryHeadroom float64 `yaml:"memory_headroom" json:"memory_headroom"`

	// LatencyBonus multiplies max(0, 50 - latencyMs)
	LatencyBonus float64 `yaml:"latency_bonus" json:"latency_bonus"`

	// Flat affinity bonuses
	RegionAffinity float64 `yaml:"region_affinity" json:"region_affinity"`
	ZoneAffinity   float64 `yaml:"zone_affinity" json:"zone_affinity"`

	// Bonus for placing ml_inference work on edge nodes
	EdgeInference float64 `yaml:"edge_inference" json:"edge_inference"`
}

// DefaultWeights returns the documented default scoring weights
func DefaultWeights() Weights {
	return Weights{
		CPUFree:        0.3,
		MemoryFree:     0.2,
		GPUFree:        0.2,
		CoreHeadroom:   1.0,
		MemoryHeadroom: 1.0,
		LatencyBonus:   1.0,
		RegionAffinity: 25,
		ZoneAffinity:   15,
		EdgeInference:  30,
	}
}

// Hints carries locality preferences from the cluster aggregator, used when
// the task itself has no preferred region/zone.
type Hints struct {
	PreferredRegion string
	PreferredZone   string
}

// Scorer ranks eligible nodes for a task. It is a pure function over its
// inputs: callers pre-filter candidates for admission (online, can accept
// tasks); the scorer applies the task's hard resource requirements.
type Scorer struct {
	weights Weights
}

// New creates a scorer with the given weights
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// SelectNodes filters candidates against the task's hard requirements,
// ranks the survivors by score (ties broken by node id ascending), and
// returns the top K. K is 1 for exclusive-access and ml_inference tasks,
// otherwise min(3, eligible) as a ranked fallback list.
func (s *Scorer) SelectNodes(task *types.ComputeTask, candidates []*types.ComputeNode, hints Hints) []*types.ComputeNode {
	eligible := make([]*types.ComputeNode, 0, len(candidates))
	for _, node := range candidates {
		if Eligible(task, node) {
			eligible = append(eligible, node)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	scores := make(map[string]float64, len(eligible))
	for _, node := range eligible {
		scores[node.ID] = s.Score(task, node, hints)
	}
	sort.Slice(eligible, func(i, j int) bool {
		si, sj := scores[eligible[i].ID], scores[eligible[j].ID]
		if si != sj {
			return si > sj
		}
		return eligible[i].ID < eligible[j].ID
	})

	k := 3
	if task.Requirements.Exclusive || task.Type == types.TaskTypeMLInference {
		k = 1
	}
	if k > len(eligible) {
		k = len(eligible)
	}
	return eligible[:k]
}

// Eligible applies the task's hard requirements to a single node
func Eligible(task *types.ComputeTask, node *types.ComputeNode) bool {
	req := task.Requirements
	caps := node.Capabilities

	if caps.CPUCores < req.MinCPUCores {
		return false
	}
	if caps.MemoryBytes < req.MinMemoryBytes {
		return false
	}
	if caps.GPUMemoryBytes < req.MinGPUMemoryBytes {
		return false
	}
	if !caps.Tags.ContainsAll(req.RequiredCapabilities) {
		return false
	}
	if req.MaxLatencyMs > 0 && caps.Network.LatencyMs > req.MaxLatencyMs {
		return false
	}
	return true
}

// Score computes the placement score of a node for a task
func (s *Scorer) Score(task *types.ComputeTask, node *types.ComputeNode, hints Hints) float64 {
	w := s.weights
	req := task.Requirements
	caps := node.Capabilities

	score := w.CPUFree*(100-node.Usage.CPUPercent) +
		w.MemoryFree*(100-node.Usage.MemoryPercent) +
		w.GPUFree*(100-node.Usage.GPUPercent)

	coreHeadroom := float64(caps.CPUCores-req.MinCPUCores) * 2
	if coreHeadroom > 20 {
		coreHeadroom = 20
	}
	if coreHeadroom > 0 {
		score += w.CoreHeadroom * coreHeadroom
	}

	memHeadroomMB := float64(caps.MemoryBytes-req.MinMemoryBytes) / (1024 * 1024)
	if memHeadroomMB > 15 {
		memHeadroomMB = 15
	}
	if memHeadroomMB > 0 {
		score += w.MemoryHeadroom * memHeadroomMB
	}

	if bonus := 50 - caps.Network.LatencyMs; bonus > 0 {
		score += w.LatencyBonus * bonus
	}

	region, zone := req.PreferredRegion, req.PreferredZone
	if region == "" {
		region = hints.PreferredRegion
	}
	if zone == "" {
		zone = hints.PreferredZone
	}
	if region != "" && node.Region == region {
		score += w.RegionAffinity
	}
	if zone != "" && node.Zone == zone {
		score += w.ZoneAffinity
	}

	if task.Type == types.TaskTypeMLInference && node.Type == types.NodeTypeEdge {
		score += w.EdgeInference
	}

	return score
}
