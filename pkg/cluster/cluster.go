package cluster

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gridmesh/gridmesh/pkg/log"
	"github.com/gridmesh/gridmesh/pkg/scorer"
	"github.com/gridmesh/gridmesh/pkg/types"
	"github.com/rs/zerolog"
)

// Aggregator maintains edge-cluster membership and capability rollups.
// It is purely a grouping: the hints it exposes bias the scorer, but it
// has no scheduling authority of its own. The coordinator serializes all
// access.
type Aggregator struct {
	clusters map[string]*types.EdgeCluster
	nodeToCl map[string]string
	logger   zerolog.Logger
}

// New creates an empty aggregator
func New() *Aggregator {
	return &Aggregator{
		clusters: make(map[string]*types.EdgeCluster),
		nodeToCl: make(map[string]string),
		logger:   log.WithComponent("clusters"),
	}
}

// Create registers a cluster
func (a *Aggregator) Create(spec *types.EdgeCluster) (*types.EdgeCluster, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil cluster spec", types.ErrInvalidSpec)
	}
	c := *spec
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if _, exists := a.clusters[c.ID]; exists {
		return nil, fmt.Errorf("%w: cluster %s already exists", types.ErrInvalidSpec, c.ID)
	}
	types.ApplyClusterDefaults(&c)
	c.NodeIDs = nil
	c.CreatedAt = time.Now()

	a.clusters[c.ID] = &c
	a.logger.Info().Str("cluster_id", c.ID).Str("region", c.Region).Msg("cluster created")
	return &c, nil
}

// Get returns a cluster by id
func (a *Aggregator) Get(id string) (*types.EdgeCluster, error) {
	c, ok := a.clusters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrClusterNotFound, id)
	}
	return c, nil
}

// List returns all clusters sorted by id
func (a *Aggregator) List() []*types.EdgeCluster {
	out := make([]*types.EdgeCluster, 0, len(a.clusters))
	for _, c := range a.clusters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddNode places a node into a cluster. A node belongs to at most one
// cluster; adding it again moves it.
func (a *Aggregator) AddNode(clusterID, nodeID string, lookup NodeLookup) error {
	c, ok := a.clusters[clusterID]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrClusterNotFound, clusterID)
	}
	if prev, ok := a.nodeToCl[nodeID]; ok {
		a.removeMember(a.clusters[prev], nodeID)
		a.refresh(a.clusters[prev], lookup)
	}
	c.NodeIDs = append(c.NodeIDs, nodeID)
	sort.Strings(c.NodeIDs)
	a.nodeToCl[nodeID] = clusterID
	a.refresh(c, lookup)
	return nil
}

// RemoveNode detaches a node from a cluster
func (a *Aggregator) RemoveNode(clusterID, nodeID string, lookup NodeLookup) error {
	c, ok := a.clusters[clusterID]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrClusterNotFound, clusterID)
	}
	if a.nodeToCl[nodeID] != clusterID {
		return fmt.Errorf("%w: node %s not in cluster %s", types.ErrNodeNotFound, nodeID, clusterID)
	}
	a.removeMember(c, nodeID)
	delete(a.nodeToCl, nodeID)
	a.refresh(c, lookup)
	return nil
}

// NodeRemoved drops a node from whichever cluster holds it (registry
// unregister path).
func (a *Aggregator) NodeRemoved(nodeID string, lookup NodeLookup) {
	clusterID, ok := a.nodeToCl[nodeID]
	if !ok {
		return
	}
	c := a.clusters[clusterID]
	a.removeMember(c, nodeID)
	delete(a.nodeToCl, nodeID)
	a.refresh(c, lookup)
}

// ClusterFor returns the cluster a node belongs to, if any
func (a *Aggregator) ClusterFor(nodeID string) (*types.EdgeCluster, bool) {
	id, ok := a.nodeToCl[nodeID]
	if !ok {
		return nil, false
	}
	return a.clusters[id], true
}

// HintsFor returns locality hints for a task with data-locality enabled:
// the region/zone of the cluster holding the node its dependencies ran on
// would be ideal, but without that provenance the densest cluster's
// locality is used.
func (a *Aggregator) HintsFor(task *types.ComputeTask) scorer.Hints {
	if !task.Constraints.DataLocality {
		return scorer.Hints{}
	}
	var best *types.EdgeCluster
	for _, c := range a.List() {
		if len(c.NodeIDs) == 0 {
			continue
		}
		if best == nil || len(c.NodeIDs) > len(best.NodeIDs) {
			best = c
		}
	}
	if best == nil {
		return scorer.Hints{}
	}
	return scorer.Hints{PreferredRegion: best.Region, PreferredZone: best.Zone}
}

// NodeLookup resolves node ids to live nodes (the registry)
type NodeLookup func(id string) (*types.ComputeNode, error)

// Refresh recomputes a cluster's rollup after member resources changed
func (a *Aggregator) Refresh(clusterID string, lookup NodeLookup) error {
	c, ok := a.clusters[clusterID]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrClusterNotFound, clusterID)
	}
	a.refresh(c, lookup)
	return nil
}

// RefreshFor recomputes the rollup of the cluster containing nodeID
func (a *Aggregator) RefreshFor(nodeID string, lookup NodeLookup) {
	if clusterID, ok := a.nodeToCl[nodeID]; ok {
		a.refresh(a.clusters[clusterID], lookup)
	}
}

func (a *Aggregator) removeMember(c *types.EdgeCluster, nodeID string) {
	for i, id := range c.NodeIDs {
		if id == nodeID {
			c.NodeIDs = append(c.NodeIDs[:i], c.NodeIDs[i+1:]...)
			return
		}
	}
}

func (a *Aggregator) refresh(c *types.EdgeCluster, lookup NodeLookup) {
	var rollup types.ClusterRollup
	n := 0
	for _, nodeID := range c.NodeIDs {
		node, err := lookup(nodeID)
		if err != nil {
			continue
		}
		rollup.TotalCPUCores += node.Capabilities.CPUCores
		rollup.TotalMemoryBytes += node.Capabilities.MemoryBytes
		rollup.TotalGPUCount += node.Capabilities.GPUCount
		rollup.MeanCPUPercent += node.Usage.CPUPercent
		rollup.MeanMemoryPercent += node.Usage.MemoryPercent
		n++
	}
	if n > 0 {
		rollup.MeanCPUPercent /= float64(n)
		rollup.MeanMemoryPercent /= float64(n)
	}
	c.Rollup = rollup
}

// ScaleDownCandidates returns the excess members to drain when scaling a
// cluster to target, least-loaded first so migration cost stays low.
func (a *Aggregator) ScaleDownCandidates(clusterID string, target int, lookup NodeLookup) ([]string, error) {
	c, ok := a.clusters[clusterID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrClusterNotFound, clusterID)
	}
	excess := len(c.NodeIDs) - target
	if excess <= 0 {
		return nil, nil
	}

	members := make([]*types.ComputeNode, 0, len(c.NodeIDs))
	for _, id := range c.NodeIDs {
		if node, err := lookup(id); err == nil {
			members = append(members, node)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Workload.ActiveTasks != members[j].Workload.ActiveTasks {
			return members[i].Workload.ActiveTasks < members[j].Workload.ActiveTasks
		}
		return members[i].ID < members[j].ID
	})

	if excess > len(members) {
		excess = len(members)
	}
	out := make([]string, 0, excess)
	for _, node := range members[:excess] {
		out = append(out, node.ID)
	}
	return out, nil
}
