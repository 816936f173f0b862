package types

import "time"

// Default constraint values applied to submitted specs
const (
	DefaultMaxRetries        = 3
	DefaultTaskTimeout       = 5 * time.Minute
	DefaultFailureThreshold  = 0.5
	DefaultReplicationFactor = 1
)

// ApplyTaskDefaults fills zero-valued fields of a submitted task spec
func ApplyTaskDefaults(t *ComputeTask) {
	if t.Type == "" {
		t.Type = TaskTypeGeneric
	}
	if t.Constraints.MaxRetries == 0 {
		t.Constraints.MaxRetries = DefaultMaxRetries
	}
	if t.Constraints.Timeout == 0 {
		t.Constraints.Timeout = DefaultTaskTimeout
	}
	if t.Constraints.SecurityLevel == "" {
		t.Constraints.SecurityLevel = SecurityStandard
	}
	if t.Requirements.RequiredCapabilities == nil {
		t.Requirements.RequiredCapabilities = NewCapabilitySet()
	}
	t.RetriesLeft = t.Constraints.MaxRetries
}

// ApplyNodeDefaults fills zero-valued fields of a node registration spec
func ApplyNodeDefaults(n *ComputeNode) {
	if n.Type == "" {
		n.Type = NodeTypeCloud
	}
	if n.Capabilities.CPUCores == 0 {
		n.Capabilities.CPUCores = 1
	}
	if n.Capabilities.Tags == nil {
		n.Capabilities.Tags = NewCapabilitySet()
	}
}

// ApplyClusterDefaults fills zero-valued fields of a cluster spec
func ApplyClusterDefaults(c *EdgeCluster) {
	if c.Policy == "" {
		c.Policy = PolicyLeastLoaded
	}
	if c.ReplicationFactor == 0 {
		c.ReplicationFactor = DefaultReplicationFactor
	}
	if c.Consistency == "" {
		c.Consistency = ConsistencyEventual
	}
}
