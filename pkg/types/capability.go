package types

import (
	"encoding/json"
	"sort"
)

// Capability is an enumerable feature tag a node advertises and a task may require
type Capability string

const (
	CapabilityAI        Capability = "ai"
	CapabilityML        Capability = "ml"
	CapabilityVision    Capability = "vision"
	CapabilityInference Capability = "inference"
	CapabilityTraining  Capability = "training"
	CapabilityStorage   Capability = "storage"
	CapabilityRealtime  Capability = "realtime"
	CapabilityGPU       Capability = "gpu"
)

// CapabilitySet is a set of capability tags with subset containment.
// Serializes as a sorted string array for stable wire output.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given tags
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts a capability into the set
func (s CapabilitySet) Add(c Capability) {
	s[c] = struct{}{}
}

// Contains reports whether the set holds the given capability
func (s CapabilitySet) Contains(c Capability) bool {
	_, ok := s[c]
	return ok
}

// ContainsAll reports whether other is a subset of s
func (s CapabilitySet) ContainsAll(other CapabilitySet) bool {
	for c := range other {
		if _, ok := s[c]; !ok {
			return false
		}
	}
	return true
}

// Slice returns the capabilities sorted ascending
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes an array of tags
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var caps []Capability
	if err := json.Unmarshal(data, &caps); err != nil {
		return err
	}
	*s = NewCapabilitySet(caps...)
	return nil
}

// MarshalYAML encodes the set as a sorted array
func (s CapabilitySet) MarshalYAML() (interface{}, error) {
	return s.Slice(), nil
}

// UnmarshalYAML decodes an array of tags
func (s *CapabilitySet) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var caps []Capability
	if err := unmarshal(&caps); err != nil {
		return err
	}
	*s = NewCapabilitySet(caps...)
	return nil
}
