// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package directory implements the beacon-side directory protocol of
// spec.md §3/§4.4: DirectoryEntry, the MSI write-lock state machine, and
// the DirinfoSet / Edgeset wire-adjacent value types it and VictimTracker
// share.
package directory

import "github.com/luxfi/covered/keyspace"

// Info is one DirectoryInfo: the EdgeIndex of a sharer (spec.md §3).
type Info struct {
	TargetEdge keyspace.EdgeIndex
}

// DirinfoSet is the per-key set of DirectoryInfo that a node currently
// beacons (spec.md §3 DirinfoSet). It supports Complete/Compressed wire
// forms symmetrically via package wire; in memory it is always complete.
type DirinfoSet struct {
	edges map[keyspace.EdgeIndex]struct{}
}

// NewDirinfoSet returns an empty DirinfoSet.
func NewDirinfoSet() *DirinfoSet {
	return &DirinfoSet{edges: make(map[keyspace.EdgeIndex]struct{})}
}

// Add inserts edge into the set.
func (d *DirinfoSet) Add(edge keyspace.EdgeIndex) {
	d.edges[edge] = struct{}{}
}

// Remove deletes edge from the set.
func (d *DirinfoSet) Remove(edge keyspace.EdgeIndex) {
	delete(d.edges, edge)
}

// Contains reports whether edge is in the set.
func (d *DirinfoSet) Contains(edge keyspace.EdgeIndex) bool {
	_, ok := d.edges[edge]
	return ok
}

// Len reports the set's cardinality.
func (d *DirinfoSet) Len() int { return len(d.edges) }

// List returns the set's members in unspecified order.
func (d *DirinfoSet) List() []keyspace.EdgeIndex {
	out := make([]keyspace.EdgeIndex, 0, len(d.edges))
	for e := range d.edges {
		out = append(out, e)
	}
	return out
}

// Edgeset is a plain, wire-serializable set of EdgeIndex used to carry a
// planned placement (spec.md §3 Edgeset).
type Edgeset map[keyspace.EdgeIndex]struct{}

// NewEdgeset builds an Edgeset from the given edges.
func NewEdgeset(edges ...keyspace.EdgeIndex) Edgeset {
	s := make(Edgeset, len(edges))
	for _, e := range edges {
		s[e] = struct{}{}
	}
	return s
}

// Add inserts edge into the set.
func (s Edgeset) Add(edge keyspace.EdgeIndex) { s[edge] = struct{}{} }

// Contains reports whether edge is a member.
func (s Edgeset) Contains(edge keyspace.EdgeIndex) bool {
	_, ok := s[edge]
	return ok
}

// List returns the set's members in unspecified order.
func (s Edgeset) List() []keyspace.EdgeIndex {
	out := make([]keyspace.EdgeIndex, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	return out
}
