// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validity implements the per-edge ValidityMap of spec.md §3/§4.2:
// a single Key -> bool structure guarded by one read-write lock. Per-entry
// contention is absorbed by the caller's PerkeyRwlock (spec.md §4.1); this
// lock only guards structural mutation of the map itself.
package validity

import (
	"sync"

	"github.com/luxfi/covered/keyspace"
)

// Map is the per-edge validity table (spec.md invariant V1: entry absent
// means the edge does not track the key; Invalid means a stale copy that
// must be refreshed on next read; Valid means the edge may serve locally).
type Map struct {
	mu    sync.RWMutex
	valid map[string]bool
}

// New returns an empty ValidityMap.
func New() *Map {
	return &Map{valid: make(map[string]bool)}
}

// IsValid returns (present, valid) for key, spec.md §4.2.
func (m *Map) IsValid(key keyspace.Key) (present, valid bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.valid[key.AsMapKey()]
	return ok, ok && v
}

// Validate marks key Valid, inserting it if absent, and returns whether it
// previously existed.
func (m *Map) Validate(key keyspace.Key) (existed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed = m.valid[key.AsMapKey()]
	m.valid[key.AsMapKey()] = true
	return existed
}

// Invalidate marks key Invalid, inserting it if absent, and returns
// whether it previously existed. This is the entry point for MSI
// invalidation (spec.md §4.3 invalidate_key_for_local_cached_object):
// it sets Invalid whether or not the key was previously cached.
func (m *Map) Invalidate(key keyspace.Key) (existed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed = m.valid[key.AsMapKey()]
	m.valid[key.AsMapKey()] = false
	return existed
}

// Erase removes key's entry entirely (called on eviction) and returns
// whether it previously existed.
func (m *Map) Erase(key keyspace.Key) (existed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed = m.valid[key.AsMapKey()]
	delete(m.valid, key.AsMapKey())
	return existed
}

// SizeForCapacity reports the metadata size counted toward capacity
// accounting: only the flag, not the key bytes, since key bytes are
// already counted by the local cache that holds the object (spec.md §4.2
// comment, mirrored from the original validity_map.c).
func (m *Map) SizeForCapacity() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.valid))
}
