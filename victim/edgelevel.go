// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package victim

import (
	"sort"

	"github.com/luxfi/covered/keyspace"
)

// EdgelevelMetadata tracks one peer edge's advertised victim cacheinfos
// plus its cache margin bytes (spec.md §3 EdgelevelVictimMetadata).
// Invariant EM1: victims is always kept sorted ascending by LocalReward.
type EdgelevelMetadata struct {
	w1, w2           float64
	CacheMarginBytes uint64
	victims          []Cacheinfo // ascending by LocalReward
	byKey            map[string]int
}

// NewEdgelevelMetadata returns an empty EdgelevelMetadata using weights
// w1, w2 to compute LocalReward ordering.
func NewEdgelevelMetadata(w1, w2 float64) *EdgelevelMetadata {
	return &EdgelevelMetadata{w1: w1, w2: w2, byKey: make(map[string]int)}
}

// Validate replaces the entire victim list and cache margin, used when a
// Complete VictimSyncset is received (spec.md §4.5 update_local_synced_victims).
func (m *EdgelevelMetadata) Validate(cacheMarginBytes uint64, victims []Cacheinfo) {
	m.CacheMarginBytes = cacheMarginBytes
	m.victims = append(m.victims[:0:0], victims...)
	sort.Slice(m.victims, func(i, j int) bool {
		return m.victims[i].LocalReward(m.w1, m.w2) < m.victims[j].LocalReward(m.w1, m.w2)
	})
	m.reindex()
}

func (m *EdgelevelMetadata) reindex() {
	m.byKey = make(map[string]int, len(m.victims))
	for i, v := range m.victims {
		m.byKey[v.Key.AsMapKey()] = i
	}
}

// UpdateCacheMarginBytes overwrites the tracked cache margin.
func (m *EdgelevelMetadata) UpdateCacheMarginBytes(v uint64) {
	m.CacheMarginBytes = v
}

// Victims returns a copy of the ascending-by-LocalReward victim list.
func (m *EdgelevelMetadata) Victims() []Cacheinfo {
	return append([]Cacheinfo(nil), m.victims...)
}

// Upsert inserts or updates a single victim cacheinfo at the position
// implied by its LocalReward, maintaining EM1 (spec.md: "admission adds
// at the correct position").
func (m *EdgelevelMetadata) Upsert(v Cacheinfo) {
	k := v.Key.AsMapKey()
	if i, ok := m.byKey[k]; ok {
		m.victims = append(m.victims[:i], m.victims[i+1:]...)
	}
	reward := v.LocalReward(m.w1, m.w2)
	i := sort.Search(len(m.victims), func(i int) bool {
		return m.victims[i].LocalReward(m.w1, m.w2) >= reward
	})
	m.victims = append(m.victims, Cacheinfo{})
	copy(m.victims[i+1:], m.victims[i:])
	m.victims[i] = v
	m.reindex()
}

// Remove deletes key's victim cacheinfo if present, returning it.
func (m *EdgelevelMetadata) Remove(key keyspace.Key) (Cacheinfo, bool) {
	i, ok := m.byKey[key.AsMapKey()]
	if !ok {
		return Cacheinfo{}, false
	}
	v := m.victims[i]
	m.victims = append(m.victims[:i], m.victims[i+1:]...)
	m.reindex()
	return v, true
}

// FindVictimsForObjectSize walks the victim list ascending by LocalReward
// (the cheapest-to-evict first) and accumulates victims until the
// cumulative ObjectSize covers objectSize-CacheMarginBytes (spec.md §4.5
// find_victims_for_placement, scenario S4). hasEnough is false if the
// full list was exhausted before the requirement was met.
func (m *EdgelevelMetadata) FindVictimsForObjectSize(objectSize keyspace.ObjectSize) (victims []Cacheinfo, totalReward keyspace.DeltaReward, hasEnough bool) {
	var required uint64
	if objectSize > m.CacheMarginBytes {
		required = objectSize - m.CacheMarginBytes
	}
	if required == 0 {
		return nil, 0, true
	}
	var accumulated uint64
	for _, v := range m.victims {
		if accumulated >= required {
			break
		}
		victims = append(victims, v)
		accumulated += v.ObjectSize
		totalReward += v.LocalReward(m.w1, m.w2)
	}
	return victims, totalReward, accumulated >= required
}

// RemoveVictimsForPlacement removes every key in keys, summing their
// ObjectSize, and reports whether the list is now empty (spec.md §3
// EdgelevelVictimMetadata.removeVictimsForPlacement).
func (m *EdgelevelMetadata) RemoveVictimsForPlacement(keys []keyspace.Key) (removedBytes uint64, empty bool) {
	for _, k := range keys {
		if v, ok := m.Remove(k); ok {
			removedBytes += v.ObjectSize
		}
	}
	return removedBytes, len(m.victims) == 0
}

// Len reports the number of tracked victim cacheinfos.
func (m *EdgelevelMetadata) Len() int { return len(m.victims) }
