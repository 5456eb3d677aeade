// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stats implements the supplemented per-key/per-group hit
// counters of SPEC_FULL.md §5 item 1, grounded on the original's
// key_level_statistics.*/perkey_statistics_map.*/pergroup_statistics_map.*:
// a lightweight frequency counter per key, plus keys bucketed into
// fixed-size groups for rollup reporting.
package stats

import (
	"sync"

	"github.com/luxfi/covered/keyspace"
)

// GroupID identifies a reporting bucket of keys. New keys fill the current
// group until it holds maxGroupKeyCount keys, then the next GroupID is
// opened (original's assignGroupIdForNewKey_).
type GroupID uint64

// PerKeyCounters is one key's local/redirected/cloud hit tally plus the
// group it was bucketed into (original's KeyLevelStatistics).
type PerKeyCounters struct {
	GroupID        GroupID
	LocalHits      uint64
	RedirectedHits uint64
	CloudHits      uint64
}

// Frequency is the total hit count across all sources, the original's
// getFrequency.
func (c PerKeyCounters) Frequency() uint64 {
	return c.LocalHits + c.RedirectedHits + c.CloudHits
}

// GroupCounters is the rollup of every key assigned to one GroupID
// (original's GroupLevelStatistics, reconstructed from its members since
// the filtered source omits group_level_statistics.*).
type GroupCounters struct {
	KeyCount       uint64
	LocalHits      uint64
	RedirectedHits uint64
	CloudHits      uint64
}

// PerGroupAggregator owns both the per-key map and the group-size-bounded
// bucketing of new keys into GroupIDs (original's PergroupStatisticsMap /
// PerkeyStatisticsMap, merged here since Go gives CacheWrapper a single
// collaborator to hold instead of the original's two parallel maps).
type PerGroupAggregator struct {
	mu sync.Mutex

	maxGroupKeyCount uint64
	curGroupID       GroupID
	curGroupKeyCount uint64

	perKey    map[string]*PerKeyCounters
	perGroup  map[GroupID]*GroupCounters
}

// NewPerGroupAggregator returns an aggregator bucketing at most
// maxGroupKeyCount keys per group before rolling over to a new GroupID.
func NewPerGroupAggregator(maxGroupKeyCount uint64) *PerGroupAggregator {
	if maxGroupKeyCount == 0 {
		maxGroupKeyCount = 1
	}
	return &PerGroupAggregator{
		maxGroupKeyCount: maxGroupKeyCount,
		perKey:           make(map[string]*PerKeyCounters),
		perGroup:         make(map[GroupID]*GroupCounters),
	}
}

// RecordLocalHit increments key's local-cache hit count, assigning it to
// a group on first observation (original's addForNewKey /
// updateForExistingKey dispatch).
func (a *PerGroupAggregator) RecordLocalHit(key keyspace.Key) {
	a.record(key, func(c *PerKeyCounters) { c.LocalHits++ }, func(g *GroupCounters) { g.LocalHits++ })
}

// RecordRedirectedHit increments key's cooperative-peer hit count.
func (a *PerGroupAggregator) RecordRedirectedHit(key keyspace.Key) {
	a.record(key, func(c *PerKeyCounters) { c.RedirectedHits++ }, func(g *GroupCounters) { g.RedirectedHits++ })
}

// RecordCloudHit increments key's cloud-origin hit count.
func (a *PerGroupAggregator) RecordCloudHit(key keyspace.Key) {
	a.record(key, func(c *PerKeyCounters) { c.CloudHits++ }, func(g *GroupCounters) { g.CloudHits++ })
}

func (a *PerGroupAggregator) record(key keyspace.Key, onKey func(*PerKeyCounters), onGroup func(*GroupCounters)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key.AsMapKey()
	c, ok := a.perKey[k]
	if !ok {
		c = &PerKeyCounters{GroupID: a.assignGroupIDLocked()}
		a.perKey[k] = c
		g, ok := a.perGroup[c.GroupID]
		if !ok {
			g = &GroupCounters{}
			a.perGroup[c.GroupID] = g
		}
		g.KeyCount++
	}
	onKey(c)
	onGroup(a.perGroup[c.GroupID])
}

func (a *PerGroupAggregator) assignGroupIDLocked() GroupID {
	a.curGroupKeyCount++
	if a.curGroupKeyCount > a.maxGroupKeyCount {
		a.curGroupID++
		a.curGroupKeyCount = 1
	}
	return a.curGroupID
}

// Get returns a snapshot of key's counters, if any have been recorded.
func (a *PerGroupAggregator) Get(key keyspace.Key) (PerKeyCounters, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.perKey[key.AsMapKey()]
	if !ok {
		return PerKeyCounters{}, false
	}
	return *c, true
}

// GroupSnapshot returns a snapshot of group's rollup, if it exists.
func (a *PerGroupAggregator) GroupSnapshot(group GroupID) (GroupCounters, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.perGroup[group]
	if !ok {
		return GroupCounters{}, false
	}
	return *g, true
}

// GroupCount reports how many groups currently hold at least one key.
func (a *PerGroupAggregator) GroupCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.perGroup)
}
