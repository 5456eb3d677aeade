// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package victim

import (
	"sync"

	"github.com/luxfi/covered/coverederrs"
	"github.com/luxfi/covered/directory"
	"github.com/luxfi/covered/keyspace"
)

// SyncMode discriminates a Syncset's wire form (spec.md §3 VictimSyncset).
type SyncMode int

const (
	// SyncComplete carries the full victim list and beaconed dirinfo sets.
	SyncComplete SyncMode = iota
	// SyncDelta carries only what changed since the last syncset built for
	// the destination.
	SyncDelta
)

// Syncset is the domain-level form of a VictimSyncset (spec.md §4.6); the
// wire package is responsible for its binary encoding, including the
// dedup/compression bitmap described there.
type Syncset struct {
	Mode                  SyncMode
	Generation            uint64
	CacheMarginBytes      uint64 // valid when Mode == SyncComplete
	CacheMarginDeltaBytes int32  // valid when Mode == SyncDelta
	Victims               []Cacheinfo
	RemovedVictims        []keyspace.Key // Delta only
	BeaconedDirinfo       map[string]*directory.DirinfoSet
	RemovedBeaconedDirinfo []keyspace.Key // Delta only

	// Priors holds, for a Delta sync, every Cacheinfo of the previous
	// snapshot built for the destination, keyed by Key.AsMapKey(). The
	// wire encoder consults it to dedup unchanged fields per spec.md §6;
	// it carries nothing on the wire itself.
	Priors map[string]Cacheinfo
}

type destState struct {
	generation  uint64
	cacheMargin uint64
	victims     map[string]Cacheinfo
	dirinfo     map[string]*directory.DirinfoSet
}

// Tracker is the per-edge victim tracking and synchronization structure of
// spec.md §4.5. It serves two roles from the same node: receiver, indexed
// by peer EdgeIndex, holding each peer's advertised EdgelevelMetadata
// (used when this node is the beacon for some key); and sender, holding
// this edge's own locally-advertised victim set plus per-destination
// generation state used to compute the smallest recoverable Syncset.
type Tracker struct {
	w1, w2 float64

	mu             sync.RWMutex
	perPeer        map[keyspace.EdgeIndex]*EdgelevelMetadata
	dirinfo        map[keyspace.EdgeIndex]map[string]*directory.DirinfoSet
	peerGeneration map[keyspace.EdgeIndex]uint64

	localMu         sync.Mutex
	local           *EdgelevelMetadata
	localDirinfo    map[string]*directory.DirinfoSet
	lastSentPerDest map[keyspace.EdgeIndex]*destState
	nextGeneration  uint64
}

// NewTracker returns an empty Tracker using weights w1, w2 to order victim
// lists by LocalReward (spec.md §3 "LocalReward").
func NewTracker(w1, w2 float64) *Tracker {
	return &Tracker{
		w1:              w1,
		w2:              w2,
		perPeer:         make(map[keyspace.EdgeIndex]*EdgelevelMetadata),
		dirinfo:         make(map[keyspace.EdgeIndex]map[string]*directory.DirinfoSet),
		peerGeneration:  make(map[keyspace.EdgeIndex]uint64),
		local:           NewEdgelevelMetadata(w1, w2),
		localDirinfo:    make(map[string]*directory.DirinfoSet),
		lastSentPerDest: make(map[keyspace.EdgeIndex]*destState),
	}
}

func (t *Tracker) peerSlot(peer keyspace.EdgeIndex) *EdgelevelMetadata {
	m, ok := t.perPeer[peer]
	if !ok {
		m = NewEdgelevelMetadata(t.w1, t.w2)
		t.perPeer[peer] = m
		t.dirinfo[peer] = make(map[string]*directory.DirinfoSet)
	}
	return m
}

// UpdateLocalSyncedVictims is the receiver side of a Syncset from peer
// (spec.md §4.5 update_local_synced_victims). Complete syncsets replace
// the peer's slot outright; Delta syncsets merge additions/changes and
// remove entries named in RemovedVictims/RemovedBeaconedDirinfo.
func (t *Tracker) UpdateLocalSyncedVictims(peer keyspace.EdgeIndex, s Syncset) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch s.Mode {
	case SyncComplete:
		m := NewEdgelevelMetadata(t.w1, t.w2)
		m.Validate(s.CacheMarginBytes, s.Victims)
		t.perPeer[peer] = m
		d := make(map[string]*directory.DirinfoSet, len(s.BeaconedDirinfo))
		for k, v := range s.BeaconedDirinfo {
			d[k] = v
		}
		t.dirinfo[peer] = d
		t.peerGeneration[peer] = s.Generation
	case SyncDelta:
		if _, ok := t.peerGeneration[peer]; !ok {
			return coverederrs.ErrStaleVictimSync
		}
		m := t.peerSlot(peer)
		newMargin := int64(m.CacheMarginBytes) + int64(s.CacheMarginDeltaBytes)
		if newMargin < 0 {
			newMargin = 0
		}
		m.UpdateCacheMarginBytes(uint64(newMargin))
		for _, v := range s.Victims {
			m.Upsert(v)
		}
		for _, k := range s.RemovedVictims {
			m.Remove(k)
		}
		d := t.dirinfo[peer]
		for k, v := range s.BeaconedDirinfo {
			d[k] = v
		}
		for _, k := range s.RemovedBeaconedDirinfo {
			delete(d, k.AsMapKey())
		}
		t.peerGeneration[peer] = s.Generation
	default:
		coverederrs.AssertionViolation("victim: unknown sync mode %d", s.Mode)
	}
	return nil
}

// UpdateSyncedVictimDirinfo installs or updates the DirinfoSet this node
// beacons for key, on behalf of peer's advertised victim (spec.md VT2:
// every key present in a per-peer list has a DirinfoSet entry with
// refcount ≥ 1 at this beacon).
func (t *Tracker) UpdateSyncedVictimDirinfo(peer keyspace.EdgeIndex, key keyspace.Key, set *directory.DirinfoSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerSlot(peer)
	t.dirinfo[peer][key.AsMapKey()] = set
}

// PeerVictims returns peer's currently tracked EdgelevelMetadata, or nil
// if this node tracks nothing for that peer.
func (t *Tracker) PeerVictims(peer keyspace.EdgeIndex) *EdgelevelMetadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.perPeer[peer]
}

// RemoveLocalVictim drops key from this edge's own locally-advertised
// victim set and releases its DirinfoSet entry once no cacheinfo
// references it (spec.md VT3).
func (t *Tracker) RemoveLocalVictim(key keyspace.Key) {
	t.localMu.Lock()
	defer t.localMu.Unlock()
	if _, ok := t.local.Remove(key); ok {
		delete(t.localDirinfo, key.AsMapKey())
	}
}

// UpsertLocalVictim records or refreshes a candidate victim cacheinfo
// this edge itself holds, to be advertised on the next GetVictimSyncset.
func (t *Tracker) UpsertLocalVictim(v Cacheinfo, beaconed *directory.DirinfoSet) {
	t.localMu.Lock()
	defer t.localMu.Unlock()
	t.local.Upsert(v)
	if beaconed != nil {
		t.localDirinfo[v.Key.AsMapKey()] = beaconed
	}
}

// UpdateLocalCacheMargin overwrites this edge's own cache margin bytes.
func (t *Tracker) UpdateLocalCacheMargin(marginBytes uint64) {
	t.localMu.Lock()
	defer t.localMu.Unlock()
	t.local.UpdateCacheMarginBytes(marginBytes)
}

// GetVictimSyncset computes the smallest Syncset that lets dest recover
// this edge's current local state (spec.md §4.5 get_victim_syncset): the
// first sync to a destination is always Complete; subsequent syncs are
// Delta against the last snapshot built for that destination. The
// snapshot is recorded here, when the syncset is built, whether or not
// the destination later applies it.
func (t *Tracker) GetVictimSyncset(dest keyspace.EdgeIndex) Syncset {
	t.localMu.Lock()
	defer t.localMu.Unlock()

	victims := t.local.Victims()
	curVictims := make(map[string]Cacheinfo, len(victims))
	for _, v := range victims {
		curVictims[v.Key.AsMapKey()] = v
	}
	curDirinfo := make(map[string]*directory.DirinfoSet, len(t.localDirinfo))
	for k, v := range t.localDirinfo {
		curDirinfo[k] = v
	}

	prev, ok := t.lastSentPerDest[dest]
	t.nextGeneration++
	gen := t.nextGeneration

	if !ok {
		t.lastSentPerDest[dest] = &destState{
			generation:  gen,
			cacheMargin: t.local.CacheMarginBytes,
			victims:     curVictims,
			dirinfo:     curDirinfo,
		}
		return Syncset{
			Mode:             SyncComplete,
			Generation:       gen,
			CacheMarginBytes: t.local.CacheMarginBytes,
			Victims:          victims,
			BeaconedDirinfo:  curDirinfo,
		}
	}

	s := Syncset{
		Mode:                  SyncDelta,
		Generation:            gen,
		CacheMarginDeltaBytes: int32(int64(t.local.CacheMarginBytes) - int64(prev.cacheMargin)),
		BeaconedDirinfo:       make(map[string]*directory.DirinfoSet),
		Priors:                prev.victims,
	}
	for k, v := range curVictims {
		if old, existed := prev.victims[k]; !existed || !cacheinfoEqual(old, v) {
			s.Victims = append(s.Victims, v)
		}
	}
	for k := range prev.victims {
		if _, stillPresent := curVictims[k]; !stillPresent {
			s.RemovedVictims = append(s.RemovedVictims, keyspace.Key(k))
		}
	}
	for k, v := range curDirinfo {
		if old, existed := prev.dirinfo[k]; !existed || old != v {
			s.BeaconedDirinfo[k] = v
		}
	}
	for k := range prev.dirinfo {
		if _, stillPresent := curDirinfo[k]; !stillPresent {
			s.RemovedBeaconedDirinfo = append(s.RemovedBeaconedDirinfo, keyspace.Key(k))
		}
	}

	prev.generation = gen
	prev.cacheMargin = t.local.CacheMarginBytes
	prev.victims = curVictims
	prev.dirinfo = curDirinfo
	return s
}

// RecoverStaleSync drops the tracked last-sent snapshot for dest, forcing
// the next GetVictimSyncset call to emit a fresh Complete syncset. Called
// when dest reports ErrStaleVictimSync (spec.md §7 StaleVictimSync).
func (t *Tracker) RecoverStaleSync(dest keyspace.EdgeIndex) {
	t.localMu.Lock()
	defer t.localMu.Unlock()
	delete(t.lastSentPerDest, dest)
}

// FindVictimsForPlacement consults each candidate peer's tracked
// EdgelevelMetadata to estimate the eviction cost of placing an object of
// objectSize at that edge (spec.md §4.8 step 2). A candidate absent from
// the tracker (no victims advertised yet) is treated as having none.
func (t *Tracker) FindVictimsForPlacement(candidates []keyspace.EdgeIndex, objectSize keyspace.ObjectSize) map[keyspace.EdgeIndex]PlacementEstimate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[keyspace.EdgeIndex]PlacementEstimate, len(candidates))
	for _, c := range candidates {
		m, ok := t.perPeer[c]
		if !ok {
			out[c] = PlacementEstimate{HasEnough: true}
			continue
		}
		victims, totalReward, hasEnough := m.FindVictimsForObjectSize(objectSize)
		out[c] = PlacementEstimate{
			Victims:     victims,
			TotalReward: totalReward,
			HasEnough:   hasEnough,
		}
	}
	return out
}

// PlacementEstimate is one candidate edge's eviction cost estimate for
// admitting a new object, as consumed by the placement planner.
type PlacementEstimate struct {
	Victims     []Cacheinfo
	TotalReward keyspace.DeltaReward
	HasEnough   bool
}

func cacheinfoEqual(a, b Cacheinfo) bool {
	return a.ObjectSize == b.ObjectSize &&
		a.LocalCachedPopularity == b.LocalCachedPopularity &&
		a.RedirectedCachedPopularity == b.RedirectedCachedPopularity &&
		a.Key.AsMapKey() == b.Key.AsMapKey()
}
