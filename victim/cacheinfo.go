// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package victim implements the per-edge victim tracking and cross-edge
// victim synchronization machinery of spec.md §3/§4.5: VictimCacheinfo,
// EdgelevelVictimMetadata and VictimTracker.
package victim

import "github.com/luxfi/covered/keyspace"

// Cacheinfo summarizes one cached object considered a candidate victim at
// its hosting edge (spec.md §3 VictimCacheinfo). A Cacheinfo at rest in a
// Tracker is always complete (invariant VC1); deduplication exists only
// on the wire, in package wire.
type Cacheinfo struct {
	Key                      keyspace.Key
	ObjectSize               keyspace.ObjectSize
	LocalCachedPopularity    keyspace.Popularity
	RedirectedCachedPopularity keyspace.Popularity
}

// LocalReward computes w1*LocalCachedPopularity + w2*RedirectedCachedPopularity
// (spec.md §3 "LocalReward").
func (c Cacheinfo) LocalReward(w1, w2 float64) keyspace.DeltaReward {
	return w1*c.LocalCachedPopularity + w2*c.RedirectedCachedPopularity
}
