// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the process-wide, immutable tuning constants for
// the COVERED coordination core. A single Context is built once at
// process init and passed explicitly to every subsystem constructor;
// there is no mutable package-level state.
package config

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Reward is the scalar domain shared by popularity, admission benefit and
// eviction cost (spec.md §3 "Popularity").
type Reward = float64

// Context is the immutable set of process-wide constants threaded through
// DirectoryTable, VictimTracker, PopularityAggregator and PlacementPlanner.
type Context struct {
	// EdgeCount is N, the fixed number of edge nodes (spec.md §3).
	EdgeCount int

	// W1, W2 weight LocalCachedPopularity and RedirectedCachedPopularity
	// into LocalReward (spec.md §3 EdgelevelVictimMetadata).
	W1, W2 Reward

	// TopKEdgeCount (K_edge) bounds the TopK list kept per
	// AggregatedUncachedPopularity entry.
	TopKEdgeCount int

	// PeredgeSyncedVictimCount bounds the complete victim cacheinfos a
	// single edge advertises (spec.md §6, default 16).
	PeredgeSyncedVictimCount int

	// PopularityAggregationCapacityBytes bounds the PopularityAggregator's
	// total resident metadata.
	PopularityAggregationCapacityBytes uint64

	// LocalUncachedMetadataCapBytes bounds the per-edge local-uncached
	// tracking; Default sets it to a flat 1 MiB.
	LocalUncachedMetadataCapBytes uint64

	// MinAdmissionBenefit is the threshold below which the placement
	// planner returns an empty placement edgeset.
	MinAdmissionBenefit Reward

	// FastPathEnabled toggles the §4.8 step 5 self-election shortcut.
	FastPathEnabled bool

	// InvalidationAckTimeoutRetries bounds InvalidationTimeout retries
	// before a writelock acquisition aborts (spec.md §7).
	InvalidationAckTimeoutRetries int

	// MaxObjectSizeBytes rejects admission above this size with
	// ErrCapacityExceeded (spec.md §7 "Capacity").
	MaxObjectSizeBytes uint64
}

// Validate rejects an obviously-inconsistent Context before it is wired
// into any subsystem, mirroring the teacher's config/validator.go style of
// failing fast on bad tuning rather than producing silent misbehavior.
func (c Context) Validate() error {
	if c.EdgeCount <= 0 {
		return fmt.Errorf("config: edge count must be positive, got %d", c.EdgeCount)
	}
	if c.TopKEdgeCount <= 0 {
		return fmt.Errorf("config: topk edge count must be positive, got %d", c.TopKEdgeCount)
	}
	if c.PeredgeSyncedVictimCount <= 0 {
		return fmt.Errorf("config: peredge synced victim count must be positive, got %d", c.PeredgeSyncedVictimCount)
	}
	if c.W1 < 0 || c.W2 < 0 {
		return fmt.Errorf("config: local reward weights must be nonnegative, got w1=%v w2=%v", c.W1, c.W2)
	}
	return nil
}

// BeaconOf deterministically selects the EdgeIndex that beacons key,
// spec.md §3 `beacon(key)`. Hashing with xxhash gives a stable,
// uniformly-distributed assignment without growing the Context with a
// lookup table.
func (c Context) BeaconOf(key []byte) int {
	h := xxhash.Sum64(key)
	return int(h % uint64(c.EdgeCount))
}

// Default returns conservative defaults matching spec.md §6's documented
// defaults, analogous to the teacher's config.DefaultParams().
func Default(edgeCount int) Context {
	return Context{
		EdgeCount:                          edgeCount,
		W1:                                 1.0,
		W2:                                 1.0,
		TopKEdgeCount:                      8,
		PeredgeSyncedVictimCount:           16,
		PopularityAggregationCapacityBytes: 64 << 20,
		LocalUncachedMetadataCapBytes:      1 << 20,
		MinAdmissionBenefit:                0,
		FastPathEnabled:                    true,
		InvalidationAckTimeoutRetries:      3,
		MaxObjectSizeBytes:                 64 << 20,
	}
}
