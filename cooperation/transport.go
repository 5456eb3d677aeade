// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cooperation implements the request-level state machines of
// spec.md §4.9: Local Get, Local Write, MSI invalidation, non-blocking
// placement deployment and lazy victim fetching. It is the glue between
// CacheWrapper, DirectoryTable, VictimTracker, PopularityAggregator and
// PlacementPlanner; it never decides transport details itself, calling
// out through Transport and BeaconClient instead (mirroring the
// teacher's networking/sender.Sender abstraction).
package cooperation

import (
	"context"

	"github.com/luxfi/covered/directory"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/placement"
	"github.com/luxfi/covered/popularity"
	"github.com/luxfi/covered/victim"
)

// Transport abstracts every genuinely cross-node data movement the
// cooperation protocol needs: fetching from a cooperating peer or the
// cloud origin, pushing a non-blocking placement, lazy victim fetch, and
// MSI invalidation delivery. A real deployment backs this with the wire
// codec over whatever network stack it chooses; tests back it with an
// in-process fake.
type Transport interface {
	// RedirectedGet fetches key from edge, a peer known (via directory
	// lookup) to hold a cooperative copy.
	RedirectedGet(ctx context.Context, edge keyspace.EdgeIndex, key keyspace.Key) (value []byte, found bool, err error)

	// GlobalGet/GlobalPut/GlobalDel talk to the cloud origin.
	GlobalGet(ctx context.Context, key keyspace.Key) (value []byte, found bool, err error)
	GlobalPut(ctx context.Context, key keyspace.Key, value []byte) error
	GlobalDel(ctx context.Context, key keyspace.Key) error

	// PlacementNotify pushes a non-blocking placement deployment to a
	// newly-selected edge (spec.md §4.9 BgplacePlacementNotify).
	PlacementNotify(ctx context.Context, edge keyspace.EdgeIndex, key keyspace.Key, value []byte, isValid bool, syncset victim.Syncset) error

	// VictimFetch drains extra victim cacheinfos from edge beyond its
	// last synced list (spec.md §7 MissingVictim lazy fetch).
	VictimFetch(ctx context.Context, edge keyspace.EdgeIndex, existing []keyspace.Key, requiredSize uint64) (additional []keyspace.Key, hasEnough bool, err error)

	// Invalidate delivers an MSI invalidation request to edge for key
	// (spec.md §4.9 Invalidation), satisfying directory.Invalidator for
	// beacons whose sharers live on other nodes.
	Invalidate(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error

	// MetadataUpdate delivers the supplemented Metadata-Update request
	// (SPEC_FULL.md §5 item 5) to edge, telling it whether a cooperative
	// copy of key now exists elsewhere.
	MetadataUpdate(ctx context.Context, edge keyspace.EdgeIndex, key keyspace.Key, mode directory.MetadataUpdateMode) error
}

// BeaconClient abstracts the beacon-side operations a requesting edge
// needs for key: directory lookup, admit/evict, writelock acquire/release,
// victim sync application and placement planning. LocalBeacon implements
// this directly when this process is the beacon for key; a remote
// deployment backs it with an RPC stub over the same interface.
type BeaconClient interface {
	DirectoryLookup(ctx context.Context, key keyspace.Key, requester keyspace.EdgeIndex) (isBeingWritten, hasValidDir bool, dirInfo directory.Info, hint *popularity.FastPathHint, err error)
	AdmitDirectory(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error
	EvictDirectory(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex, objectSize keyspace.ObjectSize, collected *popularity.Collected) error
	AcquireWritelock(ctx context.Context, key keyspace.Key, requester keyspace.EdgeIndex) (directory.LockResult, error)
	ReleaseWritelock(ctx context.Context, key keyspace.Key, requester keyspace.EdgeIndex, objectSize keyspace.ObjectSize, collected *popularity.Collected) error
	SyncVictims(ctx context.Context, fromEdge keyspace.EdgeIndex, s victim.Syncset) error
	Plan(ctx context.Context, key keyspace.Key, objectSize keyspace.ObjectSize, isGlobalCached bool, excludeEdge *keyspace.EdgeIndex) placement.Result

	// ClearForPlacement drops key from the PopularityAggregator once a
	// placement decision for it has committed (spec.md §4.7
	// clear_for_placement), so the edges it was just placed onto stop
	// being counted as uncached holders.
	ClearForPlacement(ctx context.Context, key keyspace.Key)
	Exists(ctx context.Context, key keyspace.Key) bool

	// ReportUncachedPopularity folds a piggybacked CollectedPopularity
	// into the beacon's PopularityAggregator for key, independent of any
	// admit/evict/release event (spec.md §4.9 "piggyback... CollectedPopularity").
	ReportUncachedPopularity(ctx context.Context, key keyspace.Key, objectSize keyspace.ObjectSize, edge keyspace.EdgeIndex, collected popularity.Collected, isGlobalCached bool)
}

// BeaconLocator resolves the BeaconClient responsible for key, mirroring
// spec.md §3 `beacon(key)`.
type BeaconLocator func(key keyspace.Key) BeaconClient
