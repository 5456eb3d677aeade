// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package localcache defines the LocalCache collaborator contract
// (spec.md §6) and two reference implementations. The core never
// specifies eviction policy internals (LRU, LRB, GL-Cache, CacheLib in
// the original system) -- it only ever calls through this interface, and
// assumes the implementation is internally thread-safe.
package localcache

import "github.com/luxfi/covered/keyspace"

// CustomFunc is the extension point for policy-specific behavior
// (spec.md §6 invoke_custom_function), e.g. transferring vtime between
// edges for a BestGuess-style policy. The core never depends on a
// specific name; a handful are documented here for reference.
type CustomFunc func(name string, param any) (any, error)

// Documented, non-exhaustive custom function names (spec.md §6: "all
// names used are enumerated in the baseline headers and are not part of
// the core contract").
const (
	FuncTransferVTime    = "transfer_vtime"
	FuncRebalanceMargin  = "rebalance_margin"
	FuncSetMetadataMode  = "metadata_mode"
)

// VictimKeyset is a candidate eviction set with known aggregate size,
// returned by GetVictimKeys.
type VictimKeyset struct {
	Keys       []keyspace.Key
	TotalBytes uint64
}

// LocalCache is the capability set the core requires of a per-edge cache
// engine (spec.md §6).
type LocalCache interface {
	// Get returns (cached, value) for key without mutating contents; an
	// implementation may update internal popularity counters as a side
	// effect.
	Get(key keyspace.Key) (cached bool, value []byte)

	// Update overwrites key's contents if cached, returning whether it
	// was cached. It never admits a new key.
	Update(key keyspace.Key, value []byte) (cached bool)

	// Admit inserts key with value, valid as given. Admission failure
	// (object too large) is reported by the caller consulting
	// SizeForCapacity/MaxObjectSizeBytes before calling Admit; Admit
	// itself is unconditional.
	Admit(key keyspace.Key, value []byte, isValid bool)

	// EvictWithGivenKey evicts exactly key if present, returning its
	// value and whether it was present.
	EvictWithGivenKey(key keyspace.Key) (value []byte, evicted bool)

	// EvictNoGivenKey evicts internally-chosen victims until at least
	// requiredSize bytes have been freed, returning the evicted pairs.
	EvictNoGivenKey(requiredSize uint64) map[string][]byte

	// GetVictimKeys collects candidate eviction keys not already in
	// existing until at least requiredSize bytes are covered, without
	// evicting them.
	// hasEnough is false if fewer than requiredSize bytes were found.
	GetVictimKeys(existing map[string]struct{}, requiredSize uint64) (set VictimKeyset, hasEnough bool)

	// HasFineGrainedManagement reports whether the engine tracks
	// per-object popularity precisely enough to drive LocalReward
	// (false for simple policies that only track aggregate hit rate).
	HasFineGrainedManagement() bool

	// SizeForCapacity returns the engine's current resident byte size.
	SizeForCapacity() uint64

	// InvokeCustomFunction dispatches a policy-specific extension.
	InvokeCustomFunction(name string, param any) (any, error)
}
