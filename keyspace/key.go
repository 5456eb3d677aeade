// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keyspace defines the shared Key, EdgeIndex and popularity/reward
// scalar types used throughout the COVERED coordination core (spec.md §3).
package keyspace

import (
	"github.com/cespare/xxhash/v2"
)

// Key is an opaque, variable-length byte string. Equality and a stable
// hash are the only operations the core requires of it.
type Key []byte

// String renders Key for logs; it is not used for equality.
func (k Key) String() string {
	return string(k)
}

// Hash returns a stable 64-bit xxhash of the key, the same hash
// config.Context.BeaconOf computes over the raw key bytes.
func (k Key) Hash() uint64 {
	return xxhash.Sum64(k)
}

// AsMapKey converts Key to a comparable Go map key.
func (k Key) AsMapKey() string {
	return string(k)
}

// EdgeIndex names one of the N edge nodes.
type EdgeIndex int

// Popularity is a nonnegative real-valued scalar (spec.md §3).
type Popularity = float64

// DeltaReward shares the Popularity domain and expresses admission
// benefit or eviction cost (spec.md §3).
type DeltaReward = float64

// ObjectSize is a value's length in bytes, the only semantically
// relevant attribute of a Value for the core (spec.md §3).
type ObjectSize = uint64
