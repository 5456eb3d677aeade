// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coverederrs collects the sentinel errors shared across the
// COVERED coordination core (spec.md §7). Transient errors (Busy,
// StaleVictimSync, MissingVictim, InvalidationTimeout) are expected to be
// handled internally by callers via retry/fallback; only ErrCapacityExceeded
// and a "not cached" lookup result are meant to surface to end users.
package coverederrs

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a writelock is held elsewhere or a
	// directory entry is Blocking. Callers retry with backoff.
	ErrBusy = errors.New("covered: busy")

	// ErrStaleVictimSync is returned when an incoming Delta VictimSyncset
	// does not match the receiver's expected base generation.
	ErrStaleVictimSync = errors.New("covered: stale victim sync generation")

	// ErrMissingVictim names the case where the victim tracker does not
	// hold enough victim cacheinfos to free the required size for a
	// candidate edge. placement.Plan does not return it; it reports such
	// edges in Result.FetchEdgeset.
	ErrMissingVictim = errors.New("covered: insufficient victim metadata")

	// ErrInvalidationTimeout is returned when a writelock acquisition
	// exhausts its invalidation-ack retry budget.
	ErrInvalidationTimeout = errors.New("covered: invalidation ack timeout")

	// ErrCapacityExceeded is returned when an object is larger than the
	// configured maximum and admission is rejected.
	ErrCapacityExceeded = errors.New("covered: object exceeds capacity")

	// ErrNotCached signals a local lookup miss; not an error condition,
	// surfaced to callers as a plain "not cached" result.
	ErrNotCached = errors.New("covered: not cached")
)

// AssertionViolation panics on programmer errors that must never occur in
// a correct caller: double-release of a lock not held, a dedup bit set for
// a key never synced, etc. (spec.md §7 "AssertionViolation"). Mirrors the
// teacher's reliance on mutex-assertion tooling, reimplemented directly
// here since that tooling itself is not part of this module's dependency
// surface (see DESIGN.md).
func AssertionViolation(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
