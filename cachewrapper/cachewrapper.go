// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cachewrapper implements CacheWrapper (spec.md §4.3): the
// thread-safe KV facade that composes a LocalCache, a ValidityMap and the
// PerkeyRwlock into MSI semantics for a single edge.
package cachewrapper

import (
	"sort"

	"github.com/luxfi/covered/config"
	"github.com/luxfi/covered/keylock"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/localcache"
	"github.com/luxfi/covered/stats"
	"github.com/luxfi/covered/validity"
	"github.com/luxfi/covered/victim"
)

// CacheWrapper composes LocalCache, ValidityMap and PerkeyRwlock behind a
// single KV interface with MSI semantics (spec.md §4.3). It owns neither
// the victim.Tracker nor the directory table, but when constructed with a
// tracker it keeps that tracker's locally-advertised victim set in sync
// with its own Admit/Update/Remove/Evict traffic, the way stats optionally
// observes hit counters.
type CacheWrapper struct {
	cfg     config.Context
	cache   localcache.LocalCache
	valid   *validity.Map
	locks   *keylock.PerkeyRwlock
	w1, w2  float64
	stats   *stats.PerGroupAggregator
	tracker *victim.Tracker
}

// New returns a CacheWrapper over cache, using w1/w2 to order victim
// candidates by LocalReward. statsAgg may be nil, in which case Get does
// not record per-key/per-group hit statistics. tracker may be nil, in
// which case admitted/evicted objects are never advertised as local
// victim candidates.
func New(cfg config.Context, cache localcache.LocalCache, statsAgg *stats.PerGroupAggregator, tracker *victim.Tracker) *CacheWrapper {
	return &CacheWrapper{
		cfg:     cfg,
		cache:   cache,
		valid:   validity.New(),
		locks:   keylock.New(),
		w1:      cfg.W1,
		w2:      cfg.W2,
		stats:   statsAgg,
		tracker: tracker,
	}
}

// advertiseVictim upserts key into the tracker's locally-advertised victim
// set, sourcing LocalCachedPopularity/RedirectedCachedPopularity from the
// same per-key hit counters Get records into stats, when both are wired.
func (c *CacheWrapper) advertiseVictim(key keyspace.Key, value []byte) {
	if c.tracker == nil {
		return
	}
	info := victim.Cacheinfo{Key: key, ObjectSize: keyspace.ObjectSize(len(value))}
	if c.stats != nil {
		if counters, ok := c.stats.Get(key); ok {
			info.LocalCachedPopularity = keyspace.Popularity(counters.LocalHits)
			info.RedirectedCachedPopularity = keyspace.Popularity(counters.RedirectedHits)
		}
	}
	c.tracker.UpsertLocalVictim(info, nil)
}

// withdrawVictim drops key from the tracker's locally-advertised victim
// set, when a tracker is wired.
func (c *CacheWrapper) withdrawVictim(key keyspace.Key) {
	if c.tracker != nil {
		c.tracker.RemoveLocalVictim(key)
	}
}

// Get implements spec.md §4.3 get: returns (cached, valid) only if the
// LocalCache holds key and the ValidityMap marks it Valid.
func (c *CacheWrapper) Get(key keyspace.Key) (cached, valid bool, value []byte) {
	unlock := c.locks.RLock(key.AsMapKey())
	defer unlock()

	cached, value = c.cache.Get(key)
	if !cached {
		return false, false, nil
	}
	_, isValid := c.valid.IsValid(key)
	if isValid && c.stats != nil {
		c.stats.RecordLocalHit(key)
	}
	return true, isValid, value
}

// Update implements spec.md §4.3 update: overwrites contents and marks
// Valid if cached; otherwise leaves caches untouched.
func (c *CacheWrapper) Update(key keyspace.Key, value []byte) (cached bool) {
	unlock := c.locks.Lock(key.AsMapKey())
	defer unlock()

	cached = c.cache.Update(key, value)
	if cached {
		c.valid.Validate(key)
		c.advertiseVictim(key, value)
	}
	return cached
}

// Remove implements spec.md §4.3 remove: identical to Update except the
// object is tombstoned (emptied) to be evicted later. A tombstoned entry
// holds nothing worth redirecting to or evicting in its place, so it is
// withdrawn from the victim candidate set rather than re-advertised.
func (c *CacheWrapper) Remove(key keyspace.Key) (cached bool) {
	unlock := c.locks.Lock(key.AsMapKey())
	defer unlock()

	cached = c.cache.Update(key, nil)
	if cached {
		c.valid.Validate(key)
		c.withdrawVictim(key)
	}
	return cached
}

// UpdateIfInvalidForGetrsp folds a fetched response into a locally-cached
// entry only if it was Invalid, re-marking it Valid (spec.md §4.3
// update_if_invalid_for_getrsp).
func (c *CacheWrapper) UpdateIfInvalidForGetrsp(key keyspace.Key, value []byte) (applied bool) {
	unlock := c.locks.Lock(key.AsMapKey())
	defer unlock()

	present, isValid := c.valid.IsValid(key)
	if !present || isValid {
		return false
	}
	if !c.cache.Update(key, value) {
		return false
	}
	c.valid.Validate(key)
	return true
}

// RemoveIfInvalidForGetrsp is UpdateIfInvalidForGetrsp's empty-value
// counterpart (spec.md §4.3 remove_if_invalid_for_getrsp).
func (c *CacheWrapper) RemoveIfInvalidForGetrsp(key keyspace.Key) (applied bool) {
	return c.UpdateIfInvalidForGetrsp(key, nil)
}

// InvalidateKeyForLocalCachedObject is the MSI invalidation entry point
// (spec.md §4.3): sets ValidityMap=Invalid whether or not key was
// previously cached, inserting the entry if missing.
func (c *CacheWrapper) InvalidateKeyForLocalCachedObject(key keyspace.Key) {
	unlock := c.locks.Lock(key.AsMapKey())
	defer unlock()
	c.valid.Invalidate(key)
}

// Admit implements spec.md §4.3 admit: inserts key with value at the
// given validity, driving Absent→Cached.
func (c *CacheWrapper) Admit(key keyspace.Key, value []byte, isValid bool) {
	unlock := c.locks.Lock(key.AsMapKey())
	defer unlock()
	c.cache.Admit(key, value, isValid)
	if isValid {
		c.valid.Validate(key)
	} else {
		c.valid.Invalidate(key)
	}
	c.advertiseVictim(key, value)
}

// Evict implements spec.md §4.3 evict: a single-threaded operation — the
// caller guarantees no concurrent admit/evict is in flight on this edge —
// that frees at least requiredSize bytes, preferring the keys in victims
// when given, and returns the evicted (key, value) pairs.
func (c *CacheWrapper) Evict(victims []keyspace.Key, requiredSize uint64) map[string][]byte {
	out := make(map[string][]byte)
	var freed uint64
	for _, k := range victims {
		if freed >= requiredSize {
			break
		}
		unlock := c.locks.Lock(k.AsMapKey())
		value, evicted := c.cache.EvictWithGivenKey(k)
		if evicted {
			c.valid.Erase(k)
			c.withdrawVictim(k)
			out[k.AsMapKey()] = value
			freed += uint64(len(value))
		}
		unlock()
	}
	if freed >= requiredSize {
		return out
	}
	for k, v := range c.cache.EvictNoGivenKey(requiredSize - freed) {
		unlock := c.locks.Lock(k)
		c.valid.Erase(keyspace.Key(k))
		c.withdrawVictim(keyspace.Key(k))
		unlock()
		out[k] = v
	}
	return out
}

// GetLocalSyncedVictimCacheinfos returns up to cfg.PeredgeSyncedVictimCount
// complete victim cacheinfos sorted ascending by LocalReward (spec.md §4.3
// get_local_synced_victim_cacheinfos), the edge's advertised victim set.
// It only has a meaningful answer when the LocalCache has fine-grained
// per-object popularity tracking; callers relying on it should check
// HasFineGrainedManagement first.
func (c *CacheWrapper) GetLocalSyncedVictimCacheinfos(candidates []victim.Cacheinfo) []victim.Cacheinfo {
	sorted := append([]victim.Cacheinfo(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LocalReward(c.w1, c.w2) < sorted[j].LocalReward(c.w1, c.w2)
	})
	if len(sorted) > c.cfg.PeredgeSyncedVictimCount {
		sorted = sorted[:c.cfg.PeredgeSyncedVictimCount]
	}
	return sorted
}

// FetchVictimCacheinfosForRequiredSize drains additional victim
// candidates from the LocalCache beyond a previously-synced list, for a
// beacon's lazy victim fetch request (spec.md §4.3
// fetch_victim_cacheinfos_for_required_size / §7 MissingVictim).
func (c *CacheWrapper) FetchVictimCacheinfosForRequiredSize(existing []keyspace.Key, requiredSize uint64) (additional []keyspace.Key, hasEnough bool) {
	existingSet := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		existingSet[k.AsMapKey()] = struct{}{}
	}
	set, ok := c.cache.GetVictimKeys(existingSet, requiredSize)
	return set.Keys, ok
}

// HasFineGrainedManagement reports whether the underlying LocalCache can
// drive LocalReward-based victim ordering.
func (c *CacheWrapper) HasFineGrainedManagement() bool {
	return c.cache.HasFineGrainedManagement()
}

// SizeForCapacity reports the LocalCache's plus ValidityMap's combined
// resident metadata size.
func (c *CacheWrapper) SizeForCapacity() uint64 {
	return c.cache.SizeForCapacity() + c.valid.SizeForCapacity()
}

// InvokeCustomFunction forwards to the underlying LocalCache's extension
// point (SPEC_FULL.md §5 item 3), e.g. to fold a Metadata-Update
// notification into the policy's exclusive/cooperative accounting.
func (c *CacheWrapper) InvokeCustomFunction(name string, param any) (any, error) {
	return c.cache.InvokeCustomFunction(name, param)
}
