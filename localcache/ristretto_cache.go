// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localcache

import (
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/luxfi/covered/keyspace"
)

// RistrettoCache is a LocalCache backed by a real admission-aware
// bounded cache (github.com/dgraph-io/ristretto/v2), standing in for the
// original system's GL-Cache/CacheLib-class collaborators: a policy with
// its own internal admission and eviction heuristics that the core must
// treat as an opaque box. Victim enumeration (GetVictimKeys) therefore
// falls back to a small side-tracked recency list since Ristretto itself
// does not expose eviction candidates before they are evicted.
type RistrettoCache struct {
	mu        sync.Mutex
	cache     *ristretto.Cache[string, []byte]
	order     []string // coarse recency list for victim estimation only
	sizeBytes uint64
	custom    CustomFunc
}

// NewRistrettoCache builds a RistrettoCache sized for maxCostBytes of
// total resident value bytes.
func NewRistrettoCache(maxCostBytes int64, custom CustomFunc) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 8, // ~10x entry count, ristretto's own sizing guidance
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{cache: c, custom: custom}, nil
}

func (c *RistrettoCache) Get(key keyspace.Key) (bool, []byte) {
	v, ok := c.cache.Get(key.AsMapKey())
	return ok, v
}

func (c *RistrettoCache) Update(key keyspace.Key, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok := c.cache.Get(key.AsMapKey())
	if !ok {
		return false
	}
	c.cache.Set(key.AsMapKey(), value, int64(len(value)))
	c.cache.Wait()
	c.sizeBytes = c.sizeBytes - uint64(len(old)) + uint64(len(value))
	return true
}

func (c *RistrettoCache) Admit(key keyspace.Key, value []byte, isValid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.AsMapKey()
	old, existed := c.cache.Get(k)
	if c.cache.Set(k, value, int64(len(value))) {
		c.cache.Wait()
		if existed {
			c.removeFromOrder(k)
			c.sizeBytes -= uint64(len(old))
		}
		c.order = append(c.order, k)
		c.sizeBytes += uint64(len(value))
	}
	_ = isValid
}

func (c *RistrettoCache) EvictWithGivenKey(key keyspace.Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.AsMapKey()
	v, ok := c.cache.Get(k)
	if !ok {
		return nil, false
	}
	c.cache.Del(k)
	c.removeFromOrder(k)
	c.sizeBytes -= uint64(len(v))
	return v, true
}

func (c *RistrettoCache) EvictNoGivenKey(requiredSize uint64) map[string][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := make(map[string][]byte)
	var freed uint64
	for freed < requiredSize && len(c.order) > 0 {
		k := c.order[0]
		c.order = c.order[1:]
		v, ok := c.cache.Get(k)
		if !ok {
			continue
		}
		c.cache.Del(k)
		c.sizeBytes -= uint64(len(v))
		freed += uint64(len(v))
		evicted[k] = v
	}
	return evicted
}

func (c *RistrettoCache) GetVictimKeys(existing map[string]struct{}, requiredSize uint64) (VictimKeyset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var set VictimKeyset
	for _, k := range c.order {
		if set.TotalBytes >= requiredSize {
			break
		}
		if _, skip := existing[k]; skip {
			continue
		}
		v, ok := c.cache.Get(k)
		if !ok {
			continue
		}
		set.Keys = append(set.Keys, keyspace.Key(k))
		set.TotalBytes += uint64(len(v))
	}
	return set, set.TotalBytes >= requiredSize
}

func (c *RistrettoCache) HasFineGrainedManagement() bool { return true }

func (c *RistrettoCache) SizeForCapacity() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeBytes
}

func (c *RistrettoCache) InvokeCustomFunction(name string, param any) (any, error) {
	if c.custom == nil {
		return nil, nil
	}
	return c.custom(name, param)
}

func (c *RistrettoCache) removeFromOrder(k string) {
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Close releases Ristretto's background goroutines.
func (c *RistrettoCache) Close() {
	c.cache.Close()
}
