// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localcache

import (
	"container/list"
	"sync"

	"github.com/luxfi/covered/keyspace"
)

type mapEntry struct {
	key     string
	value   []byte
	popular keyspace.Popularity
	elem    *list.Element
}

// MapCache is a basic LocalCache backed by a plain map plus an LRU list
// for GetVictimKeys/EvictNoGivenKey ordering. It intentionally has no
// fine-grained popularity model (HasFineGrainedManagement returns false),
// matching the original system's "basic cache" baseline that exists only
// to exercise the core contract, not to compete on hit ratio.
type MapCache struct {
	mu        sync.Mutex
	entries   map[string]*mapEntry
	lru       *list.List
	sizeBytes uint64
	custom    CustomFunc
}

// NewMapCache returns an empty MapCache. custom may be nil.
func NewMapCache(custom CustomFunc) *MapCache {
	return &MapCache{
		entries: make(map[string]*mapEntry),
		lru:     list.New(),
		custom:  custom,
	}
}

func (c *MapCache) Get(key keyspace.Key) (bool, []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.AsMapKey()]
	if !ok {
		return false, nil
	}
	e.popular++
	c.lru.MoveToFront(e.elem)
	return true, e.value
}

func (c *MapCache) Update(key keyspace.Key, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.AsMapKey()]
	if !ok {
		return false
	}
	c.sizeBytes -= uint64(len(e.value))
	e.value = value
	c.sizeBytes += uint64(len(value))
	c.lru.MoveToFront(e.elem)
	return true
}

func (c *MapCache) Admit(key keyspace.Key, value []byte, isValid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.AsMapKey()
	if old, ok := c.entries[k]; ok {
		c.sizeBytes -= uint64(len(old.value))
		c.lru.Remove(old.elem)
	}
	e := &mapEntry{key: k, value: value}
	e.elem = c.lru.PushFront(e)
	c.entries[k] = e
	c.sizeBytes += uint64(len(value))
	_ = isValid // validity lives in validity.Map, not the cache engine
}

func (c *MapCache) EvictWithGivenKey(key keyspace.Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.AsMapKey()]
	if !ok {
		return nil, false
	}
	delete(c.entries, key.AsMapKey())
	c.lru.Remove(e.elem)
	c.sizeBytes -= uint64(len(e.value))
	return e.value, true
}

func (c *MapCache) EvictNoGivenKey(requiredSize uint64) map[string][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := make(map[string][]byte)
	var freed uint64
	for freed < requiredSize {
		back := c.lru.Back()
		if back == nil {
			break
		}
		e := back.Value.(*mapEntry)
		c.lru.Remove(back)
		delete(c.entries, e.key)
		c.sizeBytes -= uint64(len(e.value))
		freed += uint64(len(e.value))
		evicted[e.key] = e.value
	}
	return evicted
}

func (c *MapCache) GetVictimKeys(existing map[string]struct{}, requiredSize uint64) (VictimKeyset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var set VictimKeyset
	for back := c.lru.Back(); back != nil && set.TotalBytes < requiredSize; back = back.Prev() {
		e := back.Value.(*mapEntry)
		if _, skip := existing[e.key]; skip {
			continue
		}
		set.Keys = append(set.Keys, keyspace.Key(e.key))
		set.TotalBytes += uint64(len(e.value))
	}
	return set, set.TotalBytes >= requiredSize
}

func (c *MapCache) HasFineGrainedManagement() bool { return false }

func (c *MapCache) SizeForCapacity() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeBytes
}

func (c *MapCache) InvokeCustomFunction(name string, param any) (any, error) {
	if c.custom == nil {
		return nil, nil
	}
	return c.custom(name, param)
}
