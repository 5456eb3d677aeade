// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keylock provides PerkeyRwlock (spec.md §4.1): an independently
// acquirable read-write lock per Key, allocated on first use and released
// once the last holder drops and no waiter remains. The structural map
// itself is guarded by one coarse lock (spec.md §5 "structural layer");
// holders must never take that structural lock while already holding a
// per-key lock (structural-lock -> per-key-lock is the only legal order).
package keylock

import (
	"sync"

	"github.com/luxfi/covered/coverederrs"
)

type entry struct {
	mu   sync.RWMutex
	refs int
}

// PerkeyRwlock hands out an independent sync.RWMutex-backed lock per key.
// Distinct keys never contend with each other; within a key, writers
// exclude readers (writer-preference is provided by sync.RWMutex itself).
type PerkeyRwlock struct {
	structural sync.Mutex
	entries    map[string]*entry
}

// New returns an empty PerkeyRwlock.
func New() *PerkeyRwlock {
	return &PerkeyRwlock{entries: make(map[string]*entry)}
}

func (p *PerkeyRwlock) acquire(key string) *entry {
	p.structural.Lock()
	e, ok := p.entries[key]
	if !ok {
		e = &entry{}
		p.entries[key] = e
	}
	e.refs++
	p.structural.Unlock()
	return e
}

func (p *PerkeyRwlock) release(key string, e *entry) {
	p.structural.Lock()
	e.refs--
	if e.refs == 0 {
		delete(p.entries, key)
	}
	p.structural.Unlock()
}

// Lock acquires the exclusive lock for key. The returned func releases
// both the mutex and the key's lock-table slot; it must be called exactly
// once and never from a goroutine that does not hold the lock.
func (p *PerkeyRwlock) Lock(key string) (unlock func()) {
	e := p.acquire(key)
	e.mu.Lock()
	unlocked := false
	return func() {
		if unlocked {
			coverederrs.AssertionViolation("keylock: double unlock of key %q", key)
		}
		unlocked = true
		e.mu.Unlock()
		p.release(key, e)
	}
}

// RLock acquires the shared lock for key.
func (p *PerkeyRwlock) RLock(key string) (runlock func()) {
	e := p.acquire(key)
	e.mu.RLock()
	unlocked := false
	return func() {
		if unlocked {
			coverederrs.AssertionViolation("keylock: double unlock of key %q", key)
		}
		unlocked = true
		e.mu.RUnlock()
		p.release(key, e)
	}
}

// TryLock attempts the exclusive lock without blocking. ok is false if the
// lock is currently held; the returned unlock is nil in that case.
func (p *PerkeyRwlock) TryLock(key string) (unlock func(), ok bool) {
	e := p.acquire(key)
	if !e.mu.TryLock() {
		p.release(key, e)
		return nil, false
	}
	unlocked := false
	return func() {
		if unlocked {
			coverederrs.AssertionViolation("keylock: double unlock of key %q", key)
		}
		unlocked = true
		e.mu.Unlock()
		p.release(key, e)
	}, true
}

// TryRLock attempts the shared lock without blocking.
func (p *PerkeyRwlock) TryRLock(key string) (runlock func(), ok bool) {
	e := p.acquire(key)
	if !e.mu.TryRLock() {
		p.release(key, e)
		return nil, false
	}
	unlocked := false
	return func() {
		if unlocked {
			coverederrs.AssertionViolation("keylock: double unlock of key %q", key)
		}
		unlocked = true
		e.mu.RUnlock()
		p.release(key, e)
	}, true
}

// Len returns the number of keys currently holding lock state; used only
// by tests to assert that locks are released and not leaked.
func (p *PerkeyRwlock) Len() int {
	p.structural.Lock()
	defer p.structural.Unlock()
	return len(p.entries)
}
