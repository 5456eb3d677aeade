// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package directory

import (
	"context"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/log"

	"github.com/luxfi/covered/config"
	"github.com/luxfi/covered/coverederrs"
	"github.com/luxfi/covered/keylock"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/metrics"
	"github.com/luxfi/covered/popularity"
)

// WriteLockState is the MSI write-lock state of a DirectoryEntry
// (spec.md §3/§4.4): Unlocked, Blocking(requester, pending acks) while
// invalidations are outstanding, or AcquiredBy(requester) once granted.
type WriteLockState int

const (
	Unlocked WriteLockState = iota
	Blocking
	AcquiredBy
)

// String renders the state for logs.
func (s WriteLockState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Blocking:
		return "blocking"
	case AcquiredBy:
		return "acquired"
	default:
		return "unknown"
	}
}

// LockResult is the outcome of AcquireWritelock.
type LockResult int

const (
	Granted LockResult = iota
	Busy
)

// MetadataUpdateMode tells a sharer whether the object it holds now has
// (or no longer has) a cooperative copy elsewhere, the supplemented
// Metadata-Update request of SPEC_FULL.md §5.
type MetadataUpdateMode int

const (
	MetadataCooperativeCopyExists MetadataUpdateMode = iota
	MetadataNoCooperativeCopy
)

// MetadataUpdateFunc is invoked when CachedEdges transitions 0→1 or 1→2
// (or the reverse on eviction), letting a caller tell the affected
// edge(s)' LocalCache to re-partition its metadata accordingly
// (spec.md §4.4 admit_directory/evict_directory).
type MetadataUpdateFunc func(key keyspace.Key, edge keyspace.EdgeIndex, mode MetadataUpdateMode)

// Invalidator abstracts the network send of an Invalidation request to a
// sharer, so DirectoryTable stays transport-agnostic (the cooperation
// package supplies the real implementation over the wire codec).
type Invalidator interface {
	Invalidate(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error
}

// entry is one key's beacon-side directory state (spec.md §3 DirectoryEntry).
type entry struct {
	CachedEdges map[keyspace.EdgeIndex]struct{}

	state    WriteLockState
	holder   keyspace.EdgeIndex
	pending  map[keyspace.EdgeIndex]struct{}

	LastWriter    keyspace.EdgeIndex
	hasLastWriter bool
}

func newEntry() *entry {
	return &entry{CachedEdges: make(map[keyspace.EdgeIndex]struct{})}
}

// Table is the beacon-side DirectoryTable of spec.md §4.4: a structural
// map from Key to entry, each entry additionally serialized by the
// shared PerkeyRwlock, plus a reference to the beacon's PopularityAggregator
// for FastPathHint construction and CollectedPopularity fold-in.
type Table struct {
	cfg         config.Context
	log         log.Logger
	invalidator Invalidator
	aggregator  *popularity.Aggregator
	onMetadata  MetadataUpdateFunc
	metrics     *metrics.Metrics

	locks *keylock.PerkeyRwlock

	structMu sync.RWMutex
	entries  map[string]*entry
}

// NewTable returns an empty Table. invalidator and aggregator are required
// collaborators; onMetadata and m may be nil if the caller does not care
// about Metadata-Update notifications or metrics, respectively.
func NewTable(cfg config.Context, logger log.Logger, invalidator Invalidator, aggregator *popularity.Aggregator, onMetadata MetadataUpdateFunc, m *metrics.Metrics) *Table {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Table{
		cfg:         cfg,
		log:         logger,
		invalidator: invalidator,
		aggregator:  aggregator,
		onMetadata:  onMetadata,
		metrics:     m,
		locks:       keylock.New(),
		entries:     make(map[string]*entry),
	}
}

func (t *Table) getOrCreate(k string) *entry {
	t.structMu.Lock()
	defer t.structMu.Unlock()
	e, ok := t.entries[k]
	if !ok {
		e = newEntry()
		t.entries[k] = e
	}
	return e
}

func (t *Table) get(k string) (*entry, bool) {
	t.structMu.RLock()
	defer t.structMu.RUnlock()
	e, ok := t.entries[k]
	return e, ok
}

func (t *Table) dropIfEmpty(k string, e *entry) {
	if len(e.CachedEdges) == 0 && e.state == Unlocked && !e.hasLastWriter {
		t.structMu.Lock()
		if cur, ok := t.entries[k]; ok && cur == e {
			delete(t.entries, k)
		}
		t.structMu.Unlock()
	}
}

// Exists reports whether the beacon currently tracks any directory state
// for key (the supplemented existence check of SPEC_FULL.md §5).
func (t *Table) Exists(key keyspace.Key) bool {
	k := key.AsMapKey()
	unlock := t.locks.RLock(k)
	defer unlock()
	e, ok := t.get(k)
	return ok && (len(e.CachedEdges) > 0 || e.state != Unlocked)
}

// Lookup implements spec.md §4.4 lookup: while WriteLockState≠Unlocked it
// reports isBeingWritten; otherwise it reports whether any sharer holds a
// valid copy and, if so, one chosen DirectoryInfo (preferring a sharer
// other than requester, tie-broken toward LastWriter). On a miss (no
// valid sharer, not being written), when the aggregator holds no slot for
// key, it also returns a FastPathHint; a hit or busy result carries none.
func (t *Table) Lookup(key keyspace.Key, requester keyspace.EdgeIndex) (isBeingWritten, hasValidDir bool, dirInfo Info, hint *popularity.FastPathHint) {
	k := key.AsMapKey()
	unlock := t.locks.RLock(k)
	defer unlock()

	e, ok := t.get(k)
	if !ok {
		t.recordLookup("miss")
		hint = t.fastPathHint(key, requester)
		return false, false, Info{}, hint
	}
	if e.state != Unlocked {
		t.recordLookup("busy")
		return true, false, Info{}, nil
	}
	hasValidDir = len(e.CachedEdges) > 0
	if !hasValidDir {
		t.recordLookup("miss")
		return false, false, Info{}, t.fastPathHint(key, requester)
	}
	t.recordLookup("hit")
	dirInfo = chooseSharer(e, requester)
	return false, true, dirInfo, nil
}

func (t *Table) recordLookup(result string) {
	if t.metrics != nil {
		t.metrics.DirectoryLookup(result)
	}
}

func chooseSharer(e *entry, requester keyspace.EdgeIndex) Info {
	if e.hasLastWriter {
		if _, ok := e.CachedEdges[e.LastWriter]; ok && e.LastWriter != requester {
			return Info{TargetEdge: e.LastWriter}
		}
	}
	for edge := range e.CachedEdges {
		if edge != requester {
			return Info{TargetEdge: edge}
		}
	}
	for edge := range e.CachedEdges {
		return Info{TargetEdge: edge}
	}
	return Info{}
}

func (t *Table) fastPathHint(key keyspace.Key, requester keyspace.EdgeIndex) *popularity.FastPathHint {
	if !t.cfg.FastPathEnabled || t.aggregator == nil {
		return nil
	}
	if _, ok := t.aggregator.Get(key); ok {
		return nil
	}
	return &popularity.FastPathHint{
		SmallestMaxAdmissionBenefitInAggregator: t.aggregator.SmallestMaxAdmissionBenefit(false),
	}
}

// AdmitDirectory inserts edge into key's CachedEdges (spec.md §4.4
// admit_directory). Crossing 0→1 sharers tells the sole sharer
// MetadataNoCooperativeCopy; crossing 1→2 tells both sharers
// MetadataCooperativeCopyExists.
// While the entry is not Unlocked, admission is refused: a write holder may
// have already released the per-key lock across its invalidation round trip
// (see AcquireWritelock below), and admitting a new sharer in that window
// without adding it to pending would let it retain a copy invalidation never
// reaches, violating D2 (no new sharer while WriteLockState≠Unlocked).
func (t *Table) AdmitDirectory(key keyspace.Key, edge keyspace.EdgeIndex) {
	k := key.AsMapKey()
	unlock := t.locks.Lock(k)
	defer unlock()

	e := t.getOrCreate(k)
	if e.state != Unlocked {
		return
	}
	before := len(e.CachedEdges)
	e.CachedEdges[edge] = struct{}{}
	after := len(e.CachedEdges)

	if t.onMetadata != nil && (before == 0 && after == 1 || before == 1 && after == 2) {
		mode := MetadataCooperativeCopyExists
		if after == 1 {
			mode = MetadataNoCooperativeCopy
		}
		for _, sharer := range maps.Keys(e.CachedEdges) {
			t.onMetadata(key, sharer, mode)
		}
	}
}

// EvictDirectory removes edge from key's CachedEdges (spec.md §4.4
// evict_directory). If collected is non-nil and IsTracked, folds the
// report into the PopularityAggregator for key.
func (t *Table) EvictDirectory(key keyspace.Key, edge keyspace.EdgeIndex, objectSize keyspace.ObjectSize, collected *popularity.Collected) {
	k := key.AsMapKey()
	unlock := t.locks.Lock(k)
	defer unlock()

	e, ok := t.get(k)
	if !ok {
		return
	}
	before := len(e.CachedEdges)
	delete(e.CachedEdges, edge)
	after := len(e.CachedEdges)

	if collected != nil && collected.IsTracked && t.aggregator != nil {
		t.aggregator.Update(key, objectSize, edge, collected.LocalUncachedPopularity, after > 0)
	}

	if t.onMetadata != nil && (before == 2 && after == 1 || before == 1 && after == 0) {
		for _, sharer := range maps.Keys(e.CachedEdges) {
			t.onMetadata(key, sharer, MetadataNoCooperativeCopy)
		}
	}
	t.dropIfEmpty(k, e)
}

// AcquireWritelock implements spec.md §4.4 acquire_writelock: if Unlocked,
// transitions to Blocking and invalidates every current sharer other than
// requester in parallel; once every ack lands it transitions to
// AcquiredBy(requester) and returns Granted. If already locked, returns
// Busy immediately. A timed-out invalidation is retried up to
// cfg.InvalidationAckTimeoutRetries times; exhausting the budget rolls
// the entry back to Unlocked, removes every still-pending sharer from
// CachedEdges, and surfaces ErrInvalidationTimeout.
func (t *Table) AcquireWritelock(ctx context.Context, key keyspace.Key, requester keyspace.EdgeIndex) (LockResult, error) {
	k := key.AsMapKey()
	unlock := t.locks.Lock(k)
	e := t.getOrCreate(k)

	if e.state != Unlocked {
		unlock()
		if t.metrics != nil {
			t.metrics.WritelockDenied()
		}
		return Busy, nil
	}

	pending := make(map[keyspace.EdgeIndex]struct{})
	for edge := range e.CachedEdges {
		if edge != requester {
			pending[edge] = struct{}{}
		}
	}
	e.state = Blocking
	e.holder = requester
	e.pending = pending
	unlock() // Blocking does not hold the per-key lock across the invalidation round trip.

	if len(pending) > 0 {
		var err error
		for attempt := 0; attempt <= t.cfg.InvalidationAckTimeoutRetries; attempt++ {
			err = t.invalidateAll(ctx, key, pending)
			if err == nil {
				break
			}
			t.log.Warn("invalidation round failed, retrying", "key", key.String(), "attempt", attempt, "error", err)
		}
		if err != nil {
			unlock2 := t.locks.Lock(k)
			e.state = Unlocked
			e.holder = 0
			for missing := range pending {
				delete(e.CachedEdges, missing)
			}
			e.pending = nil
			unlock2()
			if t.metrics != nil {
				t.metrics.InvalidationTimedOut()
				t.metrics.WritelockDenied()
			}
			return Busy, coverederrs.ErrInvalidationTimeout
		}
	}

	unlock3 := t.locks.Lock(k)
	e.state = AcquiredBy
	e.pending = nil
	unlock3()
	if t.metrics != nil {
		t.metrics.WritelockGranted()
	}
	return Granted, nil
}

func (t *Table) invalidateAll(ctx context.Context, key keyspace.Key, pending map[keyspace.EdgeIndex]struct{}) error {
	g, gctx := errgroup.WithContext(ctx)
	for edge := range pending {
		edge := edge
		g.Go(func() error {
			if t.metrics != nil {
				t.metrics.InvalidationSent()
			}
			return t.invalidator.Invalidate(gctx, key, edge)
		})
	}
	return g.Wait()
}

// ReleaseWritelock implements spec.md §4.4 release_writelock:
// AcquiredBy(requester)→Unlocked, optionally folding collected as in
// EvictDirectory.
func (t *Table) ReleaseWritelock(key keyspace.Key, requester keyspace.EdgeIndex, objectSize keyspace.ObjectSize, collected *popularity.Collected) error {
	k := key.AsMapKey()
	unlock := t.locks.Lock(k)
	defer unlock()

	e, ok := t.get(k)
	if !ok || e.state != AcquiredBy || e.holder != requester {
		coverederrs.AssertionViolation("directory: release_writelock by non-holder for key %q", key.String())
	}
	e.state = Unlocked
	e.LastWriter = requester
	e.hasLastWriter = true

	if collected != nil && collected.IsTracked && t.aggregator != nil {
		t.aggregator.Update(key, objectSize, requester, collected.LocalUncachedPopularity, len(e.CachedEdges) > 0)
	}
	t.dropIfEmpty(k, e)
	return nil
}
