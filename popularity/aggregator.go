// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package popularity

import (
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/luxfi/log"

	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/metrics"
)

// Aggregator is the beacon-wide, whole-beacon selective popularity index
// (spec.md §3/§4.7): an ordered index of AggregatedUncachedPopularity
// keyed by calcMaxAdmissionBenefit, plus a reverse Key lookup, bounded by
// a configured byte budget. This is the Go expression of the original's
// generic sorted-by-score multimap with reverse iterator lookup
// (src/cache/covered/sorted_popularity_multimap.*): a slice of keys
// re-sorted after each change plus a key→entry map, rather than
// std::multimap.
type Aggregator struct {
	mu          sync.RWMutex
	log         log.Logger
	edgeCount   int
	topKCap     int
	capBytes    uint64
	usedBytes   uint64
	benefitFunc BenefitFunc
	metrics     *metrics.Metrics

	order   []string // keys, ascending by CalcMaxAdmissionBenefit
	entries map[string]*AggregatedUncachedPopularity
}

// NewAggregator returns an empty Aggregator bounded by capBytes. m may be
// nil, in which case eviction events are not reported.
func NewAggregator(logger log.Logger, edgeCount, topKCap int, capBytes uint64, benefitFunc BenefitFunc, m *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if benefitFunc == nil {
		benefitFunc = DefaultBenefitFunc
	}
	return &Aggregator{
		log:         logger,
		edgeCount:   edgeCount,
		topKCap:     topKCap,
		capBytes:    capBytes,
		benefitFunc: benefitFunc,
		metrics:     m,
		entries:     make(map[string]*AggregatedUncachedPopularity),
	}
}

// Get returns the tracked entry for key, if any.
func (a *Aggregator) Get(key keyspace.Key) (*AggregatedUncachedPopularity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[key.AsMapKey()]
	return e, ok
}

// Update folds a report from sourceEdge into key's entry, allocating it
// if absent, then re-sorts the index and enforces the byte budget
// (spec.md §4.7 update, scenario S3).
func (a *Aggregator) Update(key keyspace.Key, objectSize keyspace.ObjectSize, sourceEdge keyspace.EdgeIndex, localUncachedPopularity keyspace.Popularity, isGlobalCached bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key.AsMapKey()
	e, ok := a.entries[k]
	if !ok {
		e = NewAggregatedUncachedPopularity(key, objectSize, a.edgeCount, a.topKCap)
		a.entries[k] = e
		a.order = append(a.order, k)
	} else {
		a.usedBytes -= e.SizeForCapacity()
	}
	e.Update(sourceEdge, localUncachedPopularity)
	a.usedBytes += e.SizeForCapacity()

	a.resort()
	a.enforceBudget(isGlobalCached)
}

// Clear releases edge's contribution to key's entry, deleting the entry
// if it becomes empty (ExistingEdgeCount reaches 0).
func (a *Aggregator) Clear(key keyspace.Key, edge keyspace.EdgeIndex) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key.AsMapKey()
	e, ok := a.entries[k]
	if !ok {
		return
	}
	a.usedBytes -= e.SizeForCapacity()
	e.Clear(edge)
	if e.ExistingEdgeCount() == 0 {
		a.removeLocked(k)
		return
	}
	a.usedBytes += e.SizeForCapacity()
	a.resort()
}

// ClearForPlacement drops key's entry entirely once a placement decision
// has committed it to cached edges (spec.md §4.7 clear_for_placement).
func (a *Aggregator) ClearForPlacement(key keyspace.Key) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removeLocked(key.AsMapKey())
}

func (a *Aggregator) removeLocked(k string) {
	e, ok := a.entries[k]
	if !ok {
		return
	}
	a.usedBytes -= e.SizeForCapacity()
	delete(a.entries, k)
	for i, ok2 := range a.order {
		if ok2 == k {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *Aggregator) resort() {
	sort.Slice(a.order, func(i, j int) bool {
		ei := a.entries[a.order[i]]
		ej := a.entries[a.order[j]]
		return ei.CalcMaxAdmissionBenefit(false, a.benefitFunc) < ej.CalcMaxAdmissionBenefit(false, a.benefitFunc)
	})
}

// enforceBudget discards entries with the smallest max-admission-benefit
// until the aggregator fits within capBytes (spec.md §3 PopularityAggregator).
func (a *Aggregator) enforceBudget(isGlobalCached bool) {
	for a.usedBytes > a.capBytes && len(a.order) > 0 {
		evictKey := a.order[0]
		a.log.Debug("popularity aggregator evicting lowest-benefit entry", "key", evictKey, "used", humanize.Bytes(a.usedBytes), "cap", humanize.Bytes(a.capBytes))
		a.removeLocked(evictKey)
		if a.metrics != nil {
			a.metrics.AggregatorEviction()
		}
	}
}

// SmallestMaxAdmissionBenefit returns the lowest CalcMaxAdmissionBenefit
// currently resident, used to build a FastPathHint when the aggregator
// holds no slot for a requested key.
func (a *Aggregator) SmallestMaxAdmissionBenefit(isGlobalCached bool) keyspace.DeltaReward {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.order) == 0 {
		return 0
	}
	return a.entries[a.order[0]].CalcMaxAdmissionBenefit(isGlobalCached, a.benefitFunc)
}

// Len reports the number of tracked keys.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.order)
}
