// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package popularity

import (
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/luxfi/covered/keyspace"
)

type topkEntry struct {
	edge keyspace.EdgeIndex
	pop  keyspace.Popularity
}

// AggregatedUncachedPopularity is the per-key object held at a beacon for
// keys chosen as globally popular-but-uncached (spec.md §3). Bitmap bit e
// is set iff edge e currently reports tracking the key; TopK holds at
// most K entries ascending by popularity and is always a subset of the
// bits set in Bitmap (invariants AUP1, AUP2).
type AggregatedUncachedPopularity struct {
	Key        keyspace.Key
	ObjectSize keyspace.ObjectSize

	sum     keyspace.Popularity
	topk    []topkEntry // ascending by pop, len <= topKCap
	bitmap  *bitset.BitSet
	topKCap int
}

// NewAggregatedUncachedPopularity allocates an empty entry for key over
// edgeCount edges, keeping at most topKCap TopK entries.
func NewAggregatedUncachedPopularity(key keyspace.Key, objectSize keyspace.ObjectSize, edgeCount, topKCap int) *AggregatedUncachedPopularity {
	return &AggregatedUncachedPopularity{
		Key:        key,
		ObjectSize: objectSize,
		bitmap:     bitset.New(uint(edgeCount)),
		topKCap:    topKCap,
	}
}

// Sum returns SumLocalUncachedPopularity.
func (a *AggregatedUncachedPopularity) Sum() keyspace.Popularity { return a.sum }

// ExistingEdgeCount returns popcount(Bitmap), invariant AUP1.
func (a *AggregatedUncachedPopularity) ExistingEdgeCount() int { return int(a.bitmap.Count()) }

// Tracks reports whether edge currently contributes to this entry.
func (a *AggregatedUncachedPopularity) Tracks(edge keyspace.EdgeIndex) bool {
	return a.bitmap.Test(uint(edge))
}

// TopK returns a copy of the ascending-by-popularity TopK list.
func (a *AggregatedUncachedPopularity) TopK() []struct {
	Edge keyspace.EdgeIndex
	Pop  keyspace.Popularity
} {
	out := make([]struct {
		Edge keyspace.EdgeIndex
		Pop  keyspace.Popularity
	}, len(a.topk))
	for i, e := range a.topk {
		out[i].Edge = e.edge
		out[i].Pop = e.pop
	}
	return out
}

func (a *AggregatedUncachedPopularity) topkIndexOf(edge keyspace.EdgeIndex) int {
	for i, e := range a.topk {
		if e.edge == edge {
			return i
		}
	}
	return -1
}

func (a *AggregatedUncachedPopularity) topkSum() keyspace.Popularity {
	var s keyspace.Popularity
	for _, e := range a.topk {
		s += e.pop
	}
	return s
}

// removePriorContribution removes edge's previous contribution from both
// Sum and TopK (if present), mirroring the original's "subtract exact
// from TopK, or mean of non-TopK entries" approximation: once an edge's
// individual popularity falls out of TopK, its exact value is no longer
// tracked, so a returning update approximates it as the mean of the
// non-TopK mass.
func (a *AggregatedUncachedPopularity) removePriorContribution(edge keyspace.EdgeIndex) {
	if i := a.topkIndexOf(edge); i >= 0 {
		a.sum -= a.topk[i].pop
		a.topk = append(a.topk[:i], a.topk[i+1:]...)
		return
	}
	nonTopK := a.ExistingEdgeCount() - len(a.topk)
	if nonTopK <= 0 {
		return
	}
	mean := (a.sum - a.topkSum()) / keyspace.Popularity(nonTopK)
	a.sum -= mean
}

func (a *AggregatedUncachedPopularity) insertTopK(edge keyspace.EdgeIndex, pop keyspace.Popularity) {
	i := sort.Search(len(a.topk), func(i int) bool { return a.topk[i].pop >= pop })
	a.topk = append(a.topk, topkEntry{})
	copy(a.topk[i+1:], a.topk[i:])
	a.topk[i] = topkEntry{edge: edge, pop: pop}
	if len(a.topk) > a.topKCap {
		// Drop the smallest; it still contributes to Sum via Bitmap
		// membership, just no longer individually tracked (AUP2).
		a.topk = a.topk[1:]
	}
}

// Update folds in a fresh report from sourceEdge (spec.md §4.7 update).
// If the edge already contributed, its prior value is removed first so
// the net effect always reflects the latest report (invariant COP5).
func (a *AggregatedUncachedPopularity) Update(sourceEdge keyspace.EdgeIndex, localUncachedPopularity keyspace.Popularity) {
	if a.bitmap.Test(uint(sourceEdge)) {
		a.removePriorContribution(sourceEdge)
	} else {
		a.bitmap.Set(uint(sourceEdge))
	}
	a.sum += localUncachedPopularity
	if len(a.topk) < a.topKCap || localUncachedPopularity > a.topk[0].pop {
		a.insertTopK(sourceEdge, localUncachedPopularity)
	}
}

// Clear releases sourceEdge's contribution entirely (spec.md §4.7 clear).
func (a *AggregatedUncachedPopularity) Clear(sourceEdge keyspace.EdgeIndex) {
	if !a.bitmap.Test(uint(sourceEdge)) {
		return
	}
	a.removePriorContribution(sourceEdge)
	a.bitmap.Clear(uint(sourceEdge))
}

// BenefitFunc computes the policy-specific admission benefit from the
// top-i popularity mass, whether the object already has a cooperative
// cached copy elsewhere, and the remaining (non-top-i) mass (spec.md §4.7
// "LocalUncachedReward").
type BenefitFunc func(topiSum keyspace.Popularity, isGlobalCached bool, rest keyspace.Popularity) keyspace.DeltaReward

// DefaultBenefitFunc values the top-i mass at face value, discounting it
// by half when a cooperative copy already exists elsewhere (diminishing
// returns on a further placement), and ignores non-top-i mass.
func DefaultBenefitFunc(topiSum keyspace.Popularity, isGlobalCached bool, _ keyspace.Popularity) keyspace.DeltaReward {
	if isGlobalCached {
		return topiSum * 0.5
	}
	return topiSum
}

// CalcAdmissionBenefit evaluates benefit(i): the top-i entries of the
// ascending TopK list (spec.md §4.7 calcAdmissionBenefit). i=0 always
// yields 0 (testable property T7).
func (a *AggregatedUncachedPopularity) CalcAdmissionBenefit(i int, isGlobalCached bool, fn BenefitFunc) keyspace.DeltaReward {
	if fn == nil {
		fn = DefaultBenefitFunc
	}
	if i <= 0 {
		return 0
	}
	if i > len(a.topk) {
		i = len(a.topk)
	}
	var topiSum keyspace.Popularity
	for _, e := range a.topk[len(a.topk)-i:] {
		topiSum += e.pop
	}
	return fn(topiSum, isGlobalCached, a.sum-topiSum)
}

// CalcMaxAdmissionBenefit returns max over i in [0, len(TopK)] of
// CalcAdmissionBenefit(i); this is the aggregator's eviction priority key
// (spec.md §4.7, §3 PopularityAggregator).
func (a *AggregatedUncachedPopularity) CalcMaxAdmissionBenefit(isGlobalCached bool, fn BenefitFunc) keyspace.DeltaReward {
	var best keyspace.DeltaReward
	for i := 0; i <= len(a.topk); i++ {
		if b := a.CalcAdmissionBenefit(i, isGlobalCached, fn); b > best {
			best = b
		}
	}
	return best
}

// SizeForCapacity estimates this entry's resident metadata size, used by
// the Aggregator's byte-budget accounting.
func (a *AggregatedUncachedPopularity) SizeForCapacity() uint64 {
	// key + object size field + sum + bitmap words + topk entries
	return uint64(len(a.Key)) + 8 + 8 + a.bitmap.BinaryStorageSize() + uint64(len(a.topk)*12)
}
