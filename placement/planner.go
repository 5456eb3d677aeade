// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package placement implements the PlacementPlanner of spec.md §4.8: a
// pure function over snapshots of AggregatedUncachedPopularity and
// VictimTracker state that decides which additional edges should receive
// a cooperative copy of an object, trading admission benefit against
// eviction cost.
package placement

import (
	"sort"

	"github.com/luxfi/covered/config"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/metrics"
	"github.com/luxfi/covered/popularity"
	"github.com/luxfi/covered/victim"
)

// Result is the planner's output: the chosen placement edgeset P, the
// victims each chosen edge must evict to make room, and the edges that
// need a lazy victim fetch before their cost estimate can be trusted
// (spec.md §4.8 step 3, §7 MissingVictim).
type Result struct {
	Placement    []keyspace.EdgeIndex
	VictimsByEdge map[keyspace.EdgeIndex][]keyspace.Key
	FetchEdgeset  []keyspace.EdgeIndex
	NetBenefit    keyspace.DeltaReward
}

// Plan runs the algorithm of spec.md §4.8. excludeEdge, if non-nil,
// removes one edge from candidate consideration — the caller passes the
// write path's own edge here, since LocalWrite already gives the writer a
// copy independent of the aggregator-driven decision. m may be nil,
// in which case the decision is not reported to metrics.
func Plan(cfg config.Context, objectSize keyspace.ObjectSize, agg *popularity.AggregatedUncachedPopularity, tracker *victim.Tracker, isGlobalCached bool, benefitFunc popularity.BenefitFunc, excludeEdge *keyspace.EdgeIndex, m *metrics.Metrics) Result {
	if agg == nil {
		return Result{}
	}
	candidates := orderedCandidates(cfg.EdgeCount, agg, excludeEdge)
	if len(candidates) == 0 {
		return Result{}
	}

	estimates := tracker.FindVictimsForPlacement(candidates, objectSize)

	bestI := 0
	var bestScore keyspace.DeltaReward
	var cumCost keyspace.DeltaReward
	for i := 1; i <= len(candidates); i++ {
		cumCost += estimates[candidates[i-1]].TotalReward
		benefit := agg.CalcAdmissionBenefit(i, isGlobalCached, benefitFunc)
		score := benefit - cumCost
		if i == 1 || score > bestScore {
			bestScore = score
			bestI = i
		}
	}

	if bestScore <= cfg.MinAdmissionBenefit {
		if m != nil {
			m.PlacementDecision(false, 0)
		}
		return Result{NetBenefit: bestScore}
	}

	placement := append([]keyspace.EdgeIndex(nil), candidates[:bestI]...)
	victimsByEdge := make(map[keyspace.EdgeIndex][]keyspace.Key, bestI)
	var fetchEdgeset []keyspace.EdgeIndex
	for _, e := range placement {
		est := estimates[e]
		keys := make([]keyspace.Key, len(est.Victims))
		for i, v := range est.Victims {
			keys[i] = v.Key
		}
		victimsByEdge[e] = keys
		if !est.HasEnough {
			fetchEdgeset = append(fetchEdgeset, e)
		}
	}

	if m != nil {
		m.PlacementDecision(true, len(placement))
	}
	return Result{
		Placement:     placement,
		VictimsByEdge: victimsByEdge,
		FetchEdgeset:  fetchEdgeset,
		NetBenefit:    bestScore,
	}
}

// orderedCandidates returns the Bitmap-set edges ordered by descending
// popularity: the TopK list reversed (highest first), then the remaining
// tracked-but-not-TopK edges in ascending EdgeIndex order (their exact
// popularity is no longer individually known once evicted from TopK, so
// no further ordering among them is meaningful), excluding excludeEdge.
func orderedCandidates(edgeCount int, agg *popularity.AggregatedUncachedPopularity, excludeEdge *keyspace.EdgeIndex) []keyspace.EdgeIndex {
	topk := agg.TopK()
	topkSet := make(map[keyspace.EdgeIndex]struct{}, len(topk))
	ordered := make([]keyspace.EdgeIndex, 0, len(topk))
	for i := len(topk) - 1; i >= 0; i-- {
		ordered = append(ordered, topk[i].Edge)
		topkSet[topk[i].Edge] = struct{}{}
	}

	var nonTopk []keyspace.EdgeIndex
	for e := 0; e < edgeCount; e++ {
		edge := keyspace.EdgeIndex(e)
		if _, inTopk := topkSet[edge]; inTopk {
			continue
		}
		if agg.Tracks(edge) {
			nonTopk = append(nonTopk, edge)
		}
	}
	sort.Slice(nonTopk, func(i, j int) bool { return nonTopk[i] < nonTopk[j] })
	ordered = append(ordered, nonTopk...)

	if excludeEdge == nil {
		return ordered
	}
	out := ordered[:0:0]
	for _, e := range ordered {
		if e != *excludeEdge {
			out = append(out, e)
		}
	}
	return out
}
