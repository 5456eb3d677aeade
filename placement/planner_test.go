// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package placement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/covered/config"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/popularity"
	"github.com/luxfi/covered/victim"
)

func benefitSum(topiSum keyspace.Popularity, _ bool, _ keyspace.Popularity) keyspace.DeltaReward {
	return topiSum
}

func TestPlanReturnsEmptyResultWithNilAggregate(t *testing.T) {
	cfg := config.Default(4)
	tracker := victim.NewTracker(1, 1)
	result := Plan(cfg, 10, nil, tracker, false, benefitSum, nil, nil)
	require.Empty(t, result.Placement)
}

func TestPlanPlacesHighBenefitEdgesAheadOfCost(t *testing.T) {
	cfg := config.Default(4)
	cfg.MinAdmissionBenefit = 0
	agg := popularity.NewAggregatedUncachedPopularity(keyspace.Key("k1"), 10, 4, 4)
	agg.Update(keyspace.EdgeIndex(0), 100)
	agg.Update(keyspace.EdgeIndex(1), 50)

	tracker := victim.NewTracker(1, 1)
	// edge 0 has cheap victims; edge 1 has no tracked victims (treated as
	// having enough headroom already, i.e. cost zero) so both look cheap.
	require.NoError(t, tracker.UpdateLocalSyncedVictims(keyspace.EdgeIndex(0), victim.Syncset{
		Mode: victim.SyncComplete,
		Victims: []victim.Cacheinfo{
			{Key: keyspace.Key("victim"), ObjectSize: 10, LocalCachedPopularity: 1},
		},
	}))

	result := Plan(cfg, 10, agg, tracker, false, benefitSum, nil, nil)
	require.NotEmpty(t, result.Placement)
	require.Contains(t, result.Placement, keyspace.EdgeIndex(0))
}

func TestPlanSkipsBelowMinAdmissionBenefit(t *testing.T) {
	cfg := config.Default(4)
	cfg.MinAdmissionBenefit = 1000
	agg := popularity.NewAggregatedUncachedPopularity(keyspace.Key("k1"), 10, 4, 4)
	agg.Update(keyspace.EdgeIndex(0), 1)

	tracker := victim.NewTracker(1, 1)
	result := Plan(cfg, 10, agg, tracker, false, benefitSum, nil, nil)
	require.Empty(t, result.Placement)
}

func TestPlanExcludesWriterEdge(t *testing.T) {
	cfg := config.Default(4)
	cfg.MinAdmissionBenefit = 0
	agg := popularity.NewAggregatedUncachedPopularity(keyspace.Key("k1"), 10, 4, 4)
	agg.Update(keyspace.EdgeIndex(0), 100)

	tracker := victim.NewTracker(1, 1)
	excluded := keyspace.EdgeIndex(0)
	result := Plan(cfg, 10, agg, tracker, false, benefitSum, &excluded, nil)
	require.NotContains(t, result.Placement, keyspace.EdgeIndex(0))
}

func TestPlanReportsFetchEdgesetWhenVictimsInsufficient(t *testing.T) {
	cfg := config.Default(4)
	cfg.MinAdmissionBenefit = 0
	agg := popularity.NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 4, 4)
	agg.Update(keyspace.EdgeIndex(0), 100)

	tracker := victim.NewTracker(1, 1)
	require.NoError(t, tracker.UpdateLocalSyncedVictims(keyspace.EdgeIndex(0), victim.Syncset{
		Mode: victim.SyncComplete,
		Victims: []victim.Cacheinfo{
			{Key: keyspace.Key("tiny"), ObjectSize: 1, LocalCachedPopularity: 1},
		},
	}))

	result := Plan(cfg, 1000, agg, tracker, false, benefitSum, nil, nil)
	require.Contains(t, result.FetchEdgeset, keyspace.EdgeIndex(0))
}
