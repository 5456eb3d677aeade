// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package popularity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/covered/keyspace"
)

func TestUpdateSetsBitmapAndSum(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 4)
	a.Update(keyspace.EdgeIndex(1), 5.0)
	a.Update(keyspace.EdgeIndex(2), 3.0)

	require.True(t, a.Tracks(keyspace.EdgeIndex(1)))
	require.True(t, a.Tracks(keyspace.EdgeIndex(2)))
	require.False(t, a.Tracks(keyspace.EdgeIndex(3)))
	require.Equal(t, 2, a.ExistingEdgeCount())
	require.Equal(t, 8.0, a.Sum())
}

func TestUpdateReplacesPriorContributionFromSameEdge(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 4)
	a.Update(keyspace.EdgeIndex(1), 5.0)
	a.Update(keyspace.EdgeIndex(1), 10.0)

	require.Equal(t, 1, a.ExistingEdgeCount())
	require.Equal(t, 10.0, a.Sum())
}

func TestClearReleasesContribution(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 4)
	a.Update(keyspace.EdgeIndex(1), 5.0)
	a.Clear(keyspace.EdgeIndex(1))

	require.False(t, a.Tracks(keyspace.EdgeIndex(1)))
	require.Equal(t, 0, a.ExistingEdgeCount())
	require.Equal(t, 0.0, a.Sum())
}

func TestClearOfUntrackedEdgeIsNoop(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 4)
	a.Update(keyspace.EdgeIndex(1), 5.0)
	a.Clear(keyspace.EdgeIndex(2))
	require.Equal(t, 5.0, a.Sum())
}

func TestTopKCapIsEnforced(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 2)
	a.Update(keyspace.EdgeIndex(1), 1.0)
	a.Update(keyspace.EdgeIndex(2), 2.0)
	a.Update(keyspace.EdgeIndex(3), 3.0)

	topk := a.TopK()
	require.Len(t, topk, 2)
	require.Equal(t, 2.0, topk[0].Pop)
	require.Equal(t, 3.0, topk[1].Pop)
}

func TestCalcAdmissionBenefitZeroAtIZero(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 4)
	a.Update(keyspace.EdgeIndex(1), 5.0)
	require.Zero(t, a.CalcAdmissionBenefit(0, false, nil))
}

func TestCalcAdmissionBenefitSumsTopI(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 4)
	a.Update(keyspace.EdgeIndex(1), 1.0)
	a.Update(keyspace.EdgeIndex(2), 2.0)
	a.Update(keyspace.EdgeIndex(3), 3.0)

	require.Equal(t, 3.0, a.CalcAdmissionBenefit(1, false, nil))
	require.Equal(t, 5.0, a.CalcAdmissionBenefit(2, false, nil))
}

func TestDefaultBenefitFuncDiscountsGlobalCached(t *testing.T) {
	require.Equal(t, 5.0, DefaultBenefitFunc(10.0, true, 0))
	require.Equal(t, 10.0, DefaultBenefitFunc(10.0, false, 0))
}

func TestCalcMaxAdmissionBenefitPicksBestI(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 4)
	a.Update(keyspace.EdgeIndex(1), 1.0)
	a.Update(keyspace.EdgeIndex(2), 2.0)

	fn := func(topiSum keyspace.Popularity, isGlobalCached bool, rest keyspace.Popularity) keyspace.DeltaReward {
		return topiSum
	}
	require.Equal(t, 3.0, a.CalcMaxAdmissionBenefit(false, fn))
}

func TestSizeForCapacityGrowsWithTopK(t *testing.T) {
	a := NewAggregatedUncachedPopularity(keyspace.Key("k1"), 100, 8, 4)
	base := a.SizeForCapacity()
	a.Update(keyspace.EdgeIndex(1), 1.0)
	require.Greater(t, a.SizeForCapacity(), base)
}
