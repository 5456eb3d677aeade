// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package popularity

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/metrics"
)

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestAggregatorUpdateCreatesEntry(t *testing.T) {
	a := NewAggregator(nil, 4, 2, 1<<20, nil, nil)
	a.Update(keyspace.Key("k1"), 10, keyspace.EdgeIndex(1), 5.0, false)

	e, ok := a.Get(keyspace.Key("k1"))
	require.True(t, ok)
	require.Equal(t, 5.0, e.Sum())
	require.Equal(t, 1, a.Len())
}

func TestAggregatorClearRemovesEmptyEntry(t *testing.T) {
	a := NewAggregator(nil, 4, 2, 1<<20, nil, nil)
	a.Update(keyspace.Key("k1"), 10, keyspace.EdgeIndex(1), 5.0, false)
	a.Clear(keyspace.Key("k1"), keyspace.EdgeIndex(1))

	_, ok := a.Get(keyspace.Key("k1"))
	require.False(t, ok)
	require.Equal(t, 0, a.Len())
}

func TestAggregatorClearKeepsEntryWithRemainingEdges(t *testing.T) {
	a := NewAggregator(nil, 4, 2, 1<<20, nil, nil)
	a.Update(keyspace.Key("k1"), 10, keyspace.EdgeIndex(1), 5.0, false)
	a.Update(keyspace.Key("k1"), 10, keyspace.EdgeIndex(2), 3.0, false)
	a.Clear(keyspace.Key("k1"), keyspace.EdgeIndex(1))

	e, ok := a.Get(keyspace.Key("k1"))
	require.True(t, ok)
	require.Equal(t, 1, e.ExistingEdgeCount())
}

func TestAggregatorClearForPlacementRemovesRegardlessOfEdges(t *testing.T) {
	a := NewAggregator(nil, 4, 2, 1<<20, nil, nil)
	a.Update(keyspace.Key("k1"), 10, keyspace.EdgeIndex(1), 5.0, false)
	a.Update(keyspace.Key("k1"), 10, keyspace.EdgeIndex(2), 3.0, false)
	a.ClearForPlacement(keyspace.Key("k1"))

	_, ok := a.Get(keyspace.Key("k1"))
	require.False(t, ok)
}

func TestAggregatorEnforcesByteBudgetEvictingLowestBenefitFirst(t *testing.T) {
	var evicted int
	m := newTestMetrics(t)
	// budget fits exactly one entry the size of "high"; "low" is one key
	// byte smaller, so it fits alone but not alongside "high".
	probe := NewAggregator(nil, 4, 2, 1<<20, nil, nil)
	probe.Update(keyspace.Key("high"), 10, keyspace.EdgeIndex(1), 100.0, false)
	a := NewAggregator(nil, 4, 2, probe.usedBytes, nil, m)
	_ = evicted

	a.Update(keyspace.Key("low"), 10, keyspace.EdgeIndex(1), 1.0, false)
	a.Update(keyspace.Key("high"), 10, keyspace.EdgeIndex(1), 100.0, false)

	// both entries together exceed the budget, so the one with the smaller
	// max admission benefit ("low") is evicted and "high" remains.
	require.Equal(t, 1, a.Len())
	_, ok := a.Get(keyspace.Key("high"))
	require.True(t, ok)
	_, ok = a.Get(keyspace.Key("low"))
	require.False(t, ok)
}

func TestAggregatorSmallestMaxAdmissionBenefitOfEmptyIsZero(t *testing.T) {
	a := NewAggregator(nil, 4, 2, 1<<20, nil, nil)
	require.Zero(t, a.SmallestMaxAdmissionBenefit(false))
}

func TestAggregatorOrdersByMaxAdmissionBenefit(t *testing.T) {
	a := NewAggregator(nil, 4, 2, 1<<20, nil, nil)
	a.Update(keyspace.Key("low"), 10, keyspace.EdgeIndex(1), 1.0, false)
	a.Update(keyspace.Key("high"), 10, keyspace.EdgeIndex(1), 100.0, false)

	smallest := a.SmallestMaxAdmissionBenefit(false)
	low, _ := a.Get(keyspace.Key("low"))
	require.Equal(t, low.CalcMaxAdmissionBenefit(false, DefaultBenefitFunc), smallest)
}
