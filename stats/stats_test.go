// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/covered/keyspace"
)

func TestFrequencySumsAllSources(t *testing.T) {
	c := PerKeyCounters{LocalHits: 1, RedirectedHits: 2, CloudHits: 3}
	require.EqualValues(t, 6, c.Frequency())
}

func TestRecordLocalHitCreatesKeyAndGroup(t *testing.T) {
	a := NewPerGroupAggregator(64)
	a.RecordLocalHit(keyspace.Key("k1"))

	c, ok := a.Get(keyspace.Key("k1"))
	require.True(t, ok)
	require.EqualValues(t, 1, c.LocalHits)

	g, ok := a.GroupSnapshot(c.GroupID)
	require.True(t, ok)
	require.EqualValues(t, 1, g.KeyCount)
	require.EqualValues(t, 1, g.LocalHits)
}

func TestRecordRedirectedAndCloudHitsIncrementSeparately(t *testing.T) {
	a := NewPerGroupAggregator(64)
	a.RecordRedirectedHit(keyspace.Key("k1"))
	a.RecordCloudHit(keyspace.Key("k1"))
	a.RecordCloudHit(keyspace.Key("k1"))

	c, ok := a.Get(keyspace.Key("k1"))
	require.True(t, ok)
	require.EqualValues(t, 1, c.RedirectedHits)
	require.EqualValues(t, 2, c.CloudHits)
}

func TestGroupRolloverAfterMaxKeyCount(t *testing.T) {
	a := NewPerGroupAggregator(2)
	a.RecordLocalHit(keyspace.Key("k1"))
	a.RecordLocalHit(keyspace.Key("k2"))
	a.RecordLocalHit(keyspace.Key("k3"))

	c1, _ := a.Get(keyspace.Key("k1"))
	c2, _ := a.Get(keyspace.Key("k2"))
	c3, _ := a.Get(keyspace.Key("k3"))
	require.Equal(t, c1.GroupID, c2.GroupID)
	require.NotEqual(t, c2.GroupID, c3.GroupID)
	require.Equal(t, 2, a.GroupCount())
}

func TestGetUnknownKeyReportsAbsent(t *testing.T) {
	a := NewPerGroupAggregator(64)
	_, ok := a.Get(keyspace.Key("missing"))
	require.False(t, ok)
}

func TestZeroMaxGroupKeyCountTreatedAsOne(t *testing.T) {
	a := NewPerGroupAggregator(0)
	a.RecordLocalHit(keyspace.Key("k1"))
	a.RecordLocalHit(keyspace.Key("k2"))

	c1, _ := a.Get(keyspace.Key("k1"))
	c2, _ := a.Get(keyspace.Key("k2"))
	require.NotEqual(t, c1.GroupID, c2.GroupID)
}
