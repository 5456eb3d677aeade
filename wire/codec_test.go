// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/covered/directory"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/popularity"
	"github.com/luxfi/covered/victim"
)

func TestKeyRoundTrip(t *testing.T) {
	w := &Writer{}
	EncodeKey(w, keyspace.Key("object-42"))

	r := NewReader(w.Bytes())
	got, err := DecodeKey(r)
	require.NoError(t, err)
	require.Equal(t, keyspace.Key("object-42"), got)
}

func TestValueRoundTrip(t *testing.T) {
	w := &Writer{}
	EncodeValue(w, []byte("some bytes"))

	r := NewReader(w.Bytes())
	got, err := DecodeValue(r)
	require.NoError(t, err)
	require.Equal(t, []byte("some bytes"), got)
}

func TestDecodeTruncatedFrameErrors(t *testing.T) {
	w := &Writer{}
	EncodeKey(w, keyspace.Key("full-key"))
	truncated := w.Bytes()[:len(w.Bytes())-2]

	r := NewReader(truncated)
	_, err := DecodeKey(r)
	require.Error(t, err)
}

func TestDirectoryInfoRoundTrip(t *testing.T) {
	w := &Writer{}
	EncodeDirectoryInfo(w, directory.Info{TargetEdge: keyspace.EdgeIndex(7)})

	r := NewReader(w.Bytes())
	got, err := DecodeDirectoryInfo(r)
	require.NoError(t, err)
	require.Equal(t, keyspace.EdgeIndex(7), got.TargetEdge)
}

func TestEdgesetRoundTrip(t *testing.T) {
	s := directory.NewEdgeset(1, 2, 3)
	w := &Writer{}
	EncodeEdgeset(w, s)

	r := NewReader(w.Bytes())
	got, err := DecodeEdgeset(r)
	require.NoError(t, err)
	require.Equal(t, len(s), len(got))
	for e := range s {
		require.True(t, got.Contains(e))
	}
}

func TestCollectedPopularityRoundTrip(t *testing.T) {
	c := popularity.Collected{IsTracked: true, LocalUncachedPopularity: 3.5}
	w := &Writer{}
	EncodeCollectedPopularity(w, c)

	r := NewReader(w.Bytes())
	got, err := DecodeCollectedPopularity(r)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestFastPathHintRoundTrip(t *testing.T) {
	h := popularity.FastPathHint{SumLocalUncachedPopularityExcludingRequester: 10.5, SmallestMaxAdmissionBenefitInAggregator: 2.25}
	w := &Writer{}
	EncodeFastPathHint(w, h)

	r := NewReader(w.Bytes())
	got, err := DecodeFastPathHint(r)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestVictimCacheinfoRoundTripWithoutPrior(t *testing.T) {
	v := victim.Cacheinfo{Key: keyspace.Key("k1"), ObjectSize: 1024, LocalCachedPopularity: 2, RedirectedCachedPopularity: 1}
	w := &Writer{}
	EncodeVictimCacheinfo(w, v, nil)

	r := NewReader(w.Bytes())
	got, err := DecodeVictimCacheinfo(r, nil)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestVictimCacheinfoDedupsUnchangedFieldsAgainstPrior(t *testing.T) {
	prior := victim.Cacheinfo{Key: keyspace.Key("k1"), ObjectSize: 1024, LocalCachedPopularity: 2, RedirectedCachedPopularity: 1}
	v := victim.Cacheinfo{Key: keyspace.Key("k1"), ObjectSize: 1024, LocalCachedPopularity: 9, RedirectedCachedPopularity: 1}

	w := &Writer{}
	EncodeVictimCacheinfo(w, v, &prior)
	undeduped := &Writer{}
	EncodeVictimCacheinfo(undeduped, v, nil)
	require.Less(t, len(w.Bytes()), len(undeduped.Bytes()))

	r := NewReader(w.Bytes())
	got, err := DecodeVictimCacheinfo(r, &prior)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestVictimCacheinfoDedupedFieldWithoutPriorErrors(t *testing.T) {
	prior := victim.Cacheinfo{Key: keyspace.Key("k1"), ObjectSize: 1024}
	v := victim.Cacheinfo{Key: keyspace.Key("k1"), ObjectSize: 1024}

	w := &Writer{}
	EncodeVictimCacheinfo(w, v, &prior)

	r := NewReader(w.Bytes())
	_, err := DecodeVictimCacheinfo(r, nil)
	require.Error(t, err)
}

func TestDirinfoSetCompleteRoundTrip(t *testing.T) {
	set := directory.NewDirinfoSet()
	set.Add(keyspace.EdgeIndex(1))
	set.Add(keyspace.EdgeIndex(2))

	w := &Writer{}
	EncodeDirinfoSet(w, set)

	r := NewReader(w.Bytes())
	got, complete, err := DecodeDirinfoSet(r)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, 2, got.Len())
}

func TestDirinfoSetCompressedRoundTrip(t *testing.T) {
	w := &Writer{}
	EncodeDirinfoSet(w, nil)

	r := NewReader(w.Bytes())
	got, complete, err := DecodeDirinfoSet(r)
	require.NoError(t, err)
	require.False(t, complete)
	require.Equal(t, 0, got.Len())
}

func TestVictimSyncsetCompleteRoundTrip(t *testing.T) {
	set := directory.NewDirinfoSet()
	set.Add(keyspace.EdgeIndex(1))

	s := victim.Syncset{
		Mode:             victim.SyncComplete,
		CacheMarginBytes: 4096,
		Victims: []victim.Cacheinfo{
			{Key: keyspace.Key("k1"), ObjectSize: 10, LocalCachedPopularity: 1, RedirectedCachedPopularity: 0},
		},
		BeaconedDirinfo: map[string]*directory.DirinfoSet{
			"k1": set,
		},
	}

	w := &Writer{}
	EncodeVictimSyncset(w, s)

	r := NewReader(w.Bytes())
	got, err := DecodeVictimSyncset(r, nil)
	require.NoError(t, err)
	require.Equal(t, victim.SyncComplete, got.Mode)
	require.EqualValues(t, 4096, got.CacheMarginBytes)
	require.Len(t, got.Victims, 1)
	require.Equal(t, "k1", string(got.Victims[0].Key))
	require.Equal(t, 1, got.BeaconedDirinfo["k1"].Len())
}

func TestVictimSyncsetDeltaRoundTrip(t *testing.T) {
	s := victim.Syncset{
		Mode:                  victim.SyncDelta,
		CacheMarginDeltaBytes: -512,
		Victims:               []victim.Cacheinfo{{Key: keyspace.Key("k2"), ObjectSize: 5}},
		BeaconedDirinfo:       map[string]*directory.DirinfoSet{},
	}

	w := &Writer{}
	EncodeVictimSyncset(w, s)

	r := NewReader(w.Bytes())
	got, err := DecodeVictimSyncset(r, nil)
	require.NoError(t, err)
	require.Equal(t, victim.SyncDelta, got.Mode)
	require.EqualValues(t, -512, got.CacheMarginDeltaBytes)
	require.Len(t, got.Victims, 1)
}

func TestVictimSyncsetDeltaDedupsVictimsAgainstPriors(t *testing.T) {
	prior := victim.Cacheinfo{Key: keyspace.Key("k1"), ObjectSize: 1024, LocalCachedPopularity: 2, RedirectedCachedPopularity: 1}
	updated := victim.Cacheinfo{Key: keyspace.Key("k1"), ObjectSize: 1024, LocalCachedPopularity: 9, RedirectedCachedPopularity: 1}

	s := victim.Syncset{
		Mode:                  victim.SyncDelta,
		CacheMarginDeltaBytes: -512,
		Victims:               []victim.Cacheinfo{updated},
		BeaconedDirinfo:       map[string]*directory.DirinfoSet{},
		Priors:                map[string]victim.Cacheinfo{prior.Key.AsMapKey(): prior},
	}
	undeduped := s
	undeduped.Priors = nil

	w := &Writer{}
	EncodeVictimSyncset(w, s)
	plainW := &Writer{}
	EncodeVictimSyncset(plainW, undeduped)
	require.Less(t, len(w.Bytes()), len(plainW.Bytes()))

	r := NewReader(w.Bytes())
	got, err := DecodeVictimSyncset(r, map[string]victim.Cacheinfo{prior.Key.AsMapKey(): prior})
	require.NoError(t, err)
	require.Len(t, got.Victims, 1)
	require.Equal(t, updated, got.Victims[0])
}
