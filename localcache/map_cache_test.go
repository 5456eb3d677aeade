// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/covered/keyspace"
)

func TestMapCacheAdmitAndGet(t *testing.T) {
	c := NewMapCache(nil)
	key := keyspace.Key("k1")
	c.Admit(key, []byte("v1"), true)

	cached, value := c.Get(key)
	require.True(t, cached)
	require.Equal(t, []byte("v1"), value)
	require.EqualValues(t, 2, c.SizeForCapacity())
}

func TestMapCacheGetMiss(t *testing.T) {
	c := NewMapCache(nil)
	cached, value := c.Get(keyspace.Key("missing"))
	require.False(t, cached)
	require.Nil(t, value)
}

func TestMapCacheUpdateRequiresExisting(t *testing.T) {
	c := NewMapCache(nil)
	require.False(t, c.Update(keyspace.Key("k1"), []byte("v1")))

	c.Admit(keyspace.Key("k1"), []byte("v1"), true)
	require.True(t, c.Update(keyspace.Key("k1"), []byte("v2")))

	_, value := c.Get(keyspace.Key("k1"))
	require.Equal(t, []byte("v2"), value)
}

func TestMapCacheAdmitReplacesExistingSize(t *testing.T) {
	c := NewMapCache(nil)
	key := keyspace.Key("k1")
	c.Admit(key, []byte("aaaa"), true)
	require.EqualValues(t, 4, c.SizeForCapacity())
	c.Admit(key, []byte("bb"), true)
	require.EqualValues(t, 2, c.SizeForCapacity())
}

func TestMapCacheEvictWithGivenKey(t *testing.T) {
	c := NewMapCache(nil)
	key := keyspace.Key("k1")
	c.Admit(key, []byte("v1"), true)

	value, evicted := c.EvictWithGivenKey(key)
	require.True(t, evicted)
	require.Equal(t, []byte("v1"), value)
	require.EqualValues(t, 0, c.SizeForCapacity())

	_, evicted = c.EvictWithGivenKey(key)
	require.False(t, evicted)
}

func TestMapCacheEvictNoGivenKeyUsesLRUOrder(t *testing.T) {
	c := NewMapCache(nil)
	c.Admit(keyspace.Key("k1"), []byte("aa"), true)
	c.Admit(keyspace.Key("k2"), []byte("bb"), true)
	c.Admit(keyspace.Key("k3"), []byte("cc"), true)
	c.Get(keyspace.Key("k1")) // touch k1 so it is most-recently-used

	evicted := c.EvictNoGivenKey(2)
	require.Len(t, evicted, 1)
	_, stillHasK2 := evicted["k2"]
	require.True(t, stillHasK2)
}

func TestMapCacheGetVictimKeysReportsInsufficiency(t *testing.T) {
	c := NewMapCache(nil)
	c.Admit(keyspace.Key("k1"), []byte("aa"), true)

	set, hasEnough := c.GetVictimKeys(nil, 100)
	require.False(t, hasEnough)
	require.Len(t, set.Keys, 1)
}

func TestMapCacheGetVictimKeysExcludesExisting(t *testing.T) {
	c := NewMapCache(nil)
	c.Admit(keyspace.Key("k1"), []byte("aa"), true)
	c.Admit(keyspace.Key("k2"), []byte("bb"), true)

	existing := map[string]struct{}{"k1": {}}
	set, hasEnough := c.GetVictimKeys(existing, 2)
	require.True(t, hasEnough)
	require.Equal(t, []keyspace.Key{keyspace.Key("k2")}, set.Keys)
}

func TestMapCacheHasFineGrainedManagementIsFalse(t *testing.T) {
	require.False(t, NewMapCache(nil).HasFineGrainedManagement())
}

func TestMapCacheInvokeCustomFunction(t *testing.T) {
	called := false
	c := NewMapCache(func(name string, param any) (any, error) {
		called = true
		require.Equal(t, "custom", name)
		return param, nil
	})
	result, err := c.InvokeCustomFunction("custom", 42)
	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.True(t, called)
}

func TestMapCacheInvokeCustomFunctionNilIsNoop(t *testing.T) {
	c := NewMapCache(nil)
	result, err := c.InvokeCustomFunction("anything", nil)
	require.NoError(t, err)
	require.Nil(t, result)
}
