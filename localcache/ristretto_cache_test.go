// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/covered/keyspace"
)

func newTestRistretto(t *testing.T) *RistrettoCache {
	t.Helper()
	c, err := NewRistrettoCache(16<<20, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRistrettoAdmitAndGet(t *testing.T) {
	c := newTestRistretto(t)
	key := keyspace.Key("k1")
	c.Admit(key, []byte("v1"), true)
	time.Sleep(10 * time.Millisecond) // ristretto's admission pipeline is async

	cached, value := c.Get(key)
	require.True(t, cached)
	require.Equal(t, []byte("v1"), value)
}

func TestRistrettoGetMiss(t *testing.T) {
	c := newTestRistretto(t)
	cached, value := c.Get(keyspace.Key("missing"))
	require.False(t, cached)
	require.Nil(t, value)
}

func TestRistrettoUpdateRequiresExisting(t *testing.T) {
	c := newTestRistretto(t)
	require.False(t, c.Update(keyspace.Key("k1"), []byte("v1")))

	c.Admit(keyspace.Key("k1"), []byte("v1"), true)
	time.Sleep(10 * time.Millisecond)
	require.True(t, c.Update(keyspace.Key("k1"), []byte("v2")))
}

func TestRistrettoEvictWithGivenKey(t *testing.T) {
	c := newTestRistretto(t)
	key := keyspace.Key("k1")
	c.Admit(key, []byte("v1"), true)
	time.Sleep(10 * time.Millisecond)

	value, evicted := c.EvictWithGivenKey(key)
	require.True(t, evicted)
	require.Equal(t, []byte("v1"), value)

	_, evicted = c.EvictWithGivenKey(key)
	require.False(t, evicted)
}

func TestRistrettoHasFineGrainedManagementIsTrue(t *testing.T) {
	require.True(t, newTestRistretto(t).HasFineGrainedManagement())
}

func TestRistrettoInvokeCustomFunction(t *testing.T) {
	c, err := NewRistrettoCache(16<<20, func(name string, param any) (any, error) {
		return name + ":" + param.(string), nil
	})
	require.NoError(t, err)
	defer c.Close()

	result, err := c.InvokeCustomFunction("mode", "strict")
	require.NoError(t, err)
	require.Equal(t, "mode:strict", result)
}
