// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package directory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/covered/config"
	"github.com/luxfi/covered/coverederrs"
	"github.com/luxfi/covered/keyspace"
)

type fakeInvalidator struct {
	mu       sync.Mutex
	fail     map[keyspace.EdgeIndex]bool
	received []keyspace.EdgeIndex
}

func newFakeInvalidator() *fakeInvalidator {
	return &fakeInvalidator{fail: make(map[keyspace.EdgeIndex]bool)}
}

func (f *fakeInvalidator) Invalidate(_ context.Context, _ keyspace.Key, edge keyspace.EdgeIndex) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, edge)
	if f.fail[edge] {
		return context.DeadlineExceeded
	}
	return nil
}

func testTable(t *testing.T, inv Invalidator, onMetadata MetadataUpdateFunc) *Table {
	t.Helper()
	cfg := config.Default(4)
	return NewTable(cfg, nil, inv, nil, onMetadata, nil)
}

func TestLookupOnUnknownKeyIsMiss(t *testing.T) {
	table := testTable(t, newFakeInvalidator(), nil)
	beingWritten, hasValid, _, _ := table.Lookup(keyspace.Key("k1"), keyspace.EdgeIndex(0))
	require.False(t, beingWritten)
	require.False(t, hasValid)
}

func TestAdmitThenLookupReturnsSharer(t *testing.T) {
	table := testTable(t, newFakeInvalidator(), nil)
	key := keyspace.Key("k1")
	table.AdmitDirectory(key, keyspace.EdgeIndex(1))

	beingWritten, hasValid, info, _ := table.Lookup(key, keyspace.EdgeIndex(2))
	require.False(t, beingWritten)
	require.True(t, hasValid)
	require.Equal(t, keyspace.EdgeIndex(1), info.TargetEdge)
}

func TestAdmitFiresMetadataUpdateOnFirstAndSecondSharer(t *testing.T) {
	var modes []MetadataUpdateMode
	onMetadata := func(_ keyspace.Key, _ keyspace.EdgeIndex, mode MetadataUpdateMode) {
		modes = append(modes, mode)
	}
	table := testTable(t, newFakeInvalidator(), onMetadata)
	key := keyspace.Key("k1")

	table.AdmitDirectory(key, keyspace.EdgeIndex(1))
	require.Len(t, modes, 1)
	table.AdmitDirectory(key, keyspace.EdgeIndex(2))
	require.Len(t, modes, 3) // crossing 1->2 notifies both current sharers
	table.AdmitDirectory(key, keyspace.EdgeIndex(3))
	require.Len(t, modes, 3) // crossing 2->3 is not a notify boundary
}

func TestEvictDirectoryFiresMetadataUpdateOnDrop(t *testing.T) {
	var modes []MetadataUpdateMode
	onMetadata := func(_ keyspace.Key, _ keyspace.EdgeIndex, mode MetadataUpdateMode) {
		modes = append(modes, mode)
	}
	table := testTable(t, newFakeInvalidator(), onMetadata)
	key := keyspace.Key("k1")
	table.AdmitDirectory(key, keyspace.EdgeIndex(1))
	table.AdmitDirectory(key, keyspace.EdgeIndex(2))
	modes = nil

	table.EvictDirectory(key, keyspace.EdgeIndex(2), 10, nil)
	require.Len(t, modes, 1)
	require.Equal(t, MetadataNoCooperativeCopy, modes[0])
}

func TestEvictDirectoryDropsEmptyEntry(t *testing.T) {
	table := testTable(t, newFakeInvalidator(), nil)
	key := keyspace.Key("k1")
	table.AdmitDirectory(key, keyspace.EdgeIndex(1))
	table.EvictDirectory(key, keyspace.EdgeIndex(1), 10, nil)

	require.False(t, table.Exists(key))
}

func TestExistsReflectsSharerOrLockState(t *testing.T) {
	table := testTable(t, newFakeInvalidator(), nil)
	key := keyspace.Key("k1")
	require.False(t, table.Exists(key))

	table.AdmitDirectory(key, keyspace.EdgeIndex(1))
	require.True(t, table.Exists(key))
}

func TestAcquireWritelockGrantedWithNoSharers(t *testing.T) {
	table := testTable(t, newFakeInvalidator(), nil)
	key := keyspace.Key("k1")

	result, err := table.AcquireWritelock(context.Background(), key, keyspace.EdgeIndex(0))
	require.NoError(t, err)
	require.Equal(t, Granted, result)
}

func TestAcquireWritelockInvalidatesSharersThenGrants(t *testing.T) {
	inv := newFakeInvalidator()
	table := testTable(t, inv, nil)
	key := keyspace.Key("k1")
	table.AdmitDirectory(key, keyspace.EdgeIndex(1))
	table.AdmitDirectory(key, keyspace.EdgeIndex(2))

	result, err := table.AcquireWritelock(context.Background(), key, keyspace.EdgeIndex(1))
	require.NoError(t, err)
	require.Equal(t, Granted, result)
	require.ElementsMatch(t, []keyspace.EdgeIndex{keyspace.EdgeIndex(2)}, inv.received)
}

func TestAcquireWritelockReturnsBusyWhenAlreadyLocked(t *testing.T) {
	table := testTable(t, newFakeInvalidator(), nil)
	key := keyspace.Key("k1")

	_, err := table.AcquireWritelock(context.Background(), key, keyspace.EdgeIndex(0))
	require.NoError(t, err)

	result, err := table.AcquireWritelock(context.Background(), key, keyspace.EdgeIndex(1))
	require.NoError(t, err)
	require.Equal(t, Busy, result)
}

func TestAcquireWritelockTimesOutAfterExhaustingRetries(t *testing.T) {
	inv := newFakeInvalidator()
	inv.fail[keyspace.EdgeIndex(2)] = true
	cfg := config.Default(4)
	cfg.InvalidationAckTimeoutRetries = 1
	table := NewTable(cfg, nil, inv, nil, nil, nil)
	key := keyspace.Key("k1")
	table.AdmitDirectory(key, keyspace.EdgeIndex(2))

	result, err := table.AcquireWritelock(context.Background(), key, keyspace.EdgeIndex(0))
	require.ErrorIs(t, err, coverederrs.ErrInvalidationTimeout)
	require.Equal(t, Busy, result)
}

func TestReleaseWritelockSetsLastWriter(t *testing.T) {
	table := testTable(t, newFakeInvalidator(), nil)
	key := keyspace.Key("k1")
	_, err := table.AcquireWritelock(context.Background(), key, keyspace.EdgeIndex(0))
	require.NoError(t, err)

	err = table.ReleaseWritelock(key, keyspace.EdgeIndex(0), 10, nil)
	require.NoError(t, err)

	table.AdmitDirectory(key, keyspace.EdgeIndex(0))
	table.AdmitDirectory(key, keyspace.EdgeIndex(1))
	_, _, info, _ := table.Lookup(key, keyspace.EdgeIndex(2))
	require.Equal(t, keyspace.EdgeIndex(0), info.TargetEdge)
}

func TestReleaseWritelockByNonHolderPanics(t *testing.T) {
	table := testTable(t, newFakeInvalidator(), nil)
	key := keyspace.Key("k1")
	_, err := table.AcquireWritelock(context.Background(), key, keyspace.EdgeIndex(0))
	require.NoError(t, err)

	require.Panics(t, func() {
		table.ReleaseWritelock(key, keyspace.EdgeIndex(1), 10, nil)
	})
}
