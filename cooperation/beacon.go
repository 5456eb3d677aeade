// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cooperation

import (
	"context"

	"github.com/luxfi/covered/config"
	"github.com/luxfi/covered/directory"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/metrics"
	"github.com/luxfi/covered/placement"
	"github.com/luxfi/covered/popularity"
	"github.com/luxfi/covered/victim"
	"github.com/luxfi/covered/wire"
)

// LocalBeacon is the in-process BeaconClient implementation: it owns the
// DirectoryTable, PopularityAggregator and VictimTracker for every key
// this edge beacons, and answers BeaconClient calls directly rather than
// over the wire. A distributed deployment reaches a remote beacon through
// the same interface, backed by RPC.
type LocalBeacon struct {
	cfg         config.Context
	table       *directory.Table
	aggregator  *popularity.Aggregator
	tracker     *victim.Tracker
	benefitFunc popularity.BenefitFunc
	metrics     *metrics.Metrics
}

// NewLocalBeacon returns a LocalBeacon wiring table, aggregator and
// tracker together. table must have been constructed with aggregator so
// FastPathHint/CollectedPopularity fold-in share state. m may be nil.
func NewLocalBeacon(cfg config.Context, table *directory.Table, aggregator *popularity.Aggregator, tracker *victim.Tracker, benefitFunc popularity.BenefitFunc, m *metrics.Metrics) *LocalBeacon {
	if benefitFunc == nil {
		benefitFunc = popularity.DefaultBenefitFunc
	}
	return &LocalBeacon{cfg: cfg, table: table, aggregator: aggregator, tracker: tracker, benefitFunc: benefitFunc, metrics: m}
}

func (b *LocalBeacon) DirectoryLookup(_ context.Context, key keyspace.Key, requester keyspace.EdgeIndex) (bool, bool, directory.Info, *popularity.FastPathHint, error) {
	isBeingWritten, hasValidDir, info, hint := b.table.Lookup(key, requester)
	return isBeingWritten, hasValidDir, info, hint, nil
}

func (b *LocalBeacon) AdmitDirectory(_ context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error {
	b.table.AdmitDirectory(key, edge)
	return nil
}

func (b *LocalBeacon) EvictDirectory(_ context.Context, key keyspace.Key, edge keyspace.EdgeIndex, objectSize keyspace.ObjectSize, collected *popularity.Collected) error {
	b.table.EvictDirectory(key, edge, objectSize, collected)
	return nil
}

func (b *LocalBeacon) AcquireWritelock(ctx context.Context, key keyspace.Key, requester keyspace.EdgeIndex) (directory.LockResult, error) {
	return b.table.AcquireWritelock(ctx, key, requester)
}

func (b *LocalBeacon) ReleaseWritelock(_ context.Context, key keyspace.Key, requester keyspace.EdgeIndex, objectSize keyspace.ObjectSize, collected *popularity.Collected) error {
	return b.table.ReleaseWritelock(key, requester, objectSize, collected)
}

func (b *LocalBeacon) SyncVictims(_ context.Context, fromEdge keyspace.EdgeIndex, s victim.Syncset) error {
	if b.metrics != nil {
		w := &wire.Writer{}
		wire.EncodeVictimSyncset(w, s)
		mode := "delta"
		if s.Mode == victim.SyncComplete {
			mode = "complete"
		}
		b.metrics.VictimSyncSent(mode, len(w.Bytes()))
	}
	return b.tracker.UpdateLocalSyncedVictims(fromEdge, s)
}

func (b *LocalBeacon) Plan(_ context.Context, key keyspace.Key, objectSize keyspace.ObjectSize, isGlobalCached bool, excludeEdge *keyspace.EdgeIndex) placement.Result {
	agg, ok := b.aggregator.Get(key)
	if !ok {
		return placement.Result{}
	}
	return placement.Plan(b.cfg, objectSize, agg, b.tracker, isGlobalCached, b.benefitFunc, excludeEdge, b.metrics)
}

func (b *LocalBeacon) ClearForPlacement(_ context.Context, key keyspace.Key) {
	b.aggregator.ClearForPlacement(key)
}

func (b *LocalBeacon) Exists(_ context.Context, key keyspace.Key) bool {
	return b.table.Exists(key)
}

func (b *LocalBeacon) ReportUncachedPopularity(_ context.Context, key keyspace.Key, objectSize keyspace.ObjectSize, edge keyspace.EdgeIndex, collected popularity.Collected, isGlobalCached bool) {
	if !collected.IsTracked {
		b.aggregator.Clear(key, edge)
		return
	}
	b.aggregator.Update(key, objectSize, edge, collected.LocalUncachedPopularity, isGlobalCached)
}
