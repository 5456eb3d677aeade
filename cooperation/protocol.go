// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cooperation

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/log"

	"github.com/luxfi/covered/cachewrapper"
	"github.com/luxfi/covered/config"
	"github.com/luxfi/covered/coverederrs"
	"github.com/luxfi/covered/directory"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/localcache"
	"github.com/luxfi/covered/popularity"
	"github.com/luxfi/covered/stats"
	"github.com/luxfi/covered/victim"
)

// Protocol drives the request-level state machines of spec.md §4.9 for
// one edge node: Local Get, Local Write, Invalidation, non-blocking
// placement deployment and lazy victim fetching. It owns no beacon state
// itself -- beacon-side operations are reached through BeaconLocator,
// which resolves a local or remote BeaconClient for a given key.
type Protocol struct {
	edge        keyspace.EdgeIndex
	cfg         config.Context
	log         log.Logger
	cache       *cachewrapper.CacheWrapper
	tracker     *victim.Tracker
	beaconOf    BeaconLocator
	transport   Transport
	benefitFunc popularity.BenefitFunc
	stats       *stats.PerGroupAggregator
}

// NewProtocol returns a Protocol for the given edge. statsAgg may be nil.
func NewProtocol(edge keyspace.EdgeIndex, cfg config.Context, logger log.Logger, cache *cachewrapper.CacheWrapper, tracker *victim.Tracker, beaconOf BeaconLocator, transport Transport, benefitFunc popularity.BenefitFunc, statsAgg *stats.PerGroupAggregator) *Protocol {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if benefitFunc == nil {
		benefitFunc = popularity.DefaultBenefitFunc
	}
	return &Protocol{
		edge:        edge,
		cfg:         cfg,
		log:         logger,
		cache:       cache,
		tracker:     tracker,
		beaconOf:    beaconOf,
		transport:   transport,
		benefitFunc: benefitFunc,
		stats:       statsAgg,
	}
}

// LocalGet implements spec.md §4.9 Local Get. localUncachedPopularity is
// this edge's own observed popularity for key, piggybacked to the beacon
// when the edge does not already hold a valid copy.
func (p *Protocol) LocalGet(ctx context.Context, key keyspace.Key, objectSizeHint keyspace.ObjectSize, localUncachedPopularity keyspace.Popularity) ([]byte, error) {
	if cached, valid, value := p.cache.Get(key); cached && valid {
		return value, nil
	}

	beacon := p.beaconOf(key)
	isBeingWritten, hasValidDir, dirInfo, hint, err := beacon.DirectoryLookup(ctx, key, p.edge)
	if err != nil {
		return nil, err
	}
	if isBeingWritten {
		return nil, coverederrs.ErrBusy
	}

	beacon.ReportUncachedPopularity(ctx, key, objectSizeHint, p.edge, popularity.Collected{
		IsTracked:               true,
		LocalUncachedPopularity: localUncachedPopularity,
	}, hasValidDir)

	if err := p.syncVictims(ctx, key, beacon); err != nil {
		p.log.Debug("victim sync to beacon failed", "key", key.String(), "error", err)
	}

	var value []byte
	var found bool
	if hasValidDir {
		value, found, err = p.transport.RedirectedGet(ctx, dirInfo.TargetEdge, key)
		if found && p.stats != nil {
			p.stats.RecordRedirectedHit(key)
		}
	} else {
		value, found, err = p.transport.GlobalGet(ctx, key)
		if found && p.stats != nil {
			p.stats.RecordCloudHit(key)
		}
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, coverederrs.ErrNotCached
	}

	if uint64(len(value)) > p.cfg.MaxObjectSizeBytes {
		return nil, coverederrs.ErrCapacityExceeded
	}

	if applied := p.cache.UpdateIfInvalidForGetrsp(key, value); !applied {
		p.cache.Admit(key, value, true)
	}
	if err := beacon.AdmitDirectory(ctx, key, p.edge); err != nil {
		p.log.Debug("admit_directory failed", "key", key.String(), "error", err)
	}

	if hint != nil && p.selfElects(*hint, localUncachedPopularity) {
		p.log.Debug("fast path self-election", "key", key.String(), "edge", p.edge)
	}

	return value, nil
}

// selfElects implements spec.md §4.8 step 5: a requester holding a
// FastPathHint computes i=1 locally and may self-elect as a placement
// edge without a beacon round trip.
func (p *Protocol) selfElects(hint popularity.FastPathHint, localUncachedPopularity keyspace.Popularity) bool {
	if !p.cfg.FastPathEnabled {
		return false
	}
	benefit := p.benefitFunc(localUncachedPopularity, false, hint.SumLocalUncachedPopularityExcludingRequester)
	return benefit > hint.SmallestMaxAdmissionBenefitInAggregator && benefit > p.cfg.MinAdmissionBenefit
}

// LocalWrite implements spec.md §4.9 Local Write: acquires the beacon's
// writelock, applies the mutation locally and to the cloud origin in
// parallel, releases the lock, then lets the beacon plan and deploy any
// additional cooperative placements.
func (p *Protocol) LocalWrite(ctx context.Context, key keyspace.Key, value []byte, isDelete bool, localUncachedPopularity keyspace.Popularity) error {
	if !isDelete && uint64(len(value)) > p.cfg.MaxObjectSizeBytes {
		return coverederrs.ErrCapacityExceeded
	}

	beacon := p.beaconOf(key)
	result, err := beacon.AcquireWritelock(ctx, key, p.edge)
	if err != nil {
		return err
	}
	if result == directory.Busy {
		return coverederrs.ErrBusy
	}

	if err := p.syncVictims(ctx, key, beacon); err != nil {
		p.log.Debug("victim sync to beacon failed", "key", key.String(), "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if isDelete {
			p.cache.Remove(key)
		} else if !p.cache.Update(key, value) {
			p.cache.Admit(key, value, true)
		}
		return nil
	})
	g.Go(func() error {
		if isDelete {
			return p.transport.GlobalDel(gctx, key)
		}
		return p.transport.GlobalPut(gctx, key, value)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	objectSize := keyspace.ObjectSize(len(value))
	if err := beacon.ReleaseWritelock(ctx, key, p.edge, objectSize, &popularity.Collected{
		IsTracked:               true,
		LocalUncachedPopularity: localUncachedPopularity,
	}); err != nil {
		return err
	}

	if isDelete {
		return nil
	}
	if err := beacon.AdmitDirectory(ctx, key, p.edge); err != nil {
		p.log.Debug("writer directory admission failed", "key", key.String(), "error", err)
	}

	excludeEdge := p.edge
	plan := beacon.Plan(ctx, key, objectSize, true, &excludeEdge)
	if len(plan.Placement) > 0 {
		beacon.ClearForPlacement(ctx, key)
	}
	for _, target := range plan.Placement {
		syncset := p.tracker.GetVictimSyncset(target)
		if err := p.transport.PlacementNotify(ctx, target, key, value, true, syncset); err != nil {
			p.log.Warn("placement notify failed", "key", key.String(), "edge", target, "error", err)
		}
	}
	for _, target := range plan.FetchEdgeset {
		existing := plan.VictimsByEdge[target]
		_, hasEnough, err := p.transport.VictimFetch(ctx, target, existing, uint64(objectSize))
		if err != nil {
			p.log.Debug("lazy victim fetch failed", "edge", target, "error", err)
			continue
		}
		if !hasEnough {
			p.log.Debug("lazy victim fetch still insufficient", "edge", target)
		}
	}
	return nil
}

// HandleInvalidation is the recipient side of MSI invalidation (spec.md
// §4.9): the beacon (possibly remote) invokes this through Transport for
// every sharer other than the writer.
func (p *Protocol) HandleInvalidation(_ context.Context, key keyspace.Key) error {
	p.cache.InvalidateKeyForLocalCachedObject(key)
	return nil
}

// HandlePlacementNotify is the recipient side of a non-blocking placement
// deployment (spec.md §4.9 BgplacePlacementNotify): admit the pushed
// value and begin advertising it as a local victim candidate.
func (p *Protocol) HandlePlacementNotify(_ context.Context, key keyspace.Key, value []byte, isValid bool, syncset victim.Syncset) error {
	p.cache.Admit(key, value, isValid)
	return nil
}

// HandleMetadataUpdate is the recipient side of the supplemented
// Metadata-Update request (SPEC_FULL.md §5 item 5): it folds the new
// sharer mode into the LocalCache's policy-specific accounting through
// the CustomFunc extension point.
func (p *Protocol) HandleMetadataUpdate(_ context.Context, key keyspace.Key, mode directory.MetadataUpdateMode) error {
	_, err := p.cache.InvokeCustomFunction(localcache.FuncSetMetadataMode, mode)
	if err != nil {
		p.log.Debug("metadata_mode custom function failed", "key", key.String(), "error", err)
	}
	return err
}

// HandleVictimFetch is the recipient side of a lazy victim fetch request
// (spec.md §7 MissingVictim): drain additional candidates beyond the
// already-synced list.
func (p *Protocol) HandleVictimFetch(_ context.Context, existing []keyspace.Key, requiredSize uint64) ([]keyspace.Key, bool) {
	additional, hasEnough := p.cache.FetchVictimCacheinfosForRequiredSize(existing, requiredSize)
	return additional, hasEnough
}

func (p *Protocol) syncVictims(ctx context.Context, key keyspace.Key, beacon BeaconClient) error {
	beaconEdge := keyspace.EdgeIndex(p.cfg.BeaconOf(key))
	syncset := p.tracker.GetVictimSyncset(beaconEdge)
	err := beacon.SyncVictims(ctx, p.edge, syncset)
	if errors.Is(err, coverederrs.ErrStaleVictimSync) {
		p.tracker.RecoverStaleSync(beaconEdge)
		syncset = p.tracker.GetVictimSyncset(beaconEdge)
		err = beacon.SyncVictims(ctx, p.edge, syncset)
	}
	return err
}
