// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command coverednode wires the full cooperation protocol stack into an
// in-process simulation of N edges sharing one cloud origin, grounded on
// the teacher's cmd/consensus demo style: a small flag-driven main that
// builds the core collaborators directly rather than through a DI
// framework.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/log"

	"github.com/luxfi/covered/cachewrapper"
	"github.com/luxfi/covered/config"
	"github.com/luxfi/covered/cooperation"
	"github.com/luxfi/covered/directory"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/localcache"
	"github.com/luxfi/covered/metrics"
	"github.com/luxfi/covered/popularity"
	"github.com/luxfi/covered/stats"
	"github.com/luxfi/covered/victim"
)

func main() {
	edgeCount := flag.Int("edges", 4, "number of simulated edge nodes")
	topK := flag.Int("topk", 4, "topk edge count for the popularity aggregator")
	flag.Parse()

	logger := log.NewLogger("coverednode")
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metrics: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Default(*edgeCount)
	cfg.TopKEdgeCount = *topK
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	sim := newSimulation(cfg, logger, m)
	sim.run(context.Background())
}

// edgeNode bundles everything one simulated edge owns: its cache, its
// victim tracker (sender role for this edge plus receiver role when this
// edge beacons some key), and its LocalBeacon when it is the beacon.
type edgeNode struct {
	index    keyspace.EdgeIndex
	cache    *cachewrapper.CacheWrapper
	tracker  *victim.Tracker
	beacon   *cooperation.LocalBeacon
	protocol *cooperation.Protocol
}

// simulation is the in-process Transport implementation: every RPC-shaped
// call is a direct method call against the target edgeNode.
type simulation struct {
	cfg    config.Context
	log    log.Logger
	edges  []*edgeNode
	cloud  map[string][]byte
	stats  *stats.PerGroupAggregator
}

func newSimulation(cfg config.Context, logger log.Logger, m *metrics.Metrics) *simulation {
	sim := &simulation{
		cfg:   cfg,
		log:   logger,
		edges: make([]*edgeNode, cfg.EdgeCount),
		cloud: make(map[string][]byte),
		stats: stats.NewPerGroupAggregator(64),
	}

	aggregators := make([]*popularity.Aggregator, cfg.EdgeCount)
	trackers := make([]*victim.Tracker, cfg.EdgeCount)
	for i := 0; i < cfg.EdgeCount; i++ {
		aggregators[i] = popularity.NewAggregator(logger, cfg.EdgeCount, cfg.TopKEdgeCount, cfg.PopularityAggregationCapacityBytes, nil, m)
		trackers[i] = victim.NewTracker(cfg.W1, cfg.W2)
	}

	for i := 0; i < cfg.EdgeCount; i++ {
		idx := keyspace.EdgeIndex(i)
		cache, cerr := localcache.NewRistrettoCache(64<<20, nil)
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "edge %d: %v\n", i, cerr)
			os.Exit(1)
		}
		cw := cachewrapper.New(cfg, cache, sim.stats, trackers[i])

		onMetadata := sim.metadataUpdateFunc(idx)
		table := directory.NewTable(cfg, logger, sim.invalidatorFor(idx), aggregators[i], onMetadata, m)
		beacon := cooperation.NewLocalBeacon(cfg, table, aggregators[i], trackers[i], nil, m)

		node := &edgeNode{index: idx, cache: cw, tracker: trackers[i], beacon: beacon}
		node.protocol = cooperation.NewProtocol(idx, cfg, logger, cw, trackers[i], sim.beaconLocator, sim, nil, sim.stats)
		sim.edges[i] = node
	}
	return sim
}

func (s *simulation) beaconLocator(key keyspace.Key) cooperation.BeaconClient {
	return s.edges[s.cfg.BeaconOf(key)].beacon
}

func (s *simulation) invalidatorFor(self keyspace.EdgeIndex) directory.Invalidator {
	return invalidatorFunc(func(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error {
		return s.Invalidate(ctx, key, edge)
	})
}

func (s *simulation) metadataUpdateFunc(_ keyspace.EdgeIndex) directory.MetadataUpdateFunc {
	return func(key keyspace.Key, edge keyspace.EdgeIndex, mode directory.MetadataUpdateMode) {
		if err := s.MetadataUpdate(context.Background(), edge, key, mode); err != nil {
			s.log.Debug("metadata update delivery failed", "edge", edge, "error", err)
		}
	}
}

type invalidatorFunc func(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error

func (f invalidatorFunc) Invalidate(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error {
	return f(ctx, key, edge)
}

// Transport implementation -- every call below is a direct dispatch to
// the target edge's Protocol, standing in for the wire codec a real
// deployment would use.

func (s *simulation) RedirectedGet(_ context.Context, edge keyspace.EdgeIndex, key keyspace.Key) ([]byte, bool, error) {
	cached, valid, value := s.edges[edge].cache.Get(key)
	return value, cached && valid, nil
}

func (s *simulation) GlobalGet(_ context.Context, key keyspace.Key) ([]byte, bool, error) {
	v, ok := s.cloud[key.AsMapKey()]
	return v, ok, nil
}

func (s *simulation) GlobalPut(_ context.Context, key keyspace.Key, value []byte) error {
	s.cloud[key.AsMapKey()] = value
	return nil
}

func (s *simulation) GlobalDel(_ context.Context, key keyspace.Key) error {
	delete(s.cloud, key.AsMapKey())
	return nil
}

func (s *simulation) PlacementNotify(ctx context.Context, edge keyspace.EdgeIndex, key keyspace.Key, value []byte, isValid bool, syncset victim.Syncset) error {
	return s.edges[edge].protocol.HandlePlacementNotify(ctx, key, value, isValid, syncset)
}

func (s *simulation) VictimFetch(ctx context.Context, edge keyspace.EdgeIndex, existing []keyspace.Key, requiredSize uint64) ([]keyspace.Key, bool, error) {
	additional, hasEnough := s.edges[edge].protocol.HandleVictimFetch(ctx, existing, requiredSize)
	return additional, hasEnough, nil
}

func (s *simulation) Invalidate(ctx context.Context, key keyspace.Key, edge keyspace.EdgeIndex) error {
	return s.edges[edge].protocol.HandleInvalidation(ctx, key)
}

func (s *simulation) MetadataUpdate(ctx context.Context, edge keyspace.EdgeIndex, key keyspace.Key, mode directory.MetadataUpdateMode) error {
	return s.edges[edge].protocol.HandleMetadataUpdate(ctx, key, mode)
}

// run exercises the basic Local Write / Local Get round trip across a
// handful of edges and reports the resulting hit statistics.
func (s *simulation) run(ctx context.Context) {
	key := keyspace.Key("demo-key")
	value := []byte("demo-value")

	writer := s.edges[0].protocol
	if err := writer.LocalWrite(ctx, key, value, false, 1.0); err != nil {
		s.log.Error("local write failed", "error", err)
		return
	}

	for i := 1; i < len(s.edges); i++ {
		reader := s.edges[i].protocol
		got, err := reader.LocalGet(ctx, key, keyspace.ObjectSize(len(value)), 1.0)
		if err != nil {
			s.log.Warn("local get failed", "edge", i, "error", err)
			continue
		}
		s.log.Info("local get succeeded", "edge", i, "value", string(got))
	}

	if counters, ok := s.stats.Get(key); ok {
		s.log.Info("key stats", "key", key.String(), "local", counters.LocalHits, "redirected", counters.RedirectedHits, "cloud", counters.CloudHits)
	}
}
