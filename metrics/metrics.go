// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wires the cooperation protocol's counters and gauges
// into Prometheus, grounded on the teacher's protocol/nova newMetrics
// pattern: a single struct of pre-built collectors, registered once at
// construction, updated from the call sites that already observe the
// events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the cooperation protocol and
// its supporting packages update.
type Metrics struct {
	directoryLookups     *prometheus.CounterVec
	writelockGrants      prometheus.Counter
	writelockDenials     prometheus.Counter
	invalidationsSent    prometheus.Counter
	invalidationTimeouts prometheus.Counter
	victimSyncBytes      prometheus.Counter
	victimSyncRounds     *prometheus.CounterVec
	aggregatorEvictions  prometheus.Counter
	placementDecisions   *prometheus.CounterVec
	placementEdgeset     prometheus.Histogram
}

// New builds and registers every collector against registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		directoryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covered_directory_lookups_total",
			Help: "Directory lookups by result (hit, miss, busy)",
		}, []string{"result"}),
		writelockGrants: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covered_writelock_grants_total",
			Help: "Writelock acquisitions granted",
		}),
		writelockDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covered_writelock_denials_total",
			Help: "Writelock acquisitions that returned Busy",
		}),
		invalidationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covered_invalidations_sent_total",
			Help: "MSI invalidation requests sent to sharers",
		}),
		invalidationTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covered_invalidation_timeouts_total",
			Help: "Writelock acquisitions that gave up waiting on invalidation acks",
		}),
		victimSyncBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covered_victim_sync_bytes_total",
			Help: "Encoded bytes sent in VictimSyncset wire frames",
		}),
		victimSyncRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covered_victim_sync_rounds_total",
			Help: "Victim sync rounds by mode (complete, delta, stale_recovered)",
		}, []string{"mode"}),
		aggregatorEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "covered_aggregator_evictions_total",
			Help: "AggregatedUncachedPopularity entries dropped to stay within capBytes",
		}),
		placementDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "covered_placement_decisions_total",
			Help: "Placement plans by outcome (placed, skipped_below_threshold)",
		}, []string{"outcome"}),
		placementEdgeset: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "covered_placement_edgeset_size",
			Help:    "Number of edges chosen per non-trivial placement decision",
			Buckets: prometheus.LinearBuckets(1, 1, 8),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.directoryLookups,
		m.writelockGrants,
		m.writelockDenials,
		m.invalidationsSent,
		m.invalidationTimeouts,
		m.victimSyncBytes,
		m.victimSyncRounds,
		m.aggregatorEvictions,
		m.placementDecisions,
		m.placementEdgeset,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DirectoryLookup records a directory lookup outcome: "hit" when the
// requester learned of a valid sharer, "miss" otherwise, "busy" when the
// key was being written.
func (m *Metrics) DirectoryLookup(result string) {
	m.directoryLookups.WithLabelValues(result).Inc()
}

// WritelockGranted records a writelock grant, whether or not an
// invalidation round preceded it.
func (m *Metrics) WritelockGranted() {
	m.writelockGrants.Inc()
}

// WritelockDenied records a Busy response to AcquireWritelock.
func (m *Metrics) WritelockDenied() {
	m.writelockDenials.Inc()
}

// InvalidationSent records one MSI invalidation dispatched to a sharer.
func (m *Metrics) InvalidationSent() {
	m.invalidationsSent.Inc()
}

// InvalidationTimedOut records a writelock acquisition that exhausted its
// invalidation ack retries (spec.md §4.4 InvalidationAckTimeoutRetries).
func (m *Metrics) InvalidationTimedOut() {
	m.invalidationTimeouts.Inc()
}

// VictimSyncSent records one VictimSyncset wire frame of the given
// encoded size, tagged by mode: "complete", "delta", or
// "stale_recovered" for a Delta rejected and retried as Complete.
func (m *Metrics) VictimSyncSent(mode string, encodedBytes int) {
	m.victimSyncRounds.WithLabelValues(mode).Inc()
	m.victimSyncBytes.Add(float64(encodedBytes))
}

// AggregatorEviction records one AggregatedUncachedPopularity entry
// dropped by enforceBudget to stay within capBytes.
func (m *Metrics) AggregatorEviction() {
	m.aggregatorEvictions.Inc()
}

// PlacementDecision records a placement planner outcome and, when edges
// were actually chosen, the size of the resulting edgeset.
func (m *Metrics) PlacementDecision(placed bool, edgesetSize int) {
	if !placed {
		m.placementDecisions.WithLabelValues("skipped_below_threshold").Inc()
		return
	}
	m.placementDecisions.WithLabelValues("placed").Inc()
	m.placementEdgeset.Observe(float64(edgesetSize))
}
