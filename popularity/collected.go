// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package popularity implements selective popularity aggregation
// (spec.md §3/§4.7): AggregatedUncachedPopularity, CollectedPopularity
// and the beacon-wide Aggregator ordered by max admission benefit.
package popularity

import "github.com/luxfi/covered/keyspace"

// Collected is the wire fragment an edge piggybacks describing its own
// uncached popularity contribution for a key (spec.md §3 CollectedPopularity).
// IsTracked=false signals the sender's local-uncached capacity dropped the
// key, telling the receiver to release that edge's contribution.
type Collected struct {
	IsTracked                bool
	LocalUncachedPopularity keyspace.Popularity
}

// FastPathHint lets a beacon short-circuit a full placement round trip
// when it holds no aggregator slot for a key (spec.md §3/§4.4/§4.8 step 5).
type FastPathHint struct {
	SumLocalUncachedPopularityExcludingRequester keyspace.Popularity
	SmallestMaxAdmissionBenefitInAggregator      keyspace.DeltaReward
}
