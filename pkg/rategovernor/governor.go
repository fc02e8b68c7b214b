// Package rategovernor enforces the upstream's data-freshness policy: even
// with plenty of accounts available, a constellation's refresh/metadata/
// history data is not re-requested more often than the upstream's own
// policy allows. This is orthogonal to the Account Pool's per-account
// request-rate limits — the Pool answers "can this account make a call
// right now", the Governor answers "is this data stale enough to be worth
// calling for at all".
package rategovernor

import (
	"sync"
	"time"
)

// QueryType identifies which minimum-interval class a call belongs to.
type QueryType string

const (
	QueryRefreshTLE       QueryType = "refresh_tle"
	QueryMetadataCatalog  QueryType = "metadata_catalog"
	QueryHistoryBatch     QueryType = "history_batch"
)

// minIntervals maps each query type to its minimum interval between calls.
var minIntervals = map[QueryType]time.Duration{
	QueryRefreshTLE:      time.Hour,
	QueryMetadataCatalog: 24 * time.Hour,
	QueryHistoryBatch:    7 * 24 * time.Hour,
}

type key struct {
	constellation string
	queryType     QueryType
}

// Governor guards a single timestamp map behind one mutex, scoped only to
// this concern — no other component's state lives behind this lock.
type Governor struct {
	mu        sync.Mutex
	lastCall  map[key]time.Time
	now       func() time.Time
}

// New creates an empty Governor.
func New() *Governor {
	return &Governor{
		lastCall: make(map[key]time.Time),
		now:      time.Now,
	}
}

// NewWithClock creates a Governor with an injectable clock, for tests.
func NewWithClock(now func() time.Time) *Governor {
	g := New()
	g.now = now
	return g
}

// MayCall reports whether enough time has elapsed since the last recorded
// call for (constellation, queryType) to permit another one now. An
// unrecognized queryType always permits the call (no policy applies).
func (g *Governor) MayCall(constellation string, queryType QueryType) bool {
	interval, ok := minIntervals[queryType]
	if !ok {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.lastCall[key{constellation, queryType}]
	if !seen {
		return true
	}
	return g.now().Sub(last) >= interval
}

// RecordCall stamps the current time as the last call for (constellation, queryType).
func (g *Governor) RecordCall(constellation string, queryType QueryType) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCall[key{constellation, queryType}] = g.now()
}
