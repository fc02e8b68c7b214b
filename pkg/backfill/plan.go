// Package backfill is the Backfill Engine: it figures out how much
// historical TLE coverage a constellation is still missing and pulls it
// in from the upstream gp_history endpoint in bounded, throttled batches.
package backfill

import (
	"time"

	"github.com/satcatalog/ingest/pkg/catalogstore"
)

// CompletenessSlack is how close a satellite's earliest archived epoch
// must be to the target window start before that satellite is considered
// fully backfilled. Upstream history rarely starts exactly at a launch
// date, so an exact-match requirement would re-query satellites forever.
const CompletenessSlack = 7 * 24 * time.Hour

// SatellitePlan is the date range still missing for one satellite.
type SatellitePlan struct {
	CatalogNumber int
	RangeStart    time.Time
	RangeEnd      time.Time
}

// Plan computes, for each satellite's earliest known history epoch, the
// range still needed to reach historyDays of coverage back from now. A
// satellite whose earliest epoch already sits within CompletenessSlack of
// the target start is left out of the plan entirely.
func Plan(earliest []catalogstore.EarliestHistoryEpoch, historyDays int, now time.Time) []SatellitePlan {
	targetStart := now.AddDate(0, 0, -historyDays)

	var plans []SatellitePlan
	for _, e := range earliest {
		if e.Earliest == nil {
			plans = append(plans, SatellitePlan{
				CatalogNumber: e.CatalogNumber,
				RangeStart:    targetStart,
				RangeEnd:      now,
			})
			continue
		}
		if e.Earliest.After(targetStart.Add(CompletenessSlack)) {
			plans = append(plans, SatellitePlan{
				CatalogNumber: e.CatalogNumber,
				RangeStart:    targetStart,
				RangeEnd:      *e.Earliest,
			})
		}
	}
	return plans
}

// batchSatellites groups satellite plans into chunks of at most n catalog
// numbers. Space-Track's gp_history endpoint accepts a comma-separated
// NORAD_CAT_ID list, but very long lists are unreliable in practice, so
// requests stay small.
func batchSatellites(plans []SatellitePlan, n int) [][]SatellitePlan {
	var batches [][]SatellitePlan
	for i := 0; i < len(plans); i += n {
		end := i + n
		if end > len(plans) {
			end = len(plans)
		}
		batches = append(batches, plans[i:end])
	}
	return batches
}

// chunkYears splits [start, end) into spans of at most one year each,
// since the upstream's history endpoint degrades on very wide date ranges.
func chunkYears(start, end time.Time) [][2]time.Time {
	if !end.After(start) {
		return nil
	}
	var chunks [][2]time.Time
	cursor := start
	for cursor.Before(end) {
		next := cursor.AddDate(1, 0, 0)
		if next.After(end) {
			next = end
		}
		chunks = append(chunks, [2]time.Time{cursor, next})
		cursor = next
	}
	return chunks
}
