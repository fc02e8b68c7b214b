package catalogstore

import (
	"context"
	"fmt"
	"time"

	"github.com/satcatalog/ingest/internal/db"
)

// HistoryStore provides database operations for archived TLE history.
type HistoryStore struct {
	dbtx db.DBTX
}

// NewHistoryStore creates a HistoryStore backed by dbtx.
func NewHistoryStore(dbtx db.DBTX) *HistoryStore {
	return &HistoryStore{dbtx: dbtx}
}

// InsertRecord records one historical TLE for satelliteID at the given
// epoch, skipping silently if that (satellite, epoch) pair already exists.
// It reports whether a new row was actually inserted, so callers can track
// real backfill progress rather than re-counting no-op upserts.
func (s *HistoryStore) InsertRecord(ctx context.Context, satelliteID int64, tleLine1, tleLine2 string, epoch time.Time, orbit DerivedOrbit, sourceTag string) (bool, error) {
	query := `
		INSERT INTO tle_history_records (
			satellite_id, tle_line1, tle_line2, epoch,
			inclination_deg, eccentricity, mean_motion_rev_day, period_minutes,
			semi_major_axis_km, apogee_km, perigee_km, source_tag
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (satellite_id, epoch) DO NOTHING`

	tag, err := s.dbtx.Exec(ctx, query,
		satelliteID, tleLine1, tleLine2, epoch,
		orbit.InclinationDeg, orbit.Eccentricity, orbit.MeanMotionRevDay, orbit.PeriodMinutes,
		orbit.SemiMajorAxisKM, orbit.ApogeeKM, orbit.PerigeeKM, sourceTag,
	)
	if err != nil {
		return false, fmt.Errorf("inserting history record for satellite %d at %s: %w", satelliteID, epoch, err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertBatch records multiple historical TLEs in one call, returning the
// count of rows actually inserted (excluding already-present epochs).
func (s *HistoryStore) InsertBatch(ctx context.Context, satelliteID int64, records []HistoryRecordInput) (int, error) {
	inserted := 0
	for _, r := range records {
		ok, err := s.InsertRecord(ctx, satelliteID, r.TLELine1, r.TLELine2, r.Epoch, r.Orbit, r.SourceTag)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// HistoryRecordInput is one TLE to archive, prior to being matched to a
// satellite_id by the caller.
type HistoryRecordInput struct {
	TLELine1  string
	TLELine2  string
	Epoch     time.Time
	Orbit     DerivedOrbit
	SourceTag string
}
