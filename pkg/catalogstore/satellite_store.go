package catalogstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/satcatalog/ingest/internal/db"
)

// SatelliteStore provides database operations for satellites.
type SatelliteStore struct {
	dbtx db.DBTX
}

// NewSatelliteStore creates a SatelliteStore backed by dbtx.
func NewSatelliteStore(dbtx db.DBTX) *SatelliteStore {
	return &SatelliteStore{dbtx: dbtx}
}

const satelliteColumns = `
	id, catalog_number, name, constellation_id, launch_id, intl_designator,
	launch_date, decay_date, country_code, object_type, rcs_size,
	tle_line1, tle_line2, tle_epoch, inclination_deg, eccentricity,
	mean_motion_rev_day, period_minutes, semi_major_axis_km, apogee_km,
	perigee_km, is_active, tle_updated_at, created_at`

func scanSatelliteRow(row pgx.Row) (Satellite, error) {
	var s Satellite
	err := row.Scan(
		&s.ID, &s.CatalogNumber, &s.Name, &s.ConstellationID, &s.LaunchID, &s.IntlDesignator,
		&s.LaunchDate, &s.DecayDate, &s.CountryCode, &s.ObjectType, &s.RCSSize,
		&s.TLELine1, &s.TLELine2, &s.TLEEpoch, &s.InclinationDeg, &s.Eccentricity,
		&s.MeanMotionRevDay, &s.PeriodMinutes, &s.SemiMajorAxisKM, &s.ApogeeKM,
		&s.PerigeeKM, &s.IsActive, &s.TLEUpdatedAt, &s.CreatedAt,
	)
	return s, err
}

// scanSatelliteRowWithInserted scans a row returned by an upsert query whose
// RETURNING clause appends "(xmax = 0) AS inserted" — Postgres's standard
// tell for whether the INSERT path or the ON CONFLICT UPDATE path fired.
func scanSatelliteRowWithInserted(row pgx.Row) (Satellite, bool, error) {
	var s Satellite
	var inserted bool
	err := row.Scan(
		&s.ID, &s.CatalogNumber, &s.Name, &s.ConstellationID, &s.LaunchID, &s.IntlDesignator,
		&s.LaunchDate, &s.DecayDate, &s.CountryCode, &s.ObjectType, &s.RCSSize,
		&s.TLELine1, &s.TLELine2, &s.TLEEpoch, &s.InclinationDeg, &s.Eccentricity,
		&s.MeanMotionRevDay, &s.PeriodMinutes, &s.SemiMajorAxisKM, &s.ApogeeKM,
		&s.PerigeeKM, &s.IsActive, &s.TLEUpdatedAt, &s.CreatedAt, &inserted,
	)
	return s, inserted, err
}

// GetByCatalogNumber returns a satellite by NORAD catalog number.
func (s *SatelliteStore) GetByCatalogNumber(ctx context.Context, catalogNumber int) (Satellite, error) {
	query := `SELECT ` + satelliteColumns + ` FROM satellites WHERE catalog_number = $1`
	row := s.dbtx.QueryRow(ctx, query, catalogNumber)
	sat, err := scanSatelliteRow(row)
	if err != nil {
		return Satellite{}, fmt.Errorf("getting satellite %d: %w", catalogNumber, err)
	}
	return sat, nil
}

// ListByConstellation returns every satellite in a constellation.
func (s *SatelliteStore) ListByConstellation(ctx context.Context, constellationID int64) ([]Satellite, error) {
	query := `SELECT ` + satelliteColumns + ` FROM satellites WHERE constellation_id = $1 ORDER BY catalog_number`
	rows, err := s.dbtx.Query(ctx, query, constellationID)
	if err != nil {
		return nil, fmt.Errorf("listing satellites for constellation %d: %w", constellationID, err)
	}
	defer rows.Close()

	var items []Satellite
	for rows.Next() {
		sat, err := scanSatelliteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning satellite row: %w", err)
		}
		items = append(items, sat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating satellite rows: %w", err)
	}
	return items, nil
}

// GPUpsert holds the fields a GP (current TLE) response contributes. Only
// orbital state is touched; name/metadata fields are left to SATCAT sync.
type GPUpsert struct {
	CatalogNumber   int
	ConstellationID int64
	ObjectName      string
	TLELine1        string
	TLELine2        string
	TLEEpoch        time.Time
	Orbit           DerivedOrbit
}

// UpsertGP creates or refreshes a satellite's current orbital state from a
// GP response. A GP result implies the object is currently active, so any
// prior decay_date is cleared and is_active is set true — GP responses are
// upstream-filtered to exclude decayed objects, so seeing one is itself
// evidence of reactivation or a correction. The second return value reports
// whether the row was newly created, as opposed to an existing row being
// updated (or left as-is by the epoch guard below).
func (s *SatelliteStore) UpsertGP(ctx context.Context, p GPUpsert) (Satellite, bool, error) {
	query := `
		INSERT INTO satellites (
			catalog_number, name, constellation_id, tle_line1, tle_line2, tle_epoch,
			inclination_deg, eccentricity, mean_motion_rev_day, period_minutes,
			semi_major_axis_km, apogee_km, perigee_km, is_active, decay_date, tle_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, true, NULL, now())
		ON CONFLICT (catalog_number) DO UPDATE SET
			name = CASE WHEN satellites.name = '' THEN EXCLUDED.name ELSE satellites.name END,
			constellation_id = EXCLUDED.constellation_id,
			tle_line1 = EXCLUDED.tle_line1,
			tle_line2 = EXCLUDED.tle_line2,
			tle_epoch = EXCLUDED.tle_epoch,
			inclination_deg = EXCLUDED.inclination_deg,
			eccentricity = EXCLUDED.eccentricity,
			mean_motion_rev_day = EXCLUDED.mean_motion_rev_day,
			period_minutes = EXCLUDED.period_minutes,
			semi_major_axis_km = EXCLUDED.semi_major_axis_km,
			apogee_km = EXCLUDED.apogee_km,
			perigee_km = EXCLUDED.perigee_km,
			is_active = true,
			decay_date = NULL,
			tle_updated_at = now()
		WHERE satellites.tle_epoch IS NULL OR EXCLUDED.tle_epoch > satellites.tle_epoch
		RETURNING ` + satelliteColumns + `, (xmax = 0) AS inserted`

	row := s.dbtx.QueryRow(ctx, query,
		p.CatalogNumber, p.ObjectName, p.ConstellationID, p.TLELine1, p.TLELine2, p.TLEEpoch,
		p.Orbit.InclinationDeg, p.Orbit.Eccentricity, p.Orbit.MeanMotionRevDay, p.Orbit.PeriodMinutes,
		p.Orbit.SemiMajorAxisKM, p.Orbit.ApogeeKM, p.Orbit.PerigeeKM,
	)
	sat, inserted, err := scanSatelliteRowWithInserted(row)
	if err == pgx.ErrNoRows {
		// The WHERE guard suppressed the update because the stored epoch is
		// already newer; the row still exists and was neither created nor
		// updated by this call.
		sat, err := s.GetByCatalogNumber(ctx, p.CatalogNumber)
		return sat, false, err
	}
	if err != nil {
		return Satellite{}, false, fmt.Errorf("upserting GP for satellite %d: %w", p.CatalogNumber, err)
	}
	return sat, inserted, nil
}

// SATCATUpsert holds the fields a SATCAT response contributes: descriptive
// metadata plus lifecycle state (launch, decay), not orbital state.
type SATCATUpsert struct {
	CatalogNumber   int
	ConstellationID int64
	Name            string
	IntlDesignator  *string
	LaunchID        *int64
	LaunchDate      *time.Time
	DecayDate       *time.Time
	CountryCode     *string
	ObjectType      *string
	RCSSize         *string
}

// UpsertSATCAT creates or refreshes a satellite's descriptive metadata from
// a SATCAT response. SATCAT includes decayed objects, so decay_date and
// is_active are driven entirely from this response's own DecayDate field.
// The second return value reports whether the row was newly created.
func (s *SatelliteStore) UpsertSATCAT(ctx context.Context, p SATCATUpsert) (Satellite, bool, error) {
	isActive := p.DecayDate == nil
	query := `
		INSERT INTO satellites (
			catalog_number, name, constellation_id, launch_id, intl_designator,
			launch_date, decay_date, country_code, object_type, rcs_size, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (catalog_number) DO UPDATE SET
			name = EXCLUDED.name,
			constellation_id = EXCLUDED.constellation_id,
			launch_id = COALESCE(EXCLUDED.launch_id, satellites.launch_id),
			intl_designator = EXCLUDED.intl_designator,
			launch_date = EXCLUDED.launch_date,
			decay_date = EXCLUDED.decay_date,
			country_code = EXCLUDED.country_code,
			object_type = EXCLUDED.object_type,
			rcs_size = EXCLUDED.rcs_size,
			is_active = EXCLUDED.is_active
		RETURNING ` + satelliteColumns + `, (xmax = 0) AS inserted`

	row := s.dbtx.QueryRow(ctx, query,
		p.CatalogNumber, p.Name, p.ConstellationID, p.LaunchID, p.IntlDesignator,
		p.LaunchDate, p.DecayDate, p.CountryCode, p.ObjectType, p.RCSSize, isActive,
	)
	sat, inserted, err := scanSatelliteRowWithInserted(row)
	if err != nil {
		return Satellite{}, false, fmt.Errorf("upserting SATCAT for satellite %d: %w", p.CatalogNumber, err)
	}
	return sat, inserted, nil
}

// EarliestHistoryEpoch is one satellite's oldest archived TLE epoch, used
// by the backfill planner to decide how far back history already reaches.
type EarliestHistoryEpoch struct {
	CatalogNumber int
	Earliest      *time.Time
}

// ListEarliestHistoryEpochs returns, for every satellite in a constellation,
// the earliest epoch already present in tle_history_records (nil if none).
func (s *SatelliteStore) ListEarliestHistoryEpochs(ctx context.Context, constellationID int64) ([]EarliestHistoryEpoch, error) {
	query := `
		SELECT s.catalog_number, MIN(h.epoch)
		FROM satellites s
		LEFT JOIN tle_history_records h ON h.satellite_id = s.id
		WHERE s.constellation_id = $1
		GROUP BY s.catalog_number
		ORDER BY s.catalog_number`
	rows, err := s.dbtx.Query(ctx, query, constellationID)
	if err != nil {
		return nil, fmt.Errorf("listing earliest history epochs for constellation %d: %w", constellationID, err)
	}
	defer rows.Close()

	var items []EarliestHistoryEpoch
	for rows.Next() {
		var e EarliestHistoryEpoch
		if err := rows.Scan(&e.CatalogNumber, &e.Earliest); err != nil {
			return nil, fmt.Errorf("scanning earliest history epoch row: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating earliest history epoch rows: %w", err)
	}
	return items, nil
}

// CountAndConstellations returns the total satellite count and distinct
// constellation count, used by the Initial Loader to decide whether a
// fresh load is needed.
func (s *SatelliteStore) CountAndConstellations(ctx context.Context) (satelliteCount, constellationCount int, err error) {
	query := `SELECT count(*), count(DISTINCT constellation_id) FROM satellites`
	row := s.dbtx.QueryRow(ctx, query)
	if err := row.Scan(&satelliteCount, &constellationCount); err != nil {
		return 0, 0, fmt.Errorf("counting satellites: %w", err)
	}
	return satelliteCount, constellationCount, nil
}
