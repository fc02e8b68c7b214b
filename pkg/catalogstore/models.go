// Package catalogstore persists the satellite catalog: constellations,
// launches, satellites, and their historical TLE records. It is the only
// package that issues SQL against those tables; every other component goes
// through the Store types here.
package catalogstore

import "time"

// Constellation groups satellites tracked under one upstream query
// predicate (e.g. all object names containing "STARLINK").
type Constellation struct {
	ID                     int64
	Slug                   string
	DisplayName            string
	UpstreamQueryPredicate string
	Category               string
	Color                  string
	CachedSatelliteCount   int
	UpdatedAt              time.Time
}

// Launch is a single launch event, keyed by COSPAR international
// designator, that one or more satellites may reference.
type Launch struct {
	ID          int64
	CosparID    string
	MissionName *string
	LaunchDate  *time.Time
	LaunchSite  *string
	RocketType  *string
	CreatedAt   time.Time
}

// Satellite is one tracked object, keyed by NORAD catalog number.
type Satellite struct {
	ID                 int64
	CatalogNumber      int
	Name               string
	ConstellationID    int64
	LaunchID           *int64
	IntlDesignator      *string
	LaunchDate         *time.Time
	DecayDate          *time.Time
	CountryCode        *string
	ObjectType         *string
	RCSSize            *string
	TLELine1           *string
	TLELine2           *string
	TLEEpoch           *time.Time
	InclinationDeg     *float64
	Eccentricity       *float64
	MeanMotionRevDay   *float64
	PeriodMinutes      *float64
	SemiMajorAxisKM    *float64
	ApogeeKM           *float64
	PerigeeKM          *float64
	IsActive           bool
	TLEUpdatedAt       *time.Time
	CreatedAt          time.Time
}

// TLEHistoryRecord is one archived TLE for a satellite at a given epoch.
type TLEHistoryRecord struct {
	ID               int64
	SatelliteID      int64
	TLELine1         string
	TLELine2         string
	Epoch            time.Time
	InclinationDeg   *float64
	Eccentricity     *float64
	MeanMotionRevDay *float64
	PeriodMinutes    *float64
	SemiMajorAxisKM  *float64
	ApogeeKM         *float64
	PerigeeKM        *float64
	SourceTag        string
	RecordedAt       time.Time
}

// DerivedOrbit carries the orbital parameters computed at write time,
// shared by both the satellites table and tle_history_records.
type DerivedOrbit struct {
	InclinationDeg   float64
	Eccentricity     float64
	MeanMotionRevDay float64
	PeriodMinutes    float64
	SemiMajorAxisKM  float64
	ApogeeKM         float64
	PerigeeKM        float64
}
