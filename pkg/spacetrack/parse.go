package spacetrack

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Orbital constants used to derive semi-major axis, apogee, and perigee
// from TLE line 2 (the same constants Space-Track's own documentation uses).
const (
	EarthMu       = 398600.4418 // km^3/s^2
	EarthRadiusKM = 6378.137
)

// DerivedOrbitalParams holds the fields computed at write time from TLE
// line 2. Re-ingesting the same TLE line 2 must produce identical values.
type DerivedOrbitalParams struct {
	InclinationDeg   float64
	Eccentricity     float64
	MeanMotionRevDay float64
	PeriodMinutes    float64
	SemiMajorAxisKM  float64
	ApogeeKM         float64
	PerigeeKM        float64
}

// ParseNoradID extracts the catalog number from TLE line 1, columns 3-7.
func ParseNoradID(line1 string) (int, error) {
	if len(line1) < 7 {
		return 0, fmt.Errorf("parsing NORAD ID: line1 too short (%d chars)", len(line1))
	}
	id, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return 0, fmt.Errorf("parsing NORAD ID: %w", err)
	}
	return id, nil
}

// ParseIntlDesignator extracts the international designator from TLE line 1,
// columns 10-17.
func ParseIntlDesignator(line1 string) (string, error) {
	if len(line1) < 17 {
		return "", fmt.Errorf("parsing international designator: line1 too short (%d chars)", len(line1))
	}
	return strings.TrimSpace(line1[9:17]), nil
}

// ParseTLEEpoch parses the epoch from TLE line 1, columns 19-32: a 2-digit
// year followed by a fractional day-of-year. Per NORAD convention, years
// 57-99 are 1957-1999 and years 0-56 are 2000-2056.
func ParseTLEEpoch(line1 string) (time.Time, error) {
	if len(line1) < 32 {
		return time.Time{}, fmt.Errorf("parsing TLE epoch: line1 too short (%d chars)", len(line1))
	}
	epochStr := strings.TrimSpace(line1[18:32])
	if len(epochStr) < 3 {
		return time.Time{}, fmt.Errorf("parsing TLE epoch: field too short: %q", epochStr)
	}

	year2, err := strconv.Atoi(epochStr[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing TLE epoch year: %w", err)
	}
	dayFraction, err := strconv.ParseFloat(epochStr[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing TLE epoch day fraction: %w", err)
	}

	year := 2000 + year2
	if year2 >= 57 {
		year = 1900 + year2
	}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((dayFraction - 1) * float64(24*time.Hour))), nil
}

// CalculateOrbitalParams derives orbital parameters from TLE line 2.
// Column ranges match the TLE fixed-width format exactly:
// inclination [8:16], eccentricity [26:33] (implicit leading "0."),
// mean motion [52:63].
func CalculateOrbitalParams(line2 string) (DerivedOrbitalParams, error) {
	if len(line2) < 63 {
		return DerivedOrbitalParams{}, fmt.Errorf("calculating orbital params: line2 too short (%d chars)", len(line2))
	}

	inclination, err := strconv.ParseFloat(strings.TrimSpace(line2[8:16]), 64)
	if err != nil {
		return DerivedOrbitalParams{}, fmt.Errorf("parsing inclination: %w", err)
	}
	eccentricity, err := strconv.ParseFloat("0."+strings.TrimSpace(line2[26:33]), 64)
	if err != nil {
		return DerivedOrbitalParams{}, fmt.Errorf("parsing eccentricity: %w", err)
	}
	meanMotion, err := strconv.ParseFloat(strings.TrimSpace(line2[52:63]), 64)
	if err != nil {
		return DerivedOrbitalParams{}, fmt.Errorf("parsing mean motion: %w", err)
	}
	if meanMotion == 0 {
		return DerivedOrbitalParams{}, fmt.Errorf("calculating orbital params: mean motion is zero")
	}

	periodMinutes := 1440.0 / meanMotion
	periodSeconds := periodMinutes * 60
	semiMajorAxis := math.Cbrt(EarthMu * math.Pow(periodSeconds/(2*math.Pi), 2))

	apogee := semiMajorAxis*(1+eccentricity) - EarthRadiusKM
	perigee := semiMajorAxis*(1-eccentricity) - EarthRadiusKM

	return DerivedOrbitalParams{
		InclinationDeg:   inclination,
		Eccentricity:     eccentricity,
		MeanMotionRevDay: meanMotion,
		PeriodMinutes:    periodMinutes,
		SemiMajorAxisKM:  semiMajorAxis,
		ApogeeKM:         apogee,
		PerigeeKM:        perigee,
	}, nil
}

// parseUpstreamTime parses a Space-Track EPOCH/DECAY_DATE/LAUNCH value,
// accepting both whole-second and sub-second ISO-8601 forms. Both forms
// are treated as UTC; ambiguous local times are never accepted since
// Space-Track never emits a timezone offset.
func parseUpstreamTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("parsing upstream timestamp: empty value")
	}
	layouts := []string{
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("parsing upstream timestamp %q: %w", s, lastErr)
}

func parseUpstreamFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

// DecodeRecords unmarshals a Space-Track JSON array response into Records.
// Fields that fail to parse are left zero rather than aborting the whole
// batch — a single malformed field should not discard an otherwise usable
// record.
func DecodeRecords(body []byte) ([]Record, error) {
	var raws []rawRecord
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("decoding upstream response: %w", err)
	}

	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		r := Record{
			ObjectName:      raw.ObjectName,
			IntlDesignator:  raw.IntlDes,
			TLELine1:        raw.TLELine1,
			TLELine2:        raw.TLELine2,
			MeanMotion:      parseUpstreamFloat(raw.MeanMotion),
			Eccentricity:    parseUpstreamFloat(raw.Eccentricity),
			Inclination:     parseUpstreamFloat(raw.Inclination),
			SemiMajorAxis:   parseUpstreamFloat(raw.SemiMajorAxis),
			Apoapsis:        parseUpstreamFloat(raw.Apoapsis),
			Periapsis:       parseUpstreamFloat(raw.Periapsis),
			Site:            raw.Site,
			Country:         raw.Country,
			RCS:             raw.RCS,
			ObjectType:      raw.ObjectType,
			BStar:           parseUpstreamFloat(raw.BStar),
			MeanAnomaly:     parseUpstreamFloat(raw.MeanAnomaly),
			RAOfAscNode:     parseUpstreamFloat(raw.RAOfAscNode),
			ArgOfPericenter: parseUpstreamFloat(raw.ArgOfPericenter),
		}

		if raw.NoradCatID != "" {
			if id, err := strconv.Atoi(strings.TrimSpace(raw.NoradCatID)); err == nil {
				r.NoradCatID = id
			}
		}
		if raw.Epoch != "" {
			if t, err := parseUpstreamTime(raw.Epoch); err == nil {
				r.Epoch = t
			}
		}
		if raw.DecayDate != "" {
			if t, err := parseUpstreamTime(raw.DecayDate); err == nil {
				r.DecayDate = &t
			}
		}
		if raw.Launch != "" {
			if t, err := parseUpstreamTime(raw.Launch); err == nil {
				r.LaunchDate = &t
			}
		}

		records = append(records, r)
	}
	return records, nil
}
