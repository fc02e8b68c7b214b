package spacetrack

import (
	"math"
	"testing"
	"time"
)

const (
	issLine1 = "1 25544U 98067A   24045.52099537  .00016717  00000-0  10270-3 0  9995"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360  325.0288 15.49560109440585"
)

func TestParseNoradID(t *testing.T) {
	id, err := ParseNoradID(issLine1)
	if err != nil {
		t.Fatalf("ParseNoradID: %v", err)
	}
	if id != 25544 {
		t.Errorf("expected 25544, got %d", id)
	}
}

func TestParseIntlDesignator(t *testing.T) {
	des, err := ParseIntlDesignator(issLine1)
	if err != nil {
		t.Fatalf("ParseIntlDesignator: %v", err)
	}
	if des != "98067A" {
		t.Errorf("expected 98067A, got %q", des)
	}
}

func TestParseTLEEpoch(t *testing.T) {
	epoch, err := ParseTLEEpoch(issLine1)
	if err != nil {
		t.Fatalf("ParseTLEEpoch: %v", err)
	}
	// Day 45.52099537 of 2024: Jan 1 + 44.52099537 days.
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(
		time.Duration(44.52099537 * float64(24*time.Hour)))
	if diff := epoch.Sub(want); diff < -time.Second || diff > time.Second {
		t.Errorf("epoch mismatch: got %v, want ~%v", epoch, want)
	}
}

func TestParseTLEEpochCenturyRule(t *testing.T) {
	// Year "57" maps to 1957; year "24" maps to 2024.
	old, err := ParseTLEEpoch("1 00001U 57001A   57001.00000000  .00000000  00000-0  00000-0 0  9999")
	if err != nil {
		t.Fatalf("ParseTLEEpoch: %v", err)
	}
	if old.Year() != 1957 {
		t.Errorf("expected year 1957, got %d", old.Year())
	}

	recent, err := ParseTLEEpoch(issLine1)
	if err != nil {
		t.Fatalf("ParseTLEEpoch: %v", err)
	}
	if recent.Year() != 2024 {
		t.Errorf("expected year 2024, got %d", recent.Year())
	}
}

func TestCalculateOrbitalParams(t *testing.T) {
	params, err := CalculateOrbitalParams(issLine2)
	if err != nil {
		t.Fatalf("CalculateOrbitalParams: %v", err)
	}

	if math.Abs(params.InclinationDeg-51.6416) > 1e-9 {
		t.Errorf("inclination: got %v, want 51.6416", params.InclinationDeg)
	}
	if math.Abs(params.Eccentricity-0.0006703) > 1e-9 {
		t.Errorf("eccentricity: got %v, want 0.0006703", params.Eccentricity)
	}
	if math.Abs(params.MeanMotionRevDay-15.49560109) > 1e-6 {
		t.Errorf("mean motion: got %v, want ~15.49560109", params.MeanMotionRevDay)
	}

	// period * mean_motion == 1440 to within numerical precision.
	product := params.PeriodMinutes * params.MeanMotionRevDay
	if math.Abs(product-1440) > 1e-6 {
		t.Errorf("period*mean_motion = %v, want 1440", product)
	}

	// a*(1-e^2) == a - e*(apogee-perigee)/2
	a := params.SemiMajorAxisKM
	e := params.Eccentricity
	lhs := a * (1 - e*e)
	rhs := a - e*(params.ApogeeKM-params.PerigeeKM)/2
	if math.Abs(lhs-rhs) > 1e-6 {
		t.Errorf("orbit identity mismatch: lhs=%v rhs=%v", lhs, rhs)
	}
}

func TestCalculateOrbitalParamsDeterministic(t *testing.T) {
	first, err := CalculateOrbitalParams(issLine2)
	if err != nil {
		t.Fatalf("CalculateOrbitalParams: %v", err)
	}
	second, err := CalculateOrbitalParams(issLine2)
	if err != nil {
		t.Fatalf("CalculateOrbitalParams: %v", err)
	}
	if first != second {
		t.Errorf("expected deterministic output, got %+v vs %+v", first, second)
	}
}

func TestCalculateOrbitalParamsShortLine(t *testing.T) {
	if _, err := CalculateOrbitalParams("too short"); err == nil {
		t.Error("expected error for short line2")
	}
}

func TestDecodeRecords(t *testing.T) {
	body := []byte(`[{
		"NORAD_CAT_ID": "44713",
		"OBJECT_NAME": "STARLINK-1007",
		"INTLDES": "2019-074A",
		"EPOCH": "2026-01-15T12:00:00.123456",
		"TLE_LINE1": "` + issLine1 + `",
		"TLE_LINE2": "` + issLine2 + `",
		"MEAN_MOTION": "15.5",
		"ECCENTRICITY": "0.0001",
		"DECAY_DATE": ""
	}]`)

	records, err := DecodeRecords(body)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.NoradCatID != 44713 {
		t.Errorf("expected catalog number 44713, got %d", r.NoradCatID)
	}
	if r.DecayDate != nil {
		t.Errorf("expected nil decay date for empty field, got %v", r.DecayDate)
	}
	if r.Epoch.IsZero() {
		t.Error("expected epoch to be parsed")
	}
}

func TestDecodeRecordsWithDecay(t *testing.T) {
	body := []byte(`[{"NORAD_CAT_ID": "44713", "DECAY_DATE": "2025-03-01"}]`)
	records, err := DecodeRecords(body)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if records[0].DecayDate == nil {
		t.Fatal("expected decay date to be parsed")
	}
	if records[0].DecayDate.Format("2006-01-02") != "2025-03-01" {
		t.Errorf("expected 2025-03-01, got %s", records[0].DecayDate.Format("2006-01-02"))
	}
}

func TestDecodeRecordsMalformedJSON(t *testing.T) {
	if _, err := DecodeRecords([]byte("not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
