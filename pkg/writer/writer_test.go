package writer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/satcatalog/ingest/pkg/catalogstore"
	"github.com/satcatalog/ingest/pkg/spacetrack"
)

const (
	issLine1 = "1 25544U 98067A   24045.52099537  .00016717  00000-0  10270-3 0  9995"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360  325.0288 15.49560109440585"
)

type fakeConstellations struct {
	bySlug map[string]catalogstore.Constellation
}

func (f *fakeConstellations) GetBySlug(_ context.Context, slug string) (catalogstore.Constellation, error) {
	c, ok := f.bySlug[slug]
	if !ok {
		return catalogstore.Constellation{}, fmt.Errorf("no such constellation %q", slug)
	}
	return c, nil
}

func (f *fakeConstellations) RefreshCachedSatelliteCount(_ context.Context, _ int64) error {
	return nil
}

type fakeSatellites struct {
	byCatalogNumber map[int]catalogstore.Satellite
	nextID          int64
}

func newFakeSatellites() *fakeSatellites {
	return &fakeSatellites{byCatalogNumber: make(map[int]catalogstore.Satellite)}
}

func (f *fakeSatellites) UpsertGP(_ context.Context, p catalogstore.GPUpsert) (catalogstore.Satellite, bool, error) {
	sat, existed := f.byCatalogNumber[p.CatalogNumber]
	created := !existed
	if created {
		f.nextID++
		sat.ID = f.nextID
		sat.CatalogNumber = p.CatalogNumber
	}
	sat.Name = p.ObjectName
	sat.ConstellationID = p.ConstellationID
	sat.TLELine1 = &p.TLELine1
	sat.TLELine2 = &p.TLELine2
	sat.TLEEpoch = &p.TLEEpoch
	sat.IsActive = true
	sat.DecayDate = nil
	f.byCatalogNumber[p.CatalogNumber] = sat
	return sat, created, nil
}

func (f *fakeSatellites) UpsertSATCAT(_ context.Context, p catalogstore.SATCATUpsert) (catalogstore.Satellite, bool, error) {
	sat, existed := f.byCatalogNumber[p.CatalogNumber]
	created := !existed
	if created {
		f.nextID++
		sat.ID = f.nextID
		sat.CatalogNumber = p.CatalogNumber
	}
	sat.Name = p.Name
	sat.ConstellationID = p.ConstellationID
	sat.DecayDate = p.DecayDate
	sat.IsActive = p.DecayDate == nil
	f.byCatalogNumber[p.CatalogNumber] = sat
	return sat, created, nil
}

func (f *fakeSatellites) GetByCatalogNumber(_ context.Context, catalogNumber int) (catalogstore.Satellite, error) {
	sat, ok := f.byCatalogNumber[catalogNumber]
	if !ok {
		return catalogstore.Satellite{}, fmt.Errorf("no such satellite %d", catalogNumber)
	}
	return sat, nil
}

type fakeLaunches struct {
	byCospar map[string]catalogstore.Launch
	nextID   int64
}

func newFakeLaunches() *fakeLaunches {
	return &fakeLaunches{byCospar: make(map[string]catalogstore.Launch)}
}

func (f *fakeLaunches) GetOrCreate(_ context.Context, cosparID string, _, _, _ *string) (catalogstore.Launch, error) {
	l, ok := f.byCospar[cosparID]
	if !ok {
		f.nextID++
		l = catalogstore.Launch{ID: f.nextID, CosparID: cosparID}
		f.byCospar[cosparID] = l
	}
	return l, nil
}

type historyRecord struct {
	satelliteID int64
	epoch       time.Time
}

type fakeHistory struct {
	seen map[historyRecord]bool
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{seen: make(map[historyRecord]bool)}
}

func (f *fakeHistory) InsertRecord(_ context.Context, satelliteID int64, _, _ string, epoch time.Time, _ catalogstore.DerivedOrbit, _ string) (bool, error) {
	key := historyRecord{satelliteID: satelliteID, epoch: epoch}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpsertGPBatchComputesOrbitAndSkipsBadRecords(t *testing.T) {
	constellations := &fakeConstellations{bySlug: map[string]catalogstore.Constellation{
		"iss": {ID: 1, Slug: "iss"},
	}}
	satellites := newFakeSatellites()
	w := New(constellations, satellites, newFakeLaunches(), newFakeHistory(), discardLogger())

	records := []spacetrack.Record{
		{NoradCatID: 25544, ObjectName: "ISS (ZARYA)", TLELine1: issLine1, TLELine2: issLine2, Epoch: time.Now()},
		{NoradCatID: 0, TLELine2: issLine2}, // missing catalog number, should be skipped
		{NoradCatID: 99999, TLELine2: "too short"}, // unparseable, should be skipped
	}

	newCount, updatedCount, err := w.UpsertGPBatch(context.Background(), "iss", records)
	if err != nil {
		t.Fatalf("UpsertGPBatch: %v", err)
	}
	if newCount != 1 || updatedCount != 0 {
		t.Fatalf("expected 1 new, 0 updated, got %d new, %d updated", newCount, updatedCount)
	}

	sat, ok := satellites.byCatalogNumber[25544]
	if !ok {
		t.Fatal("expected satellite 25544 to be upserted")
	}
	if !sat.IsActive {
		t.Error("expected satellite to be marked active")
	}

	// Re-upserting the same batch updates the existing row rather than
	// creating a second one: new_count is 0 on the second call.
	newCount2, updatedCount2, err := w.UpsertGPBatch(context.Background(), "iss", records)
	if err != nil {
		t.Fatalf("UpsertGPBatch (second pass): %v", err)
	}
	if newCount2 != 0 || updatedCount2 != 1 {
		t.Errorf("expected 0 new, 1 updated on second pass, got %d new, %d updated", newCount2, updatedCount2)
	}
}

func TestUpsertSATCATBatchSetsDecayAndLaunch(t *testing.T) {
	constellations := &fakeConstellations{bySlug: map[string]catalogstore.Constellation{
		"iss": {ID: 1, Slug: "iss"},
	}}
	satellites := newFakeSatellites()
	launches := newFakeLaunches()
	w := New(constellations, satellites, launches, newFakeHistory(), discardLogger())

	decay := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []spacetrack.Record{
		{NoradCatID: 11111, ObjectName: "DEAD-SAT", IntlDesignator: "2019-074A", DecayDate: &decay},
		{NoradCatID: 22222, ObjectName: "LIVE-SAT", IntlDesignator: "2020-001B"},
	}

	newCount, updatedCount, err := w.UpsertSATCATBatch(context.Background(), "iss", records)
	if err != nil {
		t.Fatalf("UpsertSATCATBatch: %v", err)
	}
	if newCount != 2 || updatedCount != 0 {
		t.Fatalf("expected 2 new, 0 updated, got %d new, %d updated", newCount, updatedCount)
	}

	dead := satellites.byCatalogNumber[11111]
	if dead.IsActive {
		t.Error("expected decayed satellite to be inactive")
	}
	live := satellites.byCatalogNumber[22222]
	if !live.IsActive {
		t.Error("expected non-decayed satellite to be active")
	}
	if len(launches.byCospar) != 2 {
		t.Errorf("expected 2 launches created, got %d", len(launches.byCospar))
	}
}

func TestPersistHistoryBatchSkipsUnknownSatellites(t *testing.T) {
	satellites := newFakeSatellites()
	satellites.byCatalogNumber[25544] = catalogstore.Satellite{ID: 7, CatalogNumber: 25544}
	history := newFakeHistory()
	w := New(&fakeConstellations{bySlug: map[string]catalogstore.Constellation{}}, satellites, newFakeLaunches(), history, discardLogger())

	epoch := time.Date(2024, 2, 14, 12, 30, 0, 0, time.UTC)
	records := []spacetrack.Record{
		{NoradCatID: 25544, TLELine1: issLine1, TLELine2: issLine2, Epoch: epoch},
		{NoradCatID: 99999, TLELine1: issLine1, TLELine2: issLine2, Epoch: epoch}, // unknown satellite
	}

	inserted, skipped, err := w.PersistHistoryBatch(context.Background(), records, "import")
	if err != nil {
		t.Fatalf("PersistHistoryBatch: %v", err)
	}
	if inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", inserted)
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", skipped)
	}

	// Re-inserting the same record is idempotent: second pass inserts 0.
	inserted2, _, err := w.PersistHistoryBatch(context.Background(), records[:1], "import")
	if err != nil {
		t.Fatalf("PersistHistoryBatch (second pass): %v", err)
	}
	if inserted2 != 0 {
		t.Errorf("expected 0 inserted on idempotent re-run, got %d", inserted2)
	}
}
