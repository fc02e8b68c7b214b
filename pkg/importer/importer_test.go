package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/satcatalog/ingest/pkg/spacetrack"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	insertedTotal int
	skippedTotal  int
	batches       [][]spacetrack.Record
}

func (f *fakeWriter) PersistHistoryBatch(_ context.Context, records []spacetrack.Record, _ string) (int, int, error) {
	f.batches = append(f.batches, records)
	f.insertedTotal += len(records)
	return len(records), 0, nil
}

// buildYearlyZip builds an in-memory zip containing one JSON file with the
// given raw JSON body.
func buildYearlyZip(t *testing.T, jsonBody string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("gp_history.json")
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	if _, err := f.Write([]byte(jsonBody)); err != nil {
		t.Fatalf("writing zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

// buildMainZip builds an in-memory archive with one yearly sub-archive per
// (name, body) pair.
func buildMainZip(t *testing.T, yearly map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range yearly {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}
		if _, err := f.Write(body); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

const sampleRecordJSON = `[{"NORAD_CAT_ID":"44713","OBJECT_NAME":"STARLINK-1007","EPOCH":"2024-03-01T00:00:00","TLE_LINE1":"1 44713U 19074A   24061.00000000  .00000000  00000-0  00000-0 0  9999","TLE_LINE2":"2 44713  53.0000 000.0000 0001000  00.0000 000.0000 15.00000000000000","MEAN_MOTION":"15.0"}]`

func TestImportArchiveImportsRecordsFromYearlyZip(t *testing.T) {
	yearly := buildYearlyZip(t, sampleRecordJSON)
	main := buildMainZip(t, map[string][]byte{"2024.zip": yearly})

	w := &fakeWriter{}
	im := New(w, discardLogger())

	stats, err := im.ImportArchive(context.Background(), bytes.NewReader(main), int64(len(main)), Options{})
	if err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if stats.RecordsParsed != 1 {
		t.Errorf("expected 1 record parsed, got %d", stats.RecordsParsed)
	}
	if stats.RecordsImported != 1 {
		t.Errorf("expected 1 record imported, got %d", stats.RecordsImported)
	}
	if w.insertedTotal != 1 {
		t.Errorf("expected writer to receive 1 record, got %d", w.insertedTotal)
	}
}

func TestImportArchiveFiltersByYear(t *testing.T) {
	main := buildMainZip(t, map[string][]byte{
		"2023.zip": buildYearlyZip(t, sampleRecordJSON),
		"2024.zip": buildYearlyZip(t, sampleRecordJSON),
	})

	w := &fakeWriter{}
	im := New(w, discardLogger())

	stats, err := im.ImportArchive(context.Background(), bytes.NewReader(main), int64(len(main)), Options{Years: []int{2024}})
	if err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if stats.RecordsParsed != 1 {
		t.Errorf("expected only the 2024 archive to be processed, got %d records parsed", stats.RecordsParsed)
	}
}

func TestImportArchiveDryRunDoesNotWrite(t *testing.T) {
	main := buildMainZip(t, map[string][]byte{"2024.zip": buildYearlyZip(t, sampleRecordJSON)})

	w := &fakeWriter{}
	im := New(w, discardLogger())

	stats, err := im.ImportArchive(context.Background(), bytes.NewReader(main), int64(len(main)), Options{DryRun: true})
	if err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if stats.RecordsImported != 1 {
		t.Errorf("expected dry-run to still count records, got %d", stats.RecordsImported)
	}
	if len(w.batches) != 0 {
		t.Error("expected dry run not to call the writer")
	}
}

func TestImportArchiveConstellationFilterSkipsNonMatching(t *testing.T) {
	main := buildMainZip(t, map[string][]byte{"2024.zip": buildYearlyZip(t, sampleRecordJSON)})

	w := &fakeWriter{}
	im := New(w, discardLogger())

	filter := spacetrack.Predicate{Field: "OBJECT_NAME", Operator: spacetrack.OpContains, Value: "ONEWEB"}
	stats, err := im.ImportArchive(context.Background(), bytes.NewReader(main), int64(len(main)), Options{ConstellationFilter: &filter})
	if err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if stats.RecordsImported != 0 {
		t.Errorf("expected non-matching record to be filtered out, got %d imported", stats.RecordsImported)
	}
}
