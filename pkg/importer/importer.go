// Package importer loads historical TLE data out of the flat-file
// archive Space-Track distributes for bulk history (a zip of yearly
// zips, each holding GP_HISTORY-shaped JSON), bypassing the rate-limited
// query API entirely. It is meant for a one-time bulk load; from the
// archive's cutoff year onward, the Backfill Engine's normal API-driven
// path takes over.
package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/satcatalog/ingest/pkg/spacetrack"
)

// Writer is the subset of writer.Writer the importer depends on.
type Writer interface {
	PersistHistoryBatch(ctx context.Context, records []spacetrack.Record, sourceTag string) (inserted, skipped int, err error)
}

// SourceTag identifies history rows loaded by this importer, distinct
// from rows fetched live through the gp_history query path.
const SourceTag = "archive_import"

// Options configures one archive import run.
type Options struct {
	// Years restricts the import to these years; nil imports every
	// yearly archive found.
	Years []int
	// ConstellationFilter, if set, skips records whose object name
	// doesn't match the predicate (by field/contains semantics).
	ConstellationFilter *spacetrack.Predicate
	// BatchSize is how many parsed records are flushed to the writer at
	// a time.
	BatchSize int
	// DryRun parses and counts records without writing them.
	DryRun bool
}

// Stats tallies one import run's outcome.
type Stats struct {
	FilesProcessed  int
	RecordsParsed   int
	RecordsImported int
	RecordsSkipped  int
	RecordsFailed   int
	Satellites      map[int]bool
}

func newStats() Stats {
	return Stats{Satellites: make(map[int]bool)}
}

var yearPattern = regexp.MustCompile(`(20\d{2})`)

// Importer processes a TLEs.zip archive.
type Importer struct {
	writer Writer
	logger *slog.Logger
}

// New creates an Importer.
func New(writer Writer, logger *slog.Logger) *Importer {
	return &Importer{writer: writer, logger: logger}
}

// ImportArchive reads the main archive from r (sized size, as required
// by archive/zip's reader) and imports every matching yearly sub-archive
// found inside it.
func (im *Importer) ImportArchive(ctx context.Context, r io.ReaderAt, size int64, opts Options) (Stats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10000
	}
	stats := newStats()

	mainZip, err := zip.NewReader(r, size)
	if err != nil {
		return stats, fmt.Errorf("opening archive: %w", err)
	}

	var yearlyZips []*zip.File
	var jsonFiles []*zip.File
	for _, f := range mainZip.File {
		switch {
		case strings.HasSuffix(f.Name, ".zip") && yearPattern.MatchString(f.Name):
			yearlyZips = append(yearlyZips, f)
		case strings.HasSuffix(f.Name, ".json"):
			jsonFiles = append(jsonFiles, f)
		}
	}

	if len(yearlyZips) == 0 {
		if len(jsonFiles) == 0 {
			im.logger.Warn("archive import: no yearly archives or json files found")
			return stats, nil
		}
		if err := im.processJSONFiles(ctx, jsonFiles, opts, &stats); err != nil {
			return stats, err
		}
		return stats, nil
	}

	sort.Slice(yearlyZips, func(i, j int) bool { return yearlyZips[i].Name < yearlyZips[j].Name })

	for _, yz := range yearlyZips {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		year := extractYear(yz.Name)
		if len(opts.Years) > 0 && !containsYear(opts.Years, year) {
			continue
		}

		im.logger.Info("archive import: processing yearly archive", "name", yz.Name, "year", year)
		if err := im.processYearlyZip(ctx, yz, opts, &stats); err != nil {
			im.logger.Error("archive import: yearly archive failed", "name", yz.Name, "error", err)
			continue
		}
		im.logger.Info("archive import: progress", "imported", stats.RecordsImported, "skipped", stats.RecordsSkipped)
	}

	return stats, nil
}

func (im *Importer) processYearlyZip(ctx context.Context, yz *zip.File, opts Options, stats *Stats) error {
	rc, err := yz.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", yz.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("reading %s: %w", yz.Name, err)
	}

	yearlyZip, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("opening nested archive %s: %w", yz.Name, err)
	}

	var jsonFiles []*zip.File
	for _, f := range yearlyZip.File {
		if strings.HasSuffix(f.Name, ".json") {
			jsonFiles = append(jsonFiles, f)
		}
	}
	if len(jsonFiles) == 0 {
		im.logger.Warn("archive import: no json files in yearly archive", "name", yz.Name)
		return nil
	}

	return im.processJSONFiles(ctx, jsonFiles, opts, stats)
}

func (im *Importer) processJSONFiles(ctx context.Context, files []*zip.File, opts Options, stats *Stats) error {
	var pending []spacetrack.Record

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if opts.DryRun {
			stats.RecordsImported += len(pending)
			pending = nil
			return nil
		}
		inserted, skipped, err := im.writer.PersistHistoryBatch(ctx, pending, SourceTag)
		if err != nil {
			return fmt.Errorf("persisting batch: %w", err)
		}
		stats.RecordsImported += inserted
		stats.RecordsSkipped += skipped
		pending = nil
		return nil
	}

	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		records, err := readJSONRecords(f)
		if err != nil {
			im.logger.Error("archive import: failed to parse json file", "name", f.Name, "error", err)
			continue
		}
		stats.FilesProcessed++

		for _, rec := range records {
			stats.RecordsParsed++
			if rec.NoradCatID == 0 || rec.TLELine2 == "" || rec.Epoch.IsZero() {
				stats.RecordsFailed++
				continue
			}
			if opts.ConstellationFilter != nil && !matchesPredicate(rec.ObjectName, *opts.ConstellationFilter) {
				continue
			}
			stats.Satellites[rec.NoradCatID] = true
			pending = append(pending, rec)
			if len(pending) >= opts.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}

	return flush()
}

// readJSONRecords decodes one archive JSON file, tolerating both a bare
// array and a single object (Space-Track's cloud-storage export has used
// both shapes historically).
func readJSONRecords(f *zip.File) ([]spacetrack.Record, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		body = append([]byte{'['}, append(trimmed, ']')...)
	}

	records, err := spacetrack.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.Name, err)
	}
	return records, nil
}

func matchesPredicate(objectName string, p spacetrack.Predicate) bool {
	if p.Operator != spacetrack.OpContains {
		return true
	}
	return strings.Contains(strings.ToUpper(objectName), strings.ToUpper(p.Value))
}

func extractYear(name string) int {
	m := yearPattern.FindString(name)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

func containsYear(years []int, y int) bool {
	for _, v := range years {
		if v == y {
			return true
		}
	}
	return false
}
