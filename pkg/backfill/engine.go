package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/satcatalog/ingest/pkg/accountpool"
	"github.com/satcatalog/ingest/pkg/catalogstore"
	"github.com/satcatalog/ingest/pkg/spacetrack"
)

const (
	satelliteBatchSize   = 50
	catalogNumberSubBatchSize = 20

	delayBetweenSubBatches = 10 * time.Second
	delayBetweenYearChunks = 5 * time.Second
	delayBetweenBatches    = 60 * time.Second
)

// Client is the subset of spacetrack.Client the engine depends on.
type Client interface {
	Execute(ctx context.Context, q spacetrack.Query, queryType accountpool.QueryType, constellation string) ([]spacetrack.Record, error)
}

// Writer is the subset of writer.Writer the engine depends on.
type Writer interface {
	PersistHistoryBatch(ctx context.Context, records []spacetrack.Record, sourceTag string) (inserted, skipped int, err error)
}

// ConstellationStore is the subset of catalogstore.ConstellationStore the
// engine depends on.
type ConstellationStore interface {
	GetBySlug(ctx context.Context, slug string) (catalogstore.Constellation, error)
}

// SatelliteStore is the subset of catalogstore.SatelliteStore the engine
// depends on.
type SatelliteStore interface {
	ListEarliestHistoryEpochs(ctx context.Context, constellationID int64) ([]catalogstore.EarliestHistoryEpoch, error)
}

// Result summarizes one backfill run, mirroring the shape callers (CLI,
// scheduler) report back to operators.
type Result struct {
	Status              string
	RecordsAdded        int
	SatellitesProcessed int
	SatellitesRemaining int
	ProgressPercent     float64
	Message             string
}

// Engine is the Backfill Engine.
type Engine struct {
	constellations ConstellationStore
	satellites     SatelliteStore
	client         Client
	writer         Writer
	logger         *slog.Logger
	sleep          func(context.Context, time.Duration)
}

// New creates an Engine.
func New(constellations ConstellationStore, satellites SatelliteStore, client Client, writer Writer, logger *slog.Logger) *Engine {
	return &Engine{
		constellations: constellations,
		satellites:     satellites,
		client:         client,
		writer:         writer,
		logger:         logger,
		sleep:          ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run plans and executes one bounded backfill pass for a constellation.
// maxBatches caps how many 50-satellite batches are processed in this call,
// so a single invocation (e.g. from the scheduler's periodic job) never
// runs unbounded; callers re-invoke Run on subsequent ticks to make further
// progress.
func (e *Engine) Run(ctx context.Context, constellationSlug string, historyDays, maxBatches int) (Result, error) {
	constellation, err := e.constellations.GetBySlug(ctx, constellationSlug)
	if err != nil {
		return Result{}, fmt.Errorf("resolving constellation %q: %w", constellationSlug, err)
	}

	earliest, err := e.satellites.ListEarliestHistoryEpochs(ctx, constellation.ID)
	if err != nil {
		return Result{}, fmt.Errorf("listing earliest history epochs: %w", err)
	}

	plans := Plan(earliest, historyDays, time.Now())
	totalSatellites := len(earliest)
	if len(plans) == 0 {
		return Result{
			Status:          "complete",
			ProgressPercent: 100.0,
			Message:         fmt.Sprintf("constellation %q already has %d days of history coverage", constellationSlug, historyDays),
		}, nil
	}

	satelliteBatches := batchSatellites(plans, satelliteBatchSize)
	totalPlanned := len(plans)
	alreadyComplete := totalSatellites - totalPlanned

	recordsAdded := 0
	satellitesProcessed := 0
	batchesRun := 0
	cancelled := false

	for i, batch := range satelliteBatches {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if batchesRun >= maxBatches {
			break
		}
		batchesRun++

		added, err := e.runSatelliteBatch(ctx, constellationSlug, batch)
		if err != nil {
			e.logger.Error("backfill satellite batch failed", "constellation", constellationSlug, "batch", i, "error", err)
		}
		recordsAdded += added
		satellitesProcessed += len(batch)

		if i < len(satelliteBatches)-1 && batchesRun < maxBatches {
			e.sleep(ctx, delayBetweenBatches)
		}
	}

	remaining := totalPlanned - satellitesProcessed
	if remaining < 0 {
		remaining = 0
	}

	// Progress counts satellites that needed no work at all alongside those
	// just processed, against the constellation's full satellite count —
	// not just the subset still needing work.
	progress := 100.0
	if totalSatellites > 0 {
		progress = 100.0 * float64(alreadyComplete+satellitesProcessed) / float64(totalSatellites)
	}

	var status string
	switch {
	case cancelled:
		status = "partial"
	case remaining == 0:
		status = "complete"
	default:
		status = "in_progress"
	}

	return Result{
		Status:              status,
		RecordsAdded:        recordsAdded,
		SatellitesProcessed: satellitesProcessed,
		SatellitesRemaining: remaining,
		ProgressPercent:     progress,
		Message: fmt.Sprintf("processed %d/%d satellites for %q, added %d history records",
			satellitesProcessed, totalPlanned, constellationSlug, recordsAdded),
	}, nil
}

// runSatelliteBatch processes one batch of up to satelliteBatchSize
// satellites, splitting further into catalog-number sub-batches and
// per-year date chunks.
func (e *Engine) runSatelliteBatch(ctx context.Context, constellationSlug string, batch []SatellitePlan) (int, error) {
	subBatches := batchSatellites(batch, catalogNumberSubBatchSize)
	recordsAdded := 0

	for i, sub := range subBatches {
		start, end := rangeOf(sub)
		catalogNumbers := catalogNumbersOf(sub)
		yearChunks := chunkYears(start, end)

		for j, chunk := range yearChunks {
			records, err := e.fetchHistory(ctx, constellationSlug, catalogNumbers, chunk[0], chunk[1])
			if err != nil {
				e.logger.Warn("fetching history chunk failed", "constellation", constellationSlug, "error", err)
				continue
			}

			inserted, _, err := e.writer.PersistHistoryBatch(ctx, records, "backfill")
			if err != nil {
				e.logger.Error("persisting history batch failed", "constellation", constellationSlug, "error", err)
				continue
			}
			recordsAdded += inserted

			if j < len(yearChunks)-1 {
				e.sleep(ctx, delayBetweenYearChunks)
			}
		}

		if i < len(subBatches)-1 {
			e.sleep(ctx, delayBetweenSubBatches)
		}
	}
	return recordsAdded, nil
}

// fetchHistory tries each history query shape in order, since the upstream
// endpoint is sensitive to exact predicate syntax and a shape that works
// for one constellation has historically failed for another.
func (e *Engine) fetchHistory(ctx context.Context, constellationSlug string, catalogNumbers []int, start, end time.Time) ([]spacetrack.Record, error) {
	var lastErr error
	for _, shape := range spacetrack.HistoryQueryShapes() {
		q := spacetrack.GPHistoryQuery(catalogNumbers, start, end, shape)
		records, err := e.client.Execute(ctx, q, accountpool.QueryGPHistory, constellationSlug)
		if err == nil {
			return records, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all history query shapes failed: %w", lastErr)
}

func rangeOf(plans []SatellitePlan) (time.Time, time.Time) {
	start := plans[0].RangeStart
	end := plans[0].RangeEnd
	for _, p := range plans[1:] {
		if p.RangeStart.Before(start) {
			start = p.RangeStart
		}
		if p.RangeEnd.After(end) {
			end = p.RangeEnd
		}
	}
	return start, end
}

func catalogNumbersOf(plans []SatellitePlan) []int {
	ids := make([]int, len(plans))
	for i, p := range plans {
		ids[i] = p.CatalogNumber
	}
	return ids
}
