// Package loader is the Initial Loader: it performs the first-time,
// staged catalog hydration a brand-new deployment needs, pacing itself
// across constellations and stages to stay well under upstream rate
// limits rather than firing every request at once.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/satcatalog/ingest/pkg/accountpool"
	"github.com/satcatalog/ingest/pkg/backfill"
	"github.com/satcatalog/ingest/pkg/registry"
	"github.com/satcatalog/ingest/pkg/spacetrack"
)

// Staged delays between requests: fixed pauses after each stage and
// between constellations during the initial load.
const (
	DelayAfterSATCAT           = 120 * time.Second
	DelayAfterGP               = 60 * time.Second
	DelayBetweenConstellations = 60 * time.Second

	// LargeConstellationThreshold is the satellite count above which
	// history backfill is deferred to the Backfill Engine's own throttled
	// schedule instead of being attempted inline during initial load.
	LargeConstellationThreshold = 500
)

// Client is the subset of spacetrack.Client the loader depends on.
type Client interface {
	Execute(ctx context.Context, q spacetrack.Query, queryType accountpool.QueryType, constellation string) ([]spacetrack.Record, error)
}

// Writer is the subset of writer.Writer the loader depends on.
type Writer interface {
	UpsertGPBatch(ctx context.Context, constellationSlug string, records []spacetrack.Record) (newCount, updatedCount int, err error)
	UpsertSATCATBatch(ctx context.Context, constellationSlug string, records []spacetrack.Record) (newCount, updatedCount int, err error)
}

// SatelliteCounter is the subset of catalogstore.SatelliteStore the loader
// depends on to decide whether a load is needed and whether history should
// be deferred for a constellation.
type SatelliteCounter interface {
	CountAndConstellations(ctx context.Context) (satelliteCount, constellationCount int, err error)
}

// BackfillRunner is the subset of backfill.Engine the loader depends on.
type BackfillRunner interface {
	Run(ctx context.Context, constellationSlug string, historyDays, maxBatches int) (backfill.Result, error)
}

// StageResult is one stage's outcome for one constellation. NewCount and
// UpdatedCount distinguish satellites created from satellites refreshed;
// the history stage, which only ever inserts, reports its count in
// NewCount and leaves UpdatedCount zero.
type StageResult struct {
	NewCount     int
	UpdatedCount int
	Skipped      string // reason, if the stage was skipped
	Err          error
}

// ConstellationResult tracks one constellation's progress through its stages.
type ConstellationResult struct {
	Slug        string
	StartedAt   time.Time
	CompletedAt time.Time
	Stages      map[string]StageResult
}

// Progress is a snapshot of the loader's current run.
type Progress struct {
	Status                  string // "idle", "running", "completed", "stopped", "error"
	TotalConstellations     int
	CompletedConstellations int
	CurrentConstellation    string
	CurrentStage            string
	Results                 map[string]ConstellationResult
	Error                   error
}

// Loader is the Initial Loader.
type Loader struct {
	client     Client
	writer     Writer
	satellites SatelliteCounter
	backfiller BackfillRunner
	registry   *registry.Registry
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration)

	mu       sync.Mutex
	loading  bool
	progress Progress
}

// New creates a Loader.
func New(client Client, writer Writer, satellites SatelliteCounter, backfiller BackfillRunner, reg *registry.Registry, logger *slog.Logger) *Loader {
	return &Loader{
		client:     client,
		writer:     writer,
		satellites: satellites,
		backfiller: backfiller,
		registry:   reg,
		logger:     logger,
		sleep:      ctxSleep,
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

// NeedsInitialLoad reports whether the catalog looks empty enough to
// warrant a fresh load: fewer than 100 satellites, or fewer than 3
// distinct constellations.
func (l *Loader) NeedsInitialLoad(ctx context.Context) (bool, error) {
	satelliteCount, constellationCount, err := l.satellites.CountAndConstellations(ctx)
	if err != nil {
		return false, fmt.Errorf("checking initial load need: %w", err)
	}
	return satelliteCount < 100 || constellationCount < 3, nil
}

// IsLoading reports whether a load is currently in progress.
func (l *Loader) IsLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Progress returns a snapshot of the current or most recent run.
func (l *Loader) Progress() Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.progress
}

// Run performs a staged initial load across slugs (defaulting to the
// registry's priority order plus any remaining configured constellations
// when slugs is empty), blocking until complete, stopped via ctx
// cancellation, or every constellation is processed.
func (l *Loader) Run(ctx context.Context, slugs []string, includeHistory bool, historyDays int) (Progress, error) {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return l.Progress(), fmt.Errorf("loader: initial load already running")
	}
	l.loading = true
	l.mu.Unlock()

	if len(slugs) == 0 {
		slugs = l.registry.PriorityConfigured()
	}

	progress := Progress{
		Status:              "running",
		TotalConstellations: len(slugs),
		Results:             make(map[string]ConstellationResult),
	}
	l.setProgress(progress)

	for idx, slug := range slugs {
		if ctx.Err() != nil {
			progress.Status = "stopped"
			l.setProgress(progress)
			break
		}

		progress.CurrentConstellation = slug
		l.setProgress(progress)

		result := l.loadConstellation(ctx, slug, includeHistory, historyDays)
		progress.Results[slug] = result
		progress.CompletedConstellations = idx + 1
		l.setProgress(progress)

		if idx < len(slugs)-1 && ctx.Err() == nil {
			l.sleep(ctx, DelayBetweenConstellations)
		}
	}

	if progress.Status != "stopped" {
		progress.Status = "completed"
	}
	progress.CurrentConstellation = ""
	progress.CurrentStage = ""
	l.setProgress(progress)

	l.mu.Lock()
	l.loading = false
	l.mu.Unlock()

	return progress, nil
}

func (l *Loader) setProgress(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = p
}

// loadConstellation runs the SATCAT -> GP -> (optional) History sequence
// for a single constellation.
func (l *Loader) loadConstellation(ctx context.Context, slug string, includeHistory bool, historyDays int) ConstellationResult {
	result := ConstellationResult{
		Slug:      slug,
		StartedAt: time.Now(),
		Stages:    make(map[string]StageResult),
	}

	entry, ok := l.registry.Get(slug)
	if !ok {
		result.Stages["satcat"] = StageResult{Err: fmt.Errorf("unknown constellation %q", slug)}
		result.CompletedAt = time.Now()
		return result
	}
	predicate, err := spacetrack.ParsePredicateString(entry.UpstreamQueryPredicate)
	if err != nil {
		result.Stages["satcat"] = StageResult{Err: fmt.Errorf("parsing predicate for %q: %w", slug, err)}
		result.CompletedAt = time.Now()
		return result
	}

	l.logger.Info("initial load: starting constellation", "constellation", slug)

	// Stage 1: SATCAT.
	satcatResult := l.runSATCAT(ctx, slug, predicate)
	result.Stages["satcat"] = satcatResult
	if ctx.Err() != nil {
		result.CompletedAt = time.Now()
		return result
	}
	l.sleep(ctx, DelayAfterSATCAT)

	// Stage 2: GP.
	gpResult := l.runGP(ctx, slug, predicate)
	result.Stages["gp"] = gpResult
	if ctx.Err() != nil {
		result.CompletedAt = time.Now()
		return result
	}
	l.sleep(ctx, DelayAfterGP)

	// Stage 3: history, deferred for very large constellations.
	if includeHistory {
		result.Stages["history"] = l.runHistory(ctx, slug, gpResult.NewCount+gpResult.UpdatedCount, historyDays)
	}

	result.CompletedAt = time.Now()
	l.logger.Info("initial load: constellation complete", "constellation", slug)
	return result
}

func (l *Loader) runSATCAT(ctx context.Context, slug string, predicate spacetrack.Predicate) StageResult {
	records, err := l.client.Execute(ctx, spacetrack.SATCATSyncQuery(predicate), accountpool.QuerySATCAT, slug)
	if err != nil {
		return StageResult{Err: fmt.Errorf("satcat sync: %w", err)}
	}
	newCount, updatedCount, err := l.writer.UpsertSATCATBatch(ctx, slug, records)
	if err != nil {
		return StageResult{Err: fmt.Errorf("writing satcat: %w", err)}
	}
	return StageResult{NewCount: newCount, UpdatedCount: updatedCount}
}

func (l *Loader) runGP(ctx context.Context, slug string, predicate spacetrack.Predicate) StageResult {
	records, err := l.client.Execute(ctx, spacetrack.GPRefreshQuery(predicate), accountpool.QueryGP, slug)
	if err != nil {
		return StageResult{Err: fmt.Errorf("gp refresh: %w", err)}
	}
	newCount, updatedCount, err := l.writer.UpsertGPBatch(ctx, slug, records)
	if err != nil {
		return StageResult{Err: fmt.Errorf("writing gp: %w", err)}
	}
	return StageResult{NewCount: newCount, UpdatedCount: updatedCount}
}

func (l *Loader) runHistory(ctx context.Context, slug string, satelliteCount, historyDays int) StageResult {
	if satelliteCount > LargeConstellationThreshold {
		return StageResult{
			Skipped: fmt.Sprintf("constellation has %d satellites (> %d); deferring to the backfill engine's throttled schedule", satelliteCount, LargeConstellationThreshold),
		}
	}
	if satelliteCount == 0 {
		return StageResult{Skipped: "no satellites"}
	}

	result, err := l.backfiller.Run(ctx, slug, historyDays, 10)
	if err != nil {
		return StageResult{Err: fmt.Errorf("history backfill: %w", err)}
	}
	return StageResult{NewCount: result.RecordsAdded}
}

// Stop requests the current run stop after its in-progress stage
// completes; callers typically achieve this by cancelling the ctx passed
// to Run, which this method does not itself manage — Stop exists for
// symmetry with IsLoading/Progress in callers that hold a Loader but not
// the cancel func.
func (l *Loader) Stop(cancel context.CancelFunc) {
	cancel()
}
