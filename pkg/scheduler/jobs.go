package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/satcatalog/ingest/pkg/accountpool"
	"github.com/satcatalog/ingest/pkg/backfill"
	"github.com/satcatalog/ingest/pkg/registry"
	"github.com/satcatalog/ingest/pkg/spacetrack"
)

// Default job intervals. GP refresh tracks accountpool.GPQueryCooldown,
// SATCAT sync tracks SATCATQueryCooldown, and decay/TIP checks run more
// frequently since those feeds are cheap and small.
const (
	GPRefreshInterval  = accountpool.GPQueryCooldown
	SATCATSyncInterval = accountpool.SATCATQueryCooldown
	DecayCheckInterval = 6 * time.Hour
	TIPCheckInterval   = 6 * time.Hour
	BackfillInterval   = time.Hour
)

// Client is the subset of spacetrack.Client the scheduled jobs depend on.
type Client interface {
	Execute(ctx context.Context, q spacetrack.Query, queryType accountpool.QueryType, constellation string) ([]spacetrack.Record, error)
}

// Writer is the subset of writer.Writer the scheduled jobs depend on.
type Writer interface {
	UpsertGPBatch(ctx context.Context, constellationSlug string, records []spacetrack.Record) (newCount, updatedCount int, err error)
	UpsertSATCATBatch(ctx context.Context, constellationSlug string, records []spacetrack.Record) (newCount, updatedCount int, err error)
}

// BackfillRunner is the subset of backfill.Engine the scheduled job depends on.
type BackfillRunner interface {
	Run(ctx context.Context, constellationSlug string, historyDays, maxBatches int) (backfill.Result, error)
}

// RegisterCatalogJobs wires the five standing catalog-maintenance jobs
// (GP refresh, SATCAT sync, decay check, TIP check, backfill tick) onto s.
// reg supplies the constellations to iterate; historyDays and
// backfillMaxBatches configure the backfill job's per-tick bound.
func RegisterCatalogJobs(s *Scheduler, reg *registry.Registry, client Client, writer Writer, backfiller BackfillRunner, logger *slog.Logger, historyDays, backfillMaxBatches int) {
	s.AddJob("gp_refresh", GPRefreshInterval, func(ctx context.Context, runID string) error {
		return forEachConstellation(reg, func(slug string, entry registry.Entry) error {
			predicate, err := spacetrack.ParsePredicateString(entry.UpstreamQueryPredicate)
			if err != nil {
				return fmt.Errorf("gp refresh for %q: %w", slug, err)
			}
			q := spacetrack.GPRefreshQuery(predicate)
			records, err := client.Execute(ctx, q, accountpool.QueryGP, slug)
			if err != nil {
				return fmt.Errorf("gp refresh for %q: %w", slug, err)
			}
			newCount, updatedCount, err := writer.UpsertGPBatch(ctx, slug, records)
			if err != nil {
				return fmt.Errorf("writing gp refresh for %q: %w", slug, err)
			}
			logger.Info("gp refresh completed", "run_id", runID, "constellation", slug, "new", newCount, "updated", updatedCount)
			return nil
		})
	})

	s.AddJob("satcat_sync", SATCATSyncInterval, func(ctx context.Context, runID string) error {
		return forEachConstellation(reg, func(slug string, entry registry.Entry) error {
			predicate, err := spacetrack.ParsePredicateString(entry.UpstreamQueryPredicate)
			if err != nil {
				return fmt.Errorf("satcat sync for %q: %w", slug, err)
			}
			q := spacetrack.SATCATSyncQuery(predicate)
			records, err := client.Execute(ctx, q, accountpool.QuerySATCAT, slug)
			if err != nil {
				return fmt.Errorf("satcat sync for %q: %w", slug, err)
			}
			newCount, updatedCount, err := writer.UpsertSATCATBatch(ctx, slug, records)
			if err != nil {
				return fmt.Errorf("writing satcat sync for %q: %w", slug, err)
			}
			logger.Info("satcat sync completed", "run_id", runID, "constellation", slug, "new", newCount, "updated", updatedCount)
			return nil
		})
	})

	s.AddJob("decay_check", DecayCheckInterval, func(ctx context.Context, runID string) error {
		records, err := client.Execute(ctx, spacetrack.DecayQuery(), accountpool.QueryDecay, "")
		if err != nil {
			return fmt.Errorf("decay check: %w", err)
		}
		logger.Info("decay check completed", "run_id", runID, "recent_decays", len(records))
		return nil
	})

	s.AddJob("tip_check", TIPCheckInterval, func(ctx context.Context, runID string) error {
		records, err := client.Execute(ctx, spacetrack.TIPQuery(), accountpool.QueryTIP, "")
		if err != nil {
			return fmt.Errorf("tip check: %w", err)
		}
		logger.Info("tip check completed", "run_id", runID, "active_predictions", len(records))
		return nil
	})

	s.AddJob("backfill_tick", BackfillInterval, func(ctx context.Context, runID string) error {
		return forEachConstellation(reg, func(slug string, _ registry.Entry) error {
			result, err := backfiller.Run(ctx, slug, historyDays, backfillMaxBatches)
			if err != nil {
				return fmt.Errorf("backfill tick for %q: %w", slug, err)
			}
			logger.Info("backfill tick completed", "run_id", runID, "constellation", slug,
				"status", result.Status, "records_added", result.RecordsAdded, "progress_percent", result.ProgressPercent)
			return nil
		})
	})
}

// forEachConstellation runs fn for every configured constellation,
// priority slugs first, continuing past individual failures rather than
// letting one bad constellation abort the whole job run. It returns the
// first error encountered.
func forEachConstellation(reg *registry.Registry, fn func(slug string, entry registry.Entry) error) error {
	var firstErr error
	for _, slug := range reg.PriorityConfigured() {
		entry, ok := reg.Get(slug)
		if !ok {
			continue
		}
		if err := fn(slug, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
