// Package seed provisions the constellation registry into the database
// so the scheduler and backfill engine have rows to work against on a
// brand-new deployment, before any upstream data has been pulled in.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/satcatalog/ingest/pkg/catalogstore"
	"github.com/satcatalog/ingest/pkg/registry"
)

// Run idempotently upserts every registry entry (built-in plus any
// loaded overrides) as a constellation row.
func Run(ctx context.Context, pool *pgxpool.Pool, reg *registry.Registry, logger *slog.Logger) error {
	store := catalogstore.NewConstellationStore(pool)

	count := 0
	for _, slug := range reg.Slugs() {
		entry, ok := reg.Get(slug)
		if !ok {
			continue
		}
		c, err := store.UpsertRegistryEntry(ctx, entry.Slug, entry.DisplayName, entry.UpstreamQueryPredicate, entry.Category, entry.Color)
		if err != nil {
			return fmt.Errorf("seeding constellation %q: %w", slug, err)
		}
		logger.Info("seed: upserted constellation", "slug", c.Slug, "id", c.ID)
		count++
	}

	logger.Info("seed: completed successfully", "constellations", count)
	return nil
}
