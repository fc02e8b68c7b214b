package catalogstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/satcatalog/ingest/internal/db"
)

// ConstellationStore provides database operations for constellations.
type ConstellationStore struct {
	dbtx db.DBTX
}

// NewConstellationStore creates a ConstellationStore backed by dbtx.
func NewConstellationStore(dbtx db.DBTX) *ConstellationStore {
	return &ConstellationStore{dbtx: dbtx}
}

const constellationColumns = `id, slug, display_name, upstream_query_predicate, category, color, cached_satellite_count, updated_at`

func scanConstellationRow(row pgx.Row) (Constellation, error) {
	var c Constellation
	err := row.Scan(&c.ID, &c.Slug, &c.DisplayName, &c.UpstreamQueryPredicate, &c.Category, &c.Color, &c.CachedSatelliteCount, &c.UpdatedAt)
	return c, err
}

// UpsertRegistryEntry creates or updates a constellation row from the
// static registry. Fields other than cached_satellite_count are fully
// replaced on conflict since the registry, not the database, owns them.
func (s *ConstellationStore) UpsertRegistryEntry(ctx context.Context, slug, displayName, predicate, category, color string) (Constellation, error) {
	query := `
		INSERT INTO constellations (slug, display_name, upstream_query_predicate, category, color)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			upstream_query_predicate = EXCLUDED.upstream_query_predicate,
			category = EXCLUDED.category,
			color = EXCLUDED.color,
			updated_at = now()
		RETURNING ` + constellationColumns
	row := s.dbtx.QueryRow(ctx, query, slug, displayName, predicate, category, color)
	c, err := scanConstellationRow(row)
	if err != nil {
		return Constellation{}, fmt.Errorf("upserting constellation %q: %w", slug, err)
	}
	return c, nil
}

// GetBySlug returns a single constellation by slug.
func (s *ConstellationStore) GetBySlug(ctx context.Context, slug string) (Constellation, error) {
	query := `SELECT ` + constellationColumns + ` FROM constellations WHERE slug = $1`
	row := s.dbtx.QueryRow(ctx, query, slug)
	c, err := scanConstellationRow(row)
	if err != nil {
		return Constellation{}, fmt.Errorf("getting constellation %q: %w", slug, err)
	}
	return c, nil
}

// List returns every known constellation.
func (s *ConstellationStore) List(ctx context.Context) ([]Constellation, error) {
	query := `SELECT ` + constellationColumns + ` FROM constellations ORDER BY slug`
	rows, err := s.dbtx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing constellations: %w", err)
	}
	defer rows.Close()

	var items []Constellation
	for rows.Next() {
		c, err := scanConstellationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning constellation row: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating constellation rows: %w", err)
	}
	return items, nil
}

// RefreshCachedSatelliteCount recomputes cached_satellite_count from the
// satellites table. The count is a denormalized read-path optimization;
// it is safe to recompute at any time.
func (s *ConstellationStore) RefreshCachedSatelliteCount(ctx context.Context, id int64) error {
	query := `
		UPDATE constellations SET
			cached_satellite_count = (SELECT count(*) FROM satellites WHERE constellation_id = $1),
			updated_at = now()
		WHERE id = $1`
	if _, err := s.dbtx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("refreshing cached satellite count for constellation %d: %w", id, err)
	}
	return nil
}
