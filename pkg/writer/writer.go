// Package writer is the Catalog Writer: it takes normalized upstream
// records and turns them into idempotent merges against the catalog
// store, deriving orbital parameters from the raw TLE lines rather than
// trusting whatever the upstream response computed itself.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/satcatalog/ingest/pkg/catalogstore"
	"github.com/satcatalog/ingest/pkg/spacetrack"
)

// ConstellationStore is the subset of catalogstore.ConstellationStore the
// writer depends on.
type ConstellationStore interface {
	GetBySlug(ctx context.Context, slug string) (catalogstore.Constellation, error)
	RefreshCachedSatelliteCount(ctx context.Context, id int64) error
}

// SatelliteStore is the subset of catalogstore.SatelliteStore the writer
// depends on.
type SatelliteStore interface {
	UpsertGP(ctx context.Context, p catalogstore.GPUpsert) (sat catalogstore.Satellite, created bool, err error)
	UpsertSATCAT(ctx context.Context, p catalogstore.SATCATUpsert) (sat catalogstore.Satellite, created bool, err error)
	GetByCatalogNumber(ctx context.Context, catalogNumber int) (catalogstore.Satellite, error)
}

// LaunchStore is the subset of catalogstore.LaunchStore the writer depends on.
type LaunchStore interface {
	GetOrCreate(ctx context.Context, cosparID string, missionName, launchSite, rocketType *string) (catalogstore.Launch, error)
}

// HistoryStore is the subset of catalogstore.HistoryStore the writer
// depends on.
type HistoryStore interface {
	InsertRecord(ctx context.Context, satelliteID int64, tleLine1, tleLine2 string, epoch time.Time, orbit catalogstore.DerivedOrbit, sourceTag string) (bool, error)
}

// Writer is the Catalog Writer.
type Writer struct {
	constellations ConstellationStore
	satellites     SatelliteStore
	launches       LaunchStore
	history        HistoryStore
	logger         *slog.Logger
}

// New creates a Writer.
func New(constellations ConstellationStore, satellites SatelliteStore, launches LaunchStore, history HistoryStore, logger *slog.Logger) *Writer {
	return &Writer{
		constellations: constellations,
		satellites:     satellites,
		launches:       launches,
		history:        history,
		logger:         logger,
	}
}

// UpsertGPBatch merges a batch of GP (current TLE) records into the
// catalog under the given constellation slug. Orbital parameters are
// recomputed from each record's TLE line 2 rather than trusted from the
// upstream response, so re-ingesting the same TLE always yields the same
// stored values regardless of what the upstream happened to compute.
// Returns the count of satellites newly created versus already-present
// satellites that were updated.
func (w *Writer) UpsertGPBatch(ctx context.Context, constellationSlug string, records []spacetrack.Record) (newCount, updatedCount int, err error) {
	constellation, err := w.constellations.GetBySlug(ctx, constellationSlug)
	if err != nil {
		return 0, 0, fmt.Errorf("resolving constellation %q: %w", constellationSlug, err)
	}

	for _, r := range records {
		if r.NoradCatID == 0 || r.TLELine2 == "" {
			w.logger.Warn("skipping GP record missing catalog number or TLE line 2", "norad_cat_id", r.NoradCatID)
			continue
		}

		orbit, err := spacetrack.CalculateOrbitalParams(r.TLELine2)
		if err != nil {
			w.logger.Warn("skipping GP record with unparseable TLE line 2", "norad_cat_id", r.NoradCatID, "error", err)
			continue
		}

		_, created, err := w.satellites.UpsertGP(ctx, catalogstore.GPUpsert{
			CatalogNumber:   r.NoradCatID,
			ConstellationID: constellation.ID,
			ObjectName:      r.ObjectName,
			TLELine1:        r.TLELine1,
			TLELine2:        r.TLELine2,
			TLEEpoch:        r.Epoch,
			Orbit:           catalogstore.DerivedOrbit(orbit),
		})
		if err != nil {
			return newCount, updatedCount, fmt.Errorf("upserting GP record for satellite %d: %w", r.NoradCatID, err)
		}
		if created {
			newCount++
		} else {
			updatedCount++
		}
	}

	if err := w.constellations.RefreshCachedSatelliteCount(ctx, constellation.ID); err != nil {
		w.logger.Warn("refreshing cached satellite count failed", "constellation", constellationSlug, "error", err)
	}
	return newCount, updatedCount, nil
}

// UpsertSATCATBatch merges a batch of SATCAT (full-lifecycle metadata)
// records into the catalog. SATCAT responses include decayed objects, so
// this is the only path that ever sets decay_date / clears is_active.
// A satellite's launch is opportunistically created from its international
// designator; concurrent creators are resolved by catalogstore.LaunchStore,
// not here. Returns the count of satellites newly created versus
// already-present satellites that were updated.
func (w *Writer) UpsertSATCATBatch(ctx context.Context, constellationSlug string, records []spacetrack.Record) (newCount, updatedCount int, err error) {
	constellation, err := w.constellations.GetBySlug(ctx, constellationSlug)
	if err != nil {
		return 0, 0, fmt.Errorf("resolving constellation %q: %w", constellationSlug, err)
	}

	for _, r := range records {
		if r.NoradCatID == 0 {
			w.logger.Warn("skipping SATCAT record missing catalog number")
			continue
		}

		var launchID *int64
		if r.IntlDesignator != "" {
			site := optionalString(r.Site)
			launch, err := w.launches.GetOrCreate(ctx, r.IntlDesignator, nil, site, nil)
			if err != nil {
				w.logger.Warn("creating launch failed, continuing without launch link", "designator", r.IntlDesignator, "error", err)
			} else {
				launchID = &launch.ID
			}
		}

		_, created, err := w.satellites.UpsertSATCAT(ctx, catalogstore.SATCATUpsert{
			CatalogNumber:   r.NoradCatID,
			ConstellationID: constellation.ID,
			Name:            r.ObjectName,
			IntlDesignator:  optionalString(r.IntlDesignator),
			LaunchID:        launchID,
			LaunchDate:      r.LaunchDate,
			DecayDate:       r.DecayDate,
			CountryCode:     optionalString(r.Country),
			ObjectType:      optionalString(r.ObjectType),
			RCSSize:         optionalString(r.RCS),
		})
		if err != nil {
			return newCount, updatedCount, fmt.Errorf("upserting SATCAT record for satellite %d: %w", r.NoradCatID, err)
		}
		if created {
			newCount++
		} else {
			updatedCount++
		}
	}

	if err := w.constellations.RefreshCachedSatelliteCount(ctx, constellation.ID); err != nil {
		w.logger.Warn("refreshing cached satellite count failed", "constellation", constellationSlug, "error", err)
	}
	return newCount, updatedCount, nil
}

// PersistHistoryBatch archives a batch of historical TLE records for
// already-known satellites, identified by catalog number. Records for
// catalog numbers with no matching satellite are skipped and counted
// separately, since history backfill can race ahead of satellite
// creation for objects the catalog has not yet seen via GP/SATCAT.
func (w *Writer) PersistHistoryBatch(ctx context.Context, records []spacetrack.Record, sourceTag string) (inserted, skipped int, err error) {
	for _, r := range records {
		if r.NoradCatID == 0 || r.TLELine2 == "" || r.Epoch.IsZero() {
			skipped++
			continue
		}

		sat, err := w.satellites.GetByCatalogNumber(ctx, r.NoradCatID)
		if err != nil {
			skipped++
			continue
		}

		orbit, err := spacetrack.CalculateOrbitalParams(r.TLELine2)
		if err != nil {
			skipped++
			continue
		}

		ok, err := w.history.InsertRecord(ctx, sat.ID, r.TLELine1, r.TLELine2, r.Epoch, catalogstore.DerivedOrbit(orbit), sourceTag)
		if err != nil {
			return inserted, skipped, fmt.Errorf("persisting history record for satellite %d: %w", r.NoradCatID, err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, skipped, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
