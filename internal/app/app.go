// Package app wires every ingestion component together and dispatches to
// the runtime mode selected by config or the CLI flag.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/satcatalog/ingest/internal/config"
	"github.com/satcatalog/ingest/internal/platform"
	"github.com/satcatalog/ingest/internal/seed"
	"github.com/satcatalog/ingest/internal/telemetry"
	"github.com/satcatalog/ingest/pkg/accountpool"
	"github.com/satcatalog/ingest/pkg/backfill"
	"github.com/satcatalog/ingest/pkg/catalogstore"
	"github.com/satcatalog/ingest/pkg/importer"
	"github.com/satcatalog/ingest/pkg/loader"
	"github.com/satcatalog/ingest/pkg/registry"
	"github.com/satcatalog/ingest/pkg/scheduler"
	"github.com/satcatalog/ingest/pkg/spacetrack"
	"github.com/satcatalog/ingest/pkg/writer"
)

// components bundles every wired-up piece the mode dispatch needs.
type components struct {
	logger     *slog.Logger
	cfg        *config.Config
	reg        *registry.Registry
	client     *spacetrack.Client
	writer     *writer.Writer
	satellites *catalogstore.SatelliteStore
	backfiller *backfill.Engine
	loader     *loader.Loader
}

// Run is the main application entry point: it reads config, connects to
// infrastructure, and starts the mode selected by cfg.Mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting satcatalog ingestion core", "mode", cfg.Mode)

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	reg := registry.New()
	if cfg.ConstellationsFile != "" {
		if err := reg.LoadOverrides(cfg.ConstellationsFile); err != nil {
			return fmt.Errorf("loading constellation overrides: %w", err)
		}
		logger.Info("constellation overrides loaded", "file", cfg.ConstellationsFile)
	}

	switch cfg.Mode {
	case "init-db":
		return nil // migrations already ran above

	case "seed":
		return seed.Run(ctx, pool, reg, logger)

	case "update-tle":
		c, err := buildComponents(cfg, pool, reg, logger)
		if err != nil {
			return err
		}
		return runUpdateTLE(ctx, c)

	case "import-history":
		c, err := buildComponents(cfg, pool, reg, logger)
		if err != nil {
			return err
		}
		return runImportHistory(ctx, c)

	case "backfill":
		c, err := buildComponents(cfg, pool, reg, logger)
		if err != nil {
			return err
		}
		return runBackfillOnce(ctx, c)

	case "serve":
		c, err := buildComponents(cfg, pool, reg, logger)
		if err != nil {
			return err
		}
		metrics := telemetry.NewMetrics()
		metricsReg := telemetry.NewRegistry(metrics)
		return runServe(ctx, c, metricsReg)

	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func buildComponents(cfg *config.Config, pool *pgxpool.Pool, reg *registry.Registry, logger *slog.Logger) (*components, error) {
	accounts, err := cfg.SpaceTrackAccounts()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, errors.New("no Space-Track accounts configured (set SPACETRACK_ACCOUNTS)")
	}

	accountPool := accountpool.New()
	for _, a := range accounts {
		accountPool.AddAccount(a.Username, a.Password)
	}

	client := spacetrack.New("https://www.space-track.org", accountPool, len(accounts))
	for _, a := range accounts {
		client.RegisterCredential(accountpool.Credential{Username: a.Username, Password: a.Password})
	}

	constellations := catalogstore.NewConstellationStore(pool)
	satellites := catalogstore.NewSatelliteStore(pool)
	launches := catalogstore.NewLaunchStore(pool)
	history := catalogstore.NewHistoryStore(pool)

	w := writer.New(constellations, satellites, launches, history, logger)
	backfiller := backfill.New(constellations, satellites, client, w, logger)
	ldr := loader.New(client, w, satellites, backfiller, reg, logger)

	return &components{
		logger:     logger,
		cfg:        cfg,
		reg:        reg,
		client:     client,
		writer:     w,
		satellites: satellites,
		backfiller: backfiller,
		loader:     ldr,
	}, nil
}

// runUpdateTLE performs one GP refresh + SATCAT sync pass across every
// configured constellation, then exits — the one-shot equivalent of the
// scheduler's gp_refresh/satcat_sync jobs, for cron-driven deployments
// that don't want a long-running process.
func runUpdateTLE(ctx context.Context, c *components) error {
	for _, slug := range c.reg.PriorityConfigured() {
		entry, ok := c.reg.Get(slug)
		if !ok {
			continue
		}
		predicate, err := spacetrack.ParsePredicateString(entry.UpstreamQueryPredicate)
		if err != nil {
			c.logger.Error("update-tle: bad predicate", "constellation", slug, "error", err)
			continue
		}

		gpRecords, err := c.client.Execute(ctx, spacetrack.GPRefreshQuery(predicate), accountpool.QueryGP, slug)
		if err != nil {
			c.logger.Error("update-tle: gp refresh failed", "constellation", slug, "error", err)
			continue
		}
		newCount, updatedCount, err := c.writer.UpsertGPBatch(ctx, slug, gpRecords)
		if err != nil {
			c.logger.Error("update-tle: writing gp failed", "constellation", slug, "error", err)
			continue
		}
		c.logger.Info("update-tle: gp refreshed", "constellation", slug, "new", newCount, "updated", updatedCount)

		satcatRecords, err := c.client.Execute(ctx, spacetrack.SATCATSyncQuery(predicate), accountpool.QuerySATCAT, slug)
		if err != nil {
			c.logger.Error("update-tle: satcat sync failed", "constellation", slug, "error", err)
			continue
		}
		newCount, updatedCount, err = c.writer.UpsertSATCATBatch(ctx, slug, satcatRecords)
		if err != nil {
			c.logger.Error("update-tle: writing satcat failed", "constellation", slug, "error", err)
			continue
		}
		c.logger.Info("update-tle: satcat synced", "constellation", slug, "new", newCount, "updated", updatedCount)
	}
	return nil
}

// runImportHistory reads the bulk archive configured via
// HISTORY_ARCHIVE_PATH and imports every matching yearly sub-archive.
func runImportHistory(ctx context.Context, c *components) error {
	path := c.cfg.HistoryArchivePath
	if path == "" {
		return errors.New("import-history: no archive path configured (set HISTORY_ARCHIVE_PATH)")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	im := importer.New(c.writer, c.logger)
	stats, err := im.ImportArchive(ctx, f, info.Size(), importer.Options{
		BatchSize: c.cfg.HistoryBatchSize,
	})
	if err != nil {
		return fmt.Errorf("importing archive: %w", err)
	}

	c.logger.Info("import-history: completed",
		"files_processed", stats.FilesProcessed,
		"records_parsed", stats.RecordsParsed,
		"records_imported", stats.RecordsImported,
		"records_skipped", stats.RecordsSkipped,
		"records_failed", stats.RecordsFailed,
		"satellites", len(stats.Satellites),
	)
	return nil
}

// runBackfillOnce runs a single bounded backfill pass for every configured
// constellation, then exits.
func runBackfillOnce(ctx context.Context, c *components) error {
	for _, slug := range c.reg.PriorityConfigured() {
		result, err := c.backfiller.Run(ctx, slug, c.cfg.HistoryDaysDefault, 10)
		if err != nil {
			c.logger.Error("backfill: failed", "constellation", slug, "error", err)
			continue
		}
		c.logger.Info("backfill: completed",
			"constellation", slug,
			"status", result.Status,
			"records_added", result.RecordsAdded,
			"progress_percent", result.ProgressPercent,
		)
	}
	return nil
}

// runServe runs the long-lived foreground process: the standing scheduler
// alongside a minimal metrics/health HTTP listener, plus an initial load in
// a background goroutine if the catalog looks empty.
func runServe(ctx context.Context, c *components, metricsReg *prometheus.Registry) error {
	needsLoad, err := c.loader.NeedsInitialLoad(ctx)
	if err != nil {
		return fmt.Errorf("checking initial load need: %w", err)
	}
	if needsLoad {
		c.logger.Info("serve: catalog looks empty, running initial load in the background")
		go func() {
			if _, err := c.loader.Run(ctx, nil, true, c.cfg.HistoryDaysDefault); err != nil {
				c.logger.Error("serve: initial load failed", "error", err)
			}
		}()
	}

	s := scheduler.New(c.logger)
	scheduler.RegisterCatalogJobs(s, c.reg, c.client, c.writer, c.backfiller, c.logger, c.cfg.HistoryDaysDefault, 5)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.cfg.MetricsPort),
		Handler: mux,
	}

	go func() {
		c.logger.Info("serve: metrics listener starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("serve: metrics listener failed", "error", err)
		}
	}()

	go s.Run(ctx)

	<-ctx.Done()
	c.logger.Info("serve: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
