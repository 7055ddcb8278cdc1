package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mercator-hq/charter/pkg/cli"
	"mercator-hq/charter/pkg/config"
	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/evidence/recorder"
	evstorage "mercator-hq/charter/pkg/evidence/storage"
	"mercator-hq/charter/pkg/framework/analysis"
	"mercator-hq/charter/pkg/framework/catalog"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy/engine"
	"mercator-hq/charter/pkg/policy/library"
	"mercator-hq/charter/pkg/policy/library/gitsource"
	"mercator-hq/charter/pkg/storage"
	"mercator-hq/charter/pkg/storage/sqlite"
	"mercator-hq/charter/pkg/telemetry/logging"
	"mercator-hq/charter/pkg/telemetry/metrics"
	"mercator-hq/charter/pkg/telemetry/tracing"
)

// app holds the collaborators shared by the commands. Closers run in
// reverse order of registration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	store    storage.Store
	evidence evidence.Storage
	recorder *recorder.Recorder
	holder   *library.Holder
	overlay  *engine.ClauseOverlay
	git      *gitsource.Repository
	engine   *engine.Engine

	closers []func() error
}

// openApp wires logging, metrics, tracing, the repositories, the evidence
// trail, the clause library and the engine.
func openApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.logger, err = logging.New(cfg.Telemetry.Logging, os.Stderr); err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	if cfg.Telemetry.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, a.registry)
	}

	if a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version); err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.tracer.Shutdown(ctx)
	})

	if a.store, err = openStore(cfg.Storage, a.logger); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	if cfg.Evidence.Enabled {
		if a.evidence, err = openEvidence(&cfg.Evidence); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.evidence.Close)

		a.recorder = recorder.NewRecorder(a.evidence, &recorder.Config{
			Enabled:        true,
			AsyncBuffer:    cfg.Evidence.Recorder.AsyncBuffer,
			WriteTimeout:   cfg.Evidence.Recorder.WriteTimeout,
			MaxFieldLength: cfg.Evidence.Recorder.MaxFieldLength,
		}, a.logger)
		a.recorder.OnWrite = func(kind evidence.Kind, err error) {
			a.metrics.RecordEvidenceWrite(string(kind), err)
		}
		a.closers = append(a.closers, a.recorder.Close)
	}

	a.holder = library.NewHolder(nil)
	a.overlay = engine.NewClauseOverlay(a.holder, a.store)
	lib, err := a.loadLibrary(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.overlay.Publish(lib); err != nil {
		return nil, governance.Wrap(governance.KindConfiguration, "load library", err)
	}

	opts := engine.Options{
		Logger:                   a.logger,
		Metrics:                  a.metrics,
		Tracer:                   a.tracer,
		DefaultReviewCycleMonths: cfg.Approval.DefaultReviewCycleMonths,
	}
	if a.recorder != nil {
		opts.Evidence = a.recorder
	}
	if a.engine, err = engine.New(a.holder, a.store, opts); err != nil {
		return nil, err
	}
	return a, nil
}

// loadLibrary reads the clause library from disk, syncing the git clone
// first when the library is git-sourced.
func (a *app) loadLibrary(ctx context.Context) (*library.Library, error) {
	path := a.cfg.Library.Path
	source := ""

	if a.cfg.Library.Git.Enabled {
		repo, err := gitsource.NewRepository(a.cfg.Library.Git, a.logger)
		if err != nil {
			return nil, cli.NewConfigError("library.git", err.Error())
		}
		syncCtx, cancel := context.WithTimeout(ctx, a.cfg.Library.Git.Timeout)
		res, err := repo.Sync(syncCtx)
		cancel()
		if err != nil {
			return nil, governance.Wrap(governance.KindConfiguration, "sync library repository", err)
		}
		a.git = repo
		path = repo.LibraryPath()
		source = fmt.Sprintf("%s@%s", a.cfg.Library.Git.Repository, res.ToSHA)
	}

	lib, err := library.Load(path)
	if err != nil {
		a.metrics.RecordLibraryReload(err, 0, 0, 0)
		return nil, governance.Wrap(governance.KindConfiguration, "load library", err)
	}
	if source != "" {
		lib.Source = source
	}
	st := lib.Stats()
	a.metrics.RecordLibraryReload(nil, st.Templates, st.Clauses, st.Workflows)
	a.logger.Debug("library loaded",
		"source", lib.Source,
		"templates", st.Templates,
		"clauses", st.Clauses,
		"workflows", st.Workflows,
	)
	return lib, nil
}

// analysis builds the framework mapping service over the configured catalogs.
func (a *app) analysis() (*analysis.Service, error) {
	cat, err := loadCatalog(&a.cfg.Catalog)
	if err != nil {
		return nil, err
	}
	opts := analysis.Options{
		Logger:  a.logger,
		Metrics: a.metrics,
		Tracer:  a.tracer,
	}
	if a.recorder != nil {
		opts.Evidence = a.recorder
	}
	return analysis.NewService(cat, opts)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}

func openStore(cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLite, logger)
		if err != nil {
			return nil, governance.Wrap(governance.KindConfiguration, "open store", err)
		}
		return s, nil
	}
	return nil, cli.NewConfigError("storage.backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
}

func openEvidence(cfg *config.EvidenceConfig) (evidence.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return evstorage.NewMemoryStorage(), nil
	case "sqlite":
		s, err := evstorage.NewSQLiteStorage(&evstorage.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, governance.Wrap(governance.KindConfiguration, "open evidence storage", err)
		}
		return s, nil
	}
	return nil, cli.NewConfigError("evidence.backend", fmt.Sprintf("unknown backend %q", cfg.Backend))
}

// loadCatalog returns the builtin catalogs overlaid with any configured
// catalog files.
func loadCatalog(cfg *config.CatalogConfig) (*catalog.Catalog, error) {
	var cat *catalog.Catalog
	if cfg.Builtin {
		builtin, err := catalog.Builtin()
		if err != nil {
			return nil, governance.Wrap(governance.KindConfiguration, "load catalog", err)
		}
		cat = builtin
	}
	if len(cfg.Paths) > 0 {
		extra, err := catalog.Load(cfg.Paths...)
		if err != nil {
			return nil, governance.Wrap(governance.KindConfiguration, "load catalog", err)
		}
		if cat == nil {
			cat = extra
		} else {
			cat = catalog.Merge(cat, extra)
		}
	}
	if cat == nil {
		return nil, governance.Newf(governance.KindConfiguration, "load catalog", "no catalogs configured: enable catalog.builtin or set catalog.paths")
	}
	return cat, nil
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withApp loads configuration, opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
