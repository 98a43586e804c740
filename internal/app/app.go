// Package app wires the configured store, oracle, storage and cache into the
// collaborators the binaries share.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/gcs"
	"github.com/dvloznov/budget-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/budget-tracker/internal/infra/bigquery"
	"github.com/dvloznov/budget-tracker/internal/oracle"
	"github.com/dvloznov/budget-tracker/internal/pipeline"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/dvloznov/budget-tracker/internal/store/memory"
	"github.com/dvloznov/budget-tracker/internal/store/migrations"
	"github.com/dvloznov/budget-tracker/internal/store/postgres"
	"github.com/dvloznov/budget-tracker/internal/store/sqlite"
)

// Migrator is implemented by the SQL and warehouse backends.
type Migrator interface {
	Migrate(ctx context.Context, appliedBy string) ([]migrations.Migration, error)
	AppliedMigrations(ctx context.Context) ([]migrations.AppliedMigration, error)
}

var (
	_ Migrator = (*sqlite.Store)(nil)
	_ Migrator = (*postgres.Store)(nil)
	_ Migrator = (*infraBQ.Repository)(nil)
)

// OpenStore opens the backend selected by cfg.StoreBackend, undecorated.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		return postgres.Connect(ctx, cfg.DatabaseURL)
	case config.BackendBigQuery:
		return infraBQ.NewRepository(ctx, infraBQ.Dataset{ProjectID: cfg.BQProjectID, DatasetID: cfg.BQDataset})
	default:
		return nil, fmt.Errorf("OpenStore: unknown backend %q", cfg.StoreBackend)
	}
}

// NewOracle returns the Gemini oracle, or the disabled one when it is
// switched off or cannot be created.
func NewOracle(ctx context.Context, cfg config.Config, log zerolog.Logger) oracle.Oracle {
	if !cfg.OracleEnabled {
		return oracle.Disabled{}
	}
	g, err := oracle.NewGemini(ctx,
		oracle.WithModel(cfg.GeminiModel),
		oracle.WithTimeout(cfg.OracleTimeout),
		oracle.WithLogger(log),
	)
	if err != nil {
		log.Warn().Err(err).Msg("AI oracle unavailable, continuing with rules only")
		return oracle.Disabled{}
	}
	return g
}

// App holds the long-lived collaborators of a process.
type App struct {
	Config   config.Config
	Log      zerolog.Logger
	Store    store.Store // Guarded around the backend
	Backend  store.Store
	Oracle   oracle.Oracle
	Storage  gcs.StorageService // nil without GCS_BUCKET
	Cache    *analytics.Cache
	Importer *pipeline.Importer

	closers []func() error
}

// New opens everything cfg asks for.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	backend, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app.New: opening %s store: %w", cfg.StoreBackend, err)
	}
	a := &App{
		Config:  cfg,
		Log:     log,
		Backend: backend,
		Store:   store.NewGuarded(backend, cfg.StoreTimeout, log),
		Oracle:  NewOracle(ctx, cfg, log),
		closers: []func() error{backend.Close},
	}

	if cfg.GCSBucket != "" {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Storage = svc
		a.closers = append(a.closers, svc.Close)
	}

	cache, err := analytics.NewCache(0)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.Cache = cache
	a.closers = append(a.closers, func() error { cache.Close(); return nil })

	a.Importer = pipeline.NewImporter(a.PipelineDeps())
	log.Info().
		Str("store", cfg.StoreBackend).
		Bool("oracle", oracle.IsEnabled(a.Oracle)).
		Bool("gcs", a.Storage != nil).
		Msg("application initialised")
	return a, nil
}

// PipelineDeps returns the import pipeline collaborators.
func (a *App) PipelineDeps() pipeline.Deps {
	return pipeline.Deps{
		Store:            a.Store,
		Storage:          a.Storage,
		Oracle:           a.Oracle,
		FingerprintLimit: a.Config.FingerprintFetchLimit,
		Fallback:         a.Config.FallbackCategory,
		Log:              a.Log,
	}
}

// AnalyticsOptions returns the aggregator options for userID.
func (a *App) AnalyticsOptions(userID string) []analytics.Option {
	opts := []analytics.Option{
		analytics.WithFallback(a.Config.FallbackCategory),
		analytics.WithIncomeCategories(a.Config.IncomeCategory, "Income"),
		analytics.WithInvestmentCategories(a.Config.InvestmentCategory, "Investment"),
	}
	if a.Cache != nil {
		opts = append(opts, analytics.WithCache(a.Cache, userID))
	}
	return opts
}

// Migrator returns the backend's migrator, if it has one.
func (a *App) Migrator() (Migrator, bool) {
	m, ok := a.Backend.(Migrator)
	return m, ok
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// AppliedBy identifies the current process in schema_migrations.
func AppliedBy(tool string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return tool
	}
	return tool + "@" + host
}
