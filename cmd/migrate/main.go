package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/store/migrations"
)

var (
	backend   = flag.String("backend", "", "Store backend to migrate: sqlite, postgres or bigquery (defaults to STORE_BACKEND)")
	appliedBy = flag.String("applied-by", app.AppliedBy("migrate-cli"), "Name of the tool applying migrations")
	status    = flag.Bool("status", false, "Only report applied, pending and changed migrations")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel)
	if err != nil && *backend == "" {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *backend != "" {
		cfg.StoreBackend = strings.ToLower(*backend)
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	s, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer s.Close()

	m, ok := s.(app.Migrator)
	if !ok {
		log.Fatal().Str("backend", cfg.StoreBackend).Msg("Backend has no schema to migrate")
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("Connected")

	dialect, vars := dialectFor(cfg)
	all, err := migrations.Load(dialect, vars)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}

	if drift := migrations.Drift(all, applied); len(drift) > 0 {
		log.Warn().Strs("migrations", drift).Msg("Applied migrations changed since they ran")
	}

	if *status {
		printStatus(os.Stdout, all, applied)
		return
	}

	done, err := m.Migrate(ctx, *appliedBy)
	for _, mig := range done {
		log.Info().Msgf("  [OK]   %04d_%s", mig.Version, mig.Name)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if len(done) == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Msgf("Successfully applied %d migration(s)", len(done))
	}
}

// dialectFor maps the backend to its migration dialect and placeholders.
func dialectFor(cfg config.Config) (string, map[string]string) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return migrations.Postgres, nil
	case config.BackendBigQuery:
		return migrations.BigQuery, map[string]string{
			"PROJECT_ID": cfg.BQProjectID,
			"DATASET_ID": cfg.BQDataset,
		}
	default:
		return migrations.SQLite, nil
	}
}

func printStatus(w io.Writer, all []migrations.Migration, applied []migrations.AppliedMigration) {
	changed := make(map[string]bool)
	for _, name := range migrations.Drift(all, applied) {
		changed[name] = true
	}
	for _, a := range applied {
		name := fmt.Sprintf("%04d_%s", a.Version, a.Name)
		state := "[DONE]"
		if changed[name] {
			state = "[DIFF]"
		}
		fmt.Fprintf(w, "  %s %s (%s by %s)\n", state, name, a.AppliedAt.Format(time.RFC3339), a.AppliedBy)
	}
	for _, p := range migrations.Pending(all, applied) {
		fmt.Fprintf(w, "  [PEND] %04d_%s\n", p.Version, p.Name)
	}
}
