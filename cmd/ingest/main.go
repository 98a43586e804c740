package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Parse CLI flags
	source := flag.String("source", "", "Export to import: local path or gs://bucket/object")
	userID := flag.String("user", "", "User the transactions belong to")
	bank := flag.String("bank", "", "Bank hint for column mapping")
	flag.Parse()

	if *source == "" || *userID == "" {
		log.Fatal().Msg("Error: --source and --user are required")
	}

	// Create context with timeout so the run doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer a.Close()

	log.Info().Str("source", *source).Str("user_id", *userID).Msg("Starting ingestion")

	report, err := a.Importer.Import(ctx, pipeline.Request{UserID: *userID, Source: *source, Bank: *bank})

	// the report goes to stdout for scripts, logs go elsewhere
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if err != nil {
		log.Error().Err(err).Msg("Ingestion failed")
		a.Close()
		os.Exit(1)
	}
	log.Info().Int("inserted", report.Inserted).Msg("Ingestion completed successfully")
}
