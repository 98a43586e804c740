package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/store/migrations"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		backend string
		dialect string
		vars    map[string]string
	}{
		{config.BackendSQLite, migrations.SQLite, nil},
		{config.BackendPostgres, migrations.Postgres, nil},
		{config.BackendBigQuery, migrations.BigQuery, map[string]string{"PROJECT_ID": "p", "DATASET_ID": "budget"}},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Config{StoreBackend: tt.backend, BQProjectID: "p", BQDataset: "budget"}
			dialect, vars := dialectFor(cfg)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.vars, vars)
		})
	}
}

func TestPrintStatus(t *testing.T) {
	all := []migrations.Migration{
		{Version: 1, Name: "init", Checksum: "aaa"},
		{Version: 2, Name: "categories", Checksum: "bbb"},
		{Version: 3, Name: "preferences", Checksum: "ccc"},
	}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	applied := []migrations.AppliedMigration{
		{Version: 1, Name: "init", Checksum: "aaa", AppliedAt: at, AppliedBy: "migrate-cli"},
		{Version: 2, Name: "categories", Checksum: "old", AppliedAt: at, AppliedBy: "api"},
	}

	var buf bytes.Buffer
	printStatus(&buf, all, applied)

	out := buf.String()
	assert.Contains(t, out, "[DONE] 0001_init (2024-03-01T10:00:00Z by migrate-cli)")
	assert.Contains(t, out, "[DIFF] 0002_categories")
	assert.Contains(t, out, "[PEND] 0003_preferences")
}
