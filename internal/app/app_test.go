package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/oracle"
	"github.com/dvloznov/budget-tracker/internal/store/memory"
	"github.com/dvloznov/budget-tracker/internal/store/sqlite"
)

func testConfig() config.Config {
	return config.Config{
		StoreBackend:          config.BackendMemory,
		StoreTimeout:          time.Second,
		FingerprintFetchLimit: 100,
		IncomeCategory:        "Inkomen",
		InvestmentCategory:    "Investeren",
		FallbackCategory:      "Overig",
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, testConfig())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
	require.NoError(t, s.Close())

	cfg := testConfig()
	cfg.StoreBackend = config.BackendSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "budget.db")
	s, err = OpenStore(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	_, ok := s.(Migrator)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	cfg.StoreBackend = "mongo"
	_, err = OpenStore(ctx, cfg)
	assert.Error(t, err)
}

func TestNew_WithoutExternalServices(t *testing.T) {
	a, err := New(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Storage)
	assert.False(t, oracle.IsEnabled(a.Oracle))
	assert.NotNil(t, a.Cache)
	assert.NotNil(t, a.Importer)
	_, ok := a.Migrator()
	assert.False(t, ok)
	assert.Len(t, a.AnalyticsOptions("u1"), 4)
}

func TestImportJobHandler(t *testing.T) {
	kbc := writeFile(t, "kbc.csv", "Datum;Bedrag;Naam tegenpartij;Omschrijving\n"+
		"01/03/2024;100,00;Salaris BV;Maandloon\n"+
		"02/03/2024;-45,50;Delhaize Gent;Aankoop boodschappen\n")
	unmappable := writeFile(t, "x.csv", "Foo;Bar\n1;2\n")

	tests := []struct {
		name      string
		source    string
		permanent bool
		inserted  int
	}{
		{"imports a local export", kbc, false, 2},
		{"unmappable columns are permanent", unmappable, true, 0},
		{"missing file is retried", filepath.Join(t.TempDir(), "gone.csv"), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(context.Background(), testConfig(), zerolog.Nop())
			require.NoError(t, err)
			defer a.Close()

			job := &jobs.ImportJob{JobID: "j1", UserID: "u1", GCSURI: tt.source}
			err = a.ImportJobHandler()(context.Background(), job)

			require.NotNil(t, job.Report)
			assert.Equal(t, tt.inserted, job.Report.Inserted)
			switch {
			case tt.permanent:
				assert.ErrorIs(t, err, jobs.ErrPermanent)
				assert.ErrorIs(t, err, domain.ErrColumnMappingFailed)
			case tt.inserted > 0:
				assert.NoError(t, err)
			default:
				assert.Error(t, err)
				assert.False(t, errors.Is(err, jobs.ErrPermanent))
			}
		})
	}
}

func TestClose_RunsClosersInReverse(t *testing.T) {
	var order []int
	a := &App{closers: []func() error{
		func() error { order = append(order, 1); return errors.New("first") },
		func() error { order = append(order, 2); return nil },
		func() error { order = append(order, 3); return errors.New("last") },
	}}

	err := a.Close()
	assert.EqualError(t, err, "last")
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, a.Close())
}
