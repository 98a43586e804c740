package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/gcs"
	"github.com/dvloznov/budget-tracker/internal/oracle"
	"github.com/dvloznov/budget-tracker/internal/pipeline"
	"github.com/dvloznov/budget-tracker/internal/store/memory"
)

const kbcExport = "Datum;Bedrag;Naam tegenpartij;Omschrijving\n" +
	"01/03/2024;100,00;Salaris BV;Maandloon\n" +
	"02/03/2024;-45,50;Delhaize Gent;Aankoop boodschappen\n"

// MockStorageService is a mock implementation of gcs.StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

var _ gcs.StorageService = (*MockStorageService)(nil)

func (m *MockStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return nil
}

func (m *MockStorageService) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte) error {
	return nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, errors.New("not found")
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return "export.csv"
}

func newImporter(s *memory.Store, storage gcs.StorageService) *pipeline.Importer {
	return pipeline.NewImporter(pipeline.Deps{
		Store:   s,
		Storage: storage,
		Oracle:  oracle.Disabled{},
		Log:     zerolog.Nop(),
	})
}

func TestImport_KBCEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	im := newImporter(s, nil)

	report, err := im.Import(ctx, pipeline.Request{UserID: "u1", Filename: "kbc.csv", Data: []byte(kbcExport)})
	require.NoError(t, err)
	assert.Equal(t, "KBC", report.Format)
	assert.Equal(t, 2, report.Parsed)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 2, report.Classified)
	assert.Zero(t, report.Duplicates)

	stored, err := s.QueryTransactions(ctx, "u1", domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	byCounterparty := map[string]*domain.Transaction{}
	for _, tx := range stored {
		byCounterparty[tx.Counterparty] = tx
		assert.NotEmpty(t, tx.CategoryID, "category id resolved for %s", tx.Counterparty)
	}
	assert.Equal(t, "Inkomen", byCounterparty["Salaris BV"].Category)
	assert.Equal(t, "Eten & Drinken", byCounterparty["Delhaize Gent"].Category)

	cats, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cats, 2)

	// the same file again is fully deduplicated
	again, err := im.Import(ctx, pipeline.Request{UserID: "u1", Filename: "kbc.csv", Data: []byte(kbcExport)})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Duplicates)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, 2, again.Skipped)
	assert.Zero(t, again.Conflicts)

	// another user is independent
	other, err := im.Import(ctx, pipeline.Request{UserID: "u2", Filename: "kbc.csv", Data: []byte(kbcExport)})
	require.NoError(t, err)
	assert.Equal(t, 2, other.Inserted)
}

func TestImport_FromGCS(t *testing.T) {
	var fetched string
	storage := &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			fetched = gcsURI
			return []byte(kbcExport), nil
		},
	}

	report, err := newImporter(memory.New(), storage).Import(context.Background(),
		pipeline.Request{UserID: "u1", Source: "gs://exports/u1/export.csv"})
	require.NoError(t, err)
	assert.Equal(t, "gs://exports/u1/export.csv", fetched)
	assert.Equal(t, "export.csv", report.Filename)
	assert.Equal(t, 2, report.Inserted)
}

func TestImport_Failures(t *testing.T) {
	tests := []struct {
		name    string
		req     pipeline.Request
		storage gcs.StorageService
		wantIs  error
	}{
		{
			name:   "unmappable columns",
			req:    pipeline.Request{UserID: "u1", Filename: "x.csv", Data: []byte("Foo;Bar\n1;2\n")},
			wantIs: domain.ErrColumnMappingFailed,
		},
		{
			name:    "fetch error",
			req:     pipeline.Request{UserID: "u1", Source: "gs://exports/missing.csv"},
			storage: &MockStorageService{},
		},
		{
			name: "gcs source without storage",
			req:  pipeline.Request{UserID: "u1", Source: "gs://exports/x.csv"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			_, err := newImporter(s, tt.storage).Import(context.Background(), tt.req)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			stored, qerr := s.QueryTransactions(context.Background(), "u1", domain.TransactionFilter{})
			require.NoError(t, qerr)
			assert.Empty(t, stored)
		})
	}
}

func TestImport_EnrichesFallbackTransactions(t *testing.T) {
	export := "Datum;Bedrag;Naam tegenpartij;Omschrijving\n" +
		"03/03/2024;-12,00;---;Kaartbetaling 1234\n"
	o := oracle.Func(func(ctx context.Context, prompt string) (string, error) {
		return `[{"index":0,"name":"Bakkerij Jan","category":"Eten & Drinken","reasoning":"bakery","confidence":0.9}]`, nil
	})

	s := memory.New()
	im := pipeline.NewImporter(pipeline.Deps{Store: s, Oracle: o, Log: zerolog.Nop()})
	report, err := im.Import(context.Background(), pipeline.Request{UserID: "u1", Filename: "kbc.csv", Data: []byte(export)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Enriched)

	stored, err := s.QueryTransactions(context.Background(), "u1", domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Eten & Drinken", stored[0].Category)
	assert.Equal(t, "Bakkerij Jan", stored[0].Counterparty)
	assert.Equal(t, "Bakkerij Jan", stored[0].AISuggestedName)
}

func TestPipelineState_ReportSkipped(t *testing.T) {
	tests := []struct {
		name       string
		duplicates int
		conflicts  int
		skipped    int
	}{
		{"nothing skipped", 0, 0, 0},
		{"fingerprint duplicates", 2, 0, 2},
		{"store conflicts", 0, 1, 1},
		{"both", 2, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &pipeline.PipelineState{
				Filename:   "kbc.csv",
				Duplicates: tt.duplicates,
				Insert:     domain.InsertResult{Success: 4, Skipped: tt.conflicts},
			}

			r := state.Report()
			assert.Equal(t, 4, r.Inserted)
			assert.Equal(t, tt.skipped, r.Skipped)
			assert.Equal(t, tt.duplicates, r.Duplicates)
			assert.Equal(t, tt.conflicts, r.Conflicts)
		})
	}
}

func TestPipeline_StepNames(t *testing.T) {
	p := pipeline.NewImportPipeline(pipeline.Deps{Store: memory.New(), Log: zerolog.Nop()})
	assert.Equal(t, []string{"fetch", "ingest", "dedup", "classify", "enrich", "resolve-categories", "insert"}, p.Steps())
}
