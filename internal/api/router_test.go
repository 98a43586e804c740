package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/api/handlers"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/budget-tracker/internal/oracle"
	"github.com/dvloznov/budget-tracker/internal/pipeline"
	"github.com/dvloznov/budget-tracker/internal/store/memory"
)

const kbcExport = "Datum;Bedrag;Naam tegenpartij;Omschrijving\n" +
	"01/03/2024;100,00;Salaris BV;Maandloon\n" +
	"02/03/2024;-45,50;Delhaize Gent;Aankoop boodschappen\n"

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishImportFunc func(ctx context.Context, job *jobs.ImportJob) error
}

func (m *MockPublisher) PublishImport(ctx context.Context, job *jobs.ImportJob) error {
	if m.PublishImportFunc != nil {
		return m.PublishImportFunc(ctx, job)
	}
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	return nil
}

func (m *MockPublisher) Close() error { return nil }

type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()
	s := memory.New()
	cache, err := analytics.NewCache(100)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	d := Deps{
		Store:    s,
		Importer: pipeline.NewImporter(pipeline.Deps{Store: s, Oracle: oracle.Disabled{}, Log: zerolog.Nop()}),
		Cache:    cache,
		Names:    handlers.AnalyticsNames{Income: "Inkomen", Investment: "Investeren", Fallback: "Overig"},
		Log:      zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&d)
	}
	return &testServer{handler: NewRouter(d), store: s}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRouter_HealthAndUserHeader(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_UploadAndList(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "kbc.csv", kbcExport, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode(t, rec)
	assert.EqualValues(t, 2, report["inserted"])
	assert.Equal(t, "KBC", report["format"])

	rec = ts.do(t, http.MethodGet, "/api/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	rec = ts.do(t, http.MethodGet, "/api/transactions?from=2024-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = ts.do(t, http.MethodGet, "/api/transactions?from=03-2024", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the same file again inserts nothing
	rec = ts.upload(t, "kbc.csv", kbcExport, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["duplicates"])
}

func TestRouter_UnmappableUpload(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "x.csv", "Foo;Bar\n1;2\n", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "Foo")
}

func TestRouter_CorrectionIsLearned(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.upload(t, "kbc.csv", kbcExport, nil).Code)

	rec := ts.do(t, http.MethodPost, "/api/categories", map[string]string{"name": "Boodschappen"})
	require.Equal(t, http.StatusCreated, rec.Code)
	catID := decode(t, rec)["id"].(string)

	txs, err := ts.store.QueryTransactions(context.Background(), "u1", domain.TransactionFilter{})
	require.NoError(t, err)
	var delhaize string
	for _, tx := range txs {
		if tx.Counterparty == "Delhaize Gent" {
			delhaize = tx.ID
		}
	}
	require.NotEmpty(t, delhaize)

	rec = ts.do(t, http.MethodPatch, "/api/transactions/"+delhaize, map[string]any{"category_id": catID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	learned := decode(t, rec)["learned_rule"].(map[string]any)
	assert.Equal(t, "counterparty", learned["field"])
	assert.Equal(t, []any{"Delhaize Gent"}, learned["contains"])

	cats, err := ts.store.ListCategories(context.Background(), "u1")
	require.NoError(t, err)
	for _, c := range cats {
		if c.ID == catID {
			assert.Len(t, c.Rules, 1)
		}
	}

	rec = ts.do(t, http.MethodPatch, "/api/transactions/missing", map[string]any{"confirmed": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodPatch, "/api/transactions/"+delhaize, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AnalyticsFollowMutations(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.upload(t, "kbc.csv", kbcExport, nil).Code)

	rec := ts.do(t, http.MethodGet, "/api/analytics/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "100", summary["total_income"])
	assert.EqualValues(t, 2, summary["transactions"])
	assert.Equal(t, "2024-03-01", body["from"])

	rec = ts.do(t, http.MethodDelete, "/api/transactions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/transactions?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["deleted"])

	rec = ts.do(t, http.MethodGet, "/api/analytics/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary = decode(t, rec)["summary"].(map[string]any)
	assert.EqualValues(t, 0, summary["transactions"])
}

func TestRouter_GoalUsesPreferences(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.upload(t, "kbc.csv", kbcExport, nil).Code)

	rec := ts.do(t, http.MethodGet, "/api/analytics/goal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20", decode(t, rec)["goal_percentage"])

	rec = ts.do(t, http.MethodPut, "/api/preferences", map[string]string{"investment_goal_percentage": "150"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPut, "/api/preferences", map[string]string{"investment_goal_percentage": "30"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/analytics/goal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	goal := decode(t, rec)
	assert.Equal(t, "30", goal["goal_percentage"])
	assert.Equal(t, "30", goal["remaining"])
}

func TestRouter_QueuedImports(t *testing.T) {
	tests := []struct {
		name     string
		withJobs bool
		body     any
		want     int
	}{
		{"queue not configured", false, map[string]string{"gcs_uri": "gs://b/kbc.csv"}, http.StatusServiceUnavailable},
		{"invalid uri", true, map[string]string{"gcs_uri": "/tmp/kbc.csv"}, http.StatusBadRequest},
		{"queued", true, map[string]string{"gcs_uri": "gs://b/kbc.csv", "bank": "KBC"}, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var published *jobs.ImportJob
			ts := newTestServer(t, func(d *Deps) {
				if tt.withJobs {
					d.Publisher = &MockPublisher{PublishImportFunc: func(ctx context.Context, job *jobs.ImportJob) error {
						job.JobID = "job-1"
						published = job
						return nil
					}}
				}
			})
			rec := ts.do(t, http.MethodPost, "/api/imports", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusAccepted {
				require.NotNil(t, published)
				assert.Equal(t, "u1", published.UserID)
				assert.Equal(t, "KBC", published.Bank)
				assert.Equal(t, "job-1", decode(t, rec)["job_id"])
			}
		})
	}
}

func TestRouter_JobsAreScopedToUser(t *testing.T) {
	jobStore := inmemory.NewStore()
	ctx := context.Background()
	require.NoError(t, jobStore.SaveJob(ctx, &jobs.ImportJob{JobID: "mine", UserID: "u1", Status: jobs.JobStatusCompleted}))
	require.NoError(t, jobStore.SaveJob(ctx, &jobs.ImportJob{JobID: "theirs", UserID: "u2", Status: jobs.JobStatusCompleted}))

	ts := newTestServer(t, func(d *Deps) { d.Jobs = jobStore })

	rec := ts.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/jobs/mine", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/jobs/theirs", nil).Code)
}

func TestRouter_CategoriesAndSuggestions(t *testing.T) {
	ts := newTestServer(t, nil)
	export := "Datum;Bedrag;Naam tegenpartij;Omschrijving\n" +
		"01/03/2024;-9,99;Netflix International;Abonnement\n" +
		"01/04/2024;-9,99;Netflix International;Abonnement\n" +
		"05/03/2024;-20,00;Garage Peeters;Onderhoud\n"
	require.Equal(t, http.StatusOK, ts.upload(t, "kbc.csv", export, nil).Code)

	rec := ts.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Overig", body["fallback"])
	assert.Greater(t, body["count"], float64(5))

	rec = ts.do(t, http.MethodGet, "/api/categories/suggestions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	proposals := decode(t, rec)["proposals"].(map[string]any)
	assert.Contains(t, proposals, "Overig")

	rec = ts.do(t, http.MethodPut, "/api/categories/missing/percentage", map[string]string{"percentage": "10"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodPut, "/api/categories/missing/percentage", map[string]string{"percentage": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Rehash(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.upload(t, "kbc.csv", kbcExport, nil).Code)

	rec := ts.do(t, http.MethodPost, "/api/maintenance/rehash", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)
	assert.EqualValues(t, 0, res["updated"])
	assert.EqualValues(t, 0, res["duplicates_removed"])
}
