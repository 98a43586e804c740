// Package api assembles the HTTP surface of the budget tracker.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/api/handlers"
	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/gcs"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/pipeline"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Deps are the collaborators the router hands to its handlers.
type Deps struct {
	Store     store.Store
	Importer  *pipeline.Importer
	Publisher jobs.Publisher     // optional
	Jobs      jobs.JobStore      // optional
	Storage   gcs.StorageService // optional
	Bucket    string
	Cache     *analytics.Cache // optional
	Names     handlers.AnalyticsNames
	Log       zerolog.Logger
}

// NewRouter builds the chi router with every endpoint under /api.
func NewRouter(d Deps) *chi.Mux {
	imports := handlers.NewImportsHandler(d.Importer, d.Publisher, d.Storage, d.Bucket, d.Cache, d.Log)
	transactions := handlers.NewTransactionsHandler(d.Store, d.Cache, d.Log)
	categories := handlers.NewCategoriesHandler(d.Store, d.Cache, d.Names.Income, d.Names.Fallback, d.Log)
	aggregates := handlers.NewAnalyticsHandler(d.Store, d.Cache, d.Names, d.Log)
	preferences := handlers.NewPreferencesHandler(d.Store, d.Log)
	maintenance := handlers.NewMaintenanceHandler(d.Store, d.Cache, d.Log)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.UserID)

		r.Post("/imports", imports.Import)

		if d.Jobs != nil {
			jobsHandler := handlers.NewJobsHandler(d.Jobs, d.Log)
			r.Get("/jobs", jobsHandler.ListJobs)
			r.Get("/jobs/{id}", jobsHandler.GetJob)
		}

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactions.ListTransactions)
			r.Delete("/", transactions.DeleteAllTransactions)
			r.Post("/confirm", transactions.ConfirmTransactions)
			r.Patch("/{id}", transactions.UpdateTransaction)
			r.Delete("/{id}", transactions.DeleteTransaction)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categories.ListCategories)
			r.Post("/", categories.CreateCategory)
			r.Get("/suggestions", categories.SuggestCategories)
			r.Put("/{id}", categories.UpdateCategory)
			r.Put("/{id}/rules", categories.UpdateRules)
			r.Put("/{id}/percentage", categories.UpdatePercentage)
			r.Delete("/{id}", categories.DeleteCategory)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", aggregates.Summary)
			r.Get("/monthly", aggregates.Monthly)
			r.Get("/yoy", aggregates.YearOverYear)
			r.Get("/categories", aggregates.Categories)
			r.Get("/top", aggregates.Top)
			r.Get("/budget", aggregates.Budget)
			r.Get("/goal", aggregates.Goal)
		})

		r.Get("/preferences", preferences.GetPreferences)
		r.Put("/preferences", preferences.UpdatePreferences)

		r.Post("/maintenance/rehash", maintenance.Rehash)
	})

	return r
}
