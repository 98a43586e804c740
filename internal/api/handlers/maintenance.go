package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/dedup"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// MaintenanceHandler runs repair operations on a user's data.
type MaintenanceHandler struct {
	store store.Store
	cache *analytics.Cache
	log   zerolog.Logger
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(s store.Store, cache *analytics.Cache, log zerolog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{store: s, cache: cache, log: log}
}

// Rehash handles POST /api/maintenance/rehash
func (h *MaintenanceHandler) Rehash(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	res, err := dedup.Rehash(r.Context(), h.store, user, h.log)
	if res.Updated > 0 || res.DuplicatesRemoved > 0 {
		invalidate(h.cache, user)
	}
	if err != nil {
		writeStoreError(w, h.log, err, "Rehash failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}
