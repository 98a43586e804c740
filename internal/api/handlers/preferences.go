package handlers

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// PreferencesHandler handles per-user settings.
type PreferencesHandler struct {
	store store.PreferenceStore
	log   zerolog.Logger
}

// NewPreferencesHandler creates a new preferences handler.
func NewPreferencesHandler(s store.PreferenceStore, log zerolog.Logger) *PreferencesHandler {
	return &PreferencesHandler{store: s, log: log}
}

// GetPreferences handles GET /api/preferences
func (h *PreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.GetPreferences(r.Context(), userID(r))
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to load preferences")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /api/preferences
func (h *PreferencesHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvestmentGoalPercentage *decimal.Decimal `json:"investment_goal_percentage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.InvestmentGoalPercentage == nil || !validPercentage(*req.InvestmentGoalPercentage) {
		middleware.WriteError(w, http.StatusBadRequest, "investment_goal_percentage must be between 0 and 100")
		return
	}

	prefs := domain.Preferences{UserID: userID(r), InvestmentGoalPercentage: *req.InvestmentGoalPercentage}
	if err := h.store.UpsertPreferences(r.Context(), prefs); err != nil {
		writeStoreError(w, h.log, err, "Failed to save preferences")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, prefs)
}
