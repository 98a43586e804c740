package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/categorize"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

var hundred = decimal.NewFromInt(100)

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	store    store.Store
	cache    *analytics.Cache
	income   string
	fallback string
	log      zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(s store.Store, cache *analytics.Cache, income, fallback string, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{
		store:    s,
		cache:    cache,
		income:   income,
		fallback: fallback,
		log:      log,
	}
}

func (h *CategoriesHandler) engine(r *http.Request) (*categorize.Engine, []domain.Category, error) {
	stored, err := h.store.ListCategories(r.Context(), userID(r))
	if err != nil {
		return nil, nil, err
	}
	return categorize.NewDefaultEngine(stored, categorize.WithFallback(h.fallback)), stored, nil
}

// ListCategories handles GET /api/categories: the built-in categories
// overlaid with the user's own, in evaluation order.
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	engine, _, err := h.engine(r)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list categories")
		return
	}

	categories := engine.Categories()
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"count":      len(categories),
		"fallback":   engine.Fallback(),
	})
}

// CreateCategory handles POST /api/categories. An existing name returns its id.
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	user := userID(r)

	id, err := categorize.QuickAdd(r.Context(), h.store, user, req.Name, req.Color)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to create category")
		return
	}
	invalidate(h.cache, user)
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateCategory handles PUT /api/categories/{id}
func (h *CategoriesHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	if !decodeJSON(w, r, &c) {
		return
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !validPercentage(c.BudgetPercentage) {
		middleware.WriteError(w, http.StatusBadRequest, "budget_percentage must be between 0 and 100")
		return
	}
	if c.Color == "" {
		c.Color = domain.DefaultColor
	}
	c.ID = chi.URLParam(r, "id")
	c.UserID = userID(r)

	if err := h.store.UpdateCategory(r.Context(), &c); err != nil {
		writeStoreError(w, h.log, err, "Failed to update category")
		return
	}
	invalidate(h.cache, c.UserID)
	middleware.WriteJSON(w, http.StatusOK, c)
}

// UpdateRules handles PUT /api/categories/{id}/rules
func (h *CategoriesHandler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rules domain.Rules `json:"rules"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user := userID(r)

	if err := h.store.UpdateCategoryRules(r.Context(), user, chi.URLParam(r, "id"), req.Rules); err != nil {
		writeStoreError(w, h.log, err, "Failed to update rules")
		return
	}
	invalidate(h.cache, user)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"rules": req.Rules})
}

// UpdatePercentage handles PUT /api/categories/{id}/percentage
func (h *CategoriesHandler) UpdatePercentage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percentage decimal.Decimal `json:"percentage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validPercentage(req.Percentage) {
		middleware.WriteError(w, http.StatusBadRequest, "percentage must be between 0 and 100")
		return
	}
	user := userID(r)

	if err := h.store.UpdateCategoryPercentage(r.Context(), user, chi.URLParam(r, "id"), req.Percentage); err != nil {
		writeStoreError(w, h.log, err, "Failed to update percentage")
		return
	}
	invalidate(h.cache, user)
	middleware.WriteJSON(w, http.StatusOK, map[string]decimal.Decimal{"percentage": req.Percentage})
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if err := h.store.DeleteCategory(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, h.log, err, "Failed to delete category")
		return
	}
	invalidate(h.cache, user)
	w.WriteHeader(http.StatusNoContent)
}

// SuggestCategories handles GET /api/categories/suggestions: proposals for
// the transactions that still sit in the fallback category.
func (h *CategoriesHandler) SuggestCategories(w http.ResponseWriter, r *http.Request) {
	engine, stored, err := h.engine(r)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list categories")
		return
	}
	txs, err := h.store.QueryTransactions(r.Context(), userID(r), domain.TransactionFilter{})
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to query transactions")
		return
	}

	pending := engine.Uncategorized(txs)
	clusterer := categorize.NewClusterer(stored, categorize.WithCategoryNames(h.income, h.fallback))
	proposals, labeled := clusterer.Suggest(pending)
	if labeled == nil {
		labeled = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"proposals":    proposals,
		"transactions": labeled,
		"count":        len(pending),
	})
}

func validPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
