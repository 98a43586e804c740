package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/categorize"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// AnalyticsNames are the category names with a special meaning in aggregates.
type AnalyticsNames struct {
	Income     string
	Investment string
	Fallback   string
}

// AnalyticsHandler serves aggregate views of a user's transactions.
type AnalyticsHandler struct {
	store store.Store
	cache *analytics.Cache
	names AnalyticsNames
	log   zerolog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(s store.Store, cache *analytics.Cache, names AnalyticsNames, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{store: s, cache: cache, names: names, log: log}
}

// view loads the user's transactions and narrows them by the query:
// from, to, category (repeatable), confirmed, include_holds.
func (h *AnalyticsHandler) view(w http.ResponseWriter, r *http.Request) (*analytics.Aggregator, bool) {
	var c analytics.Criteria
	var err error
	if c.From, err = queryDate(r, "from"); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
		return nil, false
	}
	if c.To, err = queryDate(r, "to"); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
		return nil, false
	}
	if c.Confirmed, err = queryBool(r, "confirmed"); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid confirmed flag")
		return nil, false
	}
	holds, err := queryBool(r, "include_holds")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid include_holds flag")
		return nil, false
	}
	c.IncludeRecurringHolds = holds != nil && *holds
	c.Categories = r.URL.Query()["category"]

	user := userID(r)
	txs, err := h.store.QueryTransactions(r.Context(), user, domain.TransactionFilter{})
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to query transactions")
		return nil, false
	}

	opts := []analytics.Option{
		analytics.WithFallback(h.names.Fallback),
		analytics.WithIncomeCategories(h.names.Income, "Income"),
		analytics.WithInvestmentCategories(h.names.Investment, "Investment"),
	}
	if h.cache != nil {
		opts = append(opts, analytics.WithCache(h.cache, user))
	}
	return analytics.New(txs, opts...).Filter(c), true
}

// Summary handles GET /api/analytics/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	agg, ok := h.view(w, r)
	if !ok {
		return
	}
	resp := map[string]any{"summary": agg.Summary()}
	if from, to, ok := agg.DateRange(); ok {
		resp["from"] = from.Format(domain.DateLayout)
		resp["to"] = to.Format(domain.DateLayout)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Monthly handles GET /api/analytics/monthly
func (h *AnalyticsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	agg, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"months":      agg.MonthlyTotals(),
		"by_category": agg.MonthlyByCategory(),
	})
}

// YearOverYear handles GET /api/analytics/yoy
func (h *AnalyticsHandler) YearOverYear(w http.ResponseWriter, r *http.Request) {
	agg, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"years": agg.YearOverYear()})
}

// Categories handles GET /api/analytics/categories?expense_only
func (h *AnalyticsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	expenseOnly, err := queryBool(r, "expense_only")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid expense_only flag")
		return
	}
	agg, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"categories": agg.CategoryBreakdown(expenseOnly != nil && *expenseOnly),
	})
}

// Top handles GET /api/analytics/top?n
func (h *AnalyticsHandler) Top(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", 10)
	if err != nil || n <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid n")
		return
	}
	agg, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"transactions": agg.TopTransactions(n)})
}

// Budget handles GET /api/analytics/budget
func (h *AnalyticsHandler) Budget(w http.ResponseWriter, r *http.Request) {
	stored, err := h.store.ListCategories(r.Context(), userID(r))
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list categories")
		return
	}
	agg, ok := h.view(w, r)
	if !ok {
		return
	}
	categories := categorize.NewDefaultEngine(stored, categorize.WithFallback(h.names.Fallback)).Categories()
	lines := agg.BudgetComparison(categories)
	if lines == nil {
		lines = []analytics.BudgetLine{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"income": agg.TotalIncome(),
		"lines":  lines,
	})
}

// Goal handles GET /api/analytics/goal
func (h *AnalyticsHandler) Goal(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.GetPreferences(r.Context(), userID(r))
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to load preferences")
		return
	}
	agg, ok := h.view(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, agg.GoalProgress(prefs.InvestmentGoalPercentage))
}
