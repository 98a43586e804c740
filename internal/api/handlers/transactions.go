package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/categorize"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	store   store.Store
	learner *categorize.Learner
	cache   *analytics.Cache
	log     zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. Category
// corrections are learned as rules on the built-in categories' user copies.
func NewTransactionsHandler(s store.Store, cache *analytics.Cache, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store:   s,
		learner: categorize.NewLearner(s, categorize.DefaultCategories()),
		cache:   cache,
		log:     log,
	}
}

// ListTransactions handles GET /api/transactions?from&to&category_id&confirmed&limit
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var filter domain.TransactionFilter
	var err error

	if filter.From, err = queryDate(r, "from"); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
		return
	}
	if filter.Confirmed, err = queryBool(r, "confirmed"); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid confirmed flag")
		return
	}
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil || filter.Limit < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	filter.CategoryID = r.URL.Query().Get("category_id")

	txs, err := h.store.QueryTransactions(r.Context(), userID(r), filter)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to query transactions")
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

// UpdateTransaction handles PATCH /api/transactions/{id}. A changed
// category_id is learned as a rule unless "learn" is false.
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(r)
	id := chi.URLParam(r, "id")

	var req struct {
		domain.TransactionUpdate
		Learn *bool `json:"learn,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	upd := req.TransactionUpdate
	if upd.IsEmpty() {
		middleware.WriteError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := h.store.UpdateTransaction(ctx, user, id, upd); err != nil {
		writeStoreError(w, h.log, err, "Failed to update transaction")
		return
	}
	invalidate(h.cache, user)

	resp := map[string]any{"id": id, "status": "updated"}
	if upd.CategoryID != nil && *upd.CategoryID != "" && (req.Learn == nil || *req.Learn) {
		rule, err := h.learn(ctx, user, id, *upd.CategoryID)
		if err != nil {
			// the update itself succeeded
			h.log.Warn().Err(err).Str("transaction_id", id).Msg("Failed to learn from correction")
		} else if rule != nil {
			resp["learned_rule"] = rule.Doc()
		}
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (h *TransactionsHandler) learn(ctx context.Context, user, txID, categoryID string) (domain.Rule, error) {
	cats, err := h.store.ListCategories(ctx, user)
	if err != nil {
		return nil, err
	}
	var name string
	for _, c := range cats {
		if c.ID == categoryID {
			name = c.Name
		}
	}
	if name == "" {
		return nil, nil
	}

	txs, err := h.store.QueryTransactions(ctx, user, domain.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if tx.ID == txID {
			rule, err := h.learner.LearnAndPersist(ctx, user, tx, name)
			if rule != nil {
				h.log.Info().Str("category", name).Interface("rule", rule.Doc()).Msg("Learned rule from correction")
			}
			return rule, err
		}
	}
	return nil, nil
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteTransaction(r.Context(), user, id); err != nil {
		writeStoreError(w, h.log, err, "Failed to delete transaction")
		return
	}
	invalidate(h.cache, user)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllTransactions handles DELETE /api/transactions?confirm=true
func (h *TransactionsHandler) DeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		middleware.WriteError(w, http.StatusBadRequest, "Deleting all transactions requires confirm=true")
		return
	}
	user := userID(r)

	n, err := h.store.DeleteAllTransactions(r.Context(), user)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to delete transactions")
		return
	}
	invalidate(h.cache, user)
	h.log.Info().Str("user_id", user).Int("deleted", n).Msg("All transactions deleted")
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// ConfirmTransactions handles POST /api/transactions/confirm
func (h *TransactionsHandler) ConfirmTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "ids are required")
		return
	}
	user := userID(r)

	n, err := h.store.ConfirmTransactions(r.Context(), user, req.IDs)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to confirm transactions")
		return
	}
	invalidate(h.cache, user)
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"confirmed": n})
}
