// Package store defines the persistence collaborator of the budget tracker.
// Backends live in subpackages (memory, sqlite, postgres) and in
// internal/infra/bigquery.
package store

import (
	"context"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultFingerprintLimit caps FetchFingerprints. Stores holding more
// transactions than this for one user are deduplicated against the most
// recent window only.
const DefaultFingerprintLimit = 10000

// DefaultInvestmentGoal is returned by GetPreferences for users without stored preferences.
const DefaultInvestmentGoal = 20

// TransactionStore provides transaction-related persistence operations.
type TransactionStore interface {
	// FetchFingerprints returns the stored hashes of the user's most recent
	// transactions, at most limit of them (limit <= 0 means DefaultFingerprintLimit).
	FetchFingerprints(ctx context.Context, userID string, limit int) ([]string, error)

	// InsertTransactions stores a batch. A row whose (user_id, hash) already
	// exists is counted as skipped, other per-row failures are reported in Errors.
	// Inserted transactions get their ID assigned.
	InsertTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error)

	// UpdateTransaction applies the non-nil fields of upd. Returns domain.ErrNotFound
	// when the transaction does not exist for the user.
	UpdateTransaction(ctx context.Context, userID, id string, upd domain.TransactionUpdate) error

	// DeleteTransaction removes a single transaction.
	DeleteTransaction(ctx context.Context, userID, id string) error

	// DeleteAllTransactions removes every transaction of the user and returns the count.
	DeleteAllTransactions(ctx context.Context, userID string) (int, error)

	// QueryTransactions returns the user's transactions matching filter, newest first,
	// with the category name resolved from the category id.
	QueryTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]*domain.Transaction, error)

	// ConfirmTransactions marks the given transactions as confirmed and returns how many changed.
	ConfirmTransactions(ctx context.Context, userID string, ids []string) (int, error)
}

// CategoryStore provides category-related persistence operations.
type CategoryStore interface {
	// ListCategories returns the user's stored categories in creation order.
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)

	// UpsertCategory creates the category or, when one with the same name exists
	// for the user, returns the existing id unchanged.
	UpsertCategory(ctx context.Context, c *domain.Category) (string, error)

	// UpdateCategory replaces name, color, budget percentage and rules.
	UpdateCategory(ctx context.Context, c *domain.Category) error

	// UpdateCategoryRules replaces the rule list of a category.
	UpdateCategoryRules(ctx context.Context, userID, id string, rules domain.Rules) error

	// UpdateCategoryPercentage sets the budget percentage of a category.
	UpdateCategoryPercentage(ctx context.Context, userID, id string, pct decimal.Decimal) error

	// DeleteCategory removes a category. Transactions pointing at it keep the
	// dangling id and read back as uncategorized.
	DeleteCategory(ctx context.Context, userID, id string) error
}

// PreferenceStore persists per-user settings.
type PreferenceStore interface {
	// GetPreferences returns the stored preferences or the defaults.
	GetPreferences(ctx context.Context, userID string) (domain.Preferences, error)

	// UpsertPreferences stores the preferences of p.UserID.
	UpsertPreferences(ctx context.Context, p domain.Preferences) error
}

// Store is the full persistence collaborator.
type Store interface {
	TransactionStore
	CategoryStore
	PreferenceStore
	Close() error
}
