package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/dvloznov/budget-tracker/internal/store/migrations"
)

// Repository is the BigQuery implementation of store.Store. It holds a
// shared client to avoid creating a new connection for each operation.
type Repository struct {
	client *bigquery.Client
	ds     Dataset
}

var _ store.Store = (*Repository)(nil)

// NewRepository creates a Repository with its own BigQuery client.
func NewRepository(ctx context.Context, ds Dataset) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, ds: ds}, nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, ds Dataset) *Repository {
	return &Repository{client: client, ds: ds}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Migrate applies pending embedded BigQuery migrations and returns them.
func (r *Repository) Migrate(ctx context.Context, appliedBy string) ([]migrations.Migration, error) {
	if err := EnsureSchemaMigrationsTableWithClient(ctx, r.client, r.ds); err != nil {
		return nil, err
	}
	all, err := migrations.Load(migrations.BigQuery, map[string]string{
		"PROJECT_ID": r.ds.ProjectID,
		"DATASET_ID": r.ds.DatasetID,
	})
	if err != nil {
		return nil, err
	}
	applied, err := AppliedMigrationsWithClient(ctx, r.client, r.ds)
	if err != nil {
		return nil, err
	}

	pending := migrations.Pending(all, applied)
	for _, m := range pending {
		if err := ApplyMigrationWithClient(ctx, r.client, r.ds, m, appliedBy); err != nil {
			return nil, err
		}
	}
	return pending, nil
}

// AppliedMigrations delegates to AppliedMigrationsWithClient.
func (r *Repository) AppliedMigrations(ctx context.Context) ([]migrations.AppliedMigration, error) {
	return AppliedMigrationsWithClient(ctx, r.client, r.ds)
}

// FetchFingerprints delegates to FetchFingerprintsWithClient.
func (r *Repository) FetchFingerprints(ctx context.Context, userID string, limit int) ([]string, error) {
	return FetchFingerprintsWithClient(ctx, r.client, r.ds, userID, limit)
}

// InsertTransactions delegates to InsertTransactionsWithClient.
func (r *Repository) InsertTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error) {
	return InsertTransactionsWithClient(ctx, r.client, r.ds, userID, txs)
}

// UpdateTransaction delegates to UpdateTransactionWithClient.
func (r *Repository) UpdateTransaction(ctx context.Context, userID, id string, upd domain.TransactionUpdate) error {
	return UpdateTransactionWithClient(ctx, r.client, r.ds, userID, id, upd)
}

// DeleteTransaction delegates to DeleteTransactionWithClient.
func (r *Repository) DeleteTransaction(ctx context.Context, userID, id string) error {
	return DeleteTransactionWithClient(ctx, r.client, r.ds, userID, id)
}

// DeleteAllTransactions delegates to DeleteAllTransactionsWithClient.
func (r *Repository) DeleteAllTransactions(ctx context.Context, userID string) (int, error) {
	return DeleteAllTransactionsWithClient(ctx, r.client, r.ds, userID)
}

// QueryTransactions delegates to QueryTransactionsWithClient.
func (r *Repository) QueryTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	return QueryTransactionsWithClient(ctx, r.client, r.ds, userID, filter)
}

// ConfirmTransactions delegates to ConfirmTransactionsWithClient.
func (r *Repository) ConfirmTransactions(ctx context.Context, userID string, ids []string) (int, error) {
	return ConfirmTransactionsWithClient(ctx, r.client, r.ds, userID, ids)
}

// ListCategories delegates to ListCategoriesWithClient.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	return ListCategoriesWithClient(ctx, r.client, r.ds, userID)
}

// UpsertCategory delegates to UpsertCategoryWithClient.
func (r *Repository) UpsertCategory(ctx context.Context, c *domain.Category) (string, error) {
	return UpsertCategoryWithClient(ctx, r.client, r.ds, c)
}

// UpdateCategory delegates to UpdateCategoryWithClient.
func (r *Repository) UpdateCategory(ctx context.Context, c *domain.Category) error {
	return UpdateCategoryWithClient(ctx, r.client, r.ds, c)
}

// UpdateCategoryRules delegates to UpdateCategoryRulesWithClient.
func (r *Repository) UpdateCategoryRules(ctx context.Context, userID, id string, rules domain.Rules) error {
	return UpdateCategoryRulesWithClient(ctx, r.client, r.ds, userID, id, rules)
}

// UpdateCategoryPercentage delegates to UpdateCategoryPercentageWithClient.
func (r *Repository) UpdateCategoryPercentage(ctx context.Context, userID, id string, pct decimal.Decimal) error {
	return UpdateCategoryPercentageWithClient(ctx, r.client, r.ds, userID, id, pct)
}

// DeleteCategory delegates to DeleteCategoryWithClient.
func (r *Repository) DeleteCategory(ctx context.Context, userID, id string) error {
	return DeleteCategoryWithClient(ctx, r.client, r.ds, userID, id)
}

// GetPreferences delegates to GetPreferencesWithClient.
func (r *Repository) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	return GetPreferencesWithClient(ctx, r.client, r.ds, userID)
}

// UpsertPreferences delegates to UpsertPreferencesWithClient.
func (r *Repository) UpsertPreferences(ctx context.Context, p domain.Preferences) error {
	return UpsertPreferencesWithClient(ctx, r.client, r.ds, p)
}
