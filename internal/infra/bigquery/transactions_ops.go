package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// FetchFingerprintsWithClient returns the hashes of the user's newest transactions.
func FetchFingerprintsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = store.DefaultFingerprintLimit
	}
	q := client.Query(`
		SELECT hash
		FROM ` + ds.Table(transactionsTable) + `
		WHERE user_id = @user_id
		ORDER BY datum DESC, created_at DESC
		LIMIT @limit
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "limit", Value: limit},
	}

	hashes, err := readStrings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FetchFingerprints: %w", err)
	}
	return hashes, nil
}

// existingHashesWithClient returns which of hashes are already stored for the user.
func existingHashesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, hashes []string) (map[string]bool, error) {
	q := client.Query(`
		SELECT DISTINCT hash
		FROM ` + ds.Table(transactionsTable) + `
		WHERE user_id = @user_id AND hash IN UNNEST(@hashes)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "hashes", Value: hashes},
	}

	found, err := readStrings(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(found))
	for _, h := range found {
		out[h] = true
	}
	return out, nil
}

// InsertTransactionsWithClient streams the batch into the transactions table.
// BigQuery has no unique constraint, so hashes already stored for the user
// (and repeats inside the batch) are skipped up front.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, txs []*domain.Transaction) (domain.InsertResult, error) {
	res := domain.InsertResult{Errors: []string{}}
	if len(txs) == 0 {
		return res, nil
	}

	hashes := make([]string, 0, len(txs))
	for _, tx := range txs {
		hashes = append(hashes, tx.Fingerprint)
	}
	existing, err := existingHashesWithClient(ctx, client, ds, userID, hashes)
	if err != nil {
		return res, fmt.Errorf("InsertTransactions: checking existing hashes: %w", err)
	}

	now := time.Now().UTC()
	var (
		rows    []*TransactionRow
		pending []*domain.Transaction
	)
	for i, tx := range txs {
		if existing[tx.Fingerprint] {
			res.Skipped++
			continue
		}
		existing[tx.Fingerprint] = true

		row, err := NewTransactionRow(uuid.NewString(), userID, tx, now)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		rows = append(rows, row)
		pending = append(pending, tx)
	}
	if len(rows) == 0 {
		return res, nil
	}

	inserter := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(transactionsTable).Inserter()
	failed := map[int]bool{}
	if err := inserter.Put(ctx, rows); err != nil {
		var multi bigquery.PutMultiError
		if !errors.As(err, &multi) {
			return res, fmt.Errorf("InsertTransactions: inserting rows: %w", err)
		}
		for _, rowErr := range multi {
			failed[rowErr.RowIndex] = true
			res.Errors = append(res.Errors, fmt.Sprintf("hash %s: %v", rows[rowErr.RowIndex].Hash, rowErr.Errors))
		}
	}

	for i, tx := range pending {
		if failed[i] {
			continue
		}
		tx.ID = rows[i].ID
		tx.UserID = userID
		res.Success++
	}
	return res, nil
}

// QueryTransactionsWithClient returns the user's transactions, newest first,
// with the category name joined in.
func QueryTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	where, params := transactionFilter(userID, filter)
	sql := `
		SELECT t.*, c.name AS category_name
		FROM ` + ds.Table(transactionsTable) + ` t
		LEFT JOIN ` + ds.Table(categoriesTable) + ` c
		  ON c.id = t.categorie_id AND c.user_id = t.user_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.datum DESC, t.created_at DESC`
	if filter.Limit > 0 {
		sql += "\n\t\tLIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}

	q := client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactions: query read: %w", err)
	}

	var out []*domain.Transaction
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: iter next: %w", err)
		}
		tx, err := r.Transaction()
		if err != nil {
			return nil, fmt.Errorf("QueryTransactions: %w", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func transactionFilter(userID string, filter domain.TransactionFilter) ([]string, []bigquery.QueryParameter) {
	where := []string{"t.user_id = @user_id"}
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
	if filter.From != nil {
		where = append(where, "t.datum >= @from")
		params = append(params, bigquery.QueryParameter{Name: "from", Value: civil.DateOf(*filter.From)})
	}
	if filter.To != nil {
		where = append(where, "t.datum <= @to")
		params = append(params, bigquery.QueryParameter{Name: "to", Value: civil.DateOf(*filter.To)})
	}
	if filter.CategoryID != "" {
		where = append(where, "t.categorie_id = @category_id")
		params = append(params, bigquery.QueryParameter{Name: "category_id", Value: filter.CategoryID})
	}
	if filter.Confirmed != nil {
		where = append(where, "t.is_confirmed = @confirmed")
		params = append(params, bigquery.QueryParameter{Name: "confirmed", Value: *filter.Confirmed})
	}
	return where, params
}

// updateTransactionSQL builds the UPDATE for upd; ok is false when nothing changes.
func updateTransactionSQL(ds Dataset, userID, id string, upd domain.TransactionUpdate) (sql string, params []bigquery.QueryParameter, ok bool) {
	assignments := store.Assignments(upd)
	if len(assignments) == 0 {
		return "", nil, false
	}

	sets := make([]string, 0, len(assignments)+1)
	for _, a := range assignments {
		sets = append(sets, a.Column+" = @"+a.Column)
		params = append(params, bigquery.QueryParameter{Name: a.Column, Value: param(a.Value)})
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP()")
	params = append(params,
		bigquery.QueryParameter{Name: "id", Value: id},
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	)

	sql = `UPDATE ` + ds.Table(transactionsTable) + `
		SET ` + strings.Join(sets, ", ") + `
		WHERE id = @id AND user_id = @user_id`
	return sql, params, true
}

// UpdateTransactionWithClient applies the non-nil fields of upd.
// Rows still in the streaming buffer cannot be modified by DML; BigQuery
// reports that as a job error.
func UpdateTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string, upd domain.TransactionUpdate) error {
	sql, params, ok := updateTransactionSQL(ds, userID, id, upd)
	if !ok {
		return nil
	}
	q := client.Query(sql)
	q.Parameters = params

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateTransaction: transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteTransactionWithClient removes one transaction.
func DeleteTransactionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string) error {
	q := client.Query(`
		DELETE FROM ` + ds.Table(transactionsTable) + `
		WHERE id = @id AND user_id = @user_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: userID},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteTransaction: transaction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteAllTransactionsWithClient removes every transaction of the user.
func DeleteAllTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) (int, error) {
	q := client.Query(`
		DELETE FROM ` + ds.Table(transactionsTable) + `
		WHERE user_id = @user_id
	`)
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	n, err := runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("DeleteAllTransactions: %w", err)
	}
	return int(n), nil
}

// ConfirmTransactionsWithClient marks the given transactions confirmed.
func ConfirmTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := client.Query(`
		UPDATE ` + ds.Table(transactionsTable) + `
		SET is_confirmed = TRUE, updated_at = CURRENT_TIMESTAMP()
		WHERE user_id = @user_id AND id IN UNNEST(@ids) AND NOT is_confirmed
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "ids", Value: ids},
	}

	n, err := runDML(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("ConfirmTransactions: %w", err)
	}
	return int(n), nil
}
