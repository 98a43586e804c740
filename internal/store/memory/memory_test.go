package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tx(date, amount, cp, hash string) *domain.Transaction {
	return &domain.Transaction{
		Date:         day(date),
		Amount:       decimal.RequireFromString(amount),
		Counterparty: cp,
		Fingerprint:  hash,
	}
}

func TestInsertTransactions_SkipsKnownHash(t *testing.T) {
	ctx := context.Background()
	s := New()

	batch := []*domain.Transaction{
		tx("2024-03-01", "100.00", "Salaris BV", "h1"),
		tx("2024-03-02", "-45.50", "Delhaize Gent", "h2"),
	}
	res, err := s.InsertTransactions(ctx, "u1", batch)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Skipped)
	assert.NotEmpty(t, batch[0].ID)

	res, err = s.InsertTransactions(ctx, "u1", []*domain.Transaction{
		tx("2024-03-01", "100.00", "Salaris BV", "h1"),
		tx("2024-03-02", "-45.50", "Delhaize Gent", "h2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 2, res.Skipped)

	// the same hash for another user is not a duplicate
	res, err = s.InsertTransactions(ctx, "u2", []*domain.Transaction{tx("2024-03-01", "100.00", "Salaris BV", "h1")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
}

func TestQueryTransactions(t *testing.T) {
	ctx := context.Background()
	s := New()

	catID, err := s.UpsertCategory(ctx, &domain.Category{UserID: "u1", Name: "Food"})
	require.NoError(t, err)

	batch := []*domain.Transaction{
		tx("2024-01-10", "-10", "A", "a"),
		tx("2024-03-05", "-20", "B", "b"),
		tx("2024-02-01", "-30", "C", "c"),
	}
	batch[1].CategoryID = catID
	_, err = s.InsertTransactions(ctx, "u1", batch)
	require.NoError(t, err)

	from, to := day("2024-02-01"), day("2024-03-31")
	yes := true

	tests := []struct {
		name   string
		filter domain.TransactionFilter
		want   []string
	}{
		{name: "all newest first", filter: domain.TransactionFilter{}, want: []string{"B", "C", "A"}},
		{name: "date range", filter: domain.TransactionFilter{From: &from, To: &to}, want: []string{"B", "C"}},
		{name: "category", filter: domain.TransactionFilter{CategoryID: catID}, want: []string{"B"}},
		{name: "confirmed", filter: domain.TransactionFilter{Confirmed: &yes}, want: nil},
		{name: "limit", filter: domain.TransactionFilter{Limit: 1}, want: []string{"B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryTransactions(ctx, "u1", tt.filter)
			require.NoError(t, err)
			var names []string
			for _, g := range got {
				names = append(names, g.Counterparty)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	got, err := s.QueryTransactions(ctx, "u1", domain.TransactionFilter{CategoryID: catID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Food", got[0].Category)
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()

	batch := []*domain.Transaction{tx("2024-01-10", "-10", "A", "a"), tx("2024-01-11", "-11", "B", "b")}
	_, err := s.InsertTransactions(ctx, "u1", batch)
	require.NoError(t, err)

	name := "Albert Heijn"
	newHash := "a2"
	require.NoError(t, s.UpdateTransaction(ctx, "u1", batch[0].ID, domain.TransactionUpdate{
		Counterparty: &name,
		Fingerprint:  &newHash,
	}))

	hashes, err := s.FetchFingerprints(ctx, "u1", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a2", "b"}, hashes)

	taken := "b"
	err = s.UpdateTransaction(ctx, "u1", batch[0].ID, domain.TransactionUpdate{Fingerprint: &taken})
	assert.Error(t, err)

	err = s.UpdateTransaction(ctx, "u2", batch[0].ID, domain.TransactionUpdate{Counterparty: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := s.ConfirmTransactions(ctx, "u1", []string{batch[0].ID, batch[1].ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeleteTransaction(ctx, "u1", batch[0].ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "u1", batch[0].ID), domain.ErrNotFound)

	n, err = s.DeleteAllTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hashes, err = s.FetchFingerprints(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestFetchFingerprints_Limit(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.InsertTransactions(ctx, "u1", []*domain.Transaction{
		tx("2024-01-01", "-1", "old", "old"),
		tx("2024-06-01", "-1", "new", "new"),
	})
	require.NoError(t, err)

	hashes, err := s.FetchFingerprints(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, hashes)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.UpsertCategory(ctx, &domain.Category{UserID: "u1", Name: "Food"})
	require.NoError(t, err)

	again, err := s.UpsertCategory(ctx, &domain.Category{UserID: "u1", Name: "Food", Color: "#fff"})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	rules := domain.Rules{domain.KeywordRule{Field: domain.FieldCounterparty, Keywords: []string{"Delhaize"}}}
	require.NoError(t, s.UpdateCategoryRules(ctx, "u1", id, rules))
	require.NoError(t, s.UpdateCategoryPercentage(ctx, "u1", id, decimal.NewFromInt(15)))

	cats, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, domain.DefaultColor, cats[0].Color)
	assert.True(t, cats[0].BudgetPercentage.Equal(decimal.NewFromInt(15)))
	assert.Len(t, cats[0].Rules, 1)

	assert.ErrorIs(t, s.UpdateCategoryRules(ctx, "u1", "missing", rules), domain.ErrNotFound)

	require.NoError(t, s.DeleteCategory(ctx, "u1", id))
	cats, err = s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := New()

	p, err := s.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.InvestmentGoalPercentage.Equal(decimal.NewFromInt(20)))

	require.NoError(t, s.UpsertPreferences(ctx, domain.Preferences{UserID: "u1", InvestmentGoalPercentage: decimal.NewFromInt(30)}))
	p, err = s.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.InvestmentGoalPercentage.Equal(decimal.NewFromInt(30)))
}
