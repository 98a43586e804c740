package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/fingerprint"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTx(date, amount, cp, desc string) *domain.Transaction {
	d, _ := time.Parse(domain.DateLayout, date)
	tx := &domain.Transaction{
		Date:         d,
		Amount:       decimal.RequireFromString(amount),
		Counterparty: cp,
		Description:  desc,
	}
	tx.Fingerprint = fingerprint.Of(tx)
	return tx
}

func TestOpen_MigratesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "budget.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	applied, err := s.AppliedMigrations(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	again, err := s.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, again, len(applied))
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	catID, err := s.UpsertCategory(ctx, &domain.Category{UserID: "u1", Name: "Eten & Drinken", Color: "#f97316"})
	require.NoError(t, err)

	conf := 0.9
	salary := newTx("2024-03-01", "100.00", "Salaris BV", "Maandloon")
	food := newTx("2024-03-02", "-45.50", "Delhaize Gent", "")
	food.CategoryID = catID
	food.AIConfidence = &conf
	food.AISuggestedName = "Delhaize"

	res, err := s.InsertTransactions(ctx, "u1", []*domain.Transaction{salary, food})
	require.NoError(t, err)
	assert.Equal(t, domain.InsertResult{Success: 2, Errors: []string{}}, res)
	assert.NotEmpty(t, salary.ID)

	res, err = s.InsertTransactions(ctx, "u1", []*domain.Transaction{
		newTx("2024-03-01", "100.00", "Salaris BV", "Maandloon"),
		newTx("2024-03-02", "-45.50", "Delhaize Gent", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 2, res.Skipped)

	got, err := s.QueryTransactions(ctx, "u1", domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, food.ID, first.ID, "newest first")
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("-45.50")))
	assert.Equal(t, "Eten & Drinken", first.Category)
	assert.Equal(t, "", first.Description)
	require.NotNil(t, first.AIConfidence)
	assert.InDelta(t, 0.9, *first.AIConfidence, 1e-9)
	assert.Equal(t, food.Fingerprint, first.Fingerprint)

	hashes, err := s.FetchFingerprints(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{food.Fingerprint}, hashes)

	no := false
	unconfirmed, err := s.QueryTransactions(ctx, "u1", domain.TransactionFilter{Confirmed: &no, CategoryID: catID})
	require.NoError(t, err)
	assert.Len(t, unconfirmed, 1)

	n, err := s.ConfirmTransactions(ctx, "u1", []string{salary.ID, food.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hold := true
	name := "Salaris"
	require.NoError(t, s.UpdateTransaction(ctx, "u1", salary.ID, domain.TransactionUpdate{Counterparty: &name, RecurringHold: &hold}))
	assert.ErrorIs(t, s.UpdateTransaction(ctx, "u1", "missing", domain.TransactionUpdate{Counterparty: &name}), domain.ErrNotFound)

	from, _ := time.Parse(domain.DateLayout, "2024-03-01")
	to := from
	onFirst, err := s.QueryTransactions(ctx, "u1", domain.TransactionFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, onFirst, 1)
	assert.Equal(t, "Salaris", onFirst[0].Counterparty)
	assert.True(t, onFirst[0].RecurringHold)
	assert.True(t, onFirst[0].Confirmed)

	require.NoError(t, s.DeleteTransaction(ctx, "u1", salary.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "u1", salary.ID), domain.ErrNotFound)

	deleted, err := s.DeleteAllTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestCategoriesAndPreferences(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	id, err := s.UpsertCategory(ctx, &domain.Category{UserID: "u1", Name: "Transport"})
	require.NoError(t, err)
	same, err := s.UpsertCategory(ctx, &domain.Category{UserID: "u1", Name: "Transport"})
	require.NoError(t, err)
	assert.Equal(t, id, same)

	rules := domain.Rules{
		domain.KeywordRule{Field: domain.FieldCounterparty, Keywords: []string{"NMBS", "De Lijn"}},
		domain.SignRule{Condition: domain.SignNegative},
	}
	require.NoError(t, s.UpdateCategoryRules(ctx, "u1", id, rules))
	require.NoError(t, s.UpdateCategoryPercentage(ctx, "u1", id, decimal.RequireFromString("7.5")))

	cats, err := s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, domain.DefaultColor, cats[0].Color)
	assert.True(t, cats[0].BudgetPercentage.Equal(decimal.RequireFromString("7.5")))
	require.Len(t, cats[0].Rules, 2)
	assert.True(t, domain.RulesEqual(rules[0], cats[0].Rules[0]))

	cats[0].Name = "Vervoer"
	require.NoError(t, s.UpdateCategory(ctx, &cats[0]))
	cats, err = s.ListCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Vervoer", cats[0].Name)

	require.NoError(t, s.DeleteCategory(ctx, "u1", id))
	assert.ErrorIs(t, s.DeleteCategory(ctx, "u1", id), domain.ErrNotFound)

	p, err := s.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.InvestmentGoalPercentage.Equal(decimal.NewFromInt(20)))

	require.NoError(t, s.UpsertPreferences(ctx, domain.Preferences{UserID: "u1", InvestmentGoalPercentage: decimal.NewFromInt(25)}))
	require.NoError(t, s.UpsertPreferences(ctx, domain.Preferences{UserID: "u1", InvestmentGoalPercentage: decimal.NewFromInt(30)}))
	p, err = s.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.InvestmentGoalPercentage.Equal(decimal.NewFromInt(30)))
}
