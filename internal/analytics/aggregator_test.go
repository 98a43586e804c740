package analytics

import (
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

func tx(date, amount, category string) *domain.Transaction {
	return &domain.Transaction{
		Date:     day(date),
		Amount:   decimal.RequireFromString(amount),
		Category: category,
	}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func sample() []*domain.Transaction {
	return []*domain.Transaction{
		tx("2023-12-20", "2000.00", "Inkomen"),
		tx("2023-12-21", "-300.00", "Investeren"),
		tx("2024-01-25", "2500.00", "Inkomen"),
		tx("2024-01-26", "-120.40", "Eten & Drinken"),
		tx("2024-01-27", "20.40", "Eten & Drinken"), // refund
		tx("2024-02-02", "-500.00", "Investeren"),
		tx("2024-02-03", "50.00", "Kleding"), // refund without spending
		tx("2024-02-04", "-80.00", ""),
	}
}

func TestScenario_IncomeAndFood(t *testing.T) {
	a := New([]*domain.Transaction{
		tx("2024-03-01", "100.00", "Income"),
		tx("2024-03-02", "-45.50", "Food"),
	})

	assertDec(t, "100.00", a.TotalIncome())
	assertDec(t, "45.50", a.CategorySpending("Food"))
	assertDec(t, "0", a.CategorySpending("Income"))
}

func TestIdentities(t *testing.T) {
	sets := map[string][]*domain.Transaction{
		"empty":  nil,
		"sample": sample(),
		"refunds only": {
			tx("2024-01-01", "10", "Food"),
			tx("2024-01-02", "5", "Food"),
		},
	}

	for name, txs := range sets {
		t.Run(name, func(t *testing.T) {
			a := New(txs)
			assert.True(t, a.NetBalance().Equal(a.TotalIncome().Sub(a.TotalExpenses())))
			for cat, net := range a.CategoryBreakdown(true) {
				assert.True(t, net.IsNegative(), "category %s has net %s", cat, net)
			}
		})
	}
}

func TestTotals(t *testing.T) {
	a := New(sample())

	assertDec(t, "4500.00", a.TotalIncome(), "refunds in expense categories are not income")
	assertDec(t, "3570.00", a.NetBalance())
	assertDec(t, "930.00", a.TotalExpenses())

	totals := a.CategoryTotals()
	assertDec(t, "-100.00", totals["Eten & Drinken"])
	assertDec(t, "-80.00", totals["Overig"], "uncategorized lands in the fallback")

	assertDec(t, "0", a.CategorySpending("Kleding"))
	assertDec(t, "100.00", a.CategorySpending("Eten & Drinken"))

	breakdown := a.CategoryBreakdown(true)
	assert.NotContains(t, breakdown, "Kleding")
	assert.NotContains(t, breakdown, "Inkomen")
	assert.Contains(t, breakdown, "Investeren")
	assert.Len(t, a.CategoryBreakdown(false), 5)

	assertDec(t, "17.78", a.InvestmentPercentage().Round(2))
}

func TestMonthlyTotals(t *testing.T) {
	rows := New(sample()).MonthlyTotals()
	require.Len(t, rows, 3)

	assert.Equal(t, "2023-12", rows[0].Month)
	assertDec(t, "2000", rows[0].Income)
	assertDec(t, "300", rows[0].Expenses)
	assertDec(t, "1700", rows[0].Net)

	assert.Equal(t, "2024-02", rows[2].Month)
	assertDec(t, "50", rows[2].Income)
	assertDec(t, "580", rows[2].Expenses)
	assertDec(t, "-530", rows[2].Net)
}

func TestMonthlyByCategory(t *testing.T) {
	rows := New(sample()).MonthlyByCategory()
	require.NotEmpty(t, rows)
	assert.Equal(t, CategoryMonth{Month: "2023-12", Category: "Inkomen", Total: rows[0].Total}, rows[0])
	assertDec(t, "2000", rows[0].Total)
}

func TestYearOverYear(t *testing.T) {
	years := New(sample()).YearOverYear()
	require.Len(t, years, 2)

	assert.Equal(t, 2023, years[0].Year)
	assertDec(t, "2000", years[0].Income)
	assertDec(t, "300", years[0].Expenses)
	assertDec(t, "1700", years[0].Net)
	assertDec(t, "15", years[0].InvestmentPercentage)

	assert.Equal(t, 2024, years[1].Year)
	assertDec(t, "2500", years[1].Income)
	assertDec(t, "630", years[1].Expenses)
	assertDec(t, "20", years[1].InvestmentPercentage)
}

func TestInvestmentPercentage_NoIncome(t *testing.T) {
	a := New([]*domain.Transaction{tx("2024-01-01", "-10", "Investeren")})
	assert.True(t, a.InvestmentPercentage().IsZero())
}

func TestDateRangeAndTop(t *testing.T) {
	a := New(sample())
	from, to, ok := a.DateRange()
	require.True(t, ok)
	assert.Equal(t, day("2023-12-20"), from)
	assert.Equal(t, day("2024-02-04"), to)

	_, _, ok = New(nil).DateRange()
	assert.False(t, ok)

	top := a.TopTransactions(2)
	require.Len(t, top, 2)
	assertDec(t, "-500", top[0].Amount)
	assertDec(t, "-300", top[1].Amount)

	recent := a.RecentTransactions(1)
	require.Len(t, recent, 1)
	assert.Equal(t, day("2024-02-04"), recent[0].Date)
}

func TestFilter_ReturnsNewView(t *testing.T) {
	txs := sample()
	txs = append(txs, &domain.Transaction{
		Date:          day("2024-02-10"),
		Amount:        decimal.RequireFromString("-999"),
		Category:      "Wonen",
		RecurringHold: true,
	})
	a := New(txs)
	from := day("2024-01-01")

	filtered := a.Filter(Criteria{From: &from})
	assert.Equal(t, 6, filtered.Len(), "recurring holds are excluded by default")
	assert.Equal(t, 9, a.Len(), "the source view is unchanged")

	withHolds := a.Filter(Criteria{From: &from, IncludeRecurringHolds: true})
	assert.Equal(t, 7, withHolds.Len())

	food := a.Filter(Criteria{Categories: []string{"Eten & Drinken"}})
	assert.Equal(t, 2, food.Len())

	assert.Equal(t, 8, a.Dashboard().Len())
}

func TestBudgetComparison(t *testing.T) {
	a := New(sample())
	cats := []domain.Category{
		{Name: "Inkomen", BudgetPercentage: decimal.NewFromInt(100)},
		{Name: "Eten & Drinken", BudgetPercentage: decimal.NewFromInt(10)},
		{Name: "Investeren", BudgetPercentage: decimal.NewFromInt(20)},
		{Name: "Kleding"},
	}

	lines := a.BudgetComparison(cats)
	require.Len(t, lines, 2)

	food := lines[0]
	assert.Equal(t, "Eten & Drinken", food.Category)
	assertDec(t, "450", food.Budget)
	assertDec(t, "100", food.Spent)
	assertDec(t, "350", food.Surplus)
	assert.False(t, food.Inverted)
	assert.True(t, food.Favorable)

	inv := lines[1]
	assert.Equal(t, "Investeren", inv.Category)
	assertDec(t, "900", inv.Budget)
	assertDec(t, "800", inv.Spent)
	assertDec(t, "100", inv.Surplus)
	assert.True(t, inv.Inverted)
	assert.False(t, inv.Favorable, "a positive investment surplus means under-invested")
}

func TestGoalProgress(t *testing.T) {
	g := New(sample()).GoalProgress(decimal.NewFromInt(20))
	assertDec(t, "4500", g.Income)
	assertDec(t, "800", g.Invested)
	assertDec(t, "100", g.Remaining)
	assert.False(t, g.Reached)
}

func TestCache_InvalidateScope(t *testing.T) {
	c, err := NewCache(100)
	require.NoError(t, err)
	defer c.Close()

	first := New([]*domain.Transaction{tx("2024-01-01", "100", "Inkomen")}, WithCache(c, "u1"))
	assertDec(t, "100", first.TotalIncome())

	// same scope and view, new data: the memoized value is served until invalidated
	second := New([]*domain.Transaction{tx("2024-01-01", "250", "Inkomen")}, WithCache(c, "u1"))
	assertDec(t, "100", second.TotalIncome())

	c.Invalidate("u1")
	assertDec(t, "250", second.TotalIncome())

	other := New([]*domain.Transaction{tx("2024-01-01", "7", "Inkomen")}, WithCache(c, "u2"))
	assertDec(t, "7", other.TotalIncome())
}
