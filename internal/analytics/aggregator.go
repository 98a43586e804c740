// Package analytics computes income, expense and budget views over a fixed
// set of transactions. An Aggregator never changes after construction;
// Filter returns a new one.
package analytics

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

const (
	// DefaultFallback is the name used for transactions without a category.
	DefaultFallback = "Overig"

	monthLayout = "2006-01"
)

var (
	// DefaultIncomeCategories are the names whose sums count as income.
	DefaultIncomeCategories = []string{"Inkomen", "Income"}
	// DefaultInvestmentCategories are the names whose outflows count as invested.
	DefaultInvestmentCategories = []string{"Investeren", "Investment"}

	hundred = decimal.NewFromInt(100)
)

// MonthTotal is one row of MonthlyTotals.
type MonthTotal struct {
	Month    string          `json:"month"` // YYYY-MM
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// CategoryMonth is one row of MonthlyByCategory.
type CategoryMonth struct {
	Month    string          `json:"month"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// YearTotal is one row of YearOverYear.
type YearTotal struct {
	Year                 int             `json:"year"`
	Income               decimal.Decimal `json:"income"`
	Expenses             decimal.Decimal `json:"expenses"`
	Net                  decimal.Decimal `json:"net"`
	InvestmentPercentage decimal.Decimal `json:"investment_percentage"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCache memoizes aggregates in c under scope (normally the user id).
func WithCache(c *Cache, scope string) Option {
	return func(a *Aggregator) {
		a.cache = c
		a.scope = scope
	}
}

// WithIncomeCategories overrides the income category names.
func WithIncomeCategories(names ...string) Option {
	return func(a *Aggregator) { a.income = nameSet(names) }
}

// WithInvestmentCategories overrides the investment category names.
func WithInvestmentCategories(names ...string) Option {
	return func(a *Aggregator) { a.investment = nameSet(names) }
}

// WithFallback sets the name reported for uncategorized transactions.
func WithFallback(name string) Option {
	return func(a *Aggregator) { a.fallback = name }
}

// Aggregator is a read-only view over a transaction collection.
type Aggregator struct {
	txs        []domain.Transaction
	income     map[string]struct{}
	investment map[string]struct{}
	fallback   string

	cache   *Cache
	scope   string
	viewKey string
}

// New copies txs into a new view.
func New(txs []*domain.Transaction, opts ...Option) *Aggregator {
	a := &Aggregator{
		txs:        make([]domain.Transaction, 0, len(txs)),
		income:     nameSet(DefaultIncomeCategories),
		investment: nameSet(DefaultInvestmentCategories),
		fallback:   DefaultFallback,
		viewKey:    "all",
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, tx := range txs {
		if tx != nil {
			a.txs = append(a.txs, *tx)
		}
	}
	return a
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Len returns the number of transactions in the view.
func (a *Aggregator) Len() int { return len(a.txs) }

// Transactions returns copies of the view's transactions.
func (a *Aggregator) Transactions() []*domain.Transaction {
	out := make([]*domain.Transaction, len(a.txs))
	for i := range a.txs {
		tx := a.txs[i]
		out[i] = &tx
	}
	return out
}

func (a *Aggregator) categoryOf(tx *domain.Transaction) string {
	if tx.Category == "" {
		return a.fallback
	}
	return tx.Category
}

// IsIncomeCategory reports whether name counts as income.
func (a *Aggregator) IsIncomeCategory(name string) bool {
	_, ok := a.income[name]
	return ok
}

// IsInvestmentCategory reports whether name counts as investment.
func (a *Aggregator) IsInvestmentCategory(name string) bool {
	_, ok := a.investment[name]
	return ok
}

// TotalIncome sums the amounts of income-category transactions. A positive
// refund inside an expense category is not income.
func (a *Aggregator) TotalIncome() decimal.Decimal {
	return memo(a, "total_income", func() decimal.Decimal {
		sum := decimal.Zero
		for i := range a.txs {
			if a.IsIncomeCategory(a.categoryOf(&a.txs[i])) {
				sum = sum.Add(a.txs[i].Amount)
			}
		}
		return sum
	})
}

// NetBalance sums every amount.
func (a *Aggregator) NetBalance() decimal.Decimal {
	return memo(a, "net_balance", func() decimal.Decimal {
		sum := decimal.Zero
		for i := range a.txs {
			sum = sum.Add(a.txs[i].Amount)
		}
		return sum
	})
}

// TotalExpenses is TotalIncome - NetBalance, so refunds reduce expenses.
func (a *Aggregator) TotalExpenses() decimal.Decimal {
	return a.TotalIncome().Sub(a.NetBalance())
}

// CategoryTotals is the net sum per category.
func (a *Aggregator) CategoryTotals() map[string]decimal.Decimal {
	totals := memo(a, "category_totals", func() map[string]decimal.Decimal {
		out := make(map[string]decimal.Decimal)
		for i := range a.txs {
			name := a.categoryOf(&a.txs[i])
			out[name] = out[name].Add(a.txs[i].Amount)
		}
		return out
	})
	return maps.Clone(totals)
}

// CategorySpending is the absolute net sum of the category when it is
// negative, zero otherwise.
func (a *Aggregator) CategorySpending(category string) decimal.Decimal {
	net := a.CategoryTotals()[category]
	if net.IsNegative() {
		return net.Abs()
	}
	return decimal.Zero
}

// CategoryBreakdown returns per-category net sums. With expenseOnly only
// categories with a negative net sum are included.
func (a *Aggregator) CategoryBreakdown(expenseOnly bool) map[string]decimal.Decimal {
	totals := a.CategoryTotals()
	if !expenseOnly {
		return totals
	}
	out := make(map[string]decimal.Decimal)
	for name, net := range totals {
		if net.IsNegative() {
			out[name] = net
		}
	}
	return out
}

// MonthlyTotals sums positive amounts as income and negative amounts as
// expenses per calendar month, oldest first.
func (a *Aggregator) MonthlyTotals() []MonthTotal {
	rows := memo(a, "monthly_totals", func() []MonthTotal {
		byMonth := make(map[string]*MonthTotal)
		for i := range a.txs {
			tx := &a.txs[i]
			key := tx.Date.Format(monthLayout)
			m, ok := byMonth[key]
			if !ok {
				m = &MonthTotal{Month: key}
				byMonth[key] = m
			}
			switch {
			case tx.Amount.IsPositive():
				m.Income = m.Income.Add(tx.Amount)
			case tx.Amount.IsNegative():
				m.Expenses = m.Expenses.Add(tx.Amount.Abs())
			}
		}
		out := make([]MonthTotal, 0, len(byMonth))
		for _, m := range byMonth {
			m.Net = m.Income.Sub(m.Expenses)
			out = append(out, *m)
		}
		slices.SortFunc(out, func(x, y MonthTotal) int { return strings.Compare(x.Month, y.Month) })
		return out
	})
	return slices.Clone(rows)
}

// MonthlyByCategory is the net sum per (month, category), ordered by month
// then category.
func (a *Aggregator) MonthlyByCategory() []CategoryMonth {
	type key struct{ month, category string }
	sums := make(map[key]decimal.Decimal)
	for i := range a.txs {
		k := key{a.txs[i].Date.Format(monthLayout), a.categoryOf(&a.txs[i])}
		sums[k] = sums[k].Add(a.txs[i].Amount)
	}
	out := make([]CategoryMonth, 0, len(sums))
	for k, v := range sums {
		out = append(out, CategoryMonth{Month: k.month, Category: k.category, Total: v})
	}
	slices.SortFunc(out, func(x, y CategoryMonth) int {
		if c := strings.Compare(x.Month, y.Month); c != 0 {
			return c
		}
		return strings.Compare(x.Category, y.Category)
	})
	return out
}

// Invested is the absolute net sum of the investment categories.
func (a *Aggregator) Invested() decimal.Decimal {
	totals := a.CategoryTotals()
	sum := decimal.Zero
	for name := range a.investment {
		sum = sum.Add(totals[name])
	}
	return sum.Abs()
}

// InvestmentPercentage is Invested / TotalIncome * 100, or zero without income.
func (a *Aggregator) InvestmentPercentage() decimal.Decimal {
	income := a.TotalIncome()
	if !income.IsPositive() {
		return decimal.Zero
	}
	return a.Invested().Div(income).Mul(hundred)
}

// YearOverYear applies the income, expense, net and investment definitions to
// each calendar year's rows, oldest year first.
func (a *Aggregator) YearOverYear() []YearTotal {
	byYear := make(map[int][]*domain.Transaction)
	for i := range a.txs {
		y := a.txs[i].Date.Year()
		byYear[y] = append(byYear[y], &a.txs[i])
	}

	years := slices.Sorted(maps.Keys(byYear))
	out := make([]YearTotal, 0, len(years))
	for _, y := range years {
		sub := a.derive(byYear[y], "year="+strconv.Itoa(y))
		out = append(out, YearTotal{
			Year:                 y,
			Income:               sub.TotalIncome(),
			Expenses:             sub.TotalExpenses(),
			Net:                  sub.NetBalance(),
			InvestmentPercentage: sub.InvestmentPercentage(),
		})
	}
	return out
}

// DateRange returns the earliest and latest transaction dates.
func (a *Aggregator) DateRange() (from, to time.Time, ok bool) {
	if len(a.txs) == 0 {
		return time.Time{}, time.Time{}, false
	}
	from, to = a.txs[0].Date, a.txs[0].Date
	for i := range a.txs[1:] {
		d := a.txs[i+1].Date
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}
	return from, to, true
}

// TopTransactions returns the n largest outflows, most negative first.
func (a *Aggregator) TopTransactions(n int) []*domain.Transaction {
	all := a.Transactions()
	slices.SortStableFunc(all, func(x, y *domain.Transaction) int {
		return x.Amount.Cmp(y.Amount)
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// RecentTransactions returns the n newest transactions.
func (a *Aggregator) RecentTransactions(n int) []*domain.Transaction {
	all := a.Transactions()
	slices.SortStableFunc(all, func(x, y *domain.Transaction) int {
		return cmp.Compare(y.Date.Unix(), x.Date.Unix())
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// derive builds a child view sharing configuration and cache scope.
func (a *Aggregator) derive(txs []*domain.Transaction, viewKey string) *Aggregator {
	child := &Aggregator{
		txs:        make([]domain.Transaction, 0, len(txs)),
		income:     a.income,
		investment: a.investment,
		fallback:   a.fallback,
		cache:      a.cache,
		scope:      a.scope,
		viewKey:    a.viewKey + "/" + viewKey,
	}
	for _, tx := range txs {
		child.txs = append(child.txs, *tx)
	}
	return child
}
