package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// BudgetLine compares a category's budget share of income with its spending.
//
// Surplus is Budget - Spent for every category. For ordinary categories a
// positive surplus is favorable; for investment categories it means
// under-investment and is unfavorable, which Inverted and Favorable report.
type BudgetLine struct {
	Category   string          `json:"category"`
	Color      string          `json:"color"`
	Percentage decimal.Decimal `json:"percentage"`
	Budget     decimal.Decimal `json:"budget"`
	Spent      decimal.Decimal `json:"spent"`
	Surplus    decimal.Decimal `json:"surplus"`
	Inverted   bool            `json:"inverted"`
	Favorable  bool            `json:"favorable"`
}

// BudgetComparison returns one line per category with a nonzero budget
// percentage, skipping income categories, in the given order.
func (a *Aggregator) BudgetComparison(categories []domain.Category) []BudgetLine {
	income := a.TotalIncome()

	var out []BudgetLine
	for _, c := range categories {
		if c.BudgetPercentage.IsZero() || a.IsIncomeCategory(c.Name) {
			continue
		}
		budget := income.Mul(c.BudgetPercentage).Div(hundred)
		spent := a.CategorySpending(c.Name)
		surplus := budget.Sub(spent)

		line := BudgetLine{
			Category:   c.Name,
			Color:      c.Color,
			Percentage: c.BudgetPercentage,
			Budget:     budget,
			Spent:      spent,
			Surplus:    surplus,
			Inverted:   a.IsInvestmentCategory(c.Name),
		}
		if line.Inverted {
			line.Favorable = !surplus.IsPositive()
		} else {
			line.Favorable = !surplus.IsNegative()
		}
		out = append(out, line)
	}
	return out
}

// GoalProgress tracks the investment goal of a user.
type GoalProgress struct {
	Goal      decimal.Decimal `json:"goal_percentage"`
	Current   decimal.Decimal `json:"current_percentage"`
	Income    decimal.Decimal `json:"income"`
	Invested  decimal.Decimal `json:"invested"`
	Remaining decimal.Decimal `json:"remaining"` // goal/100 * income - invested, may be negative
	Reached   bool            `json:"reached"`
}

// GoalProgress measures the view against an investment goal percentage.
func (a *Aggregator) GoalProgress(goal decimal.Decimal) GoalProgress {
	income := a.TotalIncome()
	invested := a.Invested()
	remaining := goal.Div(hundred).Mul(income).Sub(invested)
	return GoalProgress{
		Goal:      goal,
		Current:   a.InvestmentPercentage(),
		Income:    income,
		Invested:  invested,
		Remaining: remaining,
		Reached:   !remaining.IsPositive(),
	}
}

// Summary bundles the headline figures of a view.
type Summary struct {
	Transactions         int             `json:"transactions"`
	TotalIncome          decimal.Decimal `json:"total_income"`
	TotalExpenses        decimal.Decimal `json:"total_expenses"`
	NetBalance           decimal.Decimal `json:"net_balance"`
	InvestmentPercentage decimal.Decimal `json:"investment_percentage"`
}

// Summary returns the headline figures.
func (a *Aggregator) Summary() Summary {
	return Summary{
		Transactions:         a.Len(),
		TotalIncome:          a.TotalIncome(),
		TotalExpenses:        a.TotalExpenses(),
		NetBalance:           a.NetBalance(),
		InvestmentPercentage: a.InvestmentPercentage(),
	}
}
