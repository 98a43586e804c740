package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budget-tracker/internal/analytics"
	"github.com/dvloznov/budget-tracker/internal/categorize"
	"github.com/dvloznov/budget-tracker/internal/domain"
)

var (
	reportFrom       string
	reportTo         string
	reportCategories []string
	reportTop        int
	listLimit        int
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show totals, monthly figures, budget and investment goal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		criteria, err := reportCriteria()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s := application.Store
		txs, err := s.QueryTransactions(ctx, userID, domain.TransactionFilter{})
		if err != nil {
			return err
		}
		stored, err := s.ListCategories(ctx, userID)
		if err != nil {
			return err
		}
		prefs, err := s.GetPreferences(ctx, userID)
		if err != nil {
			return err
		}

		agg := analytics.New(txs, application.AnalyticsOptions(userID)...).Filter(criteria)
		if agg.Len() == 0 {
			printWarning("No transactions in this view")
			return nil
		}

		sum := agg.Summary()
		from, to, _ := agg.DateRange()
		header(fmt.Sprintf("Summary %s .. %s", from.Format(domain.DateLayout), to.Format(domain.DateLayout)))
		printInfo(fmt.Sprintf("Transactions: %d", sum.Transactions))
		printInfo("Income:       " + money(sum.TotalIncome))
		printInfo("Expenses:     " + money(sum.TotalExpenses))
		printInfo("Net:          " + money(sum.NetBalance))
		printInfo("Invested:     " + sum.InvestmentPercentage.StringFixed(1) + "%")

		header("Monthly")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "month\tincome\texpenses\tnet\t")
		for _, m := range agg.MonthlyTotals() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", m.Month, m.Income.StringFixed(2), m.Expenses.StringFixed(2), m.Net.StringFixed(2))
		}
		w.Flush()

		engine := categorize.NewDefaultEngine(stored, categorize.WithFallback(application.Config.FallbackCategory))
		if lines := agg.BudgetComparison(engine.Categories()); len(lines) > 0 {
			header("Budget")
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "category\t%\tbudget\tspent\tsurplus")
			for _, l := range lines {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.Category, l.Percentage.String(),
					l.Budget.StringFixed(2), l.Spent.StringFixed(2), signed(l.Surplus, l.Favorable))
			}
			w.Flush()
		}

		goal := agg.GoalProgress(prefs.InvestmentGoalPercentage)
		header("Investment goal")
		printInfo(fmt.Sprintf("Goal %s%%, current %s%%", goal.Goal.String(), goal.Current.StringFixed(1)))
		if goal.Reached {
			printSuccess("Goal reached")
		} else {
			printWarning("Still to invest: " + goal.Remaining.StringFixed(2))
		}

		if reportTop > 0 {
			header(fmt.Sprintf("Top %d transactions", reportTop))
			printTransactions(agg.TopTransactions(reportTop))
		}
		return nil
	},
}

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "List stored transactions, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		criteria, err := reportCriteria()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		filter := domain.TransactionFilter{From: criteria.From, To: criteria.To, Limit: listLimit}
		txs, err := application.Store.QueryTransactions(ctx, userID, filter)
		if err != nil {
			return err
		}
		printTransactions(txs)
		faint.Printf("%d transactions\n", len(txs))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{summaryCmd, transactionsCmd} {
		c.Flags().StringVar(&reportFrom, "from", "", "First date, YYYY-MM-DD")
		c.Flags().StringVar(&reportTo, "to", "", "Last date, YYYY-MM-DD")
	}
	summaryCmd.Flags().StringSliceVarP(&reportCategories, "category", "c", nil, "Only these categories")
	summaryCmd.Flags().IntVar(&reportTop, "top", 0, "Also list the N largest expenses")
	transactionsCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum rows, 0 for all")
}

func reportCriteria() (analytics.Criteria, error) {
	c := analytics.Criteria{Categories: reportCategories}
	if reportFrom != "" {
		t, err := time.Parse(domain.DateLayout, reportFrom)
		if err != nil {
			return c, fmt.Errorf("invalid --from: %w", err)
		}
		c.From = &t
	}
	if reportTo != "" {
		t, err := time.Parse(domain.DateLayout, reportTo)
		if err != nil {
			return c, fmt.Errorf("invalid --to: %w", err)
		}
		c.To = &t
	}
	return c, nil
}

func printTransactions(txs []*domain.Transaction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "id\tdate\tamount\tcategory\tcounterparty\tdescription")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", tx.ID, tx.DateString(), money(tx.Amount),
			tx.Category, tx.Counterparty, truncate(tx.Description, 40))
	}
	w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
