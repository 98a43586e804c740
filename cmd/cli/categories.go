package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dvloznov/budget-tracker/internal/categorize"
	"github.com/dvloznov/budget-tracker/internal/dedup"
	"github.com/dvloznov/budget-tracker/internal/domain"
)

var categoryColor string

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"cat"},
	Short:   "List, add and budget categories",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		stored, err := application.Store.ListCategories(ctx, userID)
		if err != nil {
			return err
		}
		engine := categorize.NewDefaultEngine(stored, categorize.WithFallback(application.Config.FallbackCategory))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "name\tbudget %\trules\tcolor")
		for _, c := range engine.Categories() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.Name, c.BudgetPercentage.String(), len(c.Rules), c.Color)
		}
		w.Flush()
		faint.Printf("fallback: %s\n", engine.Fallback())
		return nil
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a category without rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		id, err := categorize.QuickAdd(ctx, application.Store, userID, args[0], categoryColor)
		if err != nil {
			return err
		}
		application.Cache.Invalidate(userID)
		printSuccess(fmt.Sprintf("Category %q has id %s", args[0], id))
		return nil
	},
}

var categoryBudgetCmd = &cobra.Command{
	Use:   "budget NAME PERCENTAGE",
	Short: "Set the share of income budgeted for a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		pct, err := decimal.NewFromString(args[1])
		if err != nil || pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("percentage must be a number between 0 and 100")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		id, err := storedCategoryID(cmd, args[0])
		if err != nil {
			return err
		}
		if err := application.Store.UpdateCategoryPercentage(ctx, userID, id, pct); err != nil {
			return err
		}
		application.Cache.Invalidate(userID)
		printSuccess(fmt.Sprintf("%s budget set to %s%%", args[0], pct.String()))
		return nil
	},
}

var categorySuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Propose categories for uncategorized transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		cfg := application.Config
		stored, err := application.Store.ListCategories(ctx, userID)
		if err != nil {
			return err
		}
		txs, err := application.Store.QueryTransactions(ctx, userID, domain.TransactionFilter{})
		if err != nil {
			return err
		}
		pending := categorize.NewDefaultEngine(stored, categorize.WithFallback(cfg.FallbackCategory)).Uncategorized(txs)
		if len(pending) == 0 {
			printSuccess("Every transaction has a category")
			return nil
		}

		clusterer := categorize.NewClusterer(stored, categorize.WithCategoryNames(cfg.IncomeCategory, cfg.FallbackCategory))
		proposals, _ := clusterer.Suggest(pending)

		names := make([]string, 0, len(proposals))
		for name := range proposals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ev := proposals[name]
			header(fmt.Sprintf("%s (%d transactions, avg %s)", name, ev.TransactionCount, ev.AvgAmount.StringFixed(2)))
			if len(ev.Counterparties) > 0 {
				printInfo("Counterparties: " + strings.Join(ev.Counterparties, ", "))
			}
			for _, r := range ev.Reasons {
				faint.Printf("    %s\n", r)
			}
		}
		return nil
	},
}

var learnCmd = &cobra.Command{
	Use:   "learn TRANSACTION_ID CATEGORY",
	Short: "Move a transaction to a category and remember the choice as a rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		txID, category := args[0], args[1]
		txs, err := application.Store.QueryTransactions(ctx, userID, domain.TransactionFilter{})
		if err != nil {
			return err
		}
		var tx *domain.Transaction
		for _, t := range txs {
			if t.ID == txID {
				tx = t
				break
			}
		}
		if tx == nil {
			return fmt.Errorf("transaction %s: %w", txID, domain.ErrNotFound)
		}

		learner := categorize.NewLearner(application.Store, categorize.DefaultCategories())
		rule, err := learner.LearnAndPersist(ctx, userID, tx, category)
		if err != nil {
			return err
		}
		id, err := storedCategoryID(cmd, category)
		if err != nil {
			return err
		}
		if err := application.Store.UpdateTransaction(ctx, userID, txID, domain.TransactionUpdate{CategoryID: &id}); err != nil {
			return err
		}
		application.Cache.Invalidate(userID)

		printSuccess(fmt.Sprintf("Transaction %s moved to %s", txID, category))
		if rule != nil {
			doc := rule.Doc()
			printInfo(fmt.Sprintf("Learned rule: %s contains %s", doc.Field, strings.Join(doc.Contains, ", ")))
		}
		return nil
	},
}

var rehashCmd = &cobra.Command{
	Use:   "rehash",
	Short: "Recompute fingerprints and drop the duplicates this reveals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := dedup.Rehash(ctx, application.Store, userID, application.Log)
		if err != nil {
			return err
		}
		if res.Updated > 0 || res.DuplicatesRemoved > 0 {
			application.Cache.Invalidate(userID)
		}
		printSuccess(fmt.Sprintf("Updated %d fingerprints, removed %d duplicates", res.Updated, res.DuplicatesRemoved))
		for _, e := range res.Errors {
			printError(e)
		}
		return nil
	},
}

func init() {
	categoryAddCmd.Flags().StringVar(&categoryColor, "color", "", "Hex color, e.g. #4CAF50")
	categoriesCmd.AddCommand(categoryAddCmd, categoryBudgetCmd, categorySuggestCmd)
}

// storedCategoryID returns the id of the user's category called name. A
// built-in category is copied with its rules before it is first stored.
func storedCategoryID(cmd *cobra.Command, name string) (string, error) {
	ctx := cmd.Context()
	for _, d := range categorize.DefaultCategories() {
		if !strings.EqualFold(d.Name, name) {
			continue
		}
		stored, err := application.Store.ListCategories(ctx, userID)
		if err != nil {
			return "", err
		}
		for _, c := range stored {
			if strings.EqualFold(c.Name, name) {
				return c.ID, nil
			}
		}
		d.UserID = userID
		return application.Store.UpsertCategory(ctx, &d)
	}
	return categorize.QuickAdd(ctx, application.Store, userID, name, "")
}
