package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// ListCategoriesWithClient returns the user's categories in creation order.
func ListCategoriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) ([]domain.Category, error) {
	q := client.Query(`
		SELECT id, user_id, name, color, budget_percentage, rules, created_at
		FROM ` + ds.Table(categoriesTable) + `
		WHERE user_id = @user_id
		ORDER BY created_at, name
	`)
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var out []domain.Category
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		c, err := r.Category()
		if err != nil {
			return nil, fmt.Errorf("ListCategories: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// findCategoryIDByNameWithClient returns "" when the user has no category with that name.
func findCategoryIDByNameWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, name string) (string, error) {
	q := client.Query(`
		SELECT id
		FROM ` + ds.Table(categoriesTable) + `
		WHERE user_id = @user_id AND name = @name
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "name", Value: name},
	}

	ids, err := readStrings(ctx, q)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// UpsertCategoryWithClient finds a category by name or creates it, returning its id.
func UpsertCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, c *domain.Category) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "", fmt.Errorf("UpsertCategory: name is required")
	}

	id, err := findCategoryIDByNameWithClient(ctx, client, ds, c.UserID, name)
	if err != nil {
		return "", fmt.Errorf("UpsertCategory: finding existing: %w", err)
	}
	if id != "" {
		c.ID = id
		return id, nil
	}

	rules, err := rulesJSON(c.Rules)
	if err != nil {
		return "", fmt.Errorf("UpsertCategory: %w", err)
	}
	pct, err := ratFromDecimal(c.BudgetPercentage)
	if err != nil {
		return "", fmt.Errorf("UpsertCategory: %w", err)
	}
	color := c.Color
	if color == "" {
		color = domain.DefaultColor
	}

	id = uuid.NewString()
	q := client.Query(`
		INSERT INTO ` + ds.Table(categoriesTable) + `
		(id, user_id, name, color, budget_percentage, rules, created_at)
		VALUES (@id, @user_id, @name, @color, @budget_percentage, PARSE_JSON(@rules), CURRENT_TIMESTAMP())
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: c.UserID},
		{Name: "name", Value: name},
		{Name: "color", Value: color},
		{Name: "budget_percentage", Value: pct},
		{Name: "rules", Value: rules},
	}
	if _, err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("UpsertCategory: %w", err)
	}

	c.ID = id
	return id, nil
}

// UpdateCategoryWithClient overwrites name, color, percentage and rules.
func UpdateCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, c *domain.Category) error {
	rules, err := rulesJSON(c.Rules)
	if err != nil {
		return fmt.Errorf("UpdateCategory: %w", err)
	}
	pct, err := ratFromDecimal(c.BudgetPercentage)
	if err != nil {
		return fmt.Errorf("UpdateCategory: %w", err)
	}
	return execCategoryDML(ctx, client, "UpdateCategory", c.ID, `
		UPDATE `+ds.Table(categoriesTable)+`
		SET name = @name, color = @color, budget_percentage = @budget_percentage, rules = PARSE_JSON(@rules)
		WHERE id = @id AND user_id = @user_id
	`,
		bigquery.QueryParameter{Name: "name", Value: c.Name},
		bigquery.QueryParameter{Name: "color", Value: c.Color},
		bigquery.QueryParameter{Name: "budget_percentage", Value: pct},
		bigquery.QueryParameter{Name: "rules", Value: rules},
		bigquery.QueryParameter{Name: "id", Value: c.ID},
		bigquery.QueryParameter{Name: "user_id", Value: c.UserID},
	)
}

// UpdateCategoryRulesWithClient replaces a category's rules.
func UpdateCategoryRulesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string, rules domain.Rules) error {
	data, err := rulesJSON(rules)
	if err != nil {
		return fmt.Errorf("UpdateCategoryRules: %w", err)
	}
	return execCategoryDML(ctx, client, "UpdateCategoryRules", id, `
		UPDATE `+ds.Table(categoriesTable)+`
		SET rules = PARSE_JSON(@rules)
		WHERE id = @id AND user_id = @user_id
	`,
		bigquery.QueryParameter{Name: "rules", Value: data},
		bigquery.QueryParameter{Name: "id", Value: id},
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	)
}

// UpdateCategoryPercentageWithClient sets a category's budget share.
func UpdateCategoryPercentageWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string, pct decimal.Decimal) error {
	r, err := ratFromDecimal(pct)
	if err != nil {
		return fmt.Errorf("UpdateCategoryPercentage: %w", err)
	}
	return execCategoryDML(ctx, client, "UpdateCategoryPercentage", id, `
		UPDATE `+ds.Table(categoriesTable)+`
		SET budget_percentage = @budget_percentage
		WHERE id = @id AND user_id = @user_id
	`,
		bigquery.QueryParameter{Name: "budget_percentage", Value: r},
		bigquery.QueryParameter{Name: "id", Value: id},
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	)
}

// DeleteCategoryWithClient removes a category.
func DeleteCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID, id string) error {
	return execCategoryDML(ctx, client, "DeleteCategory", id, `
		DELETE FROM `+ds.Table(categoriesTable)+`
		WHERE id = @id AND user_id = @user_id
	`,
		bigquery.QueryParameter{Name: "id", Value: id},
		bigquery.QueryParameter{Name: "user_id", Value: userID},
	)
}

func execCategoryDML(ctx context.Context, client *bigquery.Client, op, id, sql string, params ...bigquery.QueryParameter) error {
	q := client.Query(sql)
	q.Parameters = params

	n, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: category %s: %w", op, id, domain.ErrNotFound)
	}
	return nil
}
