package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

type CategoryRow struct {
	ID     string `bigquery:"id"`      // REQUIRED
	UserID string `bigquery:"user_id"` // REQUIRED
	Name   string `bigquery:"name"`    // REQUIRED
	Color  string `bigquery:"color"`   // REQUIRED

	BudgetPercentage *big.Rat `bigquery:"budget_percentage"` // REQUIRED NUMERIC

	Rules bigquery.NullJSON `bigquery:"rules"` // NULLABLE JSON array of rule docs

	CreatedAt time.Time `bigquery:"created_at"`
}

// Category converts the row to a domain category.
func (r CategoryRow) Category() (domain.Category, error) {
	pct, err := decimalFromRat(r.BudgetPercentage)
	if err != nil {
		return domain.Category{}, fmt.Errorf("Category: budget_percentage of %s: %w", r.Name, err)
	}
	c := domain.Category{
		ID:               r.ID,
		UserID:           r.UserID,
		Name:             r.Name,
		Color:            r.Color,
		BudgetPercentage: pct,
	}
	if r.Rules.Valid && r.Rules.JSONVal != "" {
		if err := json.Unmarshal([]byte(r.Rules.JSONVal), &c.Rules); err != nil {
			return domain.Category{}, fmt.Errorf("Category: rules of %s: %w", r.Name, err)
		}
	}
	return c, nil
}

func rulesJSON(rules domain.Rules) (string, error) {
	if rules == nil {
		return "[]", nil
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("encoding rules: %w", err)
	}
	return string(data), nil
}
