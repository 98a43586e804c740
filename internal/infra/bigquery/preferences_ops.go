package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// GetPreferencesWithClient returns the user's preferences, or the defaults when none are stored.
func GetPreferencesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) (domain.Preferences, error) {
	p := domain.Preferences{UserID: userID, InvestmentGoalPercentage: decimal.NewFromInt(store.DefaultInvestmentGoal)}

	q := client.Query(`
		SELECT investment_goal_percentage, updated_at
		FROM ` + ds.Table(preferencesTable) + `
		WHERE user_id = @user_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return p, fmt.Errorf("GetPreferences: query read: %w", err)
	}

	var row struct {
		InvestmentGoalPercentage *big.Rat  `bigquery:"investment_goal_percentage"`
		UpdatedAt                time.Time `bigquery:"updated_at"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("GetPreferences: iter next: %w", err)
	}

	if p.InvestmentGoalPercentage, err = decimalFromRat(row.InvestmentGoalPercentage); err != nil {
		return p, fmt.Errorf("GetPreferences: %w", err)
	}
	p.UpdatedAt = row.UpdatedAt
	return p, nil
}

// UpsertPreferencesWithClient stores the user's preferences.
func UpsertPreferencesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, p domain.Preferences) error {
	if p.UserID == "" {
		return fmt.Errorf("UpsertPreferences: user id is required")
	}
	goal, err := ratFromDecimal(p.InvestmentGoalPercentage)
	if err != nil {
		return fmt.Errorf("UpsertPreferences: %w", err)
	}

	q := client.Query(`
		MERGE ` + ds.Table(preferencesTable) + ` p
		USING (SELECT @user_id AS user_id, @goal AS goal) s
		ON p.user_id = s.user_id
		WHEN MATCHED THEN
		  UPDATE SET investment_goal_percentage = s.goal, updated_at = CURRENT_TIMESTAMP()
		WHEN NOT MATCHED THEN
		  INSERT (user_id, investment_goal_percentage, updated_at)
		  VALUES (s.user_id, s.goal, CURRENT_TIMESTAMP())
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: p.UserID},
		{Name: "goal", Value: goal},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpsertPreferences: %w", err)
	}
	return nil
}
