package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-date rendering used for storage and fingerprints.
const DateLayout = "2006-01-02"

// Transaction is the canonical record produced by ingestion and consumed by
// classification, storage and analytics.
// Counterparty and Description use the empty string for "absent".
type Transaction struct {
	ID     string `json:"id,omitempty"` // assigned by the store, empty while in flight
	UserID string `json:"user_id,omitempty"`

	Date   time.Time       `json:"date"`   // calendar date, always UTC midnight
	Amount decimal.Decimal `json:"amount"` // positive = inflow, negative = outflow

	Counterparty string `json:"counterparty,omitempty"`
	Description  string `json:"description,omitempty"`

	CategoryID string `json:"category_id,omitempty"` // normalized foreign key
	Category   string `json:"category,omitempty"`    // denormalized name, resolved at read time

	Confirmed     bool `json:"confirmed"`
	RecurringHold bool `json:"is_recurring_hold"` // "lopende rekening": provisional, excluded from dashboards

	Fingerprint string `json:"fingerprint"`

	AISuggestedName     string   `json:"ai_suggested_name,omitempty"`
	AIRationale         string   `json:"ai_rationale,omitempty"`
	AIConfidence        *float64 `json:"ai_confidence,omitempty"`
	AISuggestedCategory string   `json:"ai_suggested_category,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Date truncates t to a calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateString renders the transaction date as YYYY-MM-DD.
func (t *Transaction) DateString() string {
	return t.Date.Format(DateLayout)
}

// IsIncome reports whether the transaction is an inflow.
func (t *Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// IsExpense reports whether the transaction is an outflow.
func (t *Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// HasCategory reports whether a category name or id has been assigned.
func (t *Transaction) HasCategory() bool {
	return t.Category != "" || t.CategoryID != ""
}

// TransactionFilter narrows a store query. Zero values mean "no constraint".
type TransactionFilter struct {
	From       *time.Time
	To         *time.Time
	CategoryID string
	Confirmed  *bool
	Limit      int
}

// TransactionUpdate carries the user-mutable fields of a stored transaction.
// Nil pointers leave the stored value untouched.
type TransactionUpdate struct {
	Counterparty  *string `json:"counterparty,omitempty"`
	Description   *string `json:"description,omitempty"`
	CategoryID    *string `json:"category_id,omitempty"`
	Confirmed     *bool   `json:"confirmed,omitempty"`
	RecurringHold *bool   `json:"is_recurring_hold,omitempty"`
	Fingerprint   *string `json:"-"`
}

// IsEmpty reports whether the update changes nothing.
func (u TransactionUpdate) IsEmpty() bool {
	return u.Counterparty == nil && u.Description == nil && u.CategoryID == nil &&
		u.Confirmed == nil && u.RecurringHold == nil && u.Fingerprint == nil
}

// InsertResult summarises a batch insert.
type InsertResult struct {
	Success int      `json:"success"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// Preferences are per-user settings.
type Preferences struct {
	UserID                   string          `json:"user_id"`
	InvestmentGoalPercentage decimal.Decimal `json:"investment_goal_percentage"`
	UpdatedAt                time.Time       `json:"updated_at"`
}
