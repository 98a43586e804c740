package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

type TransactionRow struct {
	ID     string `bigquery:"id"`      // REQUIRED
	UserID string `bigquery:"user_id"` // REQUIRED

	Datum  civil.Date `bigquery:"datum"`  // REQUIRED DATE
	Bedrag *big.Rat   `bigquery:"bedrag"` // REQUIRED NUMERIC

	NaamTegenpartij bigquery.NullString `bigquery:"naam_tegenpartij"` // NULLABLE
	Omschrijving    bigquery.NullString `bigquery:"omschrijving"`     // NULLABLE
	CategorieID     bigquery.NullString `bigquery:"categorie_id"`     // NULLABLE

	IsConfirmed       bool `bigquery:"is_confirmed"`
	IsLopendeRekening bool `bigquery:"is_lopende_rekening"`

	Hash string `bigquery:"hash"` // REQUIRED

	AIName       bigquery.NullString  `bigquery:"ai_name"`
	AIReasoning  bigquery.NullString  `bigquery:"ai_reasoning"`
	AIConfidence bigquery.NullFloat64 `bigquery:"ai_confidence"`
	AICategory   bigquery.NullString  `bigquery:"ai_category"`

	CreatedAt time.Time `bigquery:"created_at"`
	UpdatedAt time.Time `bigquery:"updated_at"`

	// CategoryName is only filled by queries joining categories.
	CategoryName bigquery.NullString `bigquery:"category_name"`
}

// Save implements bigquery.ValueSaver. The insert id makes streaming
// retries of the same (user, hash) idempotent.
func (r *TransactionRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"id":                  r.ID,
		"user_id":             r.UserID,
		"datum":               r.Datum,
		"bedrag":              r.Bedrag,
		"naam_tegenpartij":    r.NaamTegenpartij,
		"omschrijving":        r.Omschrijving,
		"categorie_id":        r.CategorieID,
		"is_confirmed":        r.IsConfirmed,
		"is_lopende_rekening": r.IsLopendeRekening,
		"hash":                r.Hash,
		"ai_name":             r.AIName,
		"ai_reasoning":        r.AIReasoning,
		"ai_confidence":       r.AIConfidence,
		"ai_category":         r.AICategory,
		"created_at":          r.CreatedAt,
		"updated_at":          r.UpdatedAt,
	}
	return row, r.UserID + "|" + r.Hash, nil
}

// NewTransactionRow maps a domain transaction to its stored layout.
func NewTransactionRow(id, userID string, tx *domain.Transaction, now time.Time) (*TransactionRow, error) {
	amount, err := ratFromDecimal(tx.Amount.Round(2))
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRow: %w", err)
	}
	row := &TransactionRow{
		ID:                id,
		UserID:            userID,
		Datum:             civil.DateOf(tx.Date),
		Bedrag:            amount,
		NaamTegenpartij:   nullString(tx.Counterparty),
		Omschrijving:      nullString(tx.Description),
		CategorieID:       nullString(tx.CategoryID),
		IsConfirmed:       tx.Confirmed,
		IsLopendeRekening: tx.RecurringHold,
		Hash:              tx.Fingerprint,
		AIName:            nullString(tx.AISuggestedName),
		AIReasoning:       nullString(tx.AIRationale),
		AICategory:        nullString(tx.AISuggestedCategory),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if tx.AIConfidence != nil {
		row.AIConfidence = bigquery.NullFloat64{Float64: *tx.AIConfidence, Valid: true}
	}
	return row, nil
}

// Transaction converts a stored row back to a domain transaction.
func (r *TransactionRow) Transaction() (*domain.Transaction, error) {
	amount, err := decimalFromRat(r.Bedrag)
	if err != nil {
		return nil, fmt.Errorf("Transaction: bedrag of %s: %w", r.ID, err)
	}
	tx := &domain.Transaction{
		ID:                  r.ID,
		UserID:              r.UserID,
		Date:                r.Datum.In(time.UTC),
		Amount:              amount,
		Counterparty:        r.NaamTegenpartij.StringVal,
		Description:         r.Omschrijving.StringVal,
		CategoryID:          r.CategorieID.StringVal,
		Category:            r.CategoryName.StringVal,
		Confirmed:           r.IsConfirmed,
		RecurringHold:       r.IsLopendeRekening,
		Fingerprint:         r.Hash,
		AISuggestedName:     r.AIName.StringVal,
		AIRationale:         r.AIReasoning.StringVal,
		AISuggestedCategory: r.AICategory.StringVal,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.AIConfidence.Valid {
		c := r.AIConfidence.Float64
		tx.AIConfidence = &c
	}
	return tx, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func ratFromDecimal(d decimal.Decimal) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(d.String())
	if !ok {
		return nil, fmt.Errorf("decimal %s is not a rational", d.String())
	}
	return r, nil
}

func decimalFromRat(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	// NUMERIC carries 9 fractional digits
	return decimal.NewFromString(r.FloatString(9))
}
