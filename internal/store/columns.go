package store

import "github.com/dvloznov/budget-tracker/internal/domain"

// Column names of the persisted transaction layout.
const (
	ColID            = "id"
	ColUserID        = "user_id"
	ColDate          = "datum"
	ColAmount        = "bedrag"
	ColCounterparty  = "naam_tegenpartij"
	ColDescription   = "omschrijving"
	ColCategoryID    = "categorie_id"
	ColConfirmed     = "is_confirmed"
	ColRecurringHold = "is_lopende_rekening"
	ColHash          = "hash"
	ColAIName        = "ai_name"
	ColAIReasoning   = "ai_reasoning"
	ColAIConfidence  = "ai_confidence"
	ColAICategory    = "ai_category"
	ColUpdatedAt     = "updated_at"
)

// Assignment is one "column = value" of an UPDATE.
type Assignment struct {
	Column string
	Value  any
}

// Assignments lists the columns an update touches, in a fixed order.
// Empty strings for optional text columns become nil (NULL).
func Assignments(upd domain.TransactionUpdate) []Assignment {
	var out []Assignment
	if upd.Counterparty != nil {
		out = append(out, Assignment{ColCounterparty, NullString(*upd.Counterparty)})
	}
	if upd.Description != nil {
		out = append(out, Assignment{ColDescription, NullString(*upd.Description)})
	}
	if upd.CategoryID != nil {
		out = append(out, Assignment{ColCategoryID, NullString(*upd.CategoryID)})
	}
	if upd.Confirmed != nil {
		out = append(out, Assignment{ColConfirmed, *upd.Confirmed})
	}
	if upd.RecurringHold != nil {
		out = append(out, Assignment{ColRecurringHold, *upd.RecurringHold})
	}
	if upd.Fingerprint != nil {
		out = append(out, Assignment{ColHash, *upd.Fingerprint})
	}
	return out
}

// NullString maps "" to nil so optional text columns store NULL.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
