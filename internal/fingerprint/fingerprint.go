// Package fingerprint computes the content hash that identifies a transaction
// across imports.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

const separator = "|"

// legacyAbsent is how the older definition rendered a missing optional field.
const legacyAbsent = "None"

// Compute returns the hex MD5 digest of "date|amount|counterparty|description".
// Dates are rendered YYYY-MM-DD, amounts with exactly two decimals whatever
// their scale, and absent optional fields as the empty string.
func Compute(date time.Time, amount decimal.Decimal, counterparty, description string) string {
	return digest(canonical(date, amount, counterparty, description, ""))
}

// Legacy returns the fingerprint under the older join rule, which rendered
// absent optional fields as "None" instead of "".
func Legacy(date time.Time, amount decimal.Decimal, counterparty, description string) string {
	return digest(canonical(date, amount, counterparty, description, legacyAbsent))
}

// Of fingerprints a transaction with the current definition.
func Of(tx *domain.Transaction) string {
	return Compute(tx.Date, tx.Amount, tx.Counterparty, tx.Description)
}

// LegacyOf fingerprints a transaction with the legacy definition.
func LegacyOf(tx *domain.Transaction) string {
	return Legacy(tx.Date, tx.Amount, tx.Counterparty, tx.Description)
}

func canonical(date time.Time, amount decimal.Decimal, counterparty, description, absent string) string {
	if counterparty == "" {
		counterparty = absent
	}
	if description == "" {
		description = absent
	}
	return strings.Join([]string{
		date.Format(domain.DateLayout),
		amount.StringFixed(2),
		counterparty,
		description,
	}, separator)
}

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
