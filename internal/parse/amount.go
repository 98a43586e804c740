// Package parse converts raw cell values from bank exports into canonical
// amounts, calendar dates and cleaned descriptions.
package parse

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyTokens   = []string{"€", "$", "£", "EUR", "USD", "GBP"}
	decimalCommaTail = regexp.MustCompile(`,\d{1,2}$`)
	nonNumeric       = regexp.MustCompile(`[^\d.\-]`)
	// Raw workbook cells render very large or small numbers in E notation.
	scientific       = regexp.MustCompile(`^[+-]?\d+(\.\d+)?[eE][+-]?\d+$`)
)

// Amount parses a bank amount string into an exact decimal.
// It returns false when nothing parseable remains; it never panics.
//
// Separator rules: when both ',' and '.' appear the one appearing last is the
// decimal point; a lone ',' followed by one or two trailing digits is a decimal
// comma, otherwise it groups thousands.
func Amount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	if scientific.MatchString(s) {
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	upper := strings.ToUpper(s)
	for _, tok := range currencyTokens {
		upper = strings.ReplaceAll(upper, tok, "")
	}
	s = strings.Join(strings.Fields(upper), "")

	// "45,00-" as written by some banks for debits.
	if strings.HasSuffix(s, "-") && !strings.HasPrefix(s, "-") {
		s = "-" + strings.TrimSuffix(s, "-")
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if strings.Count(s, ",") == 1 && decimalCommaTail.MatchString(s) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" || s == "-" || s == "." || s == "-." {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// AmountValue accepts native numeric cells as well as strings.
func AmountValue(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, false
		}
		return *x, true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case string:
		return Amount(x)
	}
	return decimal.Zero, false
}

// SplitAmount combines separate income and expense cells into one signed
// amount: income - |expense|. A blank cell counts as zero, but at least one of
// the two must carry a value.
func SplitAmount(income, expense string) (decimal.Decimal, error) {
	income, expense = strings.TrimSpace(income), strings.TrimSpace(expense)
	if isBlank(income) && isBlank(expense) {
		return decimal.Zero, fmt.Errorf("no amount in income or expense column")
	}

	in := decimal.Zero
	if !isBlank(income) {
		v, ok := Amount(income)
		if !ok {
			return decimal.Zero, fmt.Errorf("invalid income amount %q", income)
		}
		in = v
	}

	out := decimal.Zero
	if !isBlank(expense) {
		v, ok := Amount(expense)
		if !ok {
			return decimal.Zero, fmt.Errorf("invalid expense amount %q", expense)
		}
		out = v
	}

	return in.Sub(out.Abs()), nil
}

// isBlank treats the spreadsheet placeholders for "no value" as empty.
func isBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none", "n/a":
		return true
	}
	return false
}

// Text trims a free-text cell and maps spreadsheet blanks to "".
func Text(s string) string {
	if isBlank(s) {
		return ""
	}
	return strings.TrimSpace(s)
}
