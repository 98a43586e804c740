// Package columnmap decides which columns of a bank export carry the date,
// amount, counterparty and description of a transaction.
package columnmap

import (
	"context"
	"fmt"
	"strings"
)

// Field is a canonical transaction field a column can be mapped to.
type Field string

const (
	FieldDate         Field = "date"
	FieldAmount       Field = "amount"
	FieldIncome       Field = "income"
	FieldExpense      Field = "expense"
	FieldCounterparty Field = "counterparty"
	FieldDescription  Field = "description"
)

// Fields lists the mappable fields in prompt order.
var Fields = []Field{FieldDate, FieldAmount, FieldIncome, FieldExpense, FieldCounterparty, FieldDescription}

// Source values of a Mapping.
const (
	SourceOracle = "oracle"
)

// Mapping assigns exact header strings to canonical fields. Unmapped fields
// are empty.
type Mapping struct {
	Columns map[Field]string
	// Source is the bank format name, or SourceOracle.
	Source string
	// DateLayouts are Go layouts to try before the default list.
	DateLayouts []string
}

// Column returns the header mapped to f, or "".
func (m Mapping) Column(f Field) string {
	return m.Columns[f]
}

// HasAmountSource reports whether a single amount or a split pair is mapped.
func (m Mapping) HasAmountSource() bool {
	return m.Column(FieldAmount) != "" || m.Column(FieldIncome) != "" || m.Column(FieldExpense) != ""
}

// Valid reports whether the mapping carries the minimum required fields.
func (m Mapping) Valid() bool {
	return m.Column(FieldDate) != "" && m.HasAmountSource()
}

// Missing lists the required fields the mapping lacks.
func (m Mapping) Missing() []string {
	var missing []string
	if m.Column(FieldDate) == "" {
		missing = append(missing, string(FieldDate))
	}
	if !m.HasAmountSource() {
		missing = append(missing, "amount (or income/expense)")
	}
	return missing
}

// Summary renders the mapping as "field: header" pairs in field order.
func (m Mapping) Summary() string {
	parts := make([]string, 0, len(m.Columns))
	for _, f := range Fields {
		if h := m.Column(f); h != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", f, h))
		}
	}
	return strings.Join(parts, ", ")
}

// Partial returns the mapped pairs as plain strings, for error reporting.
func (m Mapping) Partial() map[string]string {
	out := make(map[string]string, len(m.Columns))
	for f, h := range m.Columns {
		if h != "" {
			out[string(f)] = h
		}
	}
	return out
}

// Mapper resolves a column mapping for a table.
type Mapper interface {
	Map(ctx context.Context, headers []string, sample [][]string) (Mapping, error)
}

// normalize is the case-insensitive comparison key of a header.
func normalize(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// resolve finds the exact header matching want case-insensitively.
func resolve(headers []string, want string) (string, bool) {
	key := normalize(want)
	if key == "" {
		return "", false
	}
	for _, h := range headers {
		if normalize(h) == key {
			return h, true
		}
	}
	return "", false
}
