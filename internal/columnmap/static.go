package columnmap

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// Static maps columns from the configured bank formats only.
type Static struct {
	registry *Registry
	bank     string
}

// NewStatic returns a static mapper. When bank is set, only that format is
// considered; otherwise the format is detected from the headers.
func NewStatic(registry *Registry, bank string) *Static {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Static{registry: registry, bank: bank}
}

// Map implements Mapper.
func (s *Static) Map(_ context.Context, headers []string, _ [][]string) (Mapping, error) {
	if s.bank != "" {
		f, ok := s.registry.Lookup(s.bank)
		if !ok {
			return Mapping{}, fmt.Errorf("Static.Map: unknown bank format %q", s.bank)
		}
		m, ok := f.Match(headers)
		if !ok {
			return Mapping{}, newMappingError(headers, partialMatch(f, headers))
		}
		return m, nil
	}

	if _, m, ok := s.registry.Detect(headers); ok {
		return m, nil
	}
	return Mapping{}, newMappingError(headers, Mapping{})
}

// partialMatch keeps the columns of f that are present, for error reporting.
func partialMatch(f Format, headers []string) Mapping {
	m := Mapping{Columns: make(map[Field]string), Source: f.Name}
	for field, want := range f.Columns {
		if actual, ok := resolve(headers, want); ok {
			m.Columns[field] = actual
		}
	}
	return m
}

// newMappingError builds the failure report, including hints for columns that
// look like a date or a split debit/credit pair.
func newMappingError(headers []string, partial Mapping) *domain.ColumnMappingError {
	var hints []string
	if partial.Column(FieldDate) == "" {
		for _, cand := range []string{"Date", "Datum"} {
			if h, ok := resolve(headers, cand); ok {
				hints = append(hints, fmt.Sprintf("column '%s' looks like the transaction date", h))
				break
			}
		}
	}
	if !partial.HasAmountSource() {
		_, debit := resolveAny(headers, "Debit", "Withdrawals")
		_, credit := resolveAny(headers, "Credit", "Deposits")
		if debit || credit {
			hints = append(hints, "the file seems to use split debit/credit columns; map both income and expense")
		}
	}

	return &domain.ColumnMappingError{
		Headers: append([]string(nil), headers...),
		Missing: partial.Missing(),
		Partial: partial.Partial(),
		Hints:   hints,
	}
}

func resolveAny(headers []string, candidates ...string) (string, bool) {
	for _, c := range candidates {
		if h, ok := resolve(headers, c); ok {
			return h, true
		}
	}
	return "", false
}
