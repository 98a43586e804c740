package columnmap

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/oracle"
)

// Chain tries mappers in order and returns the first valid mapping. Static
// mappers come first so known formats never reach the oracle.
type Chain struct {
	mappers []Mapper
}

// NewChain returns a mapper that tries each of mappers in order.
func NewChain(mappers ...Mapper) *Chain {
	return &Chain{mappers: mappers}
}

// Default is the static registry followed by the oracle. A non-empty bank
// pins the static step to that format.
func Default(registry *Registry, bank string, o oracle.Oracle, log zerolog.Logger) *Chain {
	return NewChain(NewStatic(registry, bank), NewOracle(o, log))
}

// Map implements Mapper. When every mapper fails, the most informative
// mapping error is returned: the one that recognised the most columns.
func (c *Chain) Map(ctx context.Context, headers []string, sample [][]string) (Mapping, error) {
	var best *domain.ColumnMappingError
	var lastErr error
	for _, m := range c.mappers {
		mapping, err := m.Map(ctx, headers, sample)
		if err == nil {
			return mapping, nil
		}
		lastErr = err

		var mapErr *domain.ColumnMappingError
		if !errors.As(err, &mapErr) {
			// Configuration errors such as an unknown bank are terminal.
			return Mapping{}, err
		}
		if best == nil || len(mapErr.Partial) > len(best.Partial) {
			best = mapErr
		}
	}
	if best != nil {
		return Mapping{}, best
	}
	if lastErr != nil {
		return Mapping{}, lastErr
	}
	return Mapping{}, newMappingError(headers, Mapping{})
}

var (
	_ Mapper = (*Static)(nil)
	_ Mapper = (*Oracle)(nil)
	_ Mapper = (*Chain)(nil)
)
