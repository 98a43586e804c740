package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/oracle"
)

func TestEnricher_Enrich(t *testing.T) {
	categories := []domain.Category{
		{ID: "food", Name: "Eten & Drinken"},
		{ID: "leisure", Name: "Vrije Tijd"},
		{ID: "other", Name: "Overig"},
	}
	txs := []*domain.Transaction{
		tx("KBC ---", "Betaling Starbucks Gent", "-4.50"),
		tx("Netflix", "", "-12.99"),
		tx("---", "xyz", "-1"),
		tx("Shop", "", "-2"),
	}

	o := oracle.Func(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "- Eten & Drinken:")
		assert.Contains(t, prompt, `"raw_name": "KBC ---"`)
		return "```json\n[" +
			`{"index": 0, "name": "Starbucks", "category": "eten", "reasoning": "coffee shop", "confidence": 0.95},` +
			`{"index": 1, "name": "Netflix", "category": "Vrije Tijd", "reasoning": "streaming", "confidence": 0.9},` +
			`{"index": 2, "name": "Mystery", "category": "Vrije Tijd", "reasoning": "guess", "confidence": 0.4},` +
			`{"index": 3, "name": "Shop", "category": "Pets", "reasoning": "?", "confidence": 0.99}` +
			"]\n```", nil
	})

	res := NewEnricher(o, zerolog.Nop()).Enrich(context.Background(), txs, categories)

	assert.Equal(t, 4, res.Enriched)
	assert.Equal(t, 2, res.Categorized)
	assert.Equal(t, 1, res.Renamed)
	assert.Empty(t, res.Notices)

	assert.Equal(t, "Starbucks", txs[0].Counterparty, "vague name replaced at high confidence")
	assert.Equal(t, "Eten & Drinken", txs[0].Category, "substring match resolves the category")
	assert.Equal(t, "food", txs[0].CategoryID)
	assert.Equal(t, "coffee shop", txs[0].AIRationale)
	require.NotNil(t, txs[0].AIConfidence)
	assert.InDelta(t, 0.95, *txs[0].AIConfidence, 1e-9)

	assert.Equal(t, "leisure", txs[1].CategoryID)

	assert.Empty(t, txs[2].Category, "low confidence leaves the category alone")
	assert.Equal(t, "---", txs[2].Counterparty)
	assert.Equal(t, "Mystery", txs[2].AISuggestedName)

	assert.Empty(t, txs[3].Category, "unknown categories are ignored")
	assert.Equal(t, "Pets", txs[3].AISuggestedCategory)
}

func TestEnricher_Batches(t *testing.T) {
	txs := make([]*domain.Transaction, 250)
	for i := range txs {
		txs[i] = tx(fmt.Sprintf("shop %d", i), "", "-1")
	}

	calls := 0
	o := oracle.Func(func(_ context.Context, prompt string) (string, error) {
		calls++
		n := strings.Count(prompt, `"raw_name"`)
		items := make([]string, n)
		for i := range items {
			items[i] = fmt.Sprintf(`{"index": %d, "name": "x", "category": "Food", "confidence": 0.9}`, i)
		}
		return "[" + strings.Join(items, ",") + "]", nil
	})

	res := NewEnricher(o, zerolog.Nop()).Enrich(context.Background(), txs, []domain.Category{{Name: "Food"}})

	assert.Equal(t, 3, calls)
	assert.Equal(t, 250, res.Categorized)
	assert.Equal(t, "Food", txs[249].Category)
}

func TestEnricher_DegradesOnFailure(t *testing.T) {
	txs := []*domain.Transaction{tx("Shop", "", "-1")}
	txs[0].Category = "Overig"

	failing := oracle.Func(func(context.Context, string) (string, error) {
		return "", &domain.ExternalServiceError{Service: "oracle", Err: errors.New("quota exceeded")}
	})
	res := NewEnricher(failing, zerolog.Nop()).Enrich(context.Background(), txs, nil)
	assert.Len(t, res.Notices, 1)
	assert.Equal(t, "Overig", txs[0].Category)
	assert.Empty(t, txs[0].AISuggestedName)

	garbage := oracle.Func(func(context.Context, string) (string, error) { return "no idea", nil })
	res = NewEnricher(garbage, zerolog.Nop()).Enrich(context.Background(), txs, nil)
	assert.Len(t, res.Notices, 1)

	res = NewEnricher(oracle.Disabled{}, zerolog.Nop()).Enrich(context.Background(), txs, nil)
	assert.Zero(t, res.Enriched)
	assert.Empty(t, res.Notices)
}
