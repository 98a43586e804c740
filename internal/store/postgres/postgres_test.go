package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

func TestTransactionQuery(t *testing.T) {
	from := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	yes := true

	tests := []struct {
		name     string
		filter   domain.TransactionFilter
		contains []string
		args     []any
	}{
		{
			name:     "user only",
			filter:   domain.TransactionFilter{},
			contains: []string{"WHERE t.user_id = $1\n"},
			args:     []any{"u1"},
		},
		{
			name:     "from is truncated to a date",
			filter:   domain.TransactionFilter{From: &from},
			contains: []string{"t.datum >= $2"},
			args:     []any{"u1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:     "category confirmed and limit",
			filter:   domain.TransactionFilter{CategoryID: "c1", Confirmed: &yes, Limit: 10},
			contains: []string{"t.categorie_id = $2", "t.is_confirmed = $3", "LIMIT $4"},
			args:     []any{"u1", "c1", true, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := transactionQuery("u1", tt.filter)
			for _, c := range tt.contains {
				assert.Contains(t, query, c)
			}
			assert.Equal(t, tt.args, args)
			assert.Contains(t, query, "ORDER BY t.datum DESC")
		})
	}
}

func TestUpdateStatement(t *testing.T) {
	_, _, ok := updateStatement("u1", "t1", domain.TransactionUpdate{})
	assert.False(t, ok)

	name := ""
	confirmed := true
	query, args, ok := updateStatement("u1", "t1", domain.TransactionUpdate{Counterparty: &name, Confirmed: &confirmed})
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(query, "UPDATE transactions SET naam_tegenpartij = $1, is_confirmed = $2, updated_at = now()"))
	assert.Contains(t, query, "WHERE id = $3 AND user_id = $4")
	assert.Equal(t, []any{nil, true, "t1", "u1"}, args)
}
