package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "bare object", raw: `{"date": "Datum"}`, want: `{"date": "Datum"}`, wantOK: true},
		{name: "code fence", raw: "```json\n{\"date\": \"Datum\"}\n```", want: `{"date": "Datum"}`, wantOK: true},
		{name: "prose around", raw: `Sure! Here is the mapping: {"amount": "Bedrag"} Hope it helps.`, want: `{"amount": "Bedrag"}`, wantOK: true},
		{name: "nested", raw: `x {"a": {"b": [1, 2]}} y {"c": 3}`, want: `{"a": {"b": [1, 2]}}`, wantOK: true},
		{name: "array", raw: `[{"index": 0}, {"index": 1}]`, want: `[{"index": 0}, {"index": 1}]`, wantOK: true},
		{name: "trailing comma", raw: `{"date": "Datum", "amount": "Bedrag",}`, want: `{"date": "Datum", "amount": "Bedrag"}`, wantOK: true},
		{name: "brace inside string", raw: `{"description": "a } b"}`, want: `{"description": "a } b"}`, wantOK: true},
		{name: "escaped quote", raw: `{"d": "say \"hi\" }"}`, want: `{"d": "say \"hi\" }"}`, wantOK: true},
		{name: "bracketed prose before object", raw: "Based on the headers [Datum, Bedrag] here is the mapping:\n```json\n{\"date\": \"Datum\", \"amount\": \"Bedrag\"}\n```", want: `{"date": "Datum", "amount": "Bedrag"}`, wantOK: true},
		{name: "invalid braces before array", raw: `Use {Datum} as date: [{"index": 0}]`, want: `[{"index": 0}]`, wantOK: true},
		{name: "only bracketed prose", raw: "Columns [Datum, Bedrag] look fine.", wantOK: false},
		{name: "unbalanced", raw: `{"date": "Datum"`, wantOK: false},
		{name: "no json", raw: "I cannot help with that.", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.raw)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	var m map[string]string
	require.NoError(t, Decode("```\n{\"date\": \"Datum\",}\n```", &m))
	assert.Equal(t, "Datum", m["date"])

	assert.ErrorIs(t, Decode("nothing here", &m), ErrNoJSON)

	var mapping map[string]string
	require.NoError(t, Decode("Based on the headers [Datum, Bedrag] here is the mapping:\n```json\n{\"date\": \"Datum\", \"amount\": \"Bedrag\"}\n```", &mapping))
	assert.Equal(t, map[string]string{"date": "Datum", "amount": "Bedrag"}, mapping)

	var wrongShape []int
	assert.Error(t, Decode(`{"date": "Datum"}`, &wrongShape))
}
