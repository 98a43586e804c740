package categorize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

func byCounterparty(txs []*domain.Transaction) map[string]*domain.Transaction {
	out := make(map[string]*domain.Transaction, len(txs))
	for _, t := range txs {
		out[t.Counterparty] = t
	}
	return out
}

func TestClusterer_Suggest(t *testing.T) {
	input := []*domain.Transaction{
		tx("DELHAIZE MERELBEKE", "", "-45.50"),
		tx("delhaize merelbeke", "", "-14.50"),
		tx("Werkgever NV", "Maandloon", "2500"),
		tx("---", "Betaling Netflix abonnement", "-12.99"),
		tx("Jan Peeters", "Verjaardag cadeau", "-30"),
		tx("Jan Peeters", "Terugbetaling etentje", "15"),
	}

	proposals, labeled := NewClusterer(nil).Suggest(input)
	require.Len(t, labeled, len(input))

	food := proposals["Eten & Drinken"]
	require.NotNil(t, food)
	assert.Equal(t, 2, food.TransactionCount)
	assert.Equal(t, []string{"Delhaize"}, food.Counterparties)
	assert.True(t, decimal.RequireFromString("-30").Equal(food.AvgAmount))
	assert.Equal(t, []string{"matched on 'delhaize'"}, food.Reasons)
	assert.Equal(t, "#f59e0b", food.Color)
	assert.NotEmpty(t, food.Description)
	assert.Contains(t, food.Keywords, "delhaize")

	income := proposals[DefaultIncome]
	require.NotNil(t, income)
	assert.Equal(t, 1, income.TransactionCount)
	assert.Equal(t, []string{"positive amount"}, income.Reasons)

	leisure := proposals["Vrije Tijd"]
	require.NotNil(t, leisure)
	assert.Equal(t, []string{"Netflix"}, leisure.Counterparties, "vague name is replaced by the keyword found in the description")

	fallback := proposals[DefaultFallback]
	require.NotNil(t, fallback)
	assert.Zero(t, fallback.TransactionCount)

	named := byCounterparty(labeled)
	assert.Equal(t, "Eten & Drinken", named["Delhaize"].Category)
	assert.Equal(t, DefaultIncome, named["Werkgever Nv"].Category)
	assert.Equal(t, "Vrije Tijd", named["Netflix"].Category)
	assert.Equal(t, DefaultFallback, named["Jan Peeters"].Category, "mixed-sign group without keyword falls back")

	assert.Equal(t, "---", input[3].Counterparty, "input transactions are not modified")
	assert.Empty(t, input[0].Category)
}

func TestClusterer_IncomeAddedForPositiveFallbacks(t *testing.T) {
	input := []*domain.Transaction{
		tx("Jan Peeters", "Verjaardag cadeau", "-30"),
		tx("Jan Peeters", "Terugbetaling etentje", "15"),
	}

	proposals, labeled := NewClusterer(nil).Suggest(input)

	income := proposals[DefaultIncome]
	require.NotNil(t, income)
	assert.Equal(t, 1, income.TransactionCount)
	assert.Equal(t, DefaultFallback, labeled[0].Category)
	assert.Equal(t, DefaultIncome, labeled[1].Category)
}

func TestClusterer_UnusableNamesShareUnknownGroup(t *testing.T) {
	input := []*domain.Transaction{
		tx("", "", "-5"),
		tx("---", "abc", "-7"),
		tx("Onbekend", "Aankoop Colruyt", "-9"),
	}

	proposals, labeled := NewClusterer(nil).Suggest(input)
	require.Len(t, labeled, 3)

	for _, l := range labeled[:2] {
		assert.Equal(t, "Onbekend", l.Counterparty)
		assert.Equal(t, DefaultFallback, l.Category)
	}
	assert.Equal(t, "Colruyt", labeled[2].Counterparty)
	assert.Equal(t, "Eten & Drinken", labeled[2].Category)

	assert.Zero(t, proposals[DefaultFallback].TransactionCount)
	assert.NotContains(t, proposals, "Onbekend")

	groups := NewClusterer(nil).group(labeled)
	require.Len(t, groups, 2)
	assert.Equal(t, "onbekend", groups[0].name)
	assert.Len(t, groups[0].txs, 2)
}

func TestClusterer_EnrichVagueNames(t *testing.T) {
	c := NewClusterer(nil)

	tests := []struct {
		name string
		tx   *domain.Transaction
		want string
	}{
		{name: "keyword in description", tx: tx("", "Aankoop Colruyt Gent", "-5"), want: "Colruyt"},
		{name: "positive amount", tx: tx("-", "iets", "5"), want: "Inkomen / Teruggave"},
		{name: "long description snippet", tx: tx("Overschrijving", "Gemeenschappelijke rekening voor de vakantie in Spanje", "-5"), want: "Gemeenschappelijke rekening vo..."},
		{name: "short description snippet", tx: tx("", "Cadeau mama", "-5"), want: "Cadeau mama"},
		{name: "nothing usable", tx: tx("onbekend", "abc", "-5"), want: "Onbekend"},
		{name: "known merchant in name", tx: tx("CARREFOUR MARKET 123", "", "-5"), want: "Carrefour"},
		{name: "short keyword ignored in names", tx: tx("BARBARA DE SMET", "", "-5"), want: "Barbara De Smet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.enrichName(tt.tx)
			assert.Equal(t, tt.want, tt.tx.Counterparty)
		})
	}
}

func TestClusterer_UserKeywordsMerged(t *testing.T) {
	user := []domain.Category{
		{Name: "Huisdieren", Color: "#123456", Rules: domain.Rules{
			domain.KeywordRule{Field: domain.FieldCounterparty, Keywords: []string{"Tom & Co"}},
		}},
	}

	proposals, labeled := NewClusterer(user).Suggest([]*domain.Transaction{tx("TOM & CO Gent", "", "-20")})

	require.Contains(t, proposals, "Huisdieren")
	assert.Equal(t, "#123456", proposals["Huisdieren"].Color)
	assert.Equal(t, "Huisdieren", labeled[0].Category)
}

func TestIsVagueName(t *testing.T) {
	for _, name := range []string{"", " ", "---", "Onbekend", "OVERSCHRIJVING", "interne overschrijving"} {
		assert.True(t, IsVagueName(name), name)
	}
	assert.False(t, IsVagueName("Delhaize"))
}
