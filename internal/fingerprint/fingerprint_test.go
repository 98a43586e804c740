package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

func TestCompute_Deterministic(t *testing.T) {
	date := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("100.00")

	a := Compute(date, amount, "Salaris BV", "Maandloon")
	b := Compute(date, decimal.RequireFromString("100"), "Salaris BV", "Maandloon")

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	sum := md5.Sum([]byte("2024-03-01|100.00|Salaris BV|Maandloon"))
	assert.Equal(t, hex.EncodeToString(sum[:]), a)
}

func TestCompute_AmountRendering(t *testing.T) {
	date := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		amount string
		joined string
	}{
		{"12.5", "2024-03-01|12.50|Shop|x"},
		{"12.50", "2024-03-01|12.50|Shop|x"},
		{"12.500", "2024-03-01|12.50|Shop|x"},
		{"-45", "2024-03-01|-45.00|Shop|x"},
		{"-45.0", "2024-03-01|-45.00|Shop|x"},
		{"0.1", "2024-03-01|0.10|Shop|x"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			sum := md5.Sum([]byte(tt.joined))
			got := Compute(date, decimal.RequireFromString(tt.amount), "Shop", "x")
			assert.Equal(t, hex.EncodeToString(sum[:]), got)

			unpadded := md5.Sum([]byte("2024-03-01|" + tt.amount + "|Shop|x"))
			if tt.amount != "12.50" {
				assert.NotEqual(t, hex.EncodeToString(unpadded[:]), got, "amounts are not hashed in their input scale")
			}
		})
	}
}

func TestCompute_EachFieldMatters(t *testing.T) {
	date := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("-45.50")
	base := Compute(date, amount, "Delhaize Gent", "Aankoop boodschappen")

	variants := map[string]string{
		"date":         Compute(date.AddDate(0, 0, 1), amount, "Delhaize Gent", "Aankoop boodschappen"),
		"amount":       Compute(date, decimal.RequireFromString("-45.51"), "Delhaize Gent", "Aankoop boodschappen"),
		"counterparty": Compute(date, amount, "Delhaize Brugge", "Aankoop boodschappen"),
		"description":  Compute(date, amount, "Delhaize Gent", "Aankoop"),
		"absent":       Compute(date, amount, "", "Aankoop boodschappen"),
	}
	for field, fp := range variants {
		assert.NotEqual(t, base, fp, "changing %s must change the fingerprint", field)
	}
}

func TestLegacy(t *testing.T) {
	date := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("-45.5")

	// Both definitions agree when every field is present.
	assert.Equal(t, Compute(date, amount, "Delhaize", "boodschappen"), Legacy(date, amount, "Delhaize", "boodschappen"))

	sum := md5.Sum([]byte("2024-03-02|-45.50|None|boodschappen"))
	assert.Equal(t, hex.EncodeToString(sum[:]), Legacy(date, amount, "", "boodschappen"))
	assert.NotEqual(t, Compute(date, amount, "", "boodschappen"), Legacy(date, amount, "", "boodschappen"))
}

func TestOf(t *testing.T) {
	tx := &domain.Transaction{
		Date:         time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.RequireFromString("100"),
		Counterparty: "Salaris BV",
	}
	assert.Equal(t, Compute(tx.Date, tx.Amount, tx.Counterparty, ""), Of(tx))
	assert.Equal(t, Legacy(tx.Date, tx.Amount, tx.Counterparty, ""), LegacyOf(tx))
}
