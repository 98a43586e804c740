package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/fingerprint"
	"github.com/dvloznov/budget-tracker/internal/store/memory"
)

func newTx(date, amount, cp, desc string) *domain.Transaction {
	d, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	tx := &domain.Transaction{
		Date:         d,
		Amount:       decimal.RequireFromString(amount),
		Counterparty: cp,
		Description:  desc,
	}
	tx.Fingerprint = fingerprint.Of(tx)
	return tx
}

func scenarioRows() []*domain.Transaction {
	return []*domain.Transaction{
		newTx("2024-03-01", "100.00", "Salaris BV", "Maandloon"),
		newTx("2024-03-02", "-45.50", "Delhaize Gent", "Aankoop boodschappen"),
	}
}

func TestFilter_KeepsFirstOccurrenceInFileOrder(t *testing.T) {
	first := newTx("2024-03-01", "-5.00", "Bakker", "brood")
	second := newTx("2024-03-01", "-5.00", "Bakker", "brood")
	other := newTx("2024-03-02", "-5.00", "Bakker", "brood")

	res := Filter(NewKnown(nil), []*domain.Transaction{first, second, other})
	require.Len(t, res.Unique, 2)
	assert.Same(t, first, res.Unique[0])
	assert.Same(t, other, res.Unique[1])
	assert.Equal(t, 1, res.Duplicates)
}

func TestFilter_LegacyFingerprintMatches(t *testing.T) {
	tx := newTx("2024-03-01", "-5.00", "", "cash")
	known := NewKnown([]string{fingerprint.LegacyOf(tx)})

	res := Filter(known, []*domain.Transaction{tx})
	assert.Empty(t, res.Unique)
	assert.Equal(t, 1, res.Duplicates)
}

func TestFilter_ComputesMissingFingerprint(t *testing.T) {
	tests := []struct {
		name      string
		tx        *domain.Transaction
		knownSize int
	}{
		{"all fields present", newTx("2024-03-01", "-5.00", "Bakker", "brood"), 1},
		{"absent description", newTx("2024-03-01", "-5.00", "Bakker", ""), 2},
		{"absent counterparty", newTx("2024-03-01", "-5.00", "", "brood"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.tx.Fingerprint
			tt.tx.Fingerprint = ""

			known := NewKnown(nil)
			res := Filter(known, []*domain.Transaction{tt.tx})
			require.Len(t, res.Unique, 1)
			assert.Equal(t, want, tt.tx.Fingerprint)
			assert.Equal(t, tt.knownSize, known.Len())

			fresh := &domain.Transaction{Date: tt.tx.Date, Amount: tt.tx.Amount, Counterparty: tt.tx.Counterparty, Description: tt.tx.Description}
			assert.True(t, NewKnown([]string{fingerprint.Of(fresh)}).Seen(fresh))
			assert.True(t, NewKnown([]string{fingerprint.LegacyOf(fresh)}).Seen(fresh))
			assert.True(t, known.Seen(fresh))
		})
	}
}

func TestDeduper_ReimportSkipsEverything(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	d := NewDeduper(s, 0, zerolog.Nop())

	res, err := d.Filter(ctx, "u1", scenarioRows())
	require.NoError(t, err)
	ins, err := s.InsertTransactions(ctx, "u1", res.Unique)
	require.NoError(t, err)
	assert.Equal(t, 2, ins.Success)

	res, err = d.Filter(ctx, "u1", scenarioRows())
	require.NoError(t, err)
	ins, err = s.InsertTransactions(ctx, "u1", res.Unique)
	require.NoError(t, err)

	assert.Equal(t, 0, ins.Success)
	assert.Equal(t, 2, res.Duplicates+ins.Skipped)
}

func TestRehash(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	older := newTx("2024-01-01", "-10.00", "Shop", "x")
	newer := newTx("2024-01-01", "-10.00", "Shop", "x")
	stale := newTx("2024-02-01", "-20.00", "Other", "y")

	// stored under hashes from an older definition
	older.Fingerprint = "old-1"
	newer.Fingerprint = "old-2"
	stale.Fingerprint = "old-3"
	current := newTx("2024-03-01", "-30.00", "Fresh", "z")

	_, err := s.InsertTransactions(ctx, "u1", []*domain.Transaction{older, newer, stale, current})
	require.NoError(t, err)

	res, err := Rehash(ctx, s, "u1", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.DuplicatesRemoved)
	assert.Empty(t, res.Errors)

	left, err := s.QueryTransactions(ctx, "u1", domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, left, 3)
	for _, tx := range left {
		assert.Equal(t, fingerprint.Of(tx), tx.Fingerprint)
	}

	again, err := Rehash(ctx, s, "u1", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, RehashResult{Errors: []string{}}, again)
}
