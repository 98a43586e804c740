package dedup

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/fingerprint"
)

// RehashStore is the part of the store Rehash needs.
type RehashStore interface {
	QueryTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id string, upd domain.TransactionUpdate) error
	DeleteTransaction(ctx context.Context, userID, id string) error
}

// RehashResult counts what a rehash pass changed.
type RehashResult struct {
	Updated           int      `json:"updated"`
	DuplicatesRemoved int      `json:"duplicates_removed"`
	Errors            []string `json:"errors"`
}

// Rehash recomputes the fingerprint of every stored transaction of the user.
// Transactions are visited oldest first; a transaction whose fresh fingerprint
// was already produced earlier in the pass is deleted. Deletions run before
// updates so a stale hash never blocks a fresh one.
func Rehash(ctx context.Context, s RehashStore, userID string, log zerolog.Logger) (RehashResult, error) {
	res := RehashResult{Errors: []string{}}

	txs, err := s.QueryTransactions(ctx, userID, domain.TransactionFilter{})
	if err != nil {
		return res, fmt.Errorf("Rehash: querying transactions: %w", err)
	}

	// QueryTransactions is newest first.
	slices.Reverse(txs)
	slices.SortStableFunc(txs, func(a, b *domain.Transaction) int {
		return a.Date.Compare(b.Date)
	})

	type change struct {
		tx   *domain.Transaction
		hash string
	}

	seen := make(map[string]struct{}, len(txs))
	var updates []change
	var duplicates []*domain.Transaction
	for _, tx := range txs {
		fresh := fingerprint.Of(tx)
		if _, dup := seen[fresh]; dup {
			duplicates = append(duplicates, tx)
			continue
		}
		seen[fresh] = struct{}{}
		if fresh != tx.Fingerprint {
			updates = append(updates, change{tx: tx, hash: fresh})
		}
	}

	for _, tx := range duplicates {
		if err := s.DeleteTransaction(ctx, userID, tx.ID); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("delete %s: %v", tx.ID, err))
			continue
		}
		res.DuplicatesRemoved++
	}

	for _, c := range updates {
		hash := c.hash
		if err := s.UpdateTransaction(ctx, userID, c.tx.ID, domain.TransactionUpdate{Fingerprint: &hash}); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("update %s: %v", c.tx.ID, err))
			continue
		}
		res.Updated++
	}

	log.Info().Str("user_id", userID).
		Int("scanned", len(txs)).
		Int("updated", res.Updated).
		Int("duplicates_removed", res.DuplicatesRemoved).
		Int("errors", len(res.Errors)).
		Msg("rehash finished")
	return res, nil
}
