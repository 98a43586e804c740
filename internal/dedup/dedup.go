// Package dedup filters re-imported transactions against stored fingerprints
// and re-hashes stored transactions when the fingerprint definition changes.
package dedup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/fingerprint"
	"github.com/dvloznov/budget-tracker/internal/store"
)

// Known is the set of fingerprints already stored or accepted in this batch.
type Known struct {
	set map[string]struct{}
}

// NewKnown seeds the set with stored hashes.
func NewKnown(hashes []string) *Known {
	k := &Known{set: make(map[string]struct{}, len(hashes))}
	for _, h := range hashes {
		if h != "" {
			k.set[h] = struct{}{}
		}
	}
	return k
}

// Len returns the number of known hashes.
func (k *Known) Len() int { return len(k.set) }

// Seen reports whether tx matches a known hash under either definition.
func (k *Known) Seen(tx *domain.Transaction) bool {
	current := tx.Fingerprint
	if current == "" {
		current = fingerprint.Of(tx)
	}
	if _, ok := k.set[current]; ok {
		return true
	}
	_, ok := k.set[fingerprint.LegacyOf(tx)]
	return ok
}

// Add records both fingerprints of tx.
func (k *Known) Add(tx *domain.Transaction) {
	if tx.Fingerprint == "" {
		tx.Fingerprint = fingerprint.Of(tx)
	}
	k.set[tx.Fingerprint] = struct{}{}
	k.set[fingerprint.LegacyOf(tx)] = struct{}{}
}

// Result is the outcome of filtering one batch.
type Result struct {
	Unique     []*domain.Transaction
	Duplicates int
}

// Filter walks txs in order and keeps the first occurrence of every
// fingerprint. Known is updated as it goes.
func Filter(known *Known, txs []*domain.Transaction) Result {
	res := Result{Unique: make([]*domain.Transaction, 0, len(txs))}
	for _, tx := range txs {
		if known.Seen(tx) {
			res.Duplicates++
			continue
		}
		known.Add(tx)
		res.Unique = append(res.Unique, tx)
	}
	return res
}

// Deduper filters batches against the fingerprints in the store.
type Deduper struct {
	store store.TransactionStore
	limit int
	log   zerolog.Logger
}

// NewDeduper returns a Deduper. limit caps the fingerprints fetched per user;
// older transactions beyond that window are not considered.
func NewDeduper(s store.TransactionStore, limit int, log zerolog.Logger) *Deduper {
	if limit <= 0 {
		limit = store.DefaultFingerprintLimit
	}
	return &Deduper{store: s, limit: limit, log: log}
}

// Filter fetches the user's fingerprints and filters txs against them.
func (d *Deduper) Filter(ctx context.Context, userID string, txs []*domain.Transaction) (Result, error) {
	hashes, err := d.store.FetchFingerprints(ctx, userID, d.limit)
	if err != nil {
		return Result{}, fmt.Errorf("Deduper.Filter: fetching fingerprints: %w", err)
	}
	if len(hashes) >= d.limit {
		d.log.Warn().Str("user_id", userID).Int("limit", d.limit).
			Msg("fingerprint window full, older transactions are not checked for duplicates")
	}

	res := Filter(NewKnown(hashes), txs)
	d.log.Info().Str("user_id", userID).
		Int("candidates", len(txs)).
		Int("duplicates", res.Duplicates).
		Msg("deduplicated batch")
	return res, nil
}
