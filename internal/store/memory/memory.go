// Package memory is an in-process Store used by tests and the CLI's dry runs.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
)

type txEntry struct {
	seq int
	tx  domain.Transaction
}

// Store keeps everything in maps guarded by one RWMutex.
// Records are copied on the way in and out.
type Store struct {
	mu    sync.RWMutex
	seq   int
	now   func() time.Time
	txs   map[string]*txEntry // by id
	byKey map[string]string   // user_id|hash -> id
	cats  map[string][]*domain.Category
	prefs map[string]domain.Preferences
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		now:   time.Now,
		txs:   make(map[string]*txEntry),
		byKey: make(map[string]string),
		cats:  make(map[string][]*domain.Category),
		prefs: make(map[string]domain.Preferences),
	}
}

func hashKey(userID, hash string) string { return userID + "|" + hash }

func copyTx(tx *domain.Transaction) *domain.Transaction {
	c := *tx
	if tx.AIConfidence != nil {
		v := *tx.AIConfidence
		c.AIConfidence = &v
	}
	return &c
}

func copyCategory(c *domain.Category) domain.Category {
	out := *c
	out.Rules = slices.Clone(c.Rules)
	return out
}

// FetchFingerprints returns the newest hashes first.
func (s *Store) FetchFingerprints(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = store.DefaultFingerprintLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.userEntries(userID)
	out := make([]string, 0, min(limit, len(entries)))
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		if e.tx.Fingerprint != "" {
			out = append(out, e.tx.Fingerprint)
		}
	}
	return out, nil
}

func (s *Store) InsertTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := domain.InsertResult{Errors: []string{}}
	for i, tx := range txs {
		if tx == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: nil transaction", i+1))
			continue
		}
		if tx.Fingerprint != "" {
			if _, exists := s.byKey[hashKey(userID, tx.Fingerprint)]; exists {
				res.Skipped++
				continue
			}
		}

		c := copyTx(tx)
		c.ID = uuid.NewString()
		c.UserID = userID
		c.UpdatedAt = s.now().UTC()
		s.seq++
		s.txs[c.ID] = &txEntry{seq: s.seq, tx: *c}
		if c.Fingerprint != "" {
			s.byKey[hashKey(userID, c.Fingerprint)] = c.ID
		}

		tx.ID = c.ID
		tx.UserID = userID
		res.Success++
	}
	return res, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, upd domain.TransactionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.txs[id]
	if !ok || e.tx.UserID != userID {
		return fmt.Errorf("UpdateTransaction: transaction %s: %w", id, domain.ErrNotFound)
	}

	if upd.Fingerprint != nil && *upd.Fingerprint != e.tx.Fingerprint {
		if other, exists := s.byKey[hashKey(userID, *upd.Fingerprint)]; exists && other != id {
			return fmt.Errorf("UpdateTransaction: hash %s already used by %s", *upd.Fingerprint, other)
		}
		delete(s.byKey, hashKey(userID, e.tx.Fingerprint))
		e.tx.Fingerprint = *upd.Fingerprint
		s.byKey[hashKey(userID, e.tx.Fingerprint)] = id
	}
	if upd.Counterparty != nil {
		e.tx.Counterparty = *upd.Counterparty
	}
	if upd.Description != nil {
		e.tx.Description = *upd.Description
	}
	if upd.CategoryID != nil {
		e.tx.CategoryID = *upd.CategoryID
	}
	if upd.Confirmed != nil {
		e.tx.Confirmed = *upd.Confirmed
	}
	if upd.RecurringHold != nil {
		e.tx.RecurringHold = *upd.RecurringHold
	}
	e.tx.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.txs[id]
	if !ok || e.tx.UserID != userID {
		return fmt.Errorf("DeleteTransaction: transaction %s: %w", id, domain.ErrNotFound)
	}
	if s.byKey[hashKey(userID, e.tx.Fingerprint)] == id {
		delete(s.byKey, hashKey(userID, e.tx.Fingerprint))
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) DeleteAllTransactions(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.txs {
		if e.tx.UserID != userID {
			continue
		}
		delete(s.byKey, hashKey(userID, e.tx.Fingerprint))
		delete(s.txs, id)
		n++
	}
	return n, nil
}

func (s *Store) QueryTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[string]string)
	for _, c := range s.cats[userID] {
		names[c.ID] = c.Name
	}

	var out []*domain.Transaction
	for _, e := range s.userEntries(userID) {
		if !matches(&e.tx, filter) {
			continue
		}
		c := copyTx(&e.tx)
		c.Category = names[c.CategoryID]
		out = append(out, c)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ConfirmTransactions(ctx context.Context, userID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range ids {
		e, ok := s.txs[id]
		if !ok || e.tx.UserID != userID || e.tx.Confirmed {
			continue
		}
		e.tx.Confirmed = true
		e.tx.UpdatedAt = s.now().UTC()
		n++
	}
	return n, nil
}

// userEntries returns the user's transactions newest first; equal dates keep
// the most recently inserted first.
func (s *Store) userEntries(userID string) []*txEntry {
	var entries []*txEntry
	for _, e := range s.txs {
		if e.tx.UserID == userID {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b *txEntry) int {
		if c := b.tx.Date.Compare(a.tx.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	return entries
}

func matches(tx *domain.Transaction, f domain.TransactionFilter) bool {
	if f.From != nil && tx.Date.Before(domain.Date(*f.From)) {
		return false
	}
	if f.To != nil && tx.Date.After(domain.Date(*f.To)) {
		return false
	}
	if f.CategoryID != "" && tx.CategoryID != f.CategoryID {
		return false
	}
	if f.Confirmed != nil && tx.Confirmed != *f.Confirmed {
		return false
	}
	return true
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.cats[userID]))
	for _, c := range s.cats[userID] {
		out = append(out, copyCategory(c))
	}
	return out, nil
}

func (s *Store) UpsertCategory(ctx context.Context, c *domain.Category) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "", fmt.Errorf("UpsertCategory: name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.cats[c.UserID] {
		if existing.Name == name {
			return existing.ID, nil
		}
	}

	stored := copyCategory(c)
	stored.ID = uuid.NewString()
	stored.Name = name
	if stored.Color == "" {
		stored.Color = domain.DefaultColor
	}
	s.cats[c.UserID] = append(s.cats[c.UserID], &stored)
	c.ID = stored.ID
	return stored.ID, nil
}

func (s *Store) findCategory(userID, id string) (*domain.Category, bool) {
	for _, c := range s.cats[userID] {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.findCategory(c.UserID, c.ID)
	if !ok {
		return fmt.Errorf("UpdateCategory: category %s: %w", c.ID, domain.ErrNotFound)
	}
	existing.Name = c.Name
	existing.Color = c.Color
	existing.BudgetPercentage = c.BudgetPercentage
	existing.Rules = slices.Clone(c.Rules)
	return nil
}

func (s *Store) UpdateCategoryRules(ctx context.Context, userID, id string, rules domain.Rules) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.findCategory(userID, id)
	if !ok {
		return fmt.Errorf("UpdateCategoryRules: category %s: %w", id, domain.ErrNotFound)
	}
	existing.Rules = slices.Clone(rules)
	return nil
}

func (s *Store) UpdateCategoryPercentage(ctx context.Context, userID, id string, pct decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.findCategory(userID, id)
	if !ok {
		return fmt.Errorf("UpdateCategoryPercentage: category %s: %w", id, domain.ErrNotFound)
	}
	existing.BudgetPercentage = pct
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats := s.cats[userID]
	for i, c := range cats {
		if c.ID == id {
			s.cats[userID] = slices.Delete(cats, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("DeleteCategory: category %s: %w", id, domain.ErrNotFound)
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	return domain.Preferences{
		UserID:                   userID,
		InvestmentGoalPercentage: decimal.NewFromInt(store.DefaultInvestmentGoal),
	}, nil
}

func (s *Store) UpsertPreferences(ctx context.Context, p domain.Preferences) error {
	if p.UserID == "" {
		return fmt.Errorf("UpsertPreferences: user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = s.now().UTC()
	s.prefs[p.UserID] = p
	return nil
}

func (s *Store) Close() error { return nil }
