package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// DefaultTimeout bounds every store call made through Guarded.
const DefaultTimeout = 15 * time.Second

// Guarded wraps a Store with a per-call timeout. Reads are retried once;
// writes are not, so a timed-out write is reported and left to the caller.
// Failures come back as *domain.ExternalServiceError with Service "store";
// domain.ErrNotFound passes through untouched.
type Guarded struct {
	next    Store
	timeout time.Duration
	log     zerolog.Logger
}

var _ Store = (*Guarded)(nil)

// NewGuarded returns the decorator. timeout <= 0 means DefaultTimeout.
func NewGuarded(next Store, timeout time.Duration, log zerolog.Logger) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guarded{next: next, timeout: timeout, log: log}
}

// Unwrap returns the decorated store.
func (g *Guarded) Unwrap() Store { return g.next }

func (g *Guarded) call(ctx context.Context, op string, retry bool, fn func(ctx context.Context) error) error {
	attempts := 1
	if retry {
		attempts = 2
	}

	var err error
	for i := 0; i < attempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		err = fn(callCtx)
		cancel()
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
		g.log.Warn().Err(err).Str("op", op).Int("attempt", i+1).Msg("store call failed")
	}

	return &domain.ExternalServiceError{
		Service: "store",
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

func (g *Guarded) FetchFingerprints(ctx context.Context, userID string, limit int) ([]string, error) {
	var out []string
	err := g.call(ctx, "FetchFingerprints", true, func(ctx context.Context) error {
		var err error
		out, err = g.next.FetchFingerprints(ctx, userID, limit)
		return err
	})
	return out, err
}

func (g *Guarded) InsertTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error) {
	var res domain.InsertResult
	err := g.call(ctx, "InsertTransactions", false, func(ctx context.Context) error {
		var err error
		res, err = g.next.InsertTransactions(ctx, userID, txs)
		return err
	})
	return res, err
}

func (g *Guarded) UpdateTransaction(ctx context.Context, userID, id string, upd domain.TransactionUpdate) error {
	return g.call(ctx, "UpdateTransaction", false, func(ctx context.Context) error {
		return g.next.UpdateTransaction(ctx, userID, id, upd)
	})
}

func (g *Guarded) DeleteTransaction(ctx context.Context, userID, id string) error {
	return g.call(ctx, "DeleteTransaction", false, func(ctx context.Context) error {
		return g.next.DeleteTransaction(ctx, userID, id)
	})
}

func (g *Guarded) DeleteAllTransactions(ctx context.Context, userID string) (int, error) {
	var n int
	err := g.call(ctx, "DeleteAllTransactions", false, func(ctx context.Context) error {
		var err error
		n, err = g.next.DeleteAllTransactions(ctx, userID)
		return err
	})
	return n, err
}

func (g *Guarded) QueryTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	err := g.call(ctx, "QueryTransactions", true, func(ctx context.Context) error {
		var err error
		out, err = g.next.QueryTransactions(ctx, userID, filter)
		return err
	})
	return out, err
}

func (g *Guarded) ConfirmTransactions(ctx context.Context, userID string, ids []string) (int, error) {
	var n int
	err := g.call(ctx, "ConfirmTransactions", false, func(ctx context.Context) error {
		var err error
		n, err = g.next.ConfirmTransactions(ctx, userID, ids)
		return err
	})
	return n, err
}

func (g *Guarded) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	var out []domain.Category
	err := g.call(ctx, "ListCategories", true, func(ctx context.Context) error {
		var err error
		out, err = g.next.ListCategories(ctx, userID)
		return err
	})
	return out, err
}

func (g *Guarded) UpsertCategory(ctx context.Context, c *domain.Category) (string, error) {
	var id string
	err := g.call(ctx, "UpsertCategory", false, func(ctx context.Context) error {
		var err error
		id, err = g.next.UpsertCategory(ctx, c)
		return err
	})
	return id, err
}

func (g *Guarded) UpdateCategory(ctx context.Context, c *domain.Category) error {
	return g.call(ctx, "UpdateCategory", false, func(ctx context.Context) error {
		return g.next.UpdateCategory(ctx, c)
	})
}

func (g *Guarded) UpdateCategoryRules(ctx context.Context, userID, id string, rules domain.Rules) error {
	return g.call(ctx, "UpdateCategoryRules", false, func(ctx context.Context) error {
		return g.next.UpdateCategoryRules(ctx, userID, id, rules)
	})
}

func (g *Guarded) UpdateCategoryPercentage(ctx context.Context, userID, id string, pct decimal.Decimal) error {
	return g.call(ctx, "UpdateCategoryPercentage", false, func(ctx context.Context) error {
		return g.next.UpdateCategoryPercentage(ctx, userID, id, pct)
	})
}

func (g *Guarded) DeleteCategory(ctx context.Context, userID, id string) error {
	return g.call(ctx, "DeleteCategory", false, func(ctx context.Context) error {
		return g.next.DeleteCategory(ctx, userID, id)
	})
}

func (g *Guarded) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	var p domain.Preferences
	err := g.call(ctx, "GetPreferences", true, func(ctx context.Context) error {
		var err error
		p, err = g.next.GetPreferences(ctx, userID)
		return err
	})
	return p, err
}

func (g *Guarded) UpsertPreferences(ctx context.Context, p domain.Preferences) error {
	return g.call(ctx, "UpsertPreferences", false, func(ctx context.Context) error {
		return g.next.UpsertPreferences(ctx, p)
	})
}

func (g *Guarded) Close() error { return g.next.Close() }
