package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/dvloznov/budget-tracker/internal/store/memory"
)

// flakyStore overrides selected calls of the in-memory store.
type flakyStore struct {
	*memory.Store
	FetchFingerprintsFunc  func(ctx context.Context, userID string, limit int) ([]string, error)
	InsertTransactionsFunc func(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error)
}

func (f *flakyStore) FetchFingerprints(ctx context.Context, userID string, limit int) ([]string, error) {
	if f.FetchFingerprintsFunc != nil {
		return f.FetchFingerprintsFunc(ctx, userID, limit)
	}
	return f.Store.FetchFingerprints(ctx, userID, limit)
}

func (f *flakyStore) InsertTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error) {
	if f.InsertTransactionsFunc != nil {
		return f.InsertTransactionsFunc(ctx, userID, txs)
	}
	return f.Store.InsertTransactions(ctx, userID, txs)
}

func TestGuarded_RetriesReadOnce(t *testing.T) {
	calls := 0
	fake := &flakyStore{
		Store: memory.New(),
		FetchFingerprintsFunc: func(ctx context.Context, userID string, limit int) ([]string, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset")
			}
			return []string{"h1"}, nil
		},
	}

	g := store.NewGuarded(fake, time.Second, zerolog.Nop())
	got, err := g.FetchFingerprints(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, got)
	assert.Equal(t, 2, calls)
}

func TestGuarded_TimeoutIsClassified(t *testing.T) {
	calls := 0
	fake := &flakyStore{
		Store: memory.New(),
		FetchFingerprintsFunc: func(ctx context.Context, userID string, limit int) ([]string, error) {
			calls++
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	g := store.NewGuarded(fake, 10*time.Millisecond, zerolog.Nop())
	_, err := g.FetchFingerprints(context.Background(), "u1", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalServiceTimeout)
	assert.Equal(t, 2, calls)

	var svcErr *domain.ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "store", svcErr.Service)
}

func TestGuarded_WritesAreNotRetried(t *testing.T) {
	calls := 0
	fake := &flakyStore{
		Store: memory.New(),
		InsertTransactionsFunc: func(ctx context.Context, userID string, txs []*domain.Transaction) (domain.InsertResult, error) {
			calls++
			return domain.InsertResult{}, errors.New("boom")
		},
	}

	g := store.NewGuarded(fake, time.Second, zerolog.Nop())
	_, err := g.InsertTransactions(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, domain.ErrExternalService)
	assert.Equal(t, 1, calls)
}

func TestGuarded_NotFoundPassesThrough(t *testing.T) {
	g := store.NewGuarded(memory.New(), time.Second, zerolog.Nop())
	err := g.DeleteTransaction(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var svcErr *domain.ExternalServiceError
	assert.False(t, errors.As(err, &svcErr))
}
