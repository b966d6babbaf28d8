package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	mustUser(t, s, "u1", 100)

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	user.CoinBalance = 1_000_000

	again, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), again.CoinBalance)
}

func TestMemoryStore_WithClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore().WithClock(func() time.Time { return fixed })
	ctx := context.Background()
	mustUser(t, s, "u1", 0)

	tx, err := s.CreateTransaction(ctx, &model.Transaction{UserID: "u1", Type: model.TxTypeEarn, Amount: 5, Description: "clock"})
	require.NoError(t, err)
	assert.True(t, tx.CreatedAt.Equal(fixed))
}

func TestMemoryStore_UnknownReferences(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.CreateParticipation(ctx, &model.Participation{UserID: "ghost", DrawID: 1, CoinsSpent: 10})
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, err = s.CreateTransaction(ctx, &model.Transaction{UserID: "ghost", Type: model.TxTypeEarn, Amount: 1})
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

func TestMemoryStore_ConcurrentTransactions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	mustUser(t, s, "u1", 0)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
				if _, err := tx.AdjustUserBalance(ctx, "u1", 10); err != nil {
					return err
				}
				_, err := tx.CreateTransaction(ctx, &model.Transaction{UserID: "u1", Type: model.TxTypeEarn, Amount: 10, Description: "concurrent"})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), user.CoinBalance)

	txs, err := s.ListUserTransactions(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, txs, workers)
}

func TestMemoryStore_CancelledContextDiscardsTx(t *testing.T) {
	s := NewMemoryStore()
	mustUser(t, s, "u1", 10)

	ctx, cancel := context.WithCancel(context.Background())
	err := s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		_, err := tx.AdjustUserBalance(ctx, "u1", 5)
		cancel()
		return err
	})
	assert.ErrorIs(t, err, context.Canceled)

	user, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), user.CoinBalance)
}
