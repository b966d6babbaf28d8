package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
)

// storeFactory returns an empty Store for one test.
type storeFactory func(t *testing.T) Store

// runStoreContract runs the behaviour shared by every Store implementation.
func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Run("UpsertUser", func(t *testing.T) { testUpsertUser(t, newStore(t)) })
	t.Run("AdjustUserBalance", func(t *testing.T) { testAdjustUserBalance(t, newStore(t)) })
	t.Run("UpdateUserCheckIn", func(t *testing.T) { testUpdateUserCheckIn(t, newStore(t)) })
	t.Run("DrawCapacity", func(t *testing.T) { testDrawCapacity(t, newStore(t)) })
	t.Run("CompleteDraw", func(t *testing.T) { testCompleteDraw(t, newStore(t)) })
	t.Run("ListDraws", func(t *testing.T) { testListDraws(t, newStore(t)) })
	t.Run("Participations", func(t *testing.T) { testParticipations(t, newStore(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("Winners", func(t *testing.T) { testWinners(t, newStore(t)) })
	t.Run("TopEarners", func(t *testing.T) { testTopEarners(t, newStore(t)) })
	t.Run("WithinTxRollback", func(t *testing.T) { testWithinTxRollback(t, newStore(t)) })
	t.Run("WithinTxCommit", func(t *testing.T) { testWithinTxCommit(t, newStore(t)) })
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func mustUser(t *testing.T, s Store, id string, balance int64) *model.User {
	t.Helper()
	user, _, err := s.UpsertUser(context.Background(), &model.User{ID: id, FirstName: strPtr("Test")}, balance)
	require.NoError(t, err)
	return user
}

func mustDraw(t *testing.T, s Store, maxParticipants *int64, drawTime time.Time) *model.Draw {
	t.Helper()
	draw, err := s.CreateDraw(context.Background(), &model.Draw{
		Title:           "iPhone 15 Pro",
		PrizeAmount:     decimal.RequireFromString("999.00"),
		EntryFee:        50,
		MaxParticipants: maxParticipants,
		DrawTime:        drawTime,
		IsActive:        true,
	})
	require.NoError(t, err)
	return draw
}

func testUpsertUser(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.GetUser(ctx, "u1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	user, created, err := s.UpsertUser(ctx, &model.User{ID: "u1", FirstName: strPtr("Asha")}, 100)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(100), user.CoinBalance)
	assert.Equal(t, "Asha", *user.FirstName)

	// Second upsert refreshes the profile but keeps the balance.
	user, created, err = s.UpsertUser(ctx, &model.User{ID: "u1", FirstName: strPtr("Asha"), LastName: strPtr("Rao")}, 500)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(100), user.CoinBalance)
	assert.Equal(t, "Rao", *user.LastName)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.DisplayName("Anonymous"))
	assert.True(t, got.TotalEarnings.IsZero())

	vip, err := s.SetUserVIP(ctx, "u1", true)
	require.NoError(t, err)
	assert.True(t, vip.IsVIP)
}

func testAdjustUserBalance(t *testing.T, s Store) {
	ctx := context.Background()
	mustUser(t, s, "u1", 100)

	user, err := s.AdjustUserBalance(ctx, "u1", -40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), user.CoinBalance)

	_, err = s.AdjustUserBalance(ctx, "u1", -61)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))

	user, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), user.CoinBalance, "rejected debit must not change the balance")

	_, err = s.AdjustUserBalance(ctx, "missing", 10)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	user, err = s.AddUserStats(ctx, "u1", model.UserStatsDelta{Participations: 2, Wins: 1, Earnings: decimal.RequireFromString("12.50")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.TotalParticipations)
	assert.Equal(t, int64(1), user.TotalWins)
	assert.True(t, user.TotalEarnings.Equal(decimal.RequireFromString("12.5")))
}

func testUpdateUserCheckIn(t *testing.T, s Store) {
	ctx := context.Background()
	mustUser(t, s, "u1", 0)

	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	user, err := s.UpdateUserCheckIn(ctx, "u1", 1, at, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, user.CurrentStreak)
	require.NotNil(t, user.LastCheckIn)
	assert.True(t, user.LastCheckIn.Equal(at))

	// A writer that still expects no previous check-in lost the race.
	_, err = s.UpdateUserCheckIn(ctx, "u1", 1, at.Add(time.Minute), nil)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	next := at.Add(24 * time.Hour)
	user, err = s.UpdateUserCheckIn(ctx, "u1", 2, next, user.LastCheckIn)
	require.NoError(t, err)
	assert.Equal(t, 2, user.CurrentStreak)

	_, err = s.UpdateUserCheckIn(ctx, "missing", 1, at, nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func testDrawCapacity(t *testing.T, s Store) {
	ctx := context.Background()
	draw := mustDraw(t, s, int64Ptr(2), time.Now().Add(time.Hour))
	assert.Equal(t, int64(0), draw.CurrentParticipants)
	assert.False(t, draw.IsCompleted)

	for i := 0; i < 2; i++ {
		_, err := s.IncrementDrawParticipants(ctx, draw.ID)
		require.NoError(t, err)
	}

	_, err := s.IncrementDrawParticipants(ctx, draw.ID)
	assert.True(t, errors.Is(err, apperr.ErrDrawFull))

	got, err := s.GetDraw(ctx, draw.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CurrentParticipants)
	assert.True(t, got.IsFull())

	_, err = s.IncrementDrawParticipants(ctx, 999999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	unlimited := mustDraw(t, s, nil, time.Now().Add(time.Hour))
	for i := 0; i < 5; i++ {
		_, err := s.IncrementDrawParticipants(ctx, unlimited.ID)
		require.NoError(t, err)
	}
}

func testCompleteDraw(t *testing.T, s Store) {
	ctx := context.Background()
	mustUser(t, s, "u1", 0)
	draw := mustDraw(t, s, nil, time.Now().Add(time.Hour))

	done, err := s.CompleteDraw(ctx, draw.ID, "u1")
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.WinnerID)
	assert.Equal(t, "u1", *done.WinnerID)

	_, err = s.CompleteDraw(ctx, draw.ID, "u1")
	assert.True(t, errors.Is(err, apperr.ErrAlreadyCompleted))

	_, err = s.IncrementDrawParticipants(ctx, draw.ID)
	assert.True(t, errors.Is(err, apperr.ErrDrawUnavailable))

	_, err = s.CompleteDraw(ctx, 999999, "u1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func testListDraws(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	past := mustDraw(t, s, nil, now.Add(-time.Minute))
	future := mustDraw(t, s, nil, now.Add(time.Hour))
	inactive := mustDraw(t, s, nil, now.Add(-time.Hour))
	_, err := s.SetDrawActive(ctx, inactive.ID, false)
	require.NoError(t, err)

	active, err := s.ListActiveDraws(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, past.ID, active[0].ID)
	assert.Equal(t, future.ID, active[1].ID)

	due, err := s.ListDueDraws(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, past.ID, due[0].ID)

	_, err = s.SetDrawActive(ctx, 999999, true)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func testParticipations(t *testing.T, s Store) {
	ctx := context.Background()
	mustUser(t, s, "u1", 0)
	mustUser(t, s, "u2", 0)
	draw := mustDraw(t, s, nil, time.Now().Add(time.Hour))
	base := time.Now().UTC().Truncate(time.Second)

	for i, userID := range []string{"u1", "u2", "u1"} {
		_, err := s.CreateParticipation(ctx, &model.Participation{
			UserID:         userID,
			DrawID:         draw.ID,
			CoinsSpent:     50,
			ParticipatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, err := s.ListDrawParticipations(ctx, draw.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"u1", "u2", "u1"}, []string{entries[0].UserID, entries[1].UserID, entries[2].UserID})

	mine, err := s.ListUserParticipations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].ParticipatedAt.After(mine[1].ParticipatedAt))

	count, err := s.CountUserDrawParticipations(ctx, "u1", draw.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testTransactions(t *testing.T, s Store) {
	ctx := context.Background()
	mustUser(t, s, "u1", 0)
	base := time.Now().UTC().Truncate(time.Second)

	for i := 1; i <= 3; i++ {
		_, err := s.CreateTransaction(ctx, &model.Transaction{
			UserID:      "u1",
			Type:        model.TxTypeEarn,
			Amount:      int64(i * 10),
			Description: "test credit",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	all, err := s.ListUserTransactions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(30), all[0].Amount, "newest first")

	limited, err := s.ListUserTransactions(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = s.CreateTransaction(ctx, &model.Transaction{UserID: "u1", Type: model.TxTypeEarn, Amount: 0, Description: "zero"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}

func testWinners(t *testing.T, s Store) {
	ctx := context.Background()
	mustUser(t, s, "u1", 0)
	draw := mustDraw(t, s, nil, time.Now().Add(time.Hour))

	_, err := s.GetWinnerByDraw(ctx, draw.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	winner, err := s.CreateWinner(ctx, &model.Winner{UserID: "u1", DrawID: draw.ID, PrizeAmount: draw.PrizeAmount})
	require.NoError(t, err)
	assert.False(t, winner.StatsApplied)

	_, err = s.CreateWinner(ctx, &model.Winner{UserID: "u1", DrawID: draw.ID, PrizeAmount: draw.PrizeAmount})
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	flipped, err := s.MarkWinnerStatsApplied(ctx, winner.ID)
	require.NoError(t, err)
	assert.True(t, flipped)
	flipped, err = s.MarkWinnerStatsApplied(ctx, winner.ID)
	require.NoError(t, err)
	assert.False(t, flipped)

	details, err := s.ListRecentWinners(ctx, 10)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "u1", details[0].User.ID)
	assert.Equal(t, draw.Title, details[0].Draw.Title)
	assert.True(t, details[0].PrizeAmount.Equal(draw.PrizeAmount))
}

func testTopEarners(t *testing.T, s Store) {
	ctx := context.Background()
	for id, earned := range map[string]string{"a": "10", "b": "250.50", "c": "99"} {
		mustUser(t, s, id, 0)
		_, err := s.AddUserStats(ctx, id, model.UserStatsDelta{Earnings: decimal.RequireFromString(earned)})
		require.NoError(t, err)
	}

	top, err := s.ListTopEarners(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].ID)
	assert.Equal(t, "c", top[1].ID)
}

func testWithinTxRollback(t *testing.T, s Store) {
	ctx := context.Background()
	mustUser(t, s, "u1", 100)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.AdjustUserBalance(ctx, "u1", -30); err != nil {
			return err
		}
		if _, err := tx.CreateTransaction(ctx, &model.Transaction{UserID: "u1", Type: model.TxTypeSpend, Amount: 30, Description: "rolled back"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), user.CoinBalance)

	txs, err := s.ListUserTransactions(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func testWithinTxCommit(t *testing.T, s Store) {
	ctx := context.Background()
	mustUser(t, s, "u1", 100)

	err := s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.GetUserForUpdate(ctx, "u1"); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return tx.WithinTx(ctx, func(ctx context.Context, inner Store) error {
			_, err := inner.AdjustUserBalance(ctx, "u1", 25)
			return err
		})
	})
	require.NoError(t, err)

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(125), user.CoinBalance)
}
