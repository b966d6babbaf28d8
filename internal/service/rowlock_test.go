package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
	"lucky-draw/internal/pkg/lock"
	"lucky-draw/internal/repository"
)

// rowLog records which rows a transaction locks or writes, in order.
type rowLog struct {
	mu   sync.Mutex
	rows []string
}

func (l *rowLog) add(row string) {
	l.mu.Lock()
	l.rows = append(l.rows, row)
	l.mu.Unlock()
}

func (l *rowLog) firstIndex(row string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.rows {
		if r == row {
			return i
		}
	}
	return -1
}

// rowRecordingStore reports row-locking calls to a rowLog. Transactions
// opened through it hand out a recording store as well.
type rowRecordingStore struct {
	repository.Store
	log *rowLog
}

func (s rowRecordingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, rowRecordingStore{Store: tx, log: s.log})
	})
}

func (s rowRecordingStore) GetUserForUpdate(ctx context.Context, id string) (*model.User, error) {
	s.log.add("user")
	return s.Store.GetUserForUpdate(ctx, id)
}

func (s rowRecordingStore) GetDrawForUpdate(ctx context.Context, id int64) (*model.Draw, error) {
	s.log.add("draw")
	return s.Store.GetDrawForUpdate(ctx, id)
}

func (s rowRecordingStore) AddUserStats(ctx context.Context, id string, delta model.UserStatsDelta) (*model.User, error) {
	s.log.add("user")
	return s.Store.AddUserStats(ctx, id, delta)
}

func TestRowLockOrderMatchesSettlement(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addUser(t, "u1", 100)
	draw := env.addDraw(t, 50, nil)

	rows := &rowLog{}
	store := rowRecordingStore{Store: env.store, log: rows}
	drawLock := lock.NewDrawLock()
	participation := NewParticipationService(store, drawLock, lock.NewUserLock(), time.Second, 0, env.clock.Now)

	_, err := participation.Participate(ctx, "u1", draw.ID, 50)
	require.NoError(t, err)
	require.NotEqual(t, -1, rows.firstIndex("user"))
	assert.Less(t, rows.firstIndex("draw"), rows.firstIndex("user"), "participation rows: %v", rows.rows)

	env.clock.Advance(2 * time.Hour)
	rows = &rowLog{}
	settlement := NewSettlementService(rowRecordingStore{Store: env.store, log: rows}, drawLock, time.Second, fixedSource(0), env.clock.Now)
	_, err = settlement.Settle(ctx, draw.ID)
	require.NoError(t, err)
	require.NotEqual(t, -1, rows.firstIndex("user"))
	assert.Less(t, rows.firstIndex("draw"), rows.firstIndex("user"), "settlement rows: %v", rows.rows)
}

func TestParticipateUnknownUserBeforeUnknownDraw(t *testing.T) {
	env := newTestEnv()

	_, err := env.participation.Participate(context.Background(), "ghost", 999, 50)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, err.Error(), "user ghost")
}
