package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/lock"
	"lucky-draw/internal/repository"
	"lucky-draw/internal/service"
)

type recordingSettler struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (r *recordingSettler) SettleDue(ctx context.Context, now time.Time) (*service.SettleDueReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("settlement pass without deadline")
	}
	r.calls = append(r.calls, now)
	return &service.SettleDueReport{}, r.err
}

func (r *recordingSettler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	_, err := New("every minute please", &recordingSettler{})
	assert.Error(t, err)
}

func TestRunPassesClock(t *testing.T) {
	settler := &recordingSettler{}
	s, err := New("@every 1h", settler)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
	s.run()

	require.Equal(t, 1, settler.count())
	assert.Equal(t, at, settler.calls[0])
}

func TestRunSurvivesErrors(t *testing.T) {
	settler := &recordingSettler{err: errors.New("store unavailable")}
	s, err := New("@every 1h", settler)
	require.NoError(t, err)

	s.run()
	s.run()
	assert.Equal(t, 2, settler.count())
}

func TestScheduleFires(t *testing.T) {
	settler := &recordingSettler{}
	s, err := New("@every 1s", settler)
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return settler.count() > 0 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestRunSettlesDueDraws(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore().WithClock(func() time.Time { return start })
	userLock := lock.NewUserLock()
	drawLock := lock.NewDrawLock()

	settlement := service.NewSettlementService(store, drawLock, time.Second, nil, func() time.Time { return start })
	participation := service.NewParticipationService(store, drawLock, userLock, time.Second, 0, func() time.Time { return start })

	_, _, err := store.UpsertUser(ctx, &model.User{ID: "u1"}, 100)
	require.NoError(t, err)

	newDraw := func(title string) *model.Draw {
		d, err := settlement.CreateDraw(ctx, service.NewDraw{
			Title:       title,
			PrizeAmount: decimal.NewFromInt(500),
			EntryFee:    10,
			DrawTime:    start.Add(time.Hour),
		})
		require.NoError(t, err)
		return d
	}
	entered := newDraw("Headphones")
	empty := newDraw("Smart Watch")

	_, err = participation.Participate(ctx, "u1", entered.ID, 10)
	require.NoError(t, err)

	s, err := New("@every 1m", settlement)
	require.NoError(t, err)

	// Nothing is due yet.
	s.now = func() time.Time { return start }
	s.run()
	got, err := store.GetDraw(ctx, entered.ID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)

	s.now = func() time.Time { return start.Add(2 * time.Hour) }
	s.run()

	got, err = store.GetDraw(ctx, entered.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, "u1", *got.WinnerID)

	got, err = store.GetDraw(ctx, empty.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.IsCompleted)
}
