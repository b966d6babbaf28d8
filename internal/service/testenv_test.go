package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/lock"
	"lucky-draw/internal/repository"
)

// testClock is a settable clock shared by the store and the services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fixedSource always picks the same index.
type fixedSource int

func (f fixedSource) Intn(int) int { return int(f) }

type testEnv struct {
	store         *repository.MemoryStore
	clock         *testClock
	ledger        *LedgerService
	accounts      *AccountService
	participation *ParticipationService
	settlement    *SettlementService
	query         *QueryService
	ranking       *RankingService
}

type envOptions struct {
	maxEntries int
	random     RandomSource
	location   *time.Location
	start      time.Time
}

type envOption func(*envOptions)

func withMaxEntries(n int) envOption { return func(o *envOptions) { o.maxEntries = n } }
func withRandom(r RandomSource) envOption { return func(o *envOptions) { o.random = r } }
func withLocation(l *time.Location) envOption { return func(o *envOptions) { o.location = l } }

func newTestEnv(opts ...envOption) *testEnv {
	o := envOptions{
		random: fixedSource(0),
		start:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&o)
	}

	clock := newTestClock(o.start)
	store := repository.NewMemoryStore().WithClock(clock.Now)
	userLock := lock.NewUserLock()
	drawLock := lock.NewDrawLock()

	return &testEnv{
		store:         store,
		clock:         clock,
		ledger:        NewLedgerService(store, userLock, time.Second),
		accounts:      NewAccountService(store, userLock, time.Second, 0, o.location, clock.Now),
		participation: NewParticipationService(store, drawLock, userLock, time.Second, o.maxEntries, clock.Now),
		settlement:    NewSettlementService(store, drawLock, time.Second, o.random, clock.Now),
		query:         NewQueryService(store, nil, clock.Now),
		ranking:       NewRankingService(store),
	}
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

// addUser creates a user holding balance coins.
func (e *testEnv) addUser(t require.TestingT, id string, balance int64) *model.User {
	user, _, err := e.store.UpsertUser(context.Background(), &model.User{ID: id, FirstName: strPtr(id)}, balance)
	require.NoError(t, err)
	return user
}

// addDraw creates an active draw closing in one hour.
func (e *testEnv) addDraw(t require.TestingT, fee int64, maxParticipants *int64) *model.Draw {
	draw, err := e.settlement.CreateDraw(context.Background(), NewDraw{
		Title:           "iPhone 15 Pro",
		PrizeAmount:     decimal.RequireFromString("1299.50"),
		EntryFee:        fee,
		MaxParticipants: maxParticipants,
		DrawTime:        e.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return draw
}

func (e *testEnv) balance(t require.TestingT, id string) int64 {
	user, err := e.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return user.CoinBalance
}
