// Package repository provides the entity store for users, draws,
// participations, transactions and winners.
//
// Two implementations satisfy Store: PostgresStore for production and
// MemoryStore for tests and local runs. Single-entity writes are atomic in
// both; WithinTx groups several writes so that they commit together.
package repository

import (
	"context"
	"time"

	"lucky-draw/internal/model"
)

// UserStore persists accounts.
type UserStore interface {
	// GetUser returns apperr.ErrNotFound if the user does not exist.
	GetUser(ctx context.Context, id string) (*model.User, error)
	// GetUserForUpdate is GetUser that also locks the row until the
	// surrounding transaction ends.
	GetUserForUpdate(ctx context.Context, id string) (*model.User, error)
	// UpsertUser creates the user with initialBalance coins, or refreshes the
	// profile fields of an existing user. Balances and stats are never touched
	// on conflict. Reports whether the user was created.
	UpsertUser(ctx context.Context, profile *model.User, initialBalance int64) (*model.User, bool, error)
	// AdjustUserBalance adds delta to the balance. It fails with
	// apperr.ErrInsufficientFunds if the result would be negative.
	AdjustUserBalance(ctx context.Context, id string, delta int64) (*model.User, error)
	// AddUserStats increments participation/win/earning aggregates.
	AddUserStats(ctx context.Context, id string, delta model.UserStatsDelta) (*model.User, error)
	// UpdateUserCheckIn sets the streak and check-in time if lastCheckIn still
	// equals expectedLast, failing with apperr.ErrConflict otherwise.
	UpdateUserCheckIn(ctx context.Context, id string, streak int, at time.Time, expectedLast *time.Time) (*model.User, error)
	// SetUserVIP sets the VIP flag.
	SetUserVIP(ctx context.Context, id string, vip bool) (*model.User, error)
	// ListTopEarners returns users ordered by total earnings, highest first.
	ListTopEarners(ctx context.Context, limit int) ([]*model.User, error)
}

// DrawStore persists draws.
type DrawStore interface {
	CreateDraw(ctx context.Context, draw *model.Draw) (*model.Draw, error)
	// GetDraw returns apperr.ErrNotFound if the draw does not exist.
	GetDraw(ctx context.Context, id int64) (*model.Draw, error)
	// GetDrawForUpdate is GetDraw that also locks the row until the
	// surrounding transaction ends.
	GetDrawForUpdate(ctx context.Context, id int64) (*model.Draw, error)
	// ListActiveDraws returns active, uncompleted draws by draw time.
	ListActiveDraws(ctx context.Context) ([]*model.Draw, error)
	// ListDueDraws returns active, uncompleted draws whose draw time is not after now.
	ListDueDraws(ctx context.Context, now time.Time) ([]*model.Draw, error)
	// IncrementDrawParticipants adds one participant if the draw is not
	// completed and below capacity; otherwise it fails with
	// apperr.ErrDrawUnavailable or apperr.ErrDrawFull.
	IncrementDrawParticipants(ctx context.Context, id int64) (*model.Draw, error)
	// CompleteDraw marks the draw completed with the given winner. It fails
	// with apperr.ErrAlreadyCompleted if the draw was already completed.
	CompleteDraw(ctx context.Context, id int64, winnerID string) (*model.Draw, error)
	SetDrawActive(ctx context.Context, id int64, active bool) (*model.Draw, error)
}

// ParticipationStore persists draw entries.
type ParticipationStore interface {
	CreateParticipation(ctx context.Context, p *model.Participation) (*model.Participation, error)
	// ListDrawParticipations returns entries in insertion order.
	ListDrawParticipations(ctx context.Context, drawID int64) ([]*model.Participation, error)
	// ListUserParticipations returns entries newest first.
	ListUserParticipations(ctx context.Context, userID string) ([]*model.Participation, error)
	CountUserDrawParticipations(ctx context.Context, userID string, drawID int64) (int, error)
}

// TransactionStore persists the append-only coin ledger.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *model.Transaction) (*model.Transaction, error)
	// ListUserTransactions returns entries newest first; limit <= 0 means all.
	ListUserTransactions(ctx context.Context, userID string, limit int) ([]*model.Transaction, error)
}

// WinnerStore persists winner announcements.
type WinnerStore interface {
	// CreateWinner fails with apperr.ErrConflict if the draw already has a winner.
	CreateWinner(ctx context.Context, w *model.Winner) (*model.Winner, error)
	// GetWinnerByDraw returns apperr.ErrNotFound if the draw has no winner row.
	GetWinnerByDraw(ctx context.Context, drawID int64) (*model.Winner, error)
	// MarkWinnerStatsApplied flips the stats flag and reports whether this
	// call was the one that flipped it.
	MarkWinnerStatsApplied(ctx context.Context, id int64) (bool, error)
	// ListRecentWinners returns winners joined with user and draw, newest first.
	ListRecentWinners(ctx context.Context, limit int) ([]*model.WinnerDetail, error)
}

// Store is the full entity store injected into the services.
type Store interface {
	UserStore
	DrawStore
	ParticipationStore
	TransactionStore
	WinnerStore

	// WithinTx runs fn against a Store whose writes commit together when fn
	// returns nil and are discarded otherwise. Calling WithinTx on the Store
	// passed to fn joins the same transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
