package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
	"lucky-draw/internal/pkg/lock"
	"lucky-draw/internal/pkg/metrics"
	"lucky-draw/internal/repository"
)

// ParticipationService admits paid entries into draws.
type ParticipationService struct {
	store       repository.Store
	drawLock    *lock.DrawLock
	userLock    *lock.UserLock
	lockTimeout time.Duration
	maxEntries  int
	now         Clock
}

// NewParticipationService creates a new ParticipationService instance.
// maxEntriesPerUser caps how often one user may enter one draw; 0 means
// unlimited.
func NewParticipationService(
	store repository.Store,
	drawLock *lock.DrawLock,
	userLock *lock.UserLock,
	lockTimeout time.Duration,
	maxEntriesPerUser int,
	now Clock,
) *ParticipationService {
	if now == nil {
		now = time.Now
	}
	return &ParticipationService{
		store:       store,
		drawLock:    drawLock,
		userLock:    userLock,
		lockTimeout: lockTimeout,
		maxEntries:  maxEntriesPerUser,
		now:         now,
	}
}

// Participate enters the user into the draw for the draw's stored entry fee.
// claimedEntryFee is what the caller believes the fee is; a mismatch is
// rejected rather than charged.
func (s *ParticipationService) Participate(ctx context.Context, userID string, drawID int64, claimedEntryFee int64) (*model.Participation, error) {
	if userID == "" {
		metrics.RecordParticipation(string(apperr.KindUnauthenticated))
		return nil, apperr.ErrUnauthenticated
	}

	var (
		entry *model.Participation
		draw  *model.Draw
	)
	// Lock order is always draw, then user, for both key locks and rows.
	err := withKeyLock(ctx, s.drawLock, drawID, s.lockTimeout, func() error {
		return withKeyLock(ctx, s.userLock, userID, s.lockTimeout, func() error {
			return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
				var err error
				entry, draw, err = s.admit(ctx, tx, userID, drawID, claimedEntryFee)
				return err
			})
		})
	})
	if err != nil {
		metrics.RecordParticipation(string(apperr.KindOf(err)))
		log.Debug().
			Err(err).
			Str("user_id", userID).
			Int64("draw_id", drawID).
			Msg("Participation rejected")
		return nil, err
	}

	metrics.RecordParticipation("accepted")
	metrics.RecordCoins(model.TxTypeSpend, entry.CoinsSpent)
	log.Info().
		Str("user_id", userID).
		Int64("draw_id", drawID).
		Int64("coins_spent", entry.CoinsSpent).
		Int64("participants", draw.CurrentParticipants).
		Msg("User joined draw")
	return entry, nil
}

// admit checks the preconditions in order and applies the entry. The first
// failing precondition wins.
func (s *ParticipationService) admit(ctx context.Context, tx repository.Store, userID string, drawID int64, claimedEntryFee int64) (*model.Participation, *model.Draw, error) {
	// 1. User exists. The row is locked after the draw row, matching the
	// draw-then-user row order of settlement.
	if _, err := tx.GetUser(ctx, userID); err != nil {
		return nil, nil, err
	}

	// 2. Draw exists
	draw, err := tx.GetDrawForUpdate(ctx, drawID)
	if err != nil {
		return nil, nil, err
	}

	user, err := tx.GetUserForUpdate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	// 3. Claimed fee matches the stored fee
	if claimedEntryFee != draw.EntryFee {
		return nil, nil, apperr.Invalid("entry fee mismatch for draw %d: claimed %d, current %d",
			drawID, claimedEntryFee, draw.EntryFee)
	}

	// 4-5. Draw is active, not completed, and its draw time has not passed
	now := s.now()
	if !draw.IsOpenAt(now) {
		if !draw.IsActive || draw.IsCompleted {
			return nil, nil, fmt.Errorf("draw %d is closed: %w", drawID, apperr.ErrDrawUnavailable)
		}
		return nil, nil, fmt.Errorf("draw %d entry window ended at %s: %w",
			drawID, draw.DrawTime.Format(time.RFC3339), apperr.ErrDrawUnavailable)
	}

	// 6. Capacity
	if draw.IsFull() {
		return nil, nil, fmt.Errorf("draw %d has %d/%d participants: %w",
			drawID, draw.CurrentParticipants, *draw.MaxParticipants, apperr.ErrDrawFull)
	}

	// Per-user entry cap
	if s.maxEntries > 0 {
		count, err := tx.CountUserDrawParticipations(ctx, userID, drawID)
		if err != nil {
			return nil, nil, err
		}
		if count >= s.maxEntries {
			return nil, nil, fmt.Errorf("user %s has %d entries in draw %d: %w",
				userID, count, drawID, apperr.ErrEntryLimitReached)
		}
	}

	// 7. Balance covers the fee
	if user.CoinBalance < draw.EntryFee {
		return nil, nil, fmt.Errorf("balance %d below entry fee %d: %w",
			user.CoinBalance, draw.EntryFee, apperr.ErrInsufficientFunds)
	}

	entry, err := tx.CreateParticipation(ctx, &model.Participation{
		UserID:         userID,
		DrawID:         drawID,
		CoinsSpent:     draw.EntryFee,
		ParticipatedAt: now,
	})
	if err != nil {
		return nil, nil, err
	}

	// Free draws move no coins and leave no ledger entry.
	if draw.EntryFee > 0 {
		if _, _, err := debit(ctx, tx, userID, draw.EntryFee, "Participated in "+draw.Title, &draw.ID); err != nil {
			return nil, nil, err
		}
	}

	if _, err := tx.AddUserStats(ctx, userID, model.UserStatsDelta{Participations: 1}); err != nil {
		return nil, nil, err
	}

	updated, err := tx.IncrementDrawParticipants(ctx, drawID)
	if err != nil {
		if errors.Is(err, apperr.ErrDrawFull) || errors.Is(err, apperr.ErrDrawUnavailable) {
			// The guarded increment disagrees with the checks above.
			return nil, nil, fmt.Errorf("draw %d changed during admission: %w: %v", drawID, apperr.ErrConflict, err)
		}
		return nil, nil, err
	}

	return entry, updated, nil
}

// UserParticipations lists the user's entries, newest first.
func (s *ParticipationService) UserParticipations(ctx context.Context, userID string) ([]*model.Participation, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return s.store.ListUserParticipations(ctx, userID)
}
