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

// Check-in bonus parameters.
const (
	checkInBaseBonus   int64 = 25
	checkInWeeklyBonus int64 = 5
	checkInMaxBonus    int64 = 50
)

// CheckInBonus returns the coins granted for a check-in that reaches streak days.
func CheckInBonus(streak int) int64 {
	bonus := checkInBaseBonus + int64(streak/7)*checkInWeeklyBonus
	if bonus > checkInMaxBonus {
		return checkInMaxBonus
	}
	return bonus
}

// CheckInResult is the outcome of a successful check-in.
type CheckInResult struct {
	BonusCoins int64 `json:"bonusCoins"`
	NewStreak  int   `json:"newStreak"`
	NewBalance int64 `json:"newBalance"`
}

// CheckInStatus describes whether a user may check in today.
type CheckInStatus struct {
	CanCheckIn    bool       `json:"canCheckIn"`
	CurrentStreak int        `json:"currentStreak"`
	NextStreak    int        `json:"nextStreak"`
	NextBonus     int64      `json:"nextBonus"`
	LastCheckIn   *time.Time `json:"lastCheckIn,omitempty"`
}

// AccountService handles user account operations.
type AccountService struct {
	store          repository.Store
	userLock       *lock.UserLock
	lockTimeout    time.Duration
	initialBalance int64
	location       *time.Location
	now            Clock
}

// NewAccountService creates a new AccountService instance.
// Calendar days for check-in are evaluated in location.
func NewAccountService(
	store repository.Store,
	userLock *lock.UserLock,
	lockTimeout time.Duration,
	initialBalance int64,
	location *time.Location,
	now Clock,
) *AccountService {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &AccountService{
		store:          store,
		userLock:       userLock,
		lockTimeout:    lockTimeout,
		initialBalance: initialBalance,
		location:       location,
		now:            now,
	}
}

// EnsureUser ensures a user exists, creating one if necessary.
// Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, profile *model.User) (*model.User, bool, error) {
	if profile == nil || profile.ID == "" {
		return nil, false, apperr.ErrUnauthenticated
	}

	user, created, err := s.store.UpsertUser(ctx, profile, s.initialBalance)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	if created {
		log.Info().
			Str("user_id", user.ID).
			Int64("balance", user.CoinBalance).
			Msg("User created")
	}
	return user, created, nil
}

// GetUser retrieves a user by id.
func (s *AccountService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return s.store.GetUser(ctx, userID)
}

// CheckIn grants the daily bonus. It is allowed once per calendar day; the
// streak continues only when the previous check-in was on the previous day.
func (s *AccountService) CheckIn(ctx context.Context, userID string) (*CheckInResult, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}

	var result *CheckInResult
	err := withKeyLock(ctx, s.userLock, userID, s.lockTimeout, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			user, err := tx.GetUserForUpdate(ctx, userID)
			if err != nil {
				return err
			}

			now := s.now()
			if checkedInToday(user.LastCheckIn, now, s.location) {
				return apperr.ErrAlreadyCheckedIn
			}

			streak := nextStreak(user.LastCheckIn, user.CurrentStreak, now, s.location)
			bonus := CheckInBonus(streak)

			if _, err := tx.UpdateUserCheckIn(ctx, userID, streak, now, user.LastCheckIn); err != nil {
				return err
			}

			description := fmt.Sprintf("Daily check-in bonus (%d day streak)", streak)
			_, updated, err := credit(ctx, tx, userID, bonus, model.TxTypeDailyBonus, description, nil)
			if err != nil {
				return err
			}

			result = &CheckInResult{
				BonusCoins: bonus,
				NewStreak:  streak,
				NewBalance: updated.CoinBalance,
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyCheckedIn) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to check in: %w", err)
	}

	metrics.RecordCoins(model.TxTypeDailyBonus, result.BonusCoins)
	log.Info().
		Str("user_id", userID).
		Int("streak", result.NewStreak).
		Int64("bonus", result.BonusCoins).
		Msg("Daily check-in")
	return result, nil
}

// CheckInStatus reports whether the user can check in today and what the
// next check-in would grant.
func (s *AccountService) CheckInStatus(ctx context.Context, userID string) (*CheckInStatus, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := &CheckInStatus{
		CanCheckIn:    !checkedInToday(user.LastCheckIn, now, s.location),
		CurrentStreak: user.CurrentStreak,
		LastCheckIn:   user.LastCheckIn,
	}
	if status.CanCheckIn {
		status.NextStreak = nextStreak(user.LastCheckIn, user.CurrentStreak, now, s.location)
	} else {
		// Tomorrow continues today's streak.
		status.NextStreak = user.CurrentStreak + 1
	}
	status.NextBonus = CheckInBonus(status.NextStreak)
	return status, nil
}

// daysBetween returns the number of calendar days from a to b in loc.
func daysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	dayA := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	dayB := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(dayB.Sub(dayA).Hours() / 24)
}

// checkedInToday reports whether last falls on now's calendar day (or later).
func checkedInToday(last *time.Time, now time.Time, loc *time.Location) bool {
	return last != nil && daysBetween(*last, now, loc) <= 0
}

// nextStreak returns the streak a check-in at now would reach.
func nextStreak(last *time.Time, current int, now time.Time, loc *time.Location) int {
	if last != nil && daysBetween(*last, now, loc) == 1 {
		return current + 1
	}
	return 1
}

// SetVIP grants or revokes VIP status.
func (s *AccountService) SetVIP(ctx context.Context, userID string, vip bool) (*model.User, error) {
	if userID == "" {
		return nil, apperr.Invalid("user id is required")
	}
	user, err := s.store.SetUserVIP(ctx, userID, vip)
	if err != nil {
		return nil, fmt.Errorf("failed to set vip: %w", err)
	}
	log.Info().Str("user_id", userID).Bool("vip", vip).Msg("VIP status changed")
	return user, nil
}
