package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
)

const userColumns = `id, email, first_name, last_name, profile_image_url, coin_balance,
	total_participations, total_wins, total_earnings, current_streak, last_check_in,
	is_vip, created_at, updated_at`

// userDest returns scan destinations matching userColumns.
func userDest(u *model.User) []any {
	return []any{
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.ProfileImageURL,
		&u.CoinBalance,
		&u.TotalParticipations,
		&u.TotalWins,
		&u.TotalEarnings,
		&u.CurrentStreak,
		&u.LastCheckIn,
		&u.IsVIP,
		&u.CreatedAt,
		&u.UpdatedAt,
	}
}

func scanUser(row pgx.Row, op string) (*model.User, error) {
	var user model.User
	if err := row.Scan(userDest(&user)...); err != nil {
		return nil, storeErr(op, err)
	}
	return &user, nil
}

// GetUser retrieves a user by id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.q.QueryRow(ctx, query, id), "get user")
}

// GetUserForUpdate retrieves a user by id and locks the row.
func (s *PostgresStore) GetUserForUpdate(ctx context.Context, id string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return scanUser(s.q.QueryRow(ctx, query, id), "get user for update")
}

// UpsertUser creates a user or refreshes its profile fields.
func (s *PostgresStore) UpsertUser(ctx context.Context, profile *model.User, initialBalance int64) (*model.User, bool, error) {
	const query = `
		INSERT INTO users (id, email, first_name, last_name, profile_image_url, coin_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			profile_image_url = EXCLUDED.profile_image_url,
			updated_at = NOW()
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted
	`

	var (
		user     model.User
		inserted bool
	)
	dest := append(userDest(&user), &inserted)
	err := s.q.QueryRow(ctx, query,
		profile.ID,
		profile.Email,
		profile.FirstName,
		profile.LastName,
		profile.ProfileImageURL,
		initialBalance,
	).Scan(dest...)
	if err != nil {
		return nil, false, storeErr("upsert user", err)
	}
	return &user, inserted, nil
}

// AdjustUserBalance adds delta to the user's balance, refusing to go negative.
func (s *PostgresStore) AdjustUserBalance(ctx context.Context, id string, delta int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET coin_balance = coin_balance + $2, updated_at = NOW()
		WHERE id = $1 AND coin_balance + $2 >= 0
		RETURNING ` + userColumns

	user, err := scanUser(s.q.QueryRow(ctx, query, id, delta), "adjust balance")
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	// No row matched: either the user is missing or the balance is too low.
	exists, existsErr := s.userExists(ctx, id)
	if existsErr != nil {
		return nil, existsErr
	}
	if exists {
		return nil, fmt.Errorf("adjust balance of %s by %d: %w", id, delta, apperr.ErrInsufficientFunds)
	}
	return nil, apperr.NotFound("user", id)
}

// AddUserStats increments the user's aggregate stats.
func (s *PostgresStore) AddUserStats(ctx context.Context, id string, delta model.UserStatsDelta) (*model.User, error) {
	const query = `
		UPDATE users
		SET total_participations = total_participations + $2,
			total_wins = total_wins + $3,
			total_earnings = total_earnings + $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.q.QueryRow(ctx, query, id, delta.Participations, delta.Wins, delta.Earnings), "add user stats")
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("user", id)
	}
	return user, err
}

// UpdateUserCheckIn records a check-in if nobody else recorded one since expectedLast.
func (s *PostgresStore) UpdateUserCheckIn(ctx context.Context, id string, streak int, at time.Time, expectedLast *time.Time) (*model.User, error) {
	const query = `
		UPDATE users
		SET current_streak = $2, last_check_in = $3, updated_at = NOW()
		WHERE id = $1 AND last_check_in IS NOT DISTINCT FROM $4
		RETURNING ` + userColumns

	user, err := scanUser(s.q.QueryRow(ctx, query, id, streak, at, expectedLast), "update check-in")
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	exists, existsErr := s.userExists(ctx, id)
	if existsErr != nil {
		return nil, existsErr
	}
	if exists {
		return nil, fmt.Errorf("check-in of %s changed concurrently: %w", id, apperr.ErrConflict)
	}
	return nil, apperr.NotFound("user", id)
}

// SetUserVIP sets the VIP flag.
func (s *PostgresStore) SetUserVIP(ctx context.Context, id string, vip bool) (*model.User, error) {
	const query = `
		UPDATE users SET is_vip = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.q.QueryRow(ctx, query, id, vip), "set vip")
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("user", id)
	}
	return user, err
}

// ListTopEarners retrieves the top N users by total earnings.
func (s *PostgresStore) ListTopEarners(ctx context.Context, limit int) ([]*model.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY total_earnings DESC, total_wins DESC, id ASC
		LIMIT $1
	`

	rows, err := s.q.Query(ctx, query, limit)
	if err != nil {
		return nil, storeErr("list top earners", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(userDest(&user)...); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate users", err)
	}

	return users, nil
}

// userExists checks if a user with the given id exists.
func (s *PostgresStore) userExists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := s.q.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, storeErr("check user existence", err)
	}
	return exists, nil
}
