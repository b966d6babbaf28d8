package repository

import (
	"context"
	"fmt"
	"time"

	"lucky-draw/internal/model"
)

const participationColumns = `id, user_id, draw_id, coins_spent, participated_at`

// CreateParticipation inserts a new draw entry.
func (s *PostgresStore) CreateParticipation(ctx context.Context, p *model.Participation) (*model.Participation, error) {
	const query = `
		INSERT INTO participations (user_id, draw_id, coins_spent, participated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + participationColumns

	at := p.ParticipatedAt
	if at.IsZero() {
		at = time.Now()
	}

	var out model.Participation
	err := s.q.QueryRow(ctx, query, p.UserID, p.DrawID, p.CoinsSpent, at).Scan(
		&out.ID,
		&out.UserID,
		&out.DrawID,
		&out.CoinsSpent,
		&out.ParticipatedAt,
	)
	if err != nil {
		return nil, storeErr("create participation", err)
	}
	return &out, nil
}

// ListDrawParticipations returns all entries of a draw in insertion order.
func (s *PostgresStore) ListDrawParticipations(ctx context.Context, drawID int64) ([]*model.Participation, error) {
	const query = `
		SELECT ` + participationColumns + `
		FROM participations
		WHERE draw_id = $1
		ORDER BY id ASC
	`
	return s.queryParticipations(ctx, "list draw participations", query, drawID)
}

// ListUserParticipations returns all entries of a user, newest first.
func (s *PostgresStore) ListUserParticipations(ctx context.Context, userID string) ([]*model.Participation, error) {
	const query = `
		SELECT ` + participationColumns + `
		FROM participations
		WHERE user_id = $1
		ORDER BY participated_at DESC, id DESC
	`
	return s.queryParticipations(ctx, "list user participations", query, userID)
}

// CountUserDrawParticipations counts how many times a user entered a draw.
func (s *PostgresStore) CountUserDrawParticipations(ctx context.Context, userID string, drawID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM participations WHERE user_id = $1 AND draw_id = $2`

	var count int
	if err := s.q.QueryRow(ctx, query, userID, drawID).Scan(&count); err != nil {
		return 0, storeErr("count participations", err)
	}
	return count, nil
}

func (s *PostgresStore) queryParticipations(ctx context.Context, op, query string, args ...any) ([]*model.Participation, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var out []*model.Participation
	for rows.Next() {
		var p model.Participation
		if err := rows.Scan(&p.ID, &p.UserID, &p.DrawID, &p.CoinsSpent, &p.ParticipatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}
