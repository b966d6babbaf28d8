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

const drawColumns = `id, title, description, prize_amount, entry_fee, max_participants,
	current_participants, draw_time, is_active, is_completed, winner_id, prize_image_url, created_at`

// drawDest returns scan destinations matching drawColumns.
func drawDest(d *model.Draw) []any {
	return []any{
		&d.ID,
		&d.Title,
		&d.Description,
		&d.PrizeAmount,
		&d.EntryFee,
		&d.MaxParticipants,
		&d.CurrentParticipants,
		&d.DrawTime,
		&d.IsActive,
		&d.IsCompleted,
		&d.WinnerID,
		&d.PrizeImageURL,
		&d.CreatedAt,
	}
}

func scanDraw(row pgx.Row, op string) (*model.Draw, error) {
	var draw model.Draw
	if err := row.Scan(drawDest(&draw)...); err != nil {
		return nil, storeErr(op, err)
	}
	return &draw, nil
}

func (s *PostgresStore) queryDraws(ctx context.Context, op, query string, args ...any) ([]*model.Draw, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var draws []*model.Draw
	for rows.Next() {
		var draw model.Draw
		if err := rows.Scan(drawDest(&draw)...); err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		draws = append(draws, &draw)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return draws, nil
}

// CreateDraw inserts a new draw. Participant count, completion and winner
// always start empty.
func (s *PostgresStore) CreateDraw(ctx context.Context, draw *model.Draw) (*model.Draw, error) {
	const query = `
		INSERT INTO draws (title, description, prize_amount, entry_fee, max_participants,
			draw_time, is_active, prize_image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING ` + drawColumns

	return scanDraw(s.q.QueryRow(ctx, query,
		draw.Title,
		draw.Description,
		draw.PrizeAmount,
		draw.EntryFee,
		draw.MaxParticipants,
		draw.DrawTime,
		draw.IsActive,
		draw.PrizeImageURL,
	), "create draw")
}

// GetDraw retrieves a draw by id.
func (s *PostgresStore) GetDraw(ctx context.Context, id int64) (*model.Draw, error) {
	const query = `SELECT ` + drawColumns + ` FROM draws WHERE id = $1`
	return scanDraw(s.q.QueryRow(ctx, query, id), "get draw")
}

// GetDrawForUpdate retrieves a draw by id and locks the row.
func (s *PostgresStore) GetDrawForUpdate(ctx context.Context, id int64) (*model.Draw, error) {
	const query = `SELECT ` + drawColumns + ` FROM draws WHERE id = $1 FOR UPDATE`
	return scanDraw(s.q.QueryRow(ctx, query, id), "get draw for update")
}

// ListActiveDraws returns draws that are still accepting or awaiting settlement.
func (s *PostgresStore) ListActiveDraws(ctx context.Context) ([]*model.Draw, error) {
	const query = `
		SELECT ` + drawColumns + `
		FROM draws
		WHERE is_active AND NOT is_completed
		ORDER BY draw_time ASC, id ASC
	`
	return s.queryDraws(ctx, "list active draws", query)
}

// ListDueDraws returns draws whose resolution instant has been reached.
func (s *PostgresStore) ListDueDraws(ctx context.Context, now time.Time) ([]*model.Draw, error) {
	const query = `
		SELECT ` + drawColumns + `
		FROM draws
		WHERE is_active AND NOT is_completed AND draw_time <= $1
		ORDER BY draw_time ASC, id ASC
	`
	return s.queryDraws(ctx, "list due draws", query, now)
}

// IncrementDrawParticipants adds one participant under the capacity guard.
func (s *PostgresStore) IncrementDrawParticipants(ctx context.Context, id int64) (*model.Draw, error) {
	const query = `
		UPDATE draws
		SET current_participants = current_participants + 1
		WHERE id = $1
		  AND NOT is_completed
		  AND (max_participants IS NULL OR current_participants < max_participants)
		RETURNING ` + drawColumns

	draw, err := scanDraw(s.q.QueryRow(ctx, query, id), "increment participants")
	if err == nil {
		return draw, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	current, err := s.GetDraw(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("draw", id)
		}
		return nil, err
	}
	if current.IsCompleted {
		return nil, fmt.Errorf("draw %d: %w", id, apperr.ErrDrawUnavailable)
	}
	return nil, fmt.Errorf("draw %d: %w", id, apperr.ErrDrawFull)
}

// CompleteDraw marks the draw completed. Only the first call succeeds.
func (s *PostgresStore) CompleteDraw(ctx context.Context, id int64, winnerID string) (*model.Draw, error) {
	const query = `
		UPDATE draws
		SET is_completed = TRUE, winner_id = $2
		WHERE id = $1 AND NOT is_completed
		RETURNING ` + drawColumns

	draw, err := scanDraw(s.q.QueryRow(ctx, query, id, winnerID), "complete draw")
	if err == nil {
		return draw, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	if _, err := s.GetDraw(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("draw", id)
		}
		return nil, err
	}
	return nil, fmt.Errorf("draw %d: %w", id, apperr.ErrAlreadyCompleted)
}

// SetDrawActive toggles the admin availability flag.
func (s *PostgresStore) SetDrawActive(ctx context.Context, id int64, active bool) (*model.Draw, error) {
	const query = `
		UPDATE draws SET is_active = $2
		WHERE id = $1
		RETURNING ` + drawColumns

	draw, err := scanDraw(s.q.QueryRow(ctx, query, id, active), "set draw active")
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("draw", id)
	}
	return draw, err
}
