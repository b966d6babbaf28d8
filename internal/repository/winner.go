package repository

import (
	"context"
	"fmt"
	"time"

	"lucky-draw/internal/model"
)

const winnerColumns = `id, user_id, draw_id, prize_amount, announced_at, celebration_video_url, stats_applied`

// winnerDest returns scan destinations matching winnerColumns.
func winnerDest(w *model.Winner) []any {
	return []any{
		&w.ID,
		&w.UserID,
		&w.DrawID,
		&w.PrizeAmount,
		&w.AnnouncedAt,
		&w.CelebrationVideoURL,
		&w.StatsApplied,
	}
}

// CreateWinner inserts the winner announcement of a draw.
// The unique index on draw_id rejects a second winner.
func (s *PostgresStore) CreateWinner(ctx context.Context, w *model.Winner) (*model.Winner, error) {
	const query = `
		INSERT INTO winners (user_id, draw_id, prize_amount, announced_at, celebration_video_url, stats_applied)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + winnerColumns

	at := w.AnnouncedAt
	if at.IsZero() {
		at = time.Now()
	}

	var out model.Winner
	err := s.q.QueryRow(ctx, query, w.UserID, w.DrawID, w.PrizeAmount, at, w.CelebrationVideoURL, w.StatsApplied).
		Scan(winnerDest(&out)...)
	if err != nil {
		return nil, storeErr("create winner", err)
	}
	return &out, nil
}

// GetWinnerByDraw retrieves the winner row of a draw.
func (s *PostgresStore) GetWinnerByDraw(ctx context.Context, drawID int64) (*model.Winner, error) {
	const query = `SELECT ` + winnerColumns + ` FROM winners WHERE draw_id = $1`

	var w model.Winner
	if err := s.q.QueryRow(ctx, query, drawID).Scan(winnerDest(&w)...); err != nil {
		return nil, storeErr("get winner", err)
	}
	return &w, nil
}

// MarkWinnerStatsApplied records that the winner's stats were updated.
func (s *PostgresStore) MarkWinnerStatsApplied(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE winners SET stats_applied = TRUE WHERE id = $1 AND NOT stats_applied`

	result, err := s.q.Exec(ctx, query, id)
	if err != nil {
		return false, storeErr("mark winner stats applied", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListRecentWinners returns winners joined with their user and draw, newest first.
func (s *PostgresStore) ListRecentWinners(ctx context.Context, limit int) ([]*model.WinnerDetail, error) {
	const query = `
		SELECT
			w.id, w.user_id, w.draw_id, w.prize_amount, w.announced_at, w.celebration_video_url, w.stats_applied,
			u.id, u.email, u.first_name, u.last_name, u.profile_image_url, u.coin_balance,
			u.total_participations, u.total_wins, u.total_earnings, u.current_streak, u.last_check_in,
			u.is_vip, u.created_at, u.updated_at,
			d.id, d.title, d.description, d.prize_amount, d.entry_fee, d.max_participants,
			d.current_participants, d.draw_time, d.is_active, d.is_completed, d.winner_id, d.prize_image_url, d.created_at
		FROM winners w
		JOIN users u ON u.id = w.user_id
		JOIN draws d ON d.id = w.draw_id
		ORDER BY w.announced_at DESC, w.id DESC
		LIMIT $1
	`

	rows, err := s.q.Query(ctx, query, limit)
	if err != nil {
		return nil, storeErr("list recent winners", err)
	}
	defer rows.Close()

	var winners []*model.WinnerDetail
	for rows.Next() {
		var detail model.WinnerDetail
		dest := append(winnerDest(&detail.Winner), userDest(&detail.User)...)
		dest = append(dest, drawDest(&detail.Draw)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan winner: %w", err)
		}
		winners = append(winners, &detail)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate winners", err)
	}

	return winners, nil
}
