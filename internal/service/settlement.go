package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
	"lucky-draw/internal/pkg/lock"
	"lucky-draw/internal/pkg/metrics"
	"lucky-draw/internal/repository"
)

// RandomSource picks winner indexes. Intn returns a uniform value in [0, n).
type RandomSource interface {
	Intn(n int) int
}

// CryptoSource draws indexes from crypto/rand.
type CryptoSource struct{}

// Intn returns a uniform random int in [0, n).
func (CryptoSource) Intn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return int(v.Int64())
}

// SettlementResult is the outcome of settling a draw.
type SettlementResult struct {
	Winner *model.Winner `json:"winner"`
	Draw   *model.Draw   `json:"draw"`
	// Resumed is set when the draw was already completed and only the
	// missing winner row or stats were applied.
	Resumed bool `json:"resumed"`
}

// SettleDueReport summarizes one SettleDue pass.
type SettleDueReport struct {
	Settled     []int64
	Deactivated []int64
	// Deferred draws hit a transient error and stay due for the next pass.
	Deferred []int64
	Failed   []int64
}

func (r *SettleDueReport) fail(drawID int64, err error, msg string) {
	if apperr.Retryable(err) {
		log.Warn().Err(err).Int64("draw_id", drawID).Msg(msg)
		r.Deferred = append(r.Deferred, drawID)
		return
	}
	log.Error().Err(err).Int64("draw_id", drawID).Msg(msg)
	r.Failed = append(r.Failed, drawID)
}

// MaxPrizeAmount is the largest prize the NUMERIC(10,2) column can hold.
var MaxPrizeAmount = decimal.RequireFromString("99999999.99")

// NewDraw holds the admin-supplied fields of a draw.
type NewDraw struct {
	Title           string          `json:"title"`
	Description     *string         `json:"description,omitempty"`
	PrizeAmount     decimal.Decimal `json:"prizeAmount"`
	EntryFee        int64           `json:"entryFee"`
	MaxParticipants *int64          `json:"maxParticipants,omitempty"`
	DrawTime        time.Time       `json:"drawTime"`
	PrizeImageURL   *string         `json:"prizeImageUrl,omitempty"`
	IsActive        *bool           `json:"isActive,omitempty"`
}

// Validate checks the draw fields.
func (d *NewDraw) Validate() error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return apperr.Invalid("title is required")
	case d.PrizeAmount.IsNegative():
		return apperr.Invalid("prize amount must not be negative")
	case d.PrizeAmount.GreaterThan(MaxPrizeAmount):
		return apperr.Invalid("prize amount must not exceed %s", MaxPrizeAmount)
	case !d.PrizeAmount.Equal(d.PrizeAmount.Round(2)):
		return apperr.Invalid("prize amount must have at most two decimal places")
	case d.EntryFee < 0:
		return apperr.Invalid("entry fee must not be negative")
	case d.MaxParticipants != nil && *d.MaxParticipants < 0:
		return apperr.Invalid("max participants must not be negative")
	case d.DrawTime.IsZero():
		return apperr.Invalid("draw time is required")
	}
	return nil
}

// SettlementService creates draws and selects their winners.
type SettlementService struct {
	store       repository.Store
	drawLock    *lock.DrawLock
	lockTimeout time.Duration
	random      RandomSource
	now         Clock
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(
	store repository.Store,
	drawLock *lock.DrawLock,
	lockTimeout time.Duration,
	random RandomSource,
	now Clock,
) *SettlementService {
	if random == nil {
		random = CryptoSource{}
	}
	if now == nil {
		now = time.Now
	}
	return &SettlementService{
		store:       store,
		drawLock:    drawLock,
		lockTimeout: lockTimeout,
		random:      random,
		now:         now,
	}
}

// CreateDraw validates and stores a new draw.
func (s *SettlementService) CreateDraw(ctx context.Context, in NewDraw) (*model.Draw, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	draw, err := s.store.CreateDraw(ctx, &model.Draw{
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		PrizeAmount:     in.PrizeAmount,
		EntryFee:        in.EntryFee,
		MaxParticipants: in.MaxParticipants,
		DrawTime:        in.DrawTime,
		IsActive:        active,
		PrizeImageURL:   in.PrizeImageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create draw: %w", err)
	}

	log.Info().
		Int64("draw_id", draw.ID).
		Str("title", draw.Title).
		Time("draw_time", draw.DrawTime).
		Msg("Draw created")
	return draw, nil
}

// SetDrawActive toggles whether a draw accepts entries.
func (s *SettlementService) SetDrawActive(ctx context.Context, drawID int64, active bool) (*model.Draw, error) {
	var draw *model.Draw
	err := withKeyLock(ctx, s.drawLock, drawID, s.lockTimeout, func() error {
		var err error
		draw, err = s.store.SetDrawActive(ctx, drawID, active)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("draw_id", drawID).Bool("active", active).Msg("Draw availability changed")
	return draw, nil
}

// Settle selects a winner uniformly at random over the draw's participations
// and completes the draw. A user with N entries has N chances.
//
// Settling an already completed draw never re-selects. It restores a missing
// winner row or unapplied winner stats and reports Resumed, or fails with
// apperr.ErrAlreadyCompleted when nothing is missing.
func (s *SettlementService) Settle(ctx context.Context, drawID int64) (*SettlementResult, error) {
	var result *SettlementResult
	err := withKeyLock(ctx, s.drawLock, drawID, s.lockTimeout, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			draw, err := tx.GetDrawForUpdate(ctx, drawID)
			if err != nil {
				return err
			}
			if draw.IsCompleted {
				result, err = s.resume(ctx, tx, draw)
				return err
			}
			result, err = s.settle(ctx, tx, draw)
			return err
		})
	})
	if err != nil {
		metrics.RecordSettlement(string(apperr.KindOf(err)))
		return nil, err
	}

	outcome := "settled"
	if result.Resumed {
		outcome = "resumed"
	}
	metrics.RecordSettlement(outcome)
	log.Info().
		Int64("draw_id", drawID).
		Str("winner_id", result.Winner.UserID).
		Str("prize", result.Winner.PrizeAmount.String()).
		Bool("resumed", result.Resumed).
		Msg("Draw settled")
	return result, nil
}

func (s *SettlementService) settle(ctx context.Context, tx repository.Store, draw *model.Draw) (*SettlementResult, error) {
	entries, err := tx.ListDrawParticipations(ctx, draw.ID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("draw %d: %w", draw.ID, apperr.ErrNoParticipants)
	}

	idx := s.random.Intn(len(entries))
	if idx < 0 || idx >= len(entries) {
		return nil, fmt.Errorf("random source returned %d for %d entries", idx, len(entries))
	}
	picked := entries[idx]

	// Completion is the single source of truth for "settled".
	completed, err := tx.CompleteDraw(ctx, draw.ID, picked.UserID)
	if err != nil {
		return nil, err
	}

	winner, err := tx.CreateWinner(ctx, &model.Winner{
		UserID:      picked.UserID,
		DrawID:      draw.ID,
		PrizeAmount: draw.PrizeAmount,
		AnnouncedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	if _, err := applyWinnerStats(ctx, tx, winner); err != nil {
		return nil, err
	}

	return &SettlementResult{Winner: winner, Draw: completed}, nil
}

func (s *SettlementService) resume(ctx context.Context, tx repository.Store, draw *model.Draw) (*SettlementResult, error) {
	resumed := false

	winner, err := tx.GetWinnerByDraw(ctx, draw.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if draw.WinnerID == nil {
			return nil, fmt.Errorf("draw %d is completed without a winner id", draw.ID)
		}
		winner, err = tx.CreateWinner(ctx, &model.Winner{
			UserID:      *draw.WinnerID,
			DrawID:      draw.ID,
			PrizeAmount: draw.PrizeAmount,
			AnnouncedAt: s.now(),
		})
		if err != nil {
			return nil, err
		}
		resumed = true
	case err != nil:
		return nil, err
	}

	applied, err := applyWinnerStats(ctx, tx, winner)
	if err != nil {
		return nil, err
	}
	resumed = resumed || applied

	if !resumed {
		return nil, fmt.Errorf("draw %d: %w", draw.ID, apperr.ErrAlreadyCompleted)
	}
	return &SettlementResult{Winner: winner, Draw: draw, Resumed: true}, nil
}

// applyWinnerStats credits the winner's totals once per winner row and
// reports whether this call applied them.
func applyWinnerStats(ctx context.Context, tx repository.Store, winner *model.Winner) (bool, error) {
	if winner.StatsApplied {
		return false, nil
	}
	flipped, err := tx.MarkWinnerStatsApplied(ctx, winner.ID)
	if err != nil || !flipped {
		return false, err
	}
	if _, err := tx.AddUserStats(ctx, winner.UserID, model.UserStatsDelta{
		Wins:     1,
		Earnings: winner.PrizeAmount,
	}); err != nil {
		return false, err
	}
	winner.StatsApplied = true
	return true, nil
}

// SettleDue settles every active draw whose draw time is not after now.
// Draws nobody entered are deactivated; other failures are logged and
// skipped so one bad draw does not block the rest.
func (s *SettlementService) SettleDue(ctx context.Context, now time.Time) (*SettleDueReport, error) {
	due, err := s.store.ListDueDraws(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due draws: %w", err)
	}

	report := &SettleDueReport{}
	for _, draw := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		_, err := s.Settle(ctx, draw.ID)
		switch {
		case err == nil:
			report.Settled = append(report.Settled, draw.ID)
		case errors.Is(err, apperr.ErrNoParticipants):
			if _, err := s.SetDrawActive(ctx, draw.ID, false); err != nil {
				report.fail(draw.ID, err, "Failed to deactivate empty draw")
				continue
			}
			log.Warn().Int64("draw_id", draw.ID).Msg("Draw had no participants, deactivated")
			report.Deactivated = append(report.Deactivated, draw.ID)
		default:
			report.fail(draw.ID, err, "Failed to settle due draw")
		}
	}
	return report, nil
}
