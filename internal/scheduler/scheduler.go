// Package scheduler triggers settlement of draws whose draw time has passed.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"lucky-draw/internal/service"
)

// DefaultRunTimeout bounds one settlement pass.
const DefaultRunTimeout = 30 * time.Second

// Settler settles due draws.
type Settler interface {
	SettleDue(ctx context.Context, now time.Time) (*service.SettleDueReport, error)
}

// Scheduler runs the settlement pass on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	settler    Settler
	now        func() time.Time
	runTimeout time.Duration
}

// New creates a Scheduler running settler on a cron schedule, e.g. "@every 1m".
func New(schedule string, settler Settler) (*Scheduler, error) {
	s := &Scheduler{
		// Overlapping passes are skipped; a slow pass delays the next one.
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		settler:    settler,
		now:        time.Now,
		runTimeout: DefaultRunTimeout,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid settle schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("Settlement scheduler started")
}

// Stop halts the schedule and waits for a running pass, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("Settlement scheduler stopped before the running pass finished")
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	report, err := s.settler.SettleDue(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("Settlement pass failed")
		return
	}
	if report == nil || len(report.Settled)+len(report.Deactivated)+len(report.Deferred)+len(report.Failed) == 0 {
		return
	}
	log.Info().
		Ints64("settled", report.Settled).
		Ints64("deactivated", report.Deactivated).
		Ints64("deferred", report.Deferred).
		Ints64("failed", report.Failed).
		Msg("Settlement pass finished")
}
