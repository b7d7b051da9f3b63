package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tutor-ledger/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler triggers the automatic payout run on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	payouts ports.PayoutService
	timeout time.Duration
	log     zerolog.Logger

	mu   sync.RWMutex
	base context.Context
}

// NewScheduler parses spec (standard five-field cron or a descriptor such
// as "@every 1h") and registers the payout run. A run still in progress
// when the next tick fires causes that tick to be skipped.
func NewScheduler(spec string, payouts ports.PayoutService, timeout time.Duration, log zerolog.Logger) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	s := &Scheduler{
		payouts: payouts,
		timeout: timeout,
		log:     log,
		base:    context.Background(),
	}

	cl := cronLogger{log: log}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid payout schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// a run in progress to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	s.cron.Start()
	if entries := s.cron.Entries(); len(entries) > 0 {
		s.log.Info().Time("next_run", entries[0].Next).Msg("Payout scheduler started")
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Payout scheduler stopped")
	return nil
}

func (s *Scheduler) tick() {
	s.mu.RLock()
	base := s.base
	s.mu.RUnlock()
	if base.Err() != nil {
		return
	}
	_ = s.RunOnce(base)
}

// RunOnce performs a single bounded payout run. Errors are logged and
// returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.payouts.RunAutoPayouts(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Scheduled payout run failed")
		return err
	}
	s.log.Info().
		Int("eligible", report.Eligible).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Scheduled payout run done")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
