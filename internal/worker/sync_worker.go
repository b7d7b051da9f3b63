package worker

import (
	"context"
	"errors"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultRetryIntervals is the delay before each redelivery of a failed job.
// Attempts past the end reuse the last interval.
var DefaultRetryIntervals = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// JobHandler applies one sync job.
type JobHandler interface {
	HandleJob(ctx context.Context, job *domain.SyncJob) error
}

// SyncWorkerOptions tunes the worker loop.
type SyncWorkerOptions struct {
	MaxAttempts    int
	PollInterval   time.Duration
	RetryIntervals []time.Duration
}

func (o SyncWorkerOptions) withDefaults() SyncWorkerOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if len(o.RetryIntervals) == 0 {
		o.RetryIntervals = DefaultRetryIntervals
	}
	return o
}

// SyncWorker consumes the sync queue. Failed jobs are retried with backoff
// and dead-lettered after MaxAttempts.
type SyncWorker struct {
	queue   ports.SyncQueue
	handler JobHandler
	opts    SyncWorkerOptions
	log     zerolog.Logger
	now     func() time.Time
}

// NewSyncWorker creates a new SyncWorker.
func NewSyncWorker(queue ports.SyncQueue, handler JobHandler, opts SyncWorkerOptions, log zerolog.Logger) *SyncWorker {
	return &SyncWorker{
		queue:   queue,
		handler: handler,
		opts:    opts.withDefaults(),
		log:     log,
		now:     time.Now,
	}
}

// Run consumes jobs and promotes due retries until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) error {
	w.log.Info().
		Int("max_attempts", w.opts.MaxAttempts).
		Dur("poll_interval", w.opts.PollInterval).
		Msg("Sync worker started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.consume(ctx) })
	g.Go(func() error { return w.promote(ctx) })
	err := g.Wait()

	w.log.Info().Msg("Sync worker stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *SyncWorker) consume(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.queue.Dequeue(ctx, w.opts.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error().Err(err).Msg("Failed to dequeue sync job")
			if !sleep(ctx, w.opts.PollInterval) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			continue
		}
		w.Process(ctx, job)
	}
}

func (w *SyncWorker) promote(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.queue.PromoteDue(ctx, w.now())
			if err != nil {
				if ctx.Err() == nil {
					w.log.Warn().Err(err).Msg("Failed to promote due sync retries")
				}
				continue
			}
			if n > 0 {
				w.log.Debug().Int("count", n).Msg("Promoted sync retries")
			}
		}
	}
}

// queueWriteTimeout bounds retry and dead-letter writes, which run detached
// from the worker context so a failed job survives shutdown.
const queueWriteTimeout = 5 * time.Second

// Process handles one job and schedules its retry or dead-letters it on
// failure. It never returns an error; queue failures are logged.
func (w *SyncWorker) Process(ctx context.Context, job *domain.SyncJob) {
	err := w.handler.HandleJob(ctx, job)
	if err == nil {
		return
	}

	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queueWriteTimeout)
	defer cancel()

	log := w.log.With().
		Str("job_id", job.ID.String()).
		Str("kind", string(job.Kind)).
		Str("actor_id", job.ActorID.String()).
		Logger()

	// Interrupted by shutdown: hand the job back without spending an attempt.
	if ctx.Err() != nil {
		if rErr := w.queue.Retry(qctx, job, 0); rErr != nil {
			log.Error().Err(rErr).Msg("Failed to requeue interrupted sync job")
			return
		}
		log.Info().Msg("Sync job interrupted by shutdown, requeued")
		return
	}

	job.Attempt++
	job.LastError = err.Error()
	log = log.With().Int("attempt", job.Attempt).Logger()

	if job.Attempt >= w.opts.MaxAttempts {
		if dlErr := w.queue.DeadLetter(qctx, job); dlErr != nil {
			log.Error().Err(dlErr).Msg("Failed to dead-letter sync job")
			return
		}
		log.Error().Err(err).Msg("Sync job exhausted its attempts")
		return
	}

	delay := w.retryDelay(job.Attempt)
	if rErr := w.queue.Retry(qctx, job, delay); rErr != nil {
		log.Error().Err(rErr).Msg("Failed to schedule sync retry")
		return
	}
	log.Warn().Err(err).Dur("retry_in", delay).Msg("Sync job failed, retry scheduled")
}

// retryDelay returns the wait before the given (1-based) retry.
func (w *SyncWorker) retryDelay(attempt int) time.Duration {
	i := attempt - 1
	if i < 0 {
		i = 0
	}
	if i >= len(w.opts.RetryIntervals) {
		i = len(w.opts.RetryIntervals) - 1
	}
	return w.opts.RetryIntervals[i]
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
