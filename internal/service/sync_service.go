package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrUnknownSyncKind is returned for jobs whose kind no handler understands.
var ErrUnknownSyncKind = errors.New("unknown sync kind")

// SyncServiceImpl implements ports.SyncService. It is the only code path
// that writes the wallet representation.
type SyncServiceImpl struct {
	earningsRepo ports.EarningsRepository
	walletRepo   ports.WalletRepository
	transactor   ports.DBTransactor
	queue        ports.SyncQueue
	log          zerolog.Logger
	now          func() time.Time
}

// NewSyncService creates a new SyncServiceImpl. queue may be nil, in which
// case Enqueue runs the sync inline.
func NewSyncService(
	earningsRepo ports.EarningsRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	queue ports.SyncQueue,
	log zerolog.Logger,
) *SyncServiceImpl {
	return &SyncServiceImpl{
		earningsRepo: earningsRepo,
		walletRepo:   walletRepo,
		transactor:   transactor,
		queue:        queue,
		log:          log,
		now:          time.Now,
	}
}

// SyncEarningsFromWallet finds or creates the actor's earnings and overwrites
// its balance fields with the wallet's, in one transaction.
func (s *SyncServiceImpl) SyncEarningsFromWallet(ctx context.Context, w *domain.Wallet) (*domain.Earnings, error) {
	if w == nil {
		return nil, errors.New("sync earnings: nil wallet")
	}

	var out *domain.Earnings
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = s.writeEarnings(ctx, tx, w)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("actor_id", w.ActorID.String()).Msg("Earnings sync failed")
		return nil, err
	}
	return out, nil
}

// SyncWalletFromEarnings finds or creates the actor's wallet, overwrites its
// balance fields with the earnings' and stamps last_synced_at.
func (s *SyncServiceImpl) SyncWalletFromEarnings(ctx context.Context, e *domain.Earnings) (*domain.Wallet, error) {
	if e == nil {
		return nil, errors.New("sync wallet: nil earnings")
	}

	var out *domain.Wallet
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = s.writeWallet(ctx, tx, e)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("actor_id", e.ActorID.String()).Msg("Wallet sync failed")
		return nil, err
	}
	return out, nil
}

// HandleJob reloads the job's source row under lock and propagates it. A
// missing source is a no-op. Failures are logged and returned so the queue
// can retry.
func (s *SyncServiceImpl) HandleJob(ctx context.Context, job *domain.SyncJob) error {
	log := s.log.With().
		Str("job_id", job.ID.String()).
		Str("kind", string(job.Kind)).
		Str("actor_id", job.ActorID.String()).
		Int("attempt", job.Attempt).
		Logger()

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		switch job.Kind {
		case domain.SyncWalletFromEarnings:
			e, err := s.earningsRepo.GetByActorIDForUpdate(ctx, tx, job.ActorID)
			if err != nil {
				return err
			}
			if e == nil {
				log.Debug().Msg("No earnings to propagate")
				return nil
			}
			_, err = s.writeWallet(ctx, tx, e)
			return err

		case domain.SyncEarningsFromWallet:
			// Lock order is earnings before wallet on every path.
			if _, err := s.earningsRepo.GetByActorIDForUpdate(ctx, tx, job.ActorID); err != nil {
				return err
			}
			w, err := s.walletRepo.GetByActorIDForUpdate(ctx, tx, job.ActorID)
			if err != nil {
				return err
			}
			if w == nil {
				log.Debug().Msg("No wallet to propagate")
				return nil
			}
			_, err = s.writeEarnings(ctx, tx, w)
			return err

		default:
			return fmt.Errorf("%w %q", ErrUnknownSyncKind, job.Kind)
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("Sync job failed")
		return err
	}

	log.Debug().Msg("Sync job done")
	return nil
}

// Enqueue schedules a sync job for the actor.
func (s *SyncServiceImpl) Enqueue(ctx context.Context, kind domain.SyncKind, actorID uuid.UUID) error {
	job := domain.NewSyncJob(kind, actorID)
	if s.queue == nil {
		return s.HandleJob(ctx, job)
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s sync: %w", kind, err)
	}
	return nil
}

func (s *SyncServiceImpl) writeEarnings(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (*domain.Earnings, error) {
	e := domain.EarningsFromWallet(w)
	if err := s.earningsRepo.Upsert(ctx, tx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SyncServiceImpl) writeWallet(ctx context.Context, tx pgx.Tx, e *domain.Earnings) (*domain.Wallet, error) {
	w := domain.WalletFromEarnings(e)
	existing, err := s.walletRepo.GetByActorIDForUpdate(ctx, tx, e.ActorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		w.ID = existing.ID
		w.CreatedAt = existing.CreatedAt
	}
	if err := s.walletRepo.Upsert(ctx, tx, w, s.now().UTC()); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *SyncServiceImpl) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := fn(dbTx); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
