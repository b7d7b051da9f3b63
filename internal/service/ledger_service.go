package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"
	"tutor-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Payout listing bounds.
const (
	DefaultPayoutListLimit = 20
	MaxPayoutListLimit     = 100
)

// LedgerServiceImpl implements ports.LedgerService. Every write locks the
// earnings row, mutates it and enqueues a wallet sync after commit.
type LedgerServiceImpl struct {
	earningsRepo ports.EarningsRepository
	walletRepo   ports.WalletRepository
	payoutRepo   ports.PayoutRepository
	transactor   ports.DBTransactor
	syncSvc      ports.SyncService
	notifier     ports.Notifier
	currency     string
	log          zerolog.Logger
	now          func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl. currency is used when a
// credit does not name one.
func NewLedgerService(
	earningsRepo ports.EarningsRepository,
	walletRepo ports.WalletRepository,
	payoutRepo ports.PayoutRepository,
	transactor ports.DBTransactor,
	syncSvc ports.SyncService,
	notifier ports.Notifier,
	currency string,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		earningsRepo: earningsRepo,
		walletRepo:   walletRepo,
		payoutRepo:   payoutRepo,
		transactor:   transactor,
		syncSvc:      syncSvc,
		notifier:     notifier,
		currency:     strings.ToUpper(currency),
		log:          log,
		now:          time.Now,
	}
}

// CreditEarning adds a session earning to total_earned and wallet_balance,
// creating the earnings row on first credit.
func (s *LedgerServiceImpl) CreditEarning(ctx context.Context, req ports.CreditRequest) (*domain.Earnings, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.currency
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.earningsRepo.EnsureExists(ctx, dbTx, req.ActorID, currency); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	e, err := s.earningsRepo.GetByActorIDForUpdate(ctx, dbTx, req.ActorID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if e == nil {
		return nil, apperror.ErrNotFound("Earnings")
	}
	if e.Currency != "" && e.Currency != currency {
		return nil, apperror.ErrCurrencyMismatch(e.Currency, currency)
	}

	e.TotalEarned += req.Amount
	e.WalletBalance += req.Amount
	if err := s.earningsRepo.UpdateBalances(ctx, dbTx, e); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.enqueueWalletSync(ctx, e.ActorID)

	s.log.Info().
		Str("actor_id", e.ActorID.String()).
		Int64("amount", req.Amount).
		Int64("wallet_balance", e.WalletBalance).
		Msg("Earning credited")

	return e, nil
}

// SettlePayout moves a payout request forward and applies its balance effect:
// completed releases the reservation into total_withdrawn, rejected returns
// it to wallet_balance.
func (s *LedgerServiceImpl) SettlePayout(ctx context.Context, req ports.SettleRequest) (*domain.PayoutRequest, error) {
	current, err := s.payoutRepo.GetByID(ctx, req.RequestID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if current == nil {
		return nil, apperror.ErrNotFound("Payout request")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock order is earnings before payout request.
	e, err := s.earningsRepo.GetByActorIDForUpdate(ctx, dbTx, current.ActorID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	p, err := s.payoutRepo.GetByIDForUpdate(ctx, dbTx, req.RequestID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Payout request")
	}
	if !p.Status.CanTransitionTo(req.Status) {
		return nil, apperror.ErrInvalidTransition(p.Status, req.Status)
	}

	moved := req.Status == domain.PayoutStatusCompleted || req.Status == domain.PayoutStatusRejected
	if moved {
		if e == nil || e.PendingPayouts < p.Amount {
			return nil, apperror.InternalError(fmt.Errorf("payout %s: reservation of %d not found on ledger", p.ID, p.Amount))
		}
		e.PendingPayouts -= p.Amount
		if req.Status == domain.PayoutStatusCompleted {
			e.TotalWithdrawn += p.Amount
		} else {
			e.WalletBalance += p.Amount
		}
	}

	now := s.now().UTC()
	p.Status = req.Status
	p.ProcessedAt = &now
	p.ProcessedBy = &req.ProcessedBy
	if req.Notes != nil {
		p.Notes = req.Notes
	}
	p.UpdatedAt = now

	if err := s.payoutRepo.UpdateStatus(ctx, dbTx, p); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if moved {
		if err := s.earningsRepo.UpdateBalances(ctx, dbTx, e); err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	log := s.log.With().
		Str("request_uuid", p.RequestUUID).
		Str("status", string(p.Status)).
		Str("processed_by", req.ProcessedBy).
		Logger()
	log.Info().Msg("Payout request settled")

	if moved {
		s.enqueueWalletSync(ctx, p.ActorID)
		s.notifySettled(ctx, p, log)
	}
	return p, nil
}

// GetBalances returns both representations of the actor's balance.
func (s *LedgerServiceImpl) GetBalances(ctx context.Context, actorID uuid.UUID) (*domain.Balances, error) {
	e, err := s.earningsRepo.GetByActorID(ctx, actorID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if e == nil {
		return nil, apperror.ErrNotFound("Earnings")
	}
	w, err := s.walletRepo.GetByActorID(ctx, actorID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return domain.NewBalances(e, w), nil
}

// ListPayouts returns the actor's most recent payout requests.
func (s *LedgerServiceImpl) ListPayouts(ctx context.Context, actorID uuid.UUID, limit int) ([]*domain.PayoutRequest, error) {
	if limit <= 0 {
		limit = DefaultPayoutListLimit
	}
	if limit > MaxPayoutListLimit {
		limit = MaxPayoutListLimit
	}
	out, err := s.payoutRepo.ListByActor(ctx, actorID, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if out == nil {
		out = []*domain.PayoutRequest{}
	}
	return out, nil
}

func (s *LedgerServiceImpl) enqueueWalletSync(ctx context.Context, actorID uuid.UUID) {
	if err := s.syncSvc.Enqueue(ctx, domain.SyncWalletFromEarnings, actorID); err != nil {
		s.log.Warn().Err(err).Str("actor_id", actorID.String()).Msg("Failed to enqueue wallet sync")
	}
}

func (s *LedgerServiceImpl) notifySettled(ctx context.Context, p *domain.PayoutRequest, log zerolog.Logger) {
	if s.notifier == nil {
		return
	}

	title, body := "Payout completed", fmt.Sprintf("Your payout of %s has been sent.", domain.FormatAmount(p.Amount, p.Currency))
	if p.Status == domain.PayoutStatusRejected {
		title = "Payout rejected"
		body = fmt.Sprintf("Your payout of %s was rejected and the amount is back in your balance.", domain.FormatAmount(p.Amount, p.Currency))
		if p.Notes != nil && *p.Notes != "" {
			body += " Reason: " + *p.Notes
		}
	}

	_, err := s.notifier.Dispatch(ctx, domain.NotificationRequest{
		Title:    title,
		Body:     body,
		Type:     domain.NotificationPayoutSettled,
		ActorIDs: []uuid.UUID{p.ActorID},
		Channels: []domain.NotificationChannel{domain.ChannelDatabase, domain.ChannelMail},
		Data: map[string]string{
			"payout_request_id": p.ID.String(),
			"request_uuid":      p.RequestUUID,
			"status":            string(p.Status),
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Settlement notification failed")
	}
}
