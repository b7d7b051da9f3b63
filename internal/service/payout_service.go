package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"
	"tutor-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PayoutOptions configures the automatic payout run.
type PayoutOptions struct {
	ActorType        string
	Currency         string
	ThresholdKey     string
	DefaultThreshold int64
	Concurrency      int
}

func (o PayoutOptions) withDefaults() PayoutOptions {
	if o.ActorType == "" {
		o.ActorType = "teacher"
	}
	if o.ThresholdKey == "" {
		o.ThresholdKey = domain.SettingAutoPayoutThreshold
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	earningsRepo ports.EarningsRepository
	payoutRepo   ports.PayoutRepository
	methodRepo   ports.PaymentMethodRepository
	settings     ports.SettingsReader
	encSvc       ports.EncryptionService
	transactor   ports.DBTransactor
	syncSvc      ports.SyncService
	notifier     ports.Notifier
	opts         PayoutOptions
	log          zerolog.Logger
	now          func() time.Time
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	earningsRepo ports.EarningsRepository,
	payoutRepo ports.PayoutRepository,
	methodRepo ports.PaymentMethodRepository,
	settings ports.SettingsReader,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	syncSvc ports.SyncService,
	notifier ports.Notifier,
	opts PayoutOptions,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		earningsRepo: earningsRepo,
		payoutRepo:   payoutRepo,
		methodRepo:   methodRepo,
		settings:     settings,
		encSvc:       encSvc,
		transactor:   transactor,
		syncSvc:      syncSvc,
		notifier:     notifier,
		opts:         opts.withDefaults(),
		log:          log,
		now:          time.Now,
	}
}

// RunAutoPayouts creates at most one payout request per eligible actor.
// Per-actor failures are recorded in the report and never abort the batch;
// only a failed threshold read or eligibility query is returned as an error.
func (s *PayoutServiceImpl) RunAutoPayouts(ctx context.Context) (*domain.BatchReport, error) {
	report := &domain.BatchReport{StartedAt: s.now().UTC(), Attempts: []domain.PayoutAttempt{}}

	threshold, err := s.threshold(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("read payout threshold: %w", err))
	}
	report.Threshold = threshold

	if threshold <= 0 {
		report.FinishedAt = s.now().UTC()
		s.log.Info().Int64("threshold", threshold).Msg("Automatic payouts disabled, nothing to do")
		return report, nil
	}

	eligible, err := s.earningsRepo.ListEligibleForPayout(ctx, s.opts.ActorType, threshold)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list eligible actors: %w", err))
	}
	report.Eligible = len(eligible)

	attempts := make([]domain.PayoutAttempt, len(eligible))
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, e := range eligible {
		g.Go(func() error {
			attempts[i] = s.attempt(ctx, e.ActorID, threshold)
			return nil
		})
	}
	_ = g.Wait()

	for _, a := range attempts {
		report.Add(a)
	}
	report.FinishedAt = s.now().UTC()

	s.log.Info().
		Int64("threshold", threshold).
		Int("eligible", report.Eligible).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Automatic payout run finished")

	return report, nil
}

// threshold resolves the configured threshold, falling back to the default
// when the settings store has no value.
func (s *PayoutServiceImpl) threshold(ctx context.Context) (int64, error) {
	if s.settings == nil {
		return s.opts.DefaultThreshold, nil
	}
	v, found, err := s.settings.GetInt64(ctx, s.opts.ThresholdKey)
	if err != nil {
		return 0, err
	}
	if !found {
		return s.opts.DefaultThreshold, nil
	}
	return v, nil
}

// attempt runs one actor's payout in isolation and classifies the outcome.
func (s *PayoutServiceImpl) attempt(ctx context.Context, actorID uuid.UUID, threshold int64) (res domain.PayoutAttempt) {
	log := s.log.With().Str("actor_id", actorID.String()).Logger()
	res = domain.PayoutAttempt{ActorID: actorID}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Automatic payout attempt panicked")
			res = domain.PayoutAttempt{ActorID: actorID, Outcome: domain.PayoutOutcomeFailed, Reason: fmt.Sprint(r)}
		}
	}()

	req, err := s.createAutoPayout(ctx, actorID, threshold)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPayoutInFlight), errors.Is(err, domain.ErrBelowThreshold):
		log.Info().Err(err).Msg("Automatic payout skipped")
		res.Outcome = domain.PayoutOutcomeSkipped
		res.Reason = err.Error()
		return res
	default:
		log.Error().Err(err).Msg("Automatic payout failed")
		res.Outcome = domain.PayoutOutcomeFailed
		res.Reason = err.Error()
		return res
	}

	// The request is committed; nothing below may undo it.
	if err := s.syncSvc.Enqueue(ctx, domain.SyncWalletFromEarnings, actorID); err != nil {
		log.Warn().Err(err).Msg("Failed to enqueue wallet sync after payout")
	}
	s.notifyRequested(ctx, req, log)

	log.Info().
		Str("request_uuid", req.RequestUUID).
		Int64("amount", req.Amount).
		Msg("Automatic payout request created")

	res.Outcome = domain.PayoutOutcomeCreated
	res.RequestID = &req.ID
	res.Amount = req.Amount
	return res
}

// createAutoPayout snapshots the payment method, then in one transaction
// locks the earnings row, re-checks eligibility, inserts the request and
// reserves the amount.
func (s *PayoutServiceImpl) createAutoPayout(ctx context.Context, actorID uuid.UUID, threshold int64) (*domain.PayoutRequest, error) {
	methods, err := s.methodRepo.ListActiveByActor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	method := domain.SelectPayoutMethod(methods)
	if method == nil {
		return nil, domain.ErrNoPaymentMethod
	}

	var accountNumber string
	if method.AccountNumberEnc != "" {
		accountNumber, err = s.encSvc.Decrypt(method.AccountNumberEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt account number: %w", err)
		}
	}
	details := domain.NewPaymentDetails(method, accountNumber)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	earnings, err := s.earningsRepo.GetByActorIDForUpdate(ctx, dbTx, actorID)
	if err != nil {
		return nil, fmt.Errorf("lock earnings: %w", err)
	}
	if earnings == nil {
		return nil, fmt.Errorf("earnings for actor %s disappeared", actorID)
	}
	if earnings.WalletBalance < threshold {
		return nil, fmt.Errorf("balance %d: %w", earnings.WalletBalance, domain.ErrBelowThreshold)
	}

	open, err := s.payoutRepo.HasOpenRequest(ctx, dbTx, actorID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, domain.ErrPayoutInFlight
	}

	currency := earnings.Currency
	if currency == "" {
		currency = s.opts.Currency
	}

	now := s.now().UTC()
	req := &domain.PayoutRequest{
		ID:              uuid.New(),
		RequestUUID:     domain.NewRequestUUID(domain.AutoPayoutPrefix, now),
		ActorID:         actorID,
		ActorType:       s.opts.ActorType,
		Amount:          earnings.WalletBalance,
		Currency:        currency,
		PaymentMethodID: method.ID,
		PaymentDetails:  details,
		Status:          domain.PayoutStatusPending,
		RequestedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.payoutRepo.Create(ctx, dbTx, req); err != nil {
		return nil, err
	}

	earnings.WalletBalance -= req.Amount
	earnings.PendingPayouts += req.Amount
	if err := s.earningsRepo.UpdateBalances(ctx, dbTx, earnings); err != nil {
		return nil, fmt.Errorf("reserve payout amount: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payout: %w", err)
	}
	return req, nil
}

// notifyRequested is best-effort: failures are logged only.
func (s *PayoutServiceImpl) notifyRequested(ctx context.Context, req *domain.PayoutRequest, log zerolog.Logger) {
	if s.notifier == nil {
		return
	}

	body := fmt.Sprintf("An automatic payout of %s has been requested", domain.FormatAmount(req.Amount, req.Currency))
	if req.PaymentDetails.AccountNumber != "" {
		body += fmt.Sprintf(" to your account %s", req.PaymentDetails.AccountNumber)
	}
	body += ". You will be notified once it is processed."

	_, err := s.notifier.Dispatch(ctx, domain.NotificationRequest{
		Title:    "Payout request created",
		Body:     body,
		Type:     domain.NotificationPayoutRequested,
		ActorIDs: []uuid.UUID{req.ActorID},
		Channels: []domain.NotificationChannel{domain.ChannelDatabase, domain.ChannelMail},
		Data: map[string]string{
			"payout_request_id": req.ID.String(),
			"request_uuid":      req.RequestUUID,
			"amount":            domain.FormatAmount(req.Amount, req.Currency),
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("request_uuid", req.RequestUUID).Msg("Payout notification failed")
	}
}
