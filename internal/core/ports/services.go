package ports

import (
	"context"
	"time"

	"tutor-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService opens AES-256-GCM sealed payment-method fields. Rows are
// written by the account service, so the ledger only ever decrypts.
type EncryptionService interface {
	Decrypt(ciphertext string) (string, error)
}

// TokenService validates back-office JWTs.
type TokenService interface {
	Generate(operatorID string, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	OperatorID string
	Role       string
}

// AccessTokenCache stores short-lived provider access tokens.
type AccessTokenCache interface {
	Get(ctx context.Context, key string) (string, error) // "" when absent
	Set(ctx context.Context, key string, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// NonceStore remembers one-time values for replay prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// SyncQueue carries balance sync jobs to the worker.
type SyncQueue interface {
	Enqueue(ctx context.Context, job *domain.SyncJob) error
	// Dequeue blocks up to timeout; it returns nil, nil when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.SyncJob, error)
	// Retry schedules the job for redelivery after delay.
	Retry(ctx context.Context, job *domain.SyncJob, delay time.Duration) error
	// PromoteDue moves retries whose delay elapsed back to the ready list.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	DeadLetter(ctx context.Context, job *domain.SyncJob) error
}

// Mailer delivers one message to one contact.
type Mailer interface {
	Send(ctx context.Context, to domain.Contact, subject, text string) error
}

// --- Service Ports (Business Logic) ---

// WebhookVerifier verifies one provider's signing scheme.
type WebhookVerifier interface {
	Provider() domain.WebhookProvider
	Verify(ctx context.Context, vc *domain.VerificationContext) domain.VerificationResult
}

// WebhookGate dispatches verification to the verifier registered for a provider.
type WebhookGate interface {
	Verify(ctx context.Context, vc *domain.VerificationContext) domain.VerificationResult
}

// Notifier dispatches notifications to actors.
type Notifier interface {
	Dispatch(ctx context.Context, req domain.NotificationRequest) (*domain.Notification, error)
}

// PayoutService runs the automatic payout reconciliation.
type PayoutService interface {
	RunAutoPayouts(ctx context.Context) (*domain.BatchReport, error)
}

// SyncService propagates balances between the two representations.
type SyncService interface {
	SyncEarningsFromWallet(ctx context.Context, w *domain.Wallet) (*domain.Earnings, error)
	SyncWalletFromEarnings(ctx context.Context, e *domain.Earnings) (*domain.Wallet, error)
	HandleJob(ctx context.Context, job *domain.SyncJob) error
	Enqueue(ctx context.Context, kind domain.SyncKind, actorID uuid.UUID) error
}

// LedgerService is the single write path for earnings mutations.
type LedgerService interface {
	CreditEarning(ctx context.Context, req CreditRequest) (*domain.Earnings, error)
	SettlePayout(ctx context.Context, req SettleRequest) (*domain.PayoutRequest, error)
	GetBalances(ctx context.Context, actorID uuid.UUID) (*domain.Balances, error)
	ListPayouts(ctx context.Context, actorID uuid.UUID, limit int) ([]*domain.PayoutRequest, error)
}

// CreditRequest holds validated input for an earning credit.
type CreditRequest struct {
	ActorID  uuid.UUID
	Amount   int64
	Currency string
}

// SettleRequest holds validated input for a payout status change.
type SettleRequest struct {
	RequestID   uuid.UUID
	Status      domain.PayoutStatus
	ProcessedBy string
	Notes       *string
}

// AuditService records back-office actions (fire-and-forget).
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
