package ports

import (
	"context"
	"time"

	"tutor-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EarningsRepository defines persistence operations for the earnings ledger.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type EarningsRepository interface {
	GetByActorID(ctx context.Context, actorID uuid.UUID) (*domain.Earnings, error)
	GetByActorIDForUpdate(ctx context.Context, tx pgx.Tx, actorID uuid.UUID) (*domain.Earnings, error)
	// EnsureExists inserts a zero-balance row unless one already exists.
	EnsureExists(ctx context.Context, tx pgx.Tx, actorID uuid.UUID, currency string) error
	// Upsert creates the row if missing, otherwise overwrites every balance field.
	Upsert(ctx context.Context, tx pgx.Tx, e *domain.Earnings) error
	UpdateBalances(ctx context.Context, tx pgx.Tx, e *domain.Earnings) error
	// ListEligibleForPayout returns actors of the given role whose wallet balance
	// reaches threshold and who have no non-terminal payout request.
	ListEligibleForPayout(ctx context.Context, actorType string, threshold int64) ([]*domain.Earnings, error)
}

// WalletRepository defines persistence operations for the wallet representation.
type WalletRepository interface {
	GetByActorID(ctx context.Context, actorID uuid.UUID) (*domain.Wallet, error)
	GetByActorIDForUpdate(ctx context.Context, tx pgx.Tx, actorID uuid.UUID) (*domain.Wallet, error)
	// Upsert creates the row if missing, otherwise overwrites every balance
	// field, and stamps last_synced_at.
	Upsert(ctx context.Context, tx pgx.Tx, w *domain.Wallet, syncedAt time.Time) error
}

// PayoutRepository defines persistence operations for payout requests.
type PayoutRepository interface {
	// Create returns domain.ErrPayoutInFlight when the actor already has a
	// non-terminal request.
	Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error
	HasOpenRequest(ctx context.Context, tx pgx.Tx, actorID uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error)
	ListByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]*domain.PayoutRequest, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error
}

// PaymentMethodRepository reads actors' payout destinations.
type PaymentMethodRepository interface {
	// ListActiveByActor returns active methods, oldest first.
	ListActiveByActor(ctx context.Context, actorID uuid.UUID) ([]*domain.PaymentMethod, error)
}

// SettingsReader reads values from the key-value settings store.
type SettingsReader interface {
	// GetInt64 returns found=false when the key is absent.
	GetInt64(ctx context.Context, key string) (value int64, found bool, err error)
}

// NotificationRepository persists the database channel of notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification, actorID uuid.UUID, data []byte) error
}

// ContactRepository resolves actors' mail addresses.
type ContactRepository interface {
	GetContacts(ctx context.Context, actorIDs []uuid.UUID) ([]domain.Contact, error)
}

// WebhookEventRepository records verified provider callbacks.
type WebhookEventRepository interface {
	// Insert returns false when the provider event id was already recorded.
	Insert(ctx context.Context, ev *domain.WebhookEvent) (bool, error)
}

// AuditRepository persists back-office audit records.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
