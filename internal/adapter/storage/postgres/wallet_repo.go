package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutor-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, actor_id, balance, total_earned, total_withdrawn, pending_payouts, currency, last_synced_at, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.ActorID, &w.Balance, &w.TotalEarned, &w.TotalWithdrawn,
		&w.PendingPayouts, &w.Currency, &w.LastSyncedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// GetByActorID fetches a wallet by actor (non-locking read).
func (r *WalletRepo) GetByActorID(ctx context.Context, actorID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM teacher_wallets WHERE actor_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by actor: %w", err)
	}
	return w, nil
}

// GetByActorIDForUpdate fetches a wallet by actor with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByActorIDForUpdate(ctx context.Context, tx pgx.Tx, actorID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM teacher_wallets WHERE actor_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update by actor: %w", err)
	}
	return w, nil
}

// Upsert inserts the wallet or overwrites its balance fields, stamping
// last_synced_at in the same statement.
func (r *WalletRepo) Upsert(ctx context.Context, tx pgx.Tx, w *domain.Wallet, syncedAt time.Time) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	query := `INSERT INTO teacher_wallets (id, actor_id, balance, total_earned, total_withdrawn, pending_payouts, currency, last_synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (actor_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			total_earned = EXCLUDED.total_earned,
			total_withdrawn = EXCLUDED.total_withdrawn,
			pending_payouts = EXCLUDED.pending_payouts,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = NOW()`

	_, err := tx.Exec(ctx, query,
		w.ID, w.ActorID, w.Balance, w.TotalEarned, w.TotalWithdrawn,
		w.PendingPayouts, w.Currency, syncedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	w.LastSyncedAt = &syncedAt
	return nil
}
