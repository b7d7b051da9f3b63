package postgres

import (
	"context"
	"errors"
	"fmt"

	"tutor-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const earningsColumns = `actor_id, wallet_balance, total_earned, total_withdrawn, pending_payouts, currency, created_at, updated_at`

// EarningsRepo implements ports.EarningsRepository.
type EarningsRepo struct {
	pool Pool
}

// NewEarningsRepo creates a new EarningsRepo.
func NewEarningsRepo(pool Pool) *EarningsRepo {
	return &EarningsRepo{pool: pool}
}

func scanEarnings(row pgx.Row) (*domain.Earnings, error) {
	e := &domain.Earnings{}
	err := row.Scan(
		&e.ActorID, &e.WalletBalance, &e.TotalEarned, &e.TotalWithdrawn,
		&e.PendingPayouts, &e.Currency, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByActorID fetches an earnings record without locking.
func (r *EarningsRepo) GetByActorID(ctx context.Context, actorID uuid.UUID) (*domain.Earnings, error) {
	query := `SELECT ` + earningsColumns + ` FROM teacher_earnings WHERE actor_id = $1`

	e, err := scanEarnings(r.pool.QueryRow(ctx, query, actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get earnings by actor: %w", err)
	}
	return e, nil
}

// GetByActorIDForUpdate fetches an earnings record with pessimistic locking.
// This MUST be called within a transaction.
func (r *EarningsRepo) GetByActorIDForUpdate(ctx context.Context, tx pgx.Tx, actorID uuid.UUID) (*domain.Earnings, error) {
	query := `SELECT ` + earningsColumns + ` FROM teacher_earnings WHERE actor_id = $1 FOR UPDATE`

	e, err := scanEarnings(tx.QueryRow(ctx, query, actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get earnings for update: %w", err)
	}
	return e, nil
}

// EnsureExists inserts a zero-balance record for the actor unless one exists.
// Concurrent callers converge on the same row.
func (r *EarningsRepo) EnsureExists(ctx context.Context, tx pgx.Tx, actorID uuid.UUID, currency string) error {
	query := `INSERT INTO teacher_earnings (actor_id, wallet_balance, total_earned, total_withdrawn, pending_payouts, currency, created_at, updated_at)
		VALUES ($1, 0, 0, 0, 0, $2, NOW(), NOW())
		ON CONFLICT (actor_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, actorID, currency); err != nil {
		return fmt.Errorf("ensure earnings row: %w", err)
	}
	return nil
}

// Upsert inserts the record or overwrites all four balance fields in one statement.
// Currency is only taken on insert.
func (r *EarningsRepo) Upsert(ctx context.Context, tx pgx.Tx, e *domain.Earnings) error {
	query := `INSERT INTO teacher_earnings (actor_id, wallet_balance, total_earned, total_withdrawn, pending_payouts, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (actor_id) DO UPDATE SET
			wallet_balance = EXCLUDED.wallet_balance,
			total_earned = EXCLUDED.total_earned,
			total_withdrawn = EXCLUDED.total_withdrawn,
			pending_payouts = EXCLUDED.pending_payouts,
			updated_at = NOW()`

	_, err := tx.Exec(ctx, query,
		e.ActorID, e.WalletBalance, e.TotalEarned, e.TotalWithdrawn, e.PendingPayouts, e.Currency,
	)
	if err != nil {
		return fmt.Errorf("upsert earnings: %w", err)
	}
	return nil
}

// UpdateBalances writes the balance fields of an existing record within a transaction.
func (r *EarningsRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, e *domain.Earnings) error {
	query := `UPDATE teacher_earnings
		SET wallet_balance = $1, total_earned = $2, total_withdrawn = $3, pending_payouts = $4, updated_at = NOW()
		WHERE actor_id = $5`

	tag, err := tx.Exec(ctx, query, e.WalletBalance, e.TotalEarned, e.TotalWithdrawn, e.PendingPayouts, e.ActorID)
	if err != nil {
		return fmt.Errorf("update earnings balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("earnings not found: %s", e.ActorID)
	}
	return nil
}

// ListEligibleForPayout selects actors of the given role at or above the
// threshold with no payout request in a non-terminal status.
func (r *EarningsRepo) ListEligibleForPayout(ctx context.Context, actorType string, threshold int64) ([]*domain.Earnings, error) {
	query := `SELECT e.actor_id, e.wallet_balance, e.total_earned, e.total_withdrawn, e.pending_payouts, e.currency, e.created_at, e.updated_at
		FROM teacher_earnings e
		JOIN users u ON u.id = e.actor_id
		WHERE u.role = $1
			AND e.wallet_balance >= $2
			AND NOT EXISTS (
				SELECT 1 FROM payout_requests p
				WHERE p.actor_id = e.actor_id AND p.status = ANY($3)
			)
		ORDER BY e.actor_id`

	rows, err := r.pool.Query(ctx, query, actorType, threshold, nonTerminalStatuses())
	if err != nil {
		return nil, fmt.Errorf("list eligible earnings: %w", err)
	}
	defer rows.Close()

	var out []*domain.Earnings
	for rows.Next() {
		e, err := scanEarnings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eligible earnings: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible earnings: %w", err)
	}
	return out, nil
}

func nonTerminalStatuses() []string {
	out := make([]string, 0, len(domain.NonTerminalPayoutStatuses))
	for _, s := range domain.NonTerminalPayoutStatuses {
		out = append(out, string(s))
	}
	return out
}
