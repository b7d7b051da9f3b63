package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tutor-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const payoutColumns = `id, request_uuid, actor_id, actor_type, amount, currency, payment_method_id, payment_details,
	status, requested_at, processed_at, processed_by, notes, created_at, updated_at`

// openPayoutIndex is the partial unique index allowing one non-terminal
// request per actor.
const openPayoutIndex = "payout_requests_one_open_per_actor"

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

func scanPayout(row pgx.Row) (*domain.PayoutRequest, error) {
	p := &domain.PayoutRequest{}
	var details []byte
	err := row.Scan(
		&p.ID, &p.RequestUUID, &p.ActorID, &p.ActorType, &p.Amount, &p.Currency,
		&p.PaymentMethodID, &details, &p.Status, &p.RequestedAt, &p.ProcessedAt,
		&p.ProcessedBy, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &p.PaymentDetails); err != nil {
			return nil, fmt.Errorf("decode payment details: %w", err)
		}
	}
	return p, nil
}

// Create inserts a payout request within a transaction. A unique violation on
// the open-request index is reported as domain.ErrPayoutInFlight.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	details, err := json.Marshal(p.PaymentDetails)
	if err != nil {
		return fmt.Errorf("encode payment details: %w", err)
	}

	query := `INSERT INTO payout_requests (id, request_uuid, actor_id, actor_type, amount, currency,
			payment_method_id, payment_details, status, requested_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, query,
		p.ID, p.RequestUUID, p.ActorID, p.ActorType, p.Amount, p.Currency,
		p.PaymentMethodID, details, p.Status, p.RequestedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == openPayoutIndex {
			return domain.ErrPayoutInFlight
		}
		return fmt.Errorf("insert payout request: %w", err)
	}
	return nil
}

// HasOpenRequest reports whether the actor has a non-terminal request.
func (r *PayoutRepo) HasOpenRequest(ctx context.Context, tx pgx.Tx, actorID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM payout_requests WHERE actor_id = $1 AND status = ANY($2))`

	var exists bool
	if err := tx.QueryRow(ctx, query, actorID, nonTerminalStatuses()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open payout request: %w", err)
	}
	return exists, nil
}

// GetByID fetches a payout request by its UUID.
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`

	p, err := scanPayout(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout request by id: %w", err)
	}
	return p, nil
}

// GetByIDForUpdate fetches a payout request with pessimistic locking.
func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1 FOR UPDATE`

	p, err := scanPayout(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout request for update: %w", err)
	}
	return p, nil
}

// ListByActor returns the actor's most recent requests first.
func (r *PayoutRepo) ListByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE actor_id = $1 ORDER BY requested_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payout requests: %w", err)
	}
	defer rows.Close()

	var out []*domain.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout request: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout requests: %w", err)
	}
	return out, nil
}

// UpdateStatus persists the status and processing fields within a transaction.
func (r *PayoutRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	query := `UPDATE payout_requests
		SET status = $1, processed_at = $2, processed_by = $3, notes = $4, updated_at = NOW()
		WHERE id = $5`

	tag, err := tx.Exec(ctx, query, p.Status, p.ProcessedAt, p.ProcessedBy, p.Notes, p.ID)
	if err != nil {
		return fmt.Errorf("update payout status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout request not found: %s", p.ID)
	}
	return nil
}
