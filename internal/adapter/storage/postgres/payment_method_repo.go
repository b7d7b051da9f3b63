package postgres

import (
	"context"
	"fmt"

	"tutor-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// PaymentMethodRepo implements ports.PaymentMethodRepository.
type PaymentMethodRepo struct {
	pool Pool
}

// NewPaymentMethodRepo creates a new PaymentMethodRepo.
func NewPaymentMethodRepo(pool Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

// ListActiveByActor returns the actor's active methods, oldest first.
func (r *PaymentMethodRepo) ListActiveByActor(ctx context.Context, actorID uuid.UUID) ([]*domain.PaymentMethod, error) {
	query := `SELECT id, actor_id, type, bank_name, account_holder_name, account_number_enc, is_default, is_active, created_at
		FROM payment_methods WHERE actor_id = $1 AND is_active = TRUE
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var out []*domain.PaymentMethod
	for rows.Next() {
		m := &domain.PaymentMethod{}
		if err := rows.Scan(
			&m.ID, &m.ActorID, &m.Type, &m.BankName, &m.AccountHolderName,
			&m.AccountNumberEnc, &m.IsDefault, &m.IsActive, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment methods: %w", err)
	}
	return out, nil
}
