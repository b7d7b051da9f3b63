package postgres

import (
	"context"
	"fmt"

	"tutor-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// ContactRepo implements ports.ContactRepository over the users table.
type ContactRepo struct {
	pool Pool
}

// NewContactRepo creates a new ContactRepo.
func NewContactRepo(pool Pool) *ContactRepo {
	return &ContactRepo{pool: pool}
}

// GetContacts returns name and email for the given actors. Actors without an
// email are omitted.
func (r *ContactRepo) GetContacts(ctx context.Context, actorIDs []uuid.UUID) ([]domain.Contact, error) {
	query := `SELECT id, name, email FROM users WHERE id = ANY($1) AND email IS NOT NULL AND email <> ''`

	rows, err := r.pool.Query(ctx, query, actorIDs)
	if err != nil {
		return nil, fmt.Errorf("get contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ActorID, &c.Name, &c.Email); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}
