package postgres

import (
	"context"
	"fmt"

	"tutor-ledger/internal/core/domain"
)

// WebhookEventRepo implements ports.WebhookEventRepository. It is the durable
// backstop behind the Redis replay guard.
type WebhookEventRepo struct {
	pool Pool
}

// NewWebhookEventRepo creates a new WebhookEventRepo.
func NewWebhookEventRepo(pool Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// Insert stores the event unless (provider, event_id) already exists.
func (r *WebhookEventRepo) Insert(ctx context.Context, ev *domain.WebhookEvent) (bool, error) {
	query := `INSERT INTO webhook_events (id, provider, event_id, event_type, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, event_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		ev.ID, string(ev.Provider), ev.EventID, ev.EventType, ev.Payload, ev.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
