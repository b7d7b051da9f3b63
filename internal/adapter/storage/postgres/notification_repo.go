package postgres

import (
	"context"
	"fmt"

	"tutor-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Create stores one recipient's copy of a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification, actorID uuid.UUID, data []byte) error {
	query := `INSERT INTO notifications (id, notification_id, actor_id, title, body, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		uuid.New(), n.ID, actorID, n.Title, n.Body, n.Type, data, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
