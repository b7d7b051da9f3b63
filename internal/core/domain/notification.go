package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationChannel is a delivery channel for a notification.
type NotificationChannel string

const (
	ChannelDatabase NotificationChannel = "database"
	ChannelMail     NotificationChannel = "mail"
)

// NotificationType values used by the ledger.
const (
	NotificationPayoutRequested = "payout_requested"
	NotificationPayoutSettled   = "payout_settled"
)

// NotificationRequest is the input to notification dispatch.
type NotificationRequest struct {
	Title    string
	Body     string
	Type     string
	ActorIDs []uuid.UUID
	Channels []NotificationChannel
	Data     map[string]string
}

// Notification is the handle returned after dispatch.
type Notification struct {
	ID        uuid.UUID             `json:"id"`
	Title     string                `json:"title"`
	Body      string                `json:"body"`
	Type      string                `json:"type"`
	ActorIDs  []uuid.UUID           `json:"actor_ids"`
	Channels  []NotificationChannel `json:"channels"`
	Delivered int                   `json:"delivered"`
	CreatedAt time.Time             `json:"created_at"`
}

// Contact is the addressable identity of an actor for mail delivery.
type Contact struct {
	ActorID uuid.UUID
	Name    string
	Email   string
}
