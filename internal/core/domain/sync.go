package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncKind names the direction of a balance sync.
type SyncKind string

const (
	SyncEarningsFromWallet SyncKind = "earnings_from_wallet"
	SyncWalletFromEarnings SyncKind = "wallet_from_earnings"
)

// SyncJob is a queued request to propagate one actor's balances.
type SyncJob struct {
	ID         uuid.UUID `json:"id"`
	Kind       SyncKind  `json:"kind"`
	ActorID    uuid.UUID `json:"actor_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// NewSyncJob creates a first-attempt job.
func NewSyncJob(kind SyncKind, actorID uuid.UUID) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		Kind:       kind,
		ActorID:    actorID,
		EnqueuedAt: time.Now().UTC(),
	}
}
