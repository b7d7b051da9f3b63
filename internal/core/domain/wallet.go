package domain

import (
	"time"

	"github.com/google/uuid"
)

// Earnings is the authoritative ledger view of an actor's balance history.
// All amounts are in the currency's smallest unit.
type Earnings struct {
	ActorID        uuid.UUID `json:"actor_id"`
	WalletBalance  int64     `json:"wallet_balance"`
	TotalEarned    int64     `json:"total_earned"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	PendingPayouts int64     `json:"pending_payouts"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Balanced reports whether wallet_balance = earned - withdrawn - pending.
func (e *Earnings) Balanced() bool {
	return e.WalletBalance == e.TotalEarned-e.TotalWithdrawn-e.PendingPayouts
}

// Wallet is the secondary balance representation read by the dashboard.
// It is only written by the sync path.
type Wallet struct {
	ID             uuid.UUID  `json:"id"`
	ActorID        uuid.UUID  `json:"actor_id"`
	Balance        int64      `json:"balance"`
	TotalEarned    int64      `json:"total_earned"`
	TotalWithdrawn int64      `json:"total_withdrawn"`
	PendingPayouts int64      `json:"pending_payouts"`
	Currency       string     `json:"currency"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EarningsFromWallet copies the wallet's balance fields onto an earnings value
// keyed by the same actor.
func EarningsFromWallet(w *Wallet) *Earnings {
	return &Earnings{
		ActorID:        w.ActorID,
		WalletBalance:  w.Balance,
		TotalEarned:    w.TotalEarned,
		TotalWithdrawn: w.TotalWithdrawn,
		PendingPayouts: w.PendingPayouts,
		Currency:       w.Currency,
	}
}

// WalletFromEarnings is the inverse of EarningsFromWallet.
func WalletFromEarnings(e *Earnings) *Wallet {
	return &Wallet{
		ActorID:        e.ActorID,
		Balance:        e.WalletBalance,
		TotalEarned:    e.TotalEarned,
		TotalWithdrawn: e.TotalWithdrawn,
		PendingPayouts: e.PendingPayouts,
		Currency:       e.Currency,
	}
}

// Balances pairs both representations for read paths.
type Balances struct {
	Earnings *Earnings `json:"earnings"`
	Wallet   *Wallet   `json:"wallet,omitempty"`
	InSync   bool      `json:"in_sync"`
}

// NewBalances reports whether the two representations currently agree.
func NewBalances(e *Earnings, w *Wallet) *Balances {
	b := &Balances{Earnings: e, Wallet: w}
	if e != nil && w != nil {
		b.InSync = e.WalletBalance == w.Balance &&
			e.TotalEarned == w.TotalEarned &&
			e.TotalWithdrawn == w.TotalWithdrawn &&
			e.PendingPayouts == w.PendingPayouts
	}
	return b
}
