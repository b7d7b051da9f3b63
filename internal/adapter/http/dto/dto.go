package dto

import (
	"time"

	"tutor-ledger/internal/core/domain"
)

// CreditEarningRequest is the request body for crediting a completed lesson.
type CreditEarningRequest struct {
	ActorID  string `json:"actor_id" binding:"required,uuid"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"omitempty,currency_code"`
}

// SettlePayoutRequest is the request body for moving a payout request forward.
type SettlePayoutRequest struct {
	Status domain.PayoutStatus `json:"status" binding:"required,payout_status"`
	Notes  *string             `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// ListPayoutsQuery holds query parameters for the payout history listing.
type ListPayoutsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// BalanceView pairs a raw minor-unit amount with its display form.
type BalanceView struct {
	Amount    int64  `json:"amount"`
	Formatted string `json:"formatted"`
}

// BalancesResponse is the response for the balances query.
type BalancesResponse struct {
	ActorID        string      `json:"actor_id"`
	Currency       string      `json:"currency"`
	WalletBalance  BalanceView `json:"wallet_balance"`
	TotalEarned    BalanceView `json:"total_earned"`
	TotalWithdrawn BalanceView `json:"total_withdrawn"`
	PendingPayouts BalanceView `json:"pending_payouts"`
	InSync         bool        `json:"in_sync"`
	LastSyncedAt   *string     `json:"last_synced_at,omitempty"`
}

// PayoutResponse is the response body for a payout request.
type PayoutResponse struct {
	ID             string                `json:"id"`
	RequestUUID    string                `json:"request_uuid"`
	ActorID        string                `json:"actor_id"`
	Amount         BalanceView           `json:"amount"`
	Currency       string                `json:"currency"`
	Status         domain.PayoutStatus   `json:"status"`
	Automatic      bool                  `json:"automatic"`
	PaymentDetails domain.PaymentDetails `json:"payment_details"`
	RequestedAt    string                `json:"requested_at"`
	ProcessedAt    *string               `json:"processed_at,omitempty"`
	ProcessedBy    *string               `json:"processed_by,omitempty"`
	Notes          *string               `json:"notes,omitempty"`
}

// NewBalancesResponse flattens the earnings view, falling back to zeroes.
func NewBalancesResponse(b *domain.Balances) BalancesResponse {
	e := b.Earnings
	resp := BalancesResponse{
		ActorID:        e.ActorID.String(),
		Currency:       e.Currency,
		WalletBalance:  view(e.WalletBalance, e.Currency),
		TotalEarned:    view(e.TotalEarned, e.Currency),
		TotalWithdrawn: view(e.TotalWithdrawn, e.Currency),
		PendingPayouts: view(e.PendingPayouts, e.Currency),
		InSync:         b.InSync,
	}
	if b.Wallet != nil && b.Wallet.LastSyncedAt != nil {
		s := b.Wallet.LastSyncedAt.UTC().Format(time.RFC3339)
		resp.LastSyncedAt = &s
	}
	return resp
}

// NewPayoutResponse converts a domain payout request.
func NewPayoutResponse(p *domain.PayoutRequest) PayoutResponse {
	resp := PayoutResponse{
		ID:             p.ID.String(),
		RequestUUID:    p.RequestUUID,
		ActorID:        p.ActorID.String(),
		Amount:         view(p.Amount, p.Currency),
		Currency:       p.Currency,
		Status:         p.Status,
		Automatic:      p.IsAutomatic(),
		PaymentDetails: p.PaymentDetails,
		RequestedAt:    p.RequestedAt.UTC().Format(time.RFC3339),
		ProcessedBy:    p.ProcessedBy,
		Notes:          p.Notes,
	}
	if p.ProcessedAt != nil {
		s := p.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}

func view(amount int64, currency string) BalanceView {
	return BalanceView{Amount: amount, Formatted: domain.FormatAmount(amount, currency)}
}
