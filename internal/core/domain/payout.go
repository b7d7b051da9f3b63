package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SettingAutoPayoutThreshold is the settings key holding the automatic payout
// threshold in minor units. A value <= 0 turns automatic payouts off.
const SettingAutoPayoutThreshold = "auto_payout_threshold"

// Request UUID prefixes distinguish automatic from manual requests.
const (
	AutoPayoutPrefix   = "AUTO"
	ManualPayoutPrefix = "PR"
)

var (
	ErrPayoutInFlight    = errors.New("actor already has a non-terminal payout request")
	ErrNoPaymentMethod   = errors.New("actor has no active payment method")
	ErrBelowThreshold    = errors.New("balance below payout threshold")
	ErrInvalidTransition = errors.New("invalid payout status transition")
)

// PayoutStatus represents the lifecycle state of a payout request.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusApproved   PayoutStatus = "approved"
	PayoutStatusRejected   PayoutStatus = "rejected"
	PayoutStatusCompleted  PayoutStatus = "completed"
)

// NonTerminalPayoutStatuses lists the statuses that count as in flight.
var NonTerminalPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusApproved,
}

// IsTerminal returns true for rejected and completed.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusRejected || s == PayoutStatusCompleted
}

func (s PayoutStatus) rank() int {
	switch s {
	case PayoutStatusPending:
		return 0
	case PayoutStatusProcessing:
		return 1
	case PayoutStatusApproved:
		return 2
	case PayoutStatusRejected, PayoutStatusCompleted:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// Any non-terminal status may be rejected; completion requires approval.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	if s.IsTerminal() || next.rank() < 0 {
		return false
	}
	switch next {
	case PayoutStatusRejected:
		return true
	case PayoutStatusCompleted:
		return s == PayoutStatusApproved
	default:
		return next.rank() > s.rank()
	}
}

// PaymentMethodType enumerates the supported payout rails.
type PaymentMethodType string

const (
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodPayPal       PaymentMethodType = "paypal"
	PaymentMethodMobileWallet PaymentMethodType = "mobile_wallet"
)

// PaymentMethod is an actor's registered payout destination.
type PaymentMethod struct {
	ID                uuid.UUID         `json:"id"`
	ActorID           uuid.UUID         `json:"actor_id"`
	Type              PaymentMethodType `json:"type"`
	BankName          string            `json:"bank_name,omitempty"`
	AccountHolderName string            `json:"account_holder_name"`
	AccountNumberEnc  string            `json:"-"` // AES-256 encrypted, never expose
	IsDefault         bool              `json:"is_default"`
	IsActive          bool              `json:"is_active"`
	CreatedAt         time.Time         `json:"created_at"`
}

// SelectPayoutMethod returns the default active method, else the first active
// one in the given order, else nil.
func SelectPayoutMethod(methods []*PaymentMethod) *PaymentMethod {
	var firstActive *PaymentMethod
	for _, m := range methods {
		if m == nil || !m.IsActive {
			continue
		}
		if m.IsDefault {
			return m
		}
		if firstActive == nil {
			firstActive = m
		}
	}
	return firstActive
}

// PaymentDetails is the denormalized view of a payment method stored on a
// payout request at creation time.
type PaymentDetails struct {
	Type              PaymentMethodType `json:"type"`
	BankName          string            `json:"bank_name,omitempty"`
	AccountNumber     string            `json:"account_number"` // masked
	AccountHolderName string            `json:"account_holder_name"`
}

// NewPaymentDetails builds the snapshot from a method and its decrypted
// account number. Only the last four characters are kept.
func NewPaymentDetails(m *PaymentMethod, accountNumber string) PaymentDetails {
	return PaymentDetails{
		Type:              m.Type,
		BankName:          m.BankName,
		AccountNumber:     MaskAccountNumber(accountNumber),
		AccountHolderName: m.AccountHolderName,
	}
}

// MaskAccountNumber replaces all but the last four characters with '*'.
func MaskAccountNumber(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// PayoutRequest is an actor's request to withdraw accumulated funds.
type PayoutRequest struct {
	ID              uuid.UUID      `json:"id"`
	RequestUUID     string         `json:"request_uuid"`
	ActorID         uuid.UUID      `json:"actor_id"`
	ActorType       string         `json:"actor_type"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	PaymentMethodID uuid.UUID      `json:"payment_method_id"`
	PaymentDetails  PaymentDetails `json:"payment_details"`
	Status          PayoutStatus   `json:"status"`
	RequestedAt     time.Time      `json:"requested_at"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessedBy     *string        `json:"processed_by,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewRequestUUID builds a human-readable request id such as
// AUTO-20261018-1A2B3C4D.
func NewRequestUUID(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return prefix + "-" + at.UTC().Format("20060102") + "-" + suffix
}

// IsAutomatic reports whether the request was created by the payout engine.
func (p *PayoutRequest) IsAutomatic() bool {
	return strings.HasPrefix(p.RequestUUID, AutoPayoutPrefix+"-")
}

// PayoutOutcome classifies one actor's attempt within a batch.
type PayoutOutcome string

const (
	PayoutOutcomeCreated PayoutOutcome = "created"
	PayoutOutcomeFailed  PayoutOutcome = "failed"
	PayoutOutcomeSkipped PayoutOutcome = "skipped"
)

// PayoutAttempt is one actor's result within a batch run.
type PayoutAttempt struct {
	ActorID   uuid.UUID     `json:"actor_id"`
	Outcome   PayoutOutcome `json:"outcome"`
	RequestID *uuid.UUID    `json:"request_id,omitempty"`
	Amount    int64         `json:"amount,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// BatchReport aggregates an automatic payout run.
type BatchReport struct {
	Threshold  int64           `json:"threshold"`
	Eligible   int             `json:"eligible"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Attempts   []PayoutAttempt `json:"attempts"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Add records an attempt and bumps the matching counter.
func (r *BatchReport) Add(a PayoutAttempt) {
	switch a.Outcome {
	case PayoutOutcomeCreated:
		r.Succeeded++
	case PayoutOutcomeFailed:
		r.Failed++
	case PayoutOutcomeSkipped:
		r.Skipped++
	}
	r.Attempts = append(r.Attempts, a)
}
