package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited back-office action.
type AuditAction string

const (
	AuditActionAutoPayoutRun AuditAction = "AUTO_PAYOUT_RUN"
	AuditActionSettlePayout  AuditAction = "SETTLE_PAYOUT"
	AuditActionCreditEarning AuditAction = "CREDIT_EARNING"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	OperatorID   *string     `json:"operator_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Operator roles carried in back-office tokens.
const (
	RoleAdmin   = "admin"   // full access
	RoleFinance = "finance" // may settle payouts and read balances
)
