package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarnings_Balanced(t *testing.T) {
	e := &Earnings{WalletBalance: 40_000, TotalEarned: 100_000, TotalWithdrawn: 50_000, PendingPayouts: 10_000}
	assert.True(t, e.Balanced())

	e.WalletBalance++
	assert.False(t, e.Balanced())
}

func TestWalletEarningsConversion(t *testing.T) {
	actorID := uuid.New()
	w := &Wallet{
		ID:             uuid.New(),
		ActorID:        actorID,
		Balance:        60_000,
		TotalEarned:    90_000,
		TotalWithdrawn: 30_000,
		Currency:       "USD",
	}

	e := EarningsFromWallet(w)
	assert.Equal(t, actorID, e.ActorID)
	assert.Equal(t, int64(60_000), e.WalletBalance)
	assert.Equal(t, int64(90_000), e.TotalEarned)
	assert.Equal(t, int64(30_000), e.TotalWithdrawn)
	assert.Equal(t, "USD", e.Currency)

	back := WalletFromEarnings(e)
	assert.Equal(t, w.Balance, back.Balance)
	assert.Equal(t, w.TotalEarned, back.TotalEarned)
	assert.Equal(t, w.TotalWithdrawn, back.TotalWithdrawn)
	assert.Equal(t, w.PendingPayouts, back.PendingPayouts)
	assert.Equal(t, uuid.Nil, back.ID, "wallet identity is assigned by storage")
}

func TestNewBalances(t *testing.T) {
	e := &Earnings{WalletBalance: 10, TotalEarned: 10}
	w := WalletFromEarnings(e)

	assert.True(t, NewBalances(e, w).InSync)

	w.PendingPayouts = 5
	assert.False(t, NewBalances(e, w).InSync)

	assert.False(t, NewBalances(e, nil).InSync)
}

func TestPayoutStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status PayoutStatus
		want   bool
	}{
		{PayoutStatusPending, false},
		{PayoutStatusProcessing, false},
		{PayoutStatusApproved, false},
		{PayoutStatusRejected, true},
		{PayoutStatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}

	for _, s := range NonTerminalPayoutStatuses {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestPayoutStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to PayoutStatus
		want     bool
	}{
		{PayoutStatusPending, PayoutStatusProcessing, true},
		{PayoutStatusPending, PayoutStatusApproved, true},
		{PayoutStatusProcessing, PayoutStatusApproved, true},
		{PayoutStatusApproved, PayoutStatusCompleted, true},
		{PayoutStatusPending, PayoutStatusRejected, true},
		{PayoutStatusApproved, PayoutStatusRejected, true},

		{PayoutStatusPending, PayoutStatusCompleted, false},
		{PayoutStatusProcessing, PayoutStatusCompleted, false},
		{PayoutStatusApproved, PayoutStatusPending, false},
		{PayoutStatusPending, PayoutStatusPending, false},
		{PayoutStatusCompleted, PayoutStatusRejected, false},
		{PayoutStatusRejected, PayoutStatusPending, false},
		{PayoutStatusPending, PayoutStatus("paid"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSelectPayoutMethod(t *testing.T) {
	first := &PaymentMethod{ID: uuid.New(), IsActive: true}
	def := &PaymentMethod{ID: uuid.New(), IsActive: true, IsDefault: true}
	inactiveDefault := &PaymentMethod{ID: uuid.New(), IsActive: false, IsDefault: true}

	tests := []struct {
		name    string
		methods []*PaymentMethod
		want    *PaymentMethod
	}{
		{"default wins", []*PaymentMethod{first, def}, def},
		{"first active fallback", []*PaymentMethod{inactiveDefault, first}, first},
		{"inactive default ignored", []*PaymentMethod{inactiveDefault}, nil},
		{"none", nil, nil},
		{"nil entries skipped", []*PaymentMethod{nil, first}, first},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectPayoutMethod(tt.methods))
		})
	}
}

func TestMaskAccountNumber(t *testing.T) {
	assert.Equal(t, "******7890", MaskAccountNumber("1234567890"))
	assert.Equal(t, "****", MaskAccountNumber("1234"))
	assert.Equal(t, "**", MaskAccountNumber("12"))
	assert.Equal(t, "", MaskAccountNumber(""))
}

func TestNewPaymentDetails(t *testing.T) {
	m := &PaymentMethod{
		Type:              PaymentMethodBankTransfer,
		BankName:          "First Bank",
		AccountHolderName: "Ada Obi",
	}

	d := NewPaymentDetails(m, "0123456789")
	assert.Equal(t, PaymentMethodBankTransfer, d.Type)
	assert.Equal(t, "First Bank", d.BankName)
	assert.Equal(t, "Ada Obi", d.AccountHolderName)
	assert.Equal(t, "******6789", d.AccountNumber)

	// The snapshot is a copy; later edits to the method do not leak in.
	m.BankName = "Other Bank"
	assert.Equal(t, "First Bank", d.BankName)
}

func TestNewRequestUUID(t *testing.T) {
	at := time.Date(2026, 10, 18, 23, 30, 0, 0, time.FixedZone("WAT", 3600))

	id := NewRequestUUID(AutoPayoutPrefix, at)
	assert.Regexp(t, regexp.MustCompile(`^AUTO-20261018-[0-9A-F]{8}$`), id)
	assert.NotEqual(t, id, NewRequestUUID(AutoPayoutPrefix, at))

	p := &PayoutRequest{RequestUUID: id}
	assert.True(t, p.IsAutomatic())

	p.RequestUUID = NewRequestUUID(ManualPayoutPrefix, at)
	assert.False(t, p.IsAutomatic())
}

func TestBatchReport_Add(t *testing.T) {
	r := &BatchReport{Eligible: 4}
	r.Add(PayoutAttempt{Outcome: PayoutOutcomeCreated})
	r.Add(PayoutAttempt{Outcome: PayoutOutcomeCreated})
	r.Add(PayoutAttempt{Outcome: PayoutOutcomeFailed})
	r.Add(PayoutAttempt{Outcome: PayoutOutcomeSkipped})

	assert.Equal(t, 2, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.Len(t, r.Attempts, 4)
}

func TestWebhookProvider_Valid(t *testing.T) {
	for _, p := range WebhookProviders {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, WebhookProvider("flutterwave").Valid())
	assert.False(t, WebhookProvider("").Valid())
}

func TestVerificationResult(t *testing.T) {
	ok := Accept()
	assert.True(t, ok.Accepted)
	assert.Empty(t, ok.Reason)

	rej := Reject(ReasonMismatch, nil)
	assert.False(t, rej.Accepted)
	assert.Equal(t, ReasonMismatch, rej.Reason)
}

func TestNewSyncJob(t *testing.T) {
	actorID := uuid.New()
	job := NewSyncJob(SyncWalletFromEarnings, actorID)

	require.NotNil(t, job)
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, SyncWalletFromEarnings, job.Kind)
	assert.Equal(t, actorID, job.ActorID)
	assert.Zero(t, job.Attempt)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{6_000_000, "USD", "60,000.00 USD"},
		{6_000_050, "usd", "60,000.50 USD"},
		{5, "NGN", "0.05 NGN"},
		{-123_456, "USD", "-1,234.56 USD"},
		{150_000, "UGX", "150,000 UGX"},
		{100, "", "1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.minor, tt.currency))
		})
	}
}
