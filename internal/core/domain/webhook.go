package domain

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WebhookProvider tags the payment provider a callback claims to come from.
type WebhookProvider string

const (
	ProviderPaystack WebhookProvider = "paystack"
	ProviderStripe   WebhookProvider = "stripe"
	ProviderPayPal   WebhookProvider = "paypal"
)

// WebhookProviders is the closed set of supported providers.
var WebhookProviders = []WebhookProvider{ProviderPaystack, ProviderStripe, ProviderPayPal}

// Valid reports whether p is one of the supported providers.
func (p WebhookProvider) Valid() bool {
	for _, known := range WebhookProviders {
		if p == known {
			return true
		}
	}
	return false
}

// VerificationContext is the per-request input to signature verification.
// Body holds the exact bytes received; it is never re-serialized.
type VerificationContext struct {
	Provider   WebhookProvider
	Headers    http.Header
	Body       []byte
	ReceivedAt time.Time
}

// Rejection reasons. They are logged server-side only; callers always see
// the same generic message.
const (
	ReasonMissingSignature = "missing signature header"
	ReasonMissingSecret    = "signing secret not configured"
	ReasonMalformedHeader  = "malformed signature header"
	ReasonMalformedBody    = "malformed event body"
	ReasonStaleTimestamp   = "timestamp outside tolerance"
	ReasonMismatch         = "signature mismatch"
	ReasonMissingHeaders   = "missing transmission headers"
	ReasonMissingWebhookID = "webhook id not configured"
	ReasonTokenFailure     = "access token request failed"
	ReasonRemoteFailure    = "remote verification call failed"
	ReasonRemoteRejected   = "remote verification rejected"
	ReasonUnknownProvider  = "unknown provider"
	ReasonVerifierPanic    = "verifier panicked"
)

// VerificationResult is the accept or reject outcome of a verifier.
type VerificationResult struct {
	Accepted bool
	Reason   string
	Err      error // underlying cause, if any (not exposed to callers)
}

// Accept returns a successful result.
func Accept() VerificationResult {
	return VerificationResult{Accepted: true}
}

// Reject returns a failed result with a server-side reason.
func Reject(reason string, err error) VerificationResult {
	return VerificationResult{Reason: reason, Err: err}
}

// WebhookEvent is a verified callback recorded for deduplication.
type WebhookEvent struct {
	ID         uuid.UUID       `json:"id"`
	Provider   WebhookProvider `json:"provider"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Payload    []byte          `json:"-"`
	ReceivedAt time.Time       `json:"received_at"`
}
