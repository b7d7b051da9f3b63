package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// Signature headers.
const (
	HeaderPaystackSignature = "X-Paystack-Signature"
	HeaderStripeSignature   = "Stripe-Signature"
)

// DefaultStripeTolerance is the accepted clock distance for Stripe timestamps.
const DefaultStripeTolerance = 300 * time.Second

// signHex computes a lowercase hex HMAC of the concatenated parts.
func signHex(h func() hash.Hash, secret string, parts ...[]byte) string {
	mac := hmac.New(h, []byte(secret))
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// equalHex compares hex signatures in constant time, ignoring case.
func equalHex(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(provided))))
}

// PaystackVerifier checks HMAC-SHA512 over the raw body.
type PaystackVerifier struct {
	secret string
}

// NewPaystackVerifier creates a verifier for Paystack callbacks.
func NewPaystackVerifier(secret string) *PaystackVerifier {
	return &PaystackVerifier{secret: secret}
}

// Provider returns domain.ProviderPaystack.
func (v *PaystackVerifier) Provider() domain.WebhookProvider { return domain.ProviderPaystack }

// Verify accepts only when the header matches HMAC-SHA512(secret, body).
func (v *PaystackVerifier) Verify(_ context.Context, vc *domain.VerificationContext) domain.VerificationResult {
	sig := vc.Headers.Get(HeaderPaystackSignature)
	if sig == "" {
		return domain.Reject(domain.ReasonMissingSignature, nil)
	}
	if v.secret == "" {
		return domain.Reject(domain.ReasonMissingSecret, nil)
	}
	if !equalHex(signHex(sha512.New, v.secret, vc.Body), sig) {
		return domain.Reject(domain.ReasonMismatch, nil)
	}
	return domain.Accept()
}

// StripeVerifier checks the "t=...,v1=..." scheme: HMAC-SHA256 over
// "{t}.{body}" within a timestamp tolerance.
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

// NewStripeVerifier creates a verifier for Stripe callbacks. A non-positive
// tolerance falls back to DefaultStripeTolerance.
func NewStripeVerifier(secret string, tolerance time.Duration) *StripeVerifier {
	if tolerance <= 0 {
		tolerance = DefaultStripeTolerance
	}
	return &StripeVerifier{secret: secret, tolerance: tolerance, now: time.Now}
}

// Provider returns domain.ProviderStripe.
func (v *StripeVerifier) Provider() domain.WebhookProvider { return domain.ProviderStripe }

// Verify accepts when any v1 entry matches and the timestamp is fresh.
func (v *StripeVerifier) Verify(_ context.Context, vc *domain.VerificationContext) domain.VerificationResult {
	header := vc.Headers.Get(HeaderStripeSignature)
	if header == "" {
		return domain.Reject(domain.ReasonMissingSignature, nil)
	}
	if v.secret == "" {
		return domain.Reject(domain.ReasonMissingSecret, nil)
	}

	ts, sigs, err := parseStripeHeader(header)
	if err != nil {
		return domain.Reject(domain.ReasonMalformedHeader, err)
	}

	signedAt, _ := strconv.ParseInt(ts, 10, 64)
	if signedAt <= 0 {
		return domain.Reject(domain.ReasonStaleTimestamp, fmt.Errorf("invalid timestamp %q", ts))
	}
	now := vc.ReceivedAt
	if now.IsZero() {
		now = v.now()
	}
	// Both operands are non-negative, so the difference cannot overflow.
	drift := now.Unix() - signedAt
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(v.tolerance/time.Second) {
		return domain.Reject(domain.ReasonStaleTimestamp, fmt.Errorf("drift %ds", drift))
	}

	expected := signHex(sha256.New, v.secret, []byte(ts), []byte("."), vc.Body)
	for _, s := range sigs {
		if equalHex(expected, s) {
			return domain.Accept()
		}
	}
	return domain.Reject(domain.ReasonMismatch, nil)
}

// parseStripeHeader extracts the raw t value and all v1 values. Unknown keys
// such as v0 are ignored.
func parseStripeHeader(header string) (string, []string, error) {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			if value != "" {
				sigs = append(sigs, value)
			}
		}
	}
	if ts == "" {
		return "", nil, fmt.Errorf("missing t")
	}
	if _, err := strconv.ParseInt(ts, 10, 64); err != nil {
		return "", nil, fmt.Errorf("invalid t: %w", err)
	}
	if len(sigs) == 0 {
		return "", nil, fmt.Errorf("missing v1")
	}
	return ts, sigs, nil
}

// WebhookGate dispatches to the verifier registered for the request's
// provider and logs every rejection. It never lets a panic or an unknown
// provider through.
type WebhookGate struct {
	verifiers map[domain.WebhookProvider]ports.WebhookVerifier
	log       zerolog.Logger
}

// NewWebhookGate registers one verifier per provider.
func NewWebhookGate(log zerolog.Logger, verifiers ...ports.WebhookVerifier) *WebhookGate {
	m := make(map[domain.WebhookProvider]ports.WebhookVerifier, len(verifiers))
	for _, v := range verifiers {
		m[v.Provider()] = v
	}
	return &WebhookGate{verifiers: m, log: log}
}

// Verify runs the provider's verifier and converts panics into rejections.
func (g *WebhookGate) Verify(ctx context.Context, vc *domain.VerificationContext) (res domain.VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Reject(domain.ReasonVerifierPanic, fmt.Errorf("%v", r))
		}
		if !res.Accepted {
			evt := g.log.Warn().
				Str("provider", string(vc.Provider)).
				Str("reason", res.Reason).
				Int("body_bytes", len(vc.Body))
			if res.Err != nil {
				evt = evt.AnErr("cause", res.Err)
			}
			evt.Msg("Webhook signature rejected")
		}
	}()

	v, ok := g.verifiers[vc.Provider]
	if !ok {
		return domain.Reject(domain.ReasonUnknownProvider, nil)
	}
	return v.Verify(ctx, vc)
}
