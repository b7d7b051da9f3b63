package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// PayPal transmission headers.
const (
	HeaderPayPalTransmissionID   = "Paypal-Transmission-Id"
	HeaderPayPalTransmissionTime = "Paypal-Transmission-Time"
	HeaderPayPalTransmissionSig  = "Paypal-Transmission-Sig"
	HeaderPayPalCertURL          = "Paypal-Cert-Url"
	HeaderPayPalAuthAlgo         = "Paypal-Auth-Algo"
)

// DefaultPayPalTimeout bounds the token fetch and verification call together.
const DefaultPayPalTimeout = 8 * time.Second

// tokenRefreshMargin is subtracted from expires_in before caching a token.
const tokenRefreshMargin = 300 * time.Second

// maxPayPalResponse caps how much of a PayPal response body is read.
const maxPayPalResponse = 64 << 10

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PayPalClient talks to the PayPal REST API with client credentials.
type PayPalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   HTTPClient
	cache        ports.AccessTokenCache
	log          zerolog.Logger
}

// NewPayPalClient creates a PayPal API client. cache may be nil.
func NewPayPalClient(baseURL, clientID, clientSecret string, httpClient HTTPClient, cache ports.AccessTokenCache, log zerolog.Logger) *PayPalClient {
	return &PayPalClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		cache:        cache,
		log:          log,
	}
}

type payPalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *PayPalClient) cacheKey() string {
	return "paypal:" + c.clientID
}

// ErrPayPalTokenRejected means PayPal answered 401 to a bearer call.
var ErrPayPalTokenRejected = errors.New("paypal rejected the access token")

// InvalidateToken drops the cached token so the next call fetches a new one.
func (c *PayPalClient) InvalidateToken(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, c.cacheKey()); err != nil {
		c.log.Warn().Err(err).Msg("PayPal token cache delete failed")
	}
}

// AccessToken returns a cached token or fetches a new one. Cache errors are
// logged and fall through to a fresh fetch.
func (c *PayPalClient) AccessToken(ctx context.Context) (string, error) {
	if c.cache != nil {
		tok, err := c.cache.Get(ctx, c.cacheKey())
		if err != nil {
			c.log.Warn().Err(err).Msg("PayPal token cache read failed")
		} else if tok != "" {
			return tok, nil
		}
	}

	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("paypal credentials not configured")
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxPayPalResponse))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned HTTP %d", resp.StatusCode)
	}

	var tr payPalTokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response without access_token")
	}

	if c.cache != nil {
		ttl := time.Duration(tr.ExpiresIn)*time.Second - tokenRefreshMargin
		if err := c.cache.Set(ctx, c.cacheKey(), tr.AccessToken, ttl); err != nil {
			c.log.Warn().Err(err).Msg("PayPal token cache write failed")
		}
	}
	return tr.AccessToken, nil
}

// verifySignatureRequest is the body of POST /v1/notifications/verify-webhook-signature.
// WebhookEvent is spliced in verbatim by encode; encoding/json would compact it.
type verifySignatureRequest struct {
	AuthAlgo         string `json:"auth_algo"`
	CertURL          string `json:"cert_url"`
	TransmissionID   string `json:"transmission_id"`
	TransmissionSig  string `json:"transmission_sig"`
	TransmissionTime string `json:"transmission_time"`
	WebhookID        string `json:"webhook_id"`
	WebhookEvent     []byte `json:"-"`
}

func (vr verifySignatureRequest) encode() ([]byte, error) {
	head, err := json.Marshal(vr)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(head) + len(vr.WebhookEvent) + 20)
	buf.Write(head[:len(head)-1])
	buf.WriteString(`,"webhook_event":`)
	buf.Write(vr.WebhookEvent)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type verifySignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature calls the remote verification endpoint and returns
// its verification_status.
func (c *PayPalClient) VerifyWebhookSignature(ctx context.Context, token string, vr verifySignatureRequest) (string, error) {
	payload, err := vr.encode()
	if err != nil {
		return "", fmt.Errorf("encoding verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("verification request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxPayPalResponse))
	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrPayPalTokenRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("verification request returned HTTP %d", resp.StatusCode)
	}

	var out verifySignatureResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding verification response: %w", err)
	}
	return out.VerificationStatus, nil
}

// PayPalVerifier delegates verification to PayPal's API and fails closed.
type PayPalVerifier struct {
	client    *PayPalClient
	webhookID string
	timeout   time.Duration
}

// NewPayPalVerifier creates a verifier bound to one configured webhook id.
func NewPayPalVerifier(client *PayPalClient, webhookID string, timeout time.Duration) *PayPalVerifier {
	if timeout <= 0 {
		timeout = DefaultPayPalTimeout
	}
	return &PayPalVerifier{client: client, webhookID: webhookID, timeout: timeout}
}

// Provider returns domain.ProviderPayPal.
func (v *PayPalVerifier) Provider() domain.WebhookProvider { return domain.ProviderPayPal }

// Verify accepts only when PayPal answers verification_status == "SUCCESS"
// within the timeout.
func (v *PayPalVerifier) Verify(ctx context.Context, vc *domain.VerificationContext) domain.VerificationResult {
	vr := verifySignatureRequest{
		AuthAlgo:         vc.Headers.Get(HeaderPayPalAuthAlgo),
		CertURL:          vc.Headers.Get(HeaderPayPalCertURL),
		TransmissionID:   vc.Headers.Get(HeaderPayPalTransmissionID),
		TransmissionSig:  vc.Headers.Get(HeaderPayPalTransmissionSig),
		TransmissionTime: vc.Headers.Get(HeaderPayPalTransmissionTime),
		WebhookID:        v.webhookID,
	}
	if vr.TransmissionID == "" || vr.TransmissionSig == "" {
		return domain.Reject(domain.ReasonMissingHeaders, nil)
	}
	if vr.WebhookID == "" {
		return domain.Reject(domain.ReasonMissingWebhookID, nil)
	}
	if !json.Valid(vc.Body) {
		return domain.Reject(domain.ReasonMalformedBody, nil)
	}
	vr.WebhookEvent = vc.Body

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	token, err := v.client.AccessToken(ctx)
	if err != nil {
		return domain.Reject(domain.ReasonTokenFailure, err)
	}

	status, err := v.client.VerifyWebhookSignature(ctx, token, vr)
	if errors.Is(err, ErrPayPalTokenRejected) {
		// Revoked before its TTL: evict and try once more with a fresh token.
		v.client.InvalidateToken(ctx)
		if token, err = v.client.AccessToken(ctx); err != nil {
			return domain.Reject(domain.ReasonTokenFailure, err)
		}
		status, err = v.client.VerifyWebhookSignature(ctx, token, vr)
	}
	if err != nil {
		return domain.Reject(domain.ReasonRemoteFailure, err)
	}
	if status != "SUCCESS" {
		return domain.Reject(domain.ReasonRemoteRejected, fmt.Errorf("verification_status=%q", status))
	}
	return domain.Accept()
}
