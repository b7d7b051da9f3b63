package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"tutor-ledger/internal/adapter/http/middleware"
	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"
	"tutor-ledger/pkg/apperror"
	"tutor-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WebhookHandler acknowledges verified provider callbacks and drops replays.
// It only runs behind middleware.WebhookSignature.
type WebhookHandler struct {
	nonces ports.NonceStore
	events ports.WebhookEventRepository // nil = no durable event log
	ttl    time.Duration
	log    zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(nonces ports.NonceStore, events ports.WebhookEventRepository, ttl time.Duration, log zerolog.Logger) *WebhookHandler {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &WebhookHandler{nonces: nonces, events: events, ttl: ttl, log: log}
}

// envelope covers the id and type fields of all three providers.
type envelope struct {
	ID        json.RawMessage `json:"id"`
	Type      string          `json:"type"`       // stripe
	Event     string          `json:"event"`      // paystack
	EventType string          `json:"event_type"` // paypal
	Data      struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// parseEvent extracts the provider's event id and type from a verified body.
// Paystack has no top-level id, so its key is event name plus data.id.
func parseEvent(provider domain.WebhookProvider, body []byte) (id, eventType string, err error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return "", "", err
	}

	switch provider {
	case domain.ProviderPaystack:
		eventType = env.Event
		if dataID := rawScalar(env.Data.ID); dataID != "" && env.Event != "" {
			id = env.Event + ":" + dataID
		}
	case domain.ProviderStripe:
		eventType = env.Type
		id = rawScalar(env.ID)
	case domain.ProviderPayPal:
		eventType = env.EventType
		id = rawScalar(env.ID)
	}
	return id, eventType, nil
}

// rawScalar renders a JSON string or number without quotes.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Receive handles POST /api/v1/webhooks/:provider.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider, _ := c.MustGet(middleware.CtxWebhookProvider).(domain.WebhookProvider)
	body, _ := c.MustGet(middleware.CtxWebhookBody).([]byte)
	ctx := c.Request.Context()

	eventID, eventType, err := parseEvent(provider, body)
	if err != nil {
		response.Error(c, apperror.Validation("webhook body is not valid JSON"))
		return
	}
	log := h.log.With().Str("provider", string(provider)).Str("event_id", eventID).Str("event_type", eventType).Logger()

	if eventID == "" {
		log.Warn().Msg("Verified webhook carries no event id, acknowledging without dedup")
		response.WebhookAck(c, false)
		return
	}

	if h.nonces != nil {
		fresh, err := h.nonces.CheckAndSet(ctx, "webhook:"+string(provider), eventID, h.ttl)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Webhook replay check failed, continuing")
		case !fresh:
			log.Info().Msg("Duplicate webhook ignored")
			response.WebhookAck(c, true)
			return
		}
	}

	if h.events != nil {
		inserted, err := h.events.Insert(ctx, &domain.WebhookEvent{
			ID:         uuid.New(),
			Provider:   provider,
			EventID:    eventID,
			EventType:  eventType,
			Payload:    body,
			ReceivedAt: time.Now().UTC(),
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to record webhook event")
		} else if !inserted {
			log.Info().Msg("Duplicate webhook ignored")
			response.WebhookAck(c, true)
			return
		}
	}

	log.Info().Msg("Webhook accepted")
	response.WebhookAck(c, false)
}
