package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"tutor-ledger/internal/core/domain"
	"tutor-ledger/internal/core/ports"
	"tutor-ledger/pkg/apperror"
	"tutor-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxRequestID       = "request_id"
	CtxOperatorID      = "operator_id"
	CtxOperatorRole    = "operator_role"
	CtxWebhookProvider = "webhook_provider"
	CtxWebhookBody     = "webhook_body"
)

// WebhookSignature verifies the callback against the provider's signing
// scheme before any handler runs. The raw body is read once, handed to the
// gate untouched, restored for the handler and also stored under
// CtxWebhookBody. Every rejection answers 401 with the same generic message.
func WebhookSignature(gate ports.WebhookGate, provider domain.WebhookProvider, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				log.Warn().Str("provider", string(provider)).Int64("limit", tooLarge.Limit).Msg("Webhook body too large")
				c.AbortWithStatus(http.StatusRequestEntityTooLarge)
				return
			}
			log.Warn().Err(err).Str("provider", string(provider)).Msg("Cannot read webhook body")
			response.WebhookRejected(c)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		result := gate.Verify(c.Request.Context(), &domain.VerificationContext{
			Provider:   provider,
			Headers:    c.Request.Header.Clone(),
			Body:       body,
			ReceivedAt: time.Now().UTC(),
		})
		if !result.Accepted {
			response.WebhookRejected(c)
			return
		}

		c.Set(CtxWebhookProvider, provider)
		c.Set(CtxWebhookBody, body)
		c.Next()
	}
}

// JWTAuth validates the operator bearer token on back-office routes.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, apperror.ErrMissingToken())
			c.Abort()
			return
		}
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Str("client_ip", c.ClientIP()).Msg("Rejected operator token")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxOperatorID, claims.OperatorID)
		c.Set(CtxOperatorRole, claims.Role)
		c.Next()
	}
}

// RequireRole allows only operators whose token carries one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(CtxOperatorRole)) {
			response.Error(c, apperror.ErrForbidden())
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestID propagates X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", c.GetString(CtxRequestID)).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// MaxBodySize returns middleware that limits the request body size.
// Once the limit is exceeded the reader returns an error and the
// request is rejected with 413 Payload Too Large.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
