// Package response writes the JSON envelopes used by the back-office API and
// the short bodies payment providers expect from webhook endpoints.
package response

import (
	"errors"
	"net/http"
	"time"

	"tutor-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) { success(c, http.StatusOK, data) }

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) { success(c, http.StatusCreated, data) }

// Error maps err to its envelope. Ledger sentinel errors get their PAY code;
// anything else unknown is reported as SYS_000 without the underlying message.
func Error(c *gin.Context, err error) {
	status, body := http.StatusInternalServerError, ErrorResponse{
		ErrorCode: "SYS_000",
		Message:   "Internal server error",
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.FromDomain(err)
	}
	if appErr != nil {
		status = appErr.HTTPStatus
		body.ErrorCode, body.Message = appErr.Code, appErr.Message
	}

	body.RequestID, body.Timestamp = requestID(c), now()
	c.JSON(status, body)
}

// WebhookErrorResponse is the envelope returned to payment providers.
type WebhookErrorResponse struct {
	Error string `json:"error"`
}

// WebhookRejected aborts with 401 and the generic verification message.
// The reason a signature was refused is never sent back to the caller.
func WebhookRejected(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, WebhookErrorResponse{
		Error: apperror.WebhookRejectedMessage,
	})
}

// WebhookAck acknowledges a verified callback. duplicate marks a replayed event id.
func WebhookAck(c *gin.Context, duplicate bool) {
	body := gin.H{"received": true}
	if duplicate {
		body["duplicate"] = true
	}
	c.JSON(http.StatusOK, body)
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{Data: data, RequestID: requestID(c), Timestamp: now()})
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// requestID prefers the id set by the RequestID middleware.
func requestID(c *gin.Context) string {
	if s := c.GetString("request_id"); s != "" {
		return s
	}
	return uuid.New().String()
}
