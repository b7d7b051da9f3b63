package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"tutor-ledger/internal/core/domain"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Webhook Security ----

// WebhookRejectedMessage is the only reason a webhook caller ever sees.
const WebhookRejectedMessage = "webhook verification failed"

// ---- Payout & Ledger Rules (PAY) ----

func ErrPayoutInFlight() *AppError {
	return Wrap("PAY_001", "Actor already has a payout request in flight", http.StatusConflict, domain.ErrPayoutInFlight)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrNoPaymentMethod() *AppError {
	return Wrap("PAY_003", "No active payment method", http.StatusUnprocessableEntity, domain.ErrNoPaymentMethod)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidTransition(from, to domain.PayoutStatus) *AppError {
	return Wrap("PAY_005", fmt.Sprintf("Cannot move payout from %s to %s", from, to), http.StatusConflict, domain.ErrInvalidTransition)
}

func ErrCurrencyMismatch(have, want string) *AppError {
	return New("PAY_006", fmt.Sprintf("Currency %s does not match ledger currency %s", want, have), http.StatusUnprocessableEntity)
}

// ---- Authentication (AUTH) ----

func ErrMissingToken() *AppError {
	return New("AUTH_001", "Missing or malformed Authorization header", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_004", "Operator role is not allowed here", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}

// FromDomain maps the ledger's sentinel errors onto their API codes. It
// returns nil when err carries none of them.
func FromDomain(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrPayoutInFlight):
		return ErrPayoutInFlight()
	case errors.Is(err, domain.ErrNoPaymentMethod):
		return ErrNoPaymentMethod()
	case errors.Is(err, domain.ErrBelowThreshold):
		return Wrap("PAY_007", "Balance is below the payout threshold", http.StatusUnprocessableEntity, domain.ErrBelowThreshold)
	default:
		return nil
	}
}
