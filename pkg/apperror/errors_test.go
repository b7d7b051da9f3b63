package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"tutor-ledger/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_002", "Invalid amount", http.StatusBadRequest),
			expected: "[PAY_002] Invalid amount",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("PAY_002", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"InFlight", fmt.Errorf("create payout: %w", domain.ErrPayoutInFlight), "PAY_001"},
		{"NoMethod", domain.ErrNoPaymentMethod, "PAY_003"},
		{"BelowThreshold", fmt.Errorf("recheck: %w", domain.ErrBelowThreshold), "PAY_007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromDomain(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}

	assert.Nil(t, FromDomain(errors.New("boom")))
	assert.Nil(t, FromDomain(nil))
}

func TestPayoutErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
		sentinel   error
	}{
		{"PayoutInFlight", ErrPayoutInFlight(), "PAY_001", 409, domain.ErrPayoutInFlight},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400, nil},
		{"NoPaymentMethod", ErrNoPaymentMethod(), "PAY_003", 422, domain.ErrNoPaymentMethod},
		{"NotFound", ErrNotFound("Payout request"), "PAY_004", 404, nil},
		{"InvalidTransition", ErrInvalidTransition(domain.PayoutStatusCompleted, domain.PayoutStatusPending), "PAY_005", 409, domain.ErrInvalidTransition},
		{"CurrencyMismatch", ErrCurrencyMismatch("USD", "NGN"), "PAY_006", 422, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			if tt.sentinel != nil {
				assert.ErrorIs(t, tt.err, tt.sentinel)
			}
		})
	}
}

func TestAuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"MissingToken", ErrMissingToken(), "AUTH_001", 401},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"Forbidden", ErrForbidden(), "AUTH_004", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	internal := InternalError(inner)
	assert.Equal(t, "SYS_001", internal.Code)
	assert.Equal(t, "Internal server error", internal.Message)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Earnings")
	assert.Contains(t, err.Message, "Earnings")
	assert.Equal(t, "PAY_004", err.Code)
}
