package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 12*time.Hour, "tutor-ledger")

	tokenStr, expiresAt, err := svc.Generate("ops-42", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), expiresAt, time.Minute)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "ops-42", claims.OperatorID)
	assert.Equal(t, "admin", claims.Role)
}

func TestJWTTokenService_RequiresOperatorID(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "tutor-ledger")

	_, _, err := svc.Generate("", "admin")
	assert.Error(t, err)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, -1*time.Hour, "tutor-ledger")

	tokenStr, _, err := svc.Generate("ops-42", "admin")
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", time.Hour, "tutor-ledger")
	svc2 := NewJWTTokenService("secret-2", time.Hour, "tutor-ledger")

	tokenStr, _, err := svc1.Generate("ops-42", "admin")
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	other := NewJWTTokenService(testJWTSecret, time.Hour, "someone-else")
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "tutor-ledger")

	tokenStr, _, err := other.Generate("ops-42", "admin")
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestJWTTokenService_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "tutor-ledger")

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "ops-42",
		Issuer:    "tutor-ledger",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenStr, err := tok.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_MalformedTokens(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "tutor-ledger")

	for _, s := range []string{"", "not.a.valid.jwt", "abc"} {
		_, err := svc.Validate(s)
		assert.Error(t, err, "token %q", s)
	}
}
