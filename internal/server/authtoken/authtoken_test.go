package authtoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueThenVerifyRoundTrip(t *testing.T) {
	issuer := New([]byte("test-secret"))

	token, err := issuer.Issue("user-123")
	require.NoError(t, err)

	subject, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", subject)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := New([]byte("secret-a")).Issue("user-123")
	require.NoError(t, err)

	_, err = New([]byte("secret-b")).Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")

	claims := jwt.RegisteredClaims{
		Subject:   "user-123",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * Expiry)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-Expiry)),
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = New(secret).Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	_, err := New([]byte("test-secret")).Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}
