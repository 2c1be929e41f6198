// Package authtoken issues and verifies the bearer tokens the API requires
// on every authenticated route (spec §6), using HS256 JWTs with a one-week
// expiry and a single externally-supplied signing secret (API_JWT_SECRET).
package authtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry is the fixed token lifetime spec §6 calls for.
const Expiry = 7 * 24 * time.Hour

// ErrInvalidToken covers every way verification can fail: bad signature,
// malformed token, expired token.
var ErrInvalidToken = errors.New("authtoken: invalid or expired token")

// Issuer signs and verifies bearer tokens for one server instance.
type Issuer struct {
	secret []byte
}

// New returns an Issuer using secret as the HS256 signing key.
func New(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// Issue mints a token whose subject is userID, expiring Expiry from now.
func (i *Issuer) Issue(userID string) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(Expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("authtoken: signing token: %w", err)
	}

	return signed, nil
}

// Verify checks a token's signature and expiry and returns its subject
// (the user id).
func (i *Issuer) Verify(tokenString string) (userID string, err error) {
	claims := jwt.RegisteredClaims{}

	_, err = jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authtoken: unexpected signing method %v", t.Header["alg"])
		}

		return i.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
