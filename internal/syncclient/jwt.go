package syncclient

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	subject string
	expiry  time.Time
}

// decodeJWTClaimsUnverified extracts the subject and expiry from a JWT
// without verifying its signature — the client has no way to verify a
// server-signed token (it doesn't hold API_JWT_SECRET) and has no need to:
// the server re-validates on every authenticated request. This is purely so
// the CLI can display expiry and detect local expiry before making a round
// trip that would fail anyway.
func decodeJWTClaimsUnverified(token string) (jwtClaims, error) {
	claims := jwt.MapClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return jwtClaims{}, fmt.Errorf("syncclient: parsing token claims: %w", err)
	}

	var out jwtClaims

	if sub, err := claims.GetSubject(); err == nil {
		out.subject = sub
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.expiry = exp.Time
	}

	return out, nil
}
