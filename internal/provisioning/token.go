/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package provisioning

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is a bearer token. ExpiresAt is informational and may be zero.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// String hides the token value from logs.
func (t Token) String() string {
	if t.Value == "" {
		return "Token(empty)"
	}
	return "Token(redacted)"
}

// newToken builds a Token, taking the expiry from the JWT exp claim when the
// access token is a JWT and from expires_in otherwise. The signature is not
// verified; the provider does that.
func newToken(resp tokenResponse, now time.Time) Token {
	tok := Token{Value: resp.AccessToken}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		tok.ExpiresAt = claims.ExpiresAt.Time.UTC()
		return tok
	}
	if resp.ExpiresIn > 0 {
		tok.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}
	return tok
}
