package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the parts of an access token the client looks at.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt *time.Time
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ParseClaims reads the payload of a JWT access token. The signature is not
// verified.
func ParseClaims(token string) (Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(stripBearer(token), &tc); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	out := Claims{Subject: tc.Subject, Email: tc.Email}
	if tc.ExpiresAt != nil {
		t := tc.ExpiresAt.Time.UTC()
		out.ExpiresAt = &t
	}
	return out, nil
}
