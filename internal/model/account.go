package model

import "time"

// User is an identity as returned by the identity service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the single `profiles` row of an identity.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is the authenticated context that scopes every data call.
// It is passed explicitly; nothing holds it globally.
type Session struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	AccessToken string     `json:"access_token"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the session carries an identity and a token.
func (s Session) Valid() bool {
	return s.UserID != "" && s.AccessToken != ""
}

// Expired reports whether the token expiry is known and before now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
