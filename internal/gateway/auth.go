package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/Makepad-fr/todoku/internal/model"
)

// AuthSession is what the identity API returns on sign-in, and on sign-up
// when no e-mail confirmation is pending.
type AuthSession struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         *model.User `json:"user"`
}

// Expiry returns the absolute token expiry if the service reported one.
func (s *AuthSession) Expiry(now time.Time) *time.Time {
	switch {
	case s.ExpiresAt > 0:
		t := time.Unix(s.ExpiresAt, 0).UTC()
		return &t
	case s.ExpiresIn > 0:
		t := now.Add(time.Duration(s.ExpiresIn) * time.Second).UTC()
		return &t
	}
	return nil
}

// Session converts the response into the value threaded through the app.
func (s *AuthSession) Session(now time.Time) model.Session {
	out := model.Session{AccessToken: s.AccessToken, ExpiresAt: s.Expiry(now)}
	if s.User != nil {
		out.UserID = s.User.ID
		out.Email = s.User.Email
	}
	return out
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpResponse is either a full session or, when confirmation is
// required, the bare user object.
type signUpResponse struct {
	AuthSession
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp creates an identity. AccessToken is empty when the service waits
// for an e-mail confirmation before issuing a session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*AuthSession, error) {
	var resp signUpResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := resp.AuthSession
	if out.User == nil && resp.ID != "" {
		out.User = &model.User{ID: resp.ID, Email: resp.Email}
	}
	return &out, nil
}

// SignIn exchanges e-mail and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	var resp AuthSession
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=password",
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignOut revokes the session behind token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", token: token}, nil)
}

// User returns the identity behind token.
func (c *Client) User(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: token}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes the identity behind token.
func (c *Client) DeleteUser(ctx context.Context, token string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/auth/v1/user", token: token}, nil)
}
