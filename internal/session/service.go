// Package session signs users in and out and keeps the resulting session on
// disk. Everything else receives the session as a model.Session value.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Makepad-fr/todoku/internal/gateway"
	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/Makepad-fr/todoku/internal/profile"
)

var (
	// ErrNotSignedIn is returned when no credentials are stored.
	ErrNotSignedIn = errors.New("not logged in")

	// ErrSessionExpired is returned when the stored token has expired.
	ErrSessionExpired = errors.New("session expired, log in again")

	// ErrRegistrationAborted is returned when the profile row could not be
	// created and the new identity was rolled back.
	ErrRegistrationAborted = errors.New("registration aborted")

	// ErrConfirmationPending is returned by SignUp when the service wants the
	// e-mail address confirmed before it issues a session.
	ErrConfirmationPending = errors.New("check your e-mail to confirm the account, then log in")

	// ErrTokenFromEnv is returned by SignOut when the token comes from
	// TODOKU_TOKEN and there is no file to delete.
	ErrTokenFromEnv = errors.New("token is provided by " + TokenEnv + " env var (nothing to delete)")
)

// Identity is the identity half of the gateway.
type Identity interface {
	SignUp(ctx context.Context, email, password string) (*gateway.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*gateway.AuthSession, error)
	SignOut(ctx context.Context, token string) error
	User(ctx context.Context, token string) (*model.User, error)
	DeleteUser(ctx context.Context, token string) error
}

// Service is the session context.
type Service struct {
	identity Identity
	profiles profile.Store
	creds    *CredentialStore
	logger   *log.Logger
	now      func() time.Time
}

// NewService wires the identity API, the profile table and the credential
// file. A nil logger discards.
func NewService(identity Identity, profiles profile.Store, creds *CredentialStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{identity: identity, profiles: profiles, creds: creds, logger: logger, now: time.Now}
}

func (s *Service) sessionFrom(resp *gateway.AuthSession) model.Session {
	sess := resp.Session(s.now())
	if claims, err := ParseClaims(sess.AccessToken); err == nil {
		if sess.ExpiresAt == nil {
			sess.ExpiresAt = claims.ExpiresAt
		}
		if sess.UserID == "" {
			sess.UserID = claims.Subject
		}
		if sess.Email == "" {
			sess.Email = claims.Email
		}
	}
	return sess
}

// SignIn authenticates and stores the session. Service errors are returned
// unwrapped so their message reaches the user verbatim.
func (s *Service) SignIn(ctx context.Context, email, password string) (model.Session, error) {
	resp, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		s.logger.Printf("sign in %s: %v", email, err)
		return model.Session{}, err
	}
	sess := s.sessionFrom(resp)
	if !sess.Valid() {
		return model.Session{}, fmt.Errorf("sign in: service returned no session")
	}
	if err := s.creds.Save(sess, s.now()); err != nil {
		return model.Session{}, fmt.Errorf("save credentials: %w", err)
	}

	// Accounts whose profile step was deferred or lost get their row here.
	if err := s.ensureProfile(ctx, sess); err != nil {
		s.logger.Printf("ensure profile %s: %v", sess.UserID, err)
	}
	return sess, nil
}

// SignUp creates the identity and then its profile row. If the profile
// insert fails the identity is deleted again, so no account is left without
// a profile.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (model.Session, error) {
	resp, err := s.identity.SignUp(ctx, email, password)
	if err != nil {
		s.logger.Printf("sign up %s: %v", email, err)
		return model.Session{}, err
	}
	sess := s.sessionFrom(resp)
	if sess.UserID == "" {
		return model.Session{}, fmt.Errorf("sign up: service returned no user")
	}
	if sess.AccessToken == "" {
		// Profile creation is deferred to the first SignIn.
		if err := s.creds.SavePending(PendingProfile{UserID: sess.UserID, Name: name}); err != nil {
			s.logger.Printf("keep pending name %s: %v", sess.UserID, err)
		}
		return sess, ErrConfirmationPending
	}

	if _, err := s.profiles.Create(ctx, sess, name); err != nil {
		s.logger.Printf("create profile %s: %v", sess.UserID, err)
		if cerr := s.identity.DeleteUser(ctx, sess.AccessToken); cerr != nil {
			s.logger.Printf("roll back identity %s: %v", sess.UserID, cerr)
			return model.Session{}, fmt.Errorf("%w: %w (removing the new account also failed: %w)", ErrRegistrationAborted, err, cerr)
		}
		return model.Session{}, fmt.Errorf("%w: %w", ErrRegistrationAborted, err)
	}

	if err := s.creds.Save(sess, s.now()); err != nil {
		return model.Session{}, fmt.Errorf("save credentials: %w", err)
	}
	return sess, nil
}

// SignOut revokes the token remotely (best effort) and deletes the stored
// credentials.
func (s *Service) SignOut(ctx context.Context) error {
	creds, err := s.creds.Load()
	if err != nil {
		return err
	}
	if creds == nil {
		return nil
	}
	if creds.Source == SourceEnv {
		return ErrTokenFromEnv
	}
	if err := s.identity.SignOut(ctx, creds.Token); err != nil {
		s.logger.Printf("remote sign out: %v", err)
	}
	return s.creds.Delete()
}

// Current returns the stored session.
func (s *Service) Current() (model.Session, error) {
	creds, err := s.creds.Load()
	if err != nil {
		return model.Session{}, err
	}
	if creds == nil || creds.Token == "" {
		return model.Session{}, ErrNotSignedIn
	}
	sess := creds.Session()
	if sess.Expired(s.now()) {
		return model.Session{}, ErrSessionExpired
	}
	if sess.UserID == "" {
		return model.Session{}, fmt.Errorf("%w: token carries no user id", ErrNotSignedIn)
	}
	return sess, nil
}

// Status returns the raw stored credentials, or nil when signed out.
func (s *Service) Status() (*Credentials, error) {
	return s.creds.Load()
}

// WhoAmI asks the identity API who the current token belongs to.
func (s *Service) WhoAmI(ctx context.Context) (*model.User, error) {
	sess, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.identity.User(ctx, sess.AccessToken)
}

func (s *Service) ensureProfile(ctx context.Context, sess model.Session) error {
	rows, err := s.profiles.Find(ctx, sess)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return nil
	}
	name, err := s.creds.TakePending(sess.UserID)
	if err != nil {
		s.logger.Printf("pending name %s: %v", sess.UserID, err)
	}
	_, err = s.profiles.Create(ctx, sess, name)
	return err
}
