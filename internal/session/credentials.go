package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Makepad-fr/todoku/internal/model"
)

const (
	credFileName    = "credentials.json"
	pendingFileName = "pending_profile.json"

	// TokenEnv overrides the stored credentials with a raw access token.
	TokenEnv = "TODOKU_TOKEN"

	// HomeEnv overrides the state directory (default ~/.todoku).
	HomeEnv = "TODOKU_HOME"
)

// Source values for Credentials.
const (
	SourceEnv  = "env"
	SourceFile = "file"
)

// Credentials is the persisted session.
type Credentials struct {
	Token     string     `json:"token"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // from the service or the JWT
}

// Session returns the credentials as the value threaded through the app.
func (c *Credentials) Session() model.Session {
	return model.Session{UserID: c.UserID, Email: c.Email, AccessToken: c.Token, ExpiresAt: c.ExpiresAt}
}

// CredentialStore reads and writes credentials.json under a state directory.
type CredentialStore struct {
	dir string
}

// NewCredentialStore uses dir, or the default state directory when empty.
func NewCredentialStore(dir string) (*CredentialStore, error) {
	if dir == "" {
		d, err := StateDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return &CredentialStore{dir: dir}, nil
}

// StateDir is $TODOKU_HOME or ~/.todoku.
func StateDir() (string, error) {
	if env := strings.TrimSpace(os.Getenv(HomeEnv)); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".todoku"), nil
}

// Dir returns the state directory.
func (s *CredentialStore) Dir() string { return s.dir }

func (s *CredentialStore) path() string {
	return filepath.Join(s.dir, credFileName)
}

// Load returns the current credentials, or nil when not signed in.
// TODOKU_TOKEN wins over the file.
func (s *CredentialStore) Load() (*Credentials, error) {
	// 1) env override
	if env := strings.TrimSpace(os.Getenv(TokenEnv)); env != "" {
		token := stripBearer(env)
		creds := &Credentials{Token: token, Source: SourceEnv}
		if claims, err := ParseClaims(token); err == nil {
			creds.UserID = claims.Subject
			creds.Email = claims.Email
			creds.ExpiresAt = claims.ExpiresAt
		}
		return creds, nil
	}

	// 2) file
	b, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // not logged in
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(b, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	creds.Token = stripBearer(creds.Token)
	return &creds, nil
}

// Save persists sess. The directory is created 0700 and the file 0600.
func (s *CredentialStore) Save(sess model.Session, now time.Time) error {
	token := stripBearer(strings.TrimSpace(sess.AccessToken))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	creds := Credentials{
		Token:     token,
		UserID:    sess.UserID,
		Email:     sess.Email,
		Source:    SourceFile,
		CreatedAt: now,
		ExpiresAt: sess.ExpiresAt,
	}
	b, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(s.path(), b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes the credentials file. A missing file is not an error.
func (s *CredentialStore) Delete() error {
	if err := os.Remove(s.path()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// PendingProfile is the name given at sign-up while the account still
// waits for e-mail confirmation.
type PendingProfile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// SavePending records the name to use once userID first signs in.
func (s *CredentialStore) SavePending(p PendingProfile) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, pendingFileName), b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// TakePending returns the pending name for userID and removes the entry.
// It returns "" when nothing is pending for that user.
func (s *CredentialStore) TakePending(userID string) (string, error) {
	path := filepath.Join(s.dir, pendingFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read pending profile: %w", err)
	}
	var p PendingProfile
	if err := json.Unmarshal(b, &p); err != nil {
		return "", fmt.Errorf("parse pending profile: %w", err)
	}
	if p.UserID != userID {
		return "", nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove pending profile: %w", err)
	}
	return p.Name, nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
