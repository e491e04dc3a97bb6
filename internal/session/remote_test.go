package session_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/Makepad-fr/todoku/internal/devgateway"
	"github.com/Makepad-fr/todoku/internal/gateway"
	"github.com/Makepad-fr/todoku/internal/profile"
	"github.com/Makepad-fr/todoku/internal/session"
)

func newService(t *testing.T) (*session.Service, *gateway.Client) {
	t.Helper()
	t.Setenv(session.TokenEnv, "")
	ts := httptest.NewServer(devgateway.New(devgateway.NewMemoryStore(), devgateway.Options{AnonKey: "anon"}))
	t.Cleanup(ts.Close)
	c := gateway.New(gateway.Options{URL: ts.URL, AnonKey: "anon"})
	creds, err := session.NewCredentialStore(t.TempDir())
	if err != nil {
		t.Fatalf("credential store: %v", err)
	}
	return session.NewService(c, profile.NewRemoteStore(c), creds, nil), c
}

func TestRegisterCreatesProfile(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	sess, err := svc.SignUp(ctx, "ani@example.com", "secret123", "Ani")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	rows, err := profile.NewRemoteStore(c).Find(ctx, sess)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Ani" {
		t.Fatalf("expected profile named Ani, got %+v", rows)
	}

	current, err := svc.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.UserID != sess.UserID {
		t.Errorf("expected stored session for %s, got %s", sess.UserID, current.UserID)
	}

	user, err := svc.WhoAmI(ctx)
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if user.Email != "ani@example.com" {
		t.Errorf("unexpected user %+v", user)
	}
}

func TestSignInReportsServiceMessage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	if _, err := svc.SignUp(ctx, "ani@example.com", "secret123", "Ani"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := svc.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	_, err := svc.SignIn(ctx, "ani@example.com", "wrong-one")
	if err == nil || err.Error() != "Invalid login credentials" {
		t.Fatalf("expected verbatim message, got %v", err)
	}
	if _, err := svc.Current(); !errors.Is(err, session.ErrNotSignedIn) {
		t.Errorf("expected signed out, got %v", err)
	}
}

func TestSignInRestoresMissingProfile(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)

	// An identity created outside the registration flow has no profile row.
	if _, err := c.SignUp(ctx, "budi@example.com", "secret123"); err != nil {
		t.Fatalf("raw sign up: %v", err)
	}

	sess, err := svc.SignIn(ctx, "budi@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	rows, err := profile.NewRemoteStore(c).Find(ctx, sess)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "" {
		t.Fatalf("expected an empty-named profile, got %+v", rows)
	}
}

func TestDuplicateRegistrationLeavesFirstAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	if _, err := svc.SignUp(ctx, "ani@example.com", "secret123", "Ani"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	_, err := svc.SignUp(ctx, "ani@example.com", "another1", "Ani 2")
	if err == nil || err.Error() != "User already registered" {
		t.Fatalf("expected duplicate message, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "ani@example.com", "secret123"); err != nil {
		t.Errorf("expected first account intact, got %v", err)
	}
}
