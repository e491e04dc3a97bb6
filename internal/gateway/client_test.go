package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Makepad-fr/todoku/internal/devgateway"
	"github.com/Makepad-fr/todoku/internal/gateway"
	"github.com/Makepad-fr/todoku/internal/model"
)

const anonKey = "anon-test-key"

func newClient(t *testing.T) *gateway.Client {
	t.Helper()
	srv := devgateway.New(devgateway.NewMemoryStore(), devgateway.Options{AnonKey: anonKey})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return gateway.New(gateway.Options{URL: ts.URL, AnonKey: anonKey, Timeout: 5 * time.Second})
}

func TestNewAddsScheme(t *testing.T) {
	c := gateway.New(gateway.Options{URL: "xyz.supabase.co/"})
	if c.BaseURL() != "https://xyz.supabase.co" {
		t.Errorf("unexpected base url %q", c.BaseURL())
	}
}

func TestUnconfiguredURL(t *testing.T) {
	c := gateway.New(gateway.Options{})
	if _, err := c.SignIn(context.Background(), "a@example.com", "x"); err == nil {
		t.Fatal("expected error without url")
	}
}

func TestSignUpSignInRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	up, err := c.SignUp(ctx, "ani@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if up.AccessToken == "" || up.User == nil || up.User.ID == "" {
		t.Fatalf("expected session from sign up, got %+v", up)
	}

	in, err := c.SignIn(ctx, "ani@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	now := time.Now()
	sess := in.Session(now)
	if sess.UserID != up.User.ID || sess.Email != "ani@example.com" {
		t.Errorf("unexpected session %+v", sess)
	}
	if sess.ExpiresAt == nil || !sess.ExpiresAt.After(now) {
		t.Errorf("expected future expiry, got %v", sess.ExpiresAt)
	}

	user, err := c.User(ctx, in.AccessToken)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if user.ID != up.User.ID {
		t.Errorf("expected user %s, got %s", up.User.ID, user.ID)
	}
}

func TestServiceMessagesAreVerbatim(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	if _, err := c.SignUp(ctx, "ani@example.com", "secret123"); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	_, err := c.SignUp(ctx, "ani@example.com", "secret123")
	if err == nil || err.Error() != "User already registered" {
		t.Errorf("expected verbatim duplicate message, got %v", err)
	}
	if gateway.StatusOf(err) != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", gateway.StatusOf(err))
	}

	_, err = c.SignIn(ctx, "ani@example.com", "wrong-password")
	if err == nil || err.Error() != "Invalid login credentials" {
		t.Errorf("expected verbatim credentials message, got %v", err)
	}
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Code != "invalid_credentials" {
		t.Errorf("expected error code, got %#v", err)
	}
}

func TestRowQueries(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	auth, err := c.SignUp(ctx, "ani@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	token, uid := auth.AccessToken, auth.User.ID

	var created []model.Todo
	rows := []model.NewTodo{{Title: "beli susu", Kategori: model.CategoryPenting, UserID: uid}}
	if err := c.From("todos", token).Insert(ctx, rows, &created); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(created) != 1 || created[0].ID == "" || created[0].CreatedAt.IsZero() {
		t.Fatalf("expected created row with id and timestamp, got %+v", created)
	}

	var updated []model.Todo
	err = c.From("todos", token).Eq("id", created[0].ID).Update(ctx, map[string]any{"is_done": true}, &updated)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated) != 1 || !updated[0].IsDone {
		t.Fatalf("expected echoed row, got %+v", updated)
	}

	var none []model.Todo
	if err := c.From("todos", token).Eq("id", "missing").Update(ctx, map[string]any{"is_done": true}, &none); err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no rows for missing id, got %+v", none)
	}

	var listed []model.Todo
	if err := c.From("todos", token).Eq("user_id", uid).Order("created_at", false).Get(ctx, &listed); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one row, got %d", len(listed))
	}

	if err := c.From("todos", token).Eq("id", created[0].ID).Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	listed = nil
	if err := c.From("todos", token).Get(ctx, &listed); err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("expected empty list, got %+v", listed)
	}
}

func TestUnknownTable(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	auth, err := c.SignUp(ctx, "ani@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	var rows []map[string]any
	err = c.From("notes", auth.AccessToken).Get(ctx, &rows)
	if gateway.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestSignOutRevokes(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	auth, err := c.SignUp(ctx, "ani@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := c.SignOut(ctx, auth.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := c.User(ctx, auth.AccessToken); gateway.StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 after sign out, got %v", err)
	}
}
