package devgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testAnonKey = "anon-test-key"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(NewMemoryStore(), Options{AnonKey: testAnonKey, JWTSecret: []byte("test-secret")})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any, prefer bool) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("apikey", testAnonKey)
	if token == "" {
		token = testAnonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if prefer {
		req.Header.Set("Prefer", "return=representation")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func signUp(t *testing.T, ts *httptest.Server, email string) sessionResponse {
	t.Helper()
	status, body := call(t, ts, http.MethodPost, "/auth/v1/signup", "", credentialsRequest{Email: email, Password: "secret123"}, false)
	if status != http.StatusOK {
		t.Fatalf("signup: status %d: %s", status, body)
	}
	var sess sessionResponse
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess
}

func decodeError(t *testing.T, body []byte) apiError {
	t.Helper()
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body %s: %v", body, err)
	}
	return e
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRejectsMissingAPIKey(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/auth/v1/signup", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	_, ts := newTestServer(t)
	signUp(t, ts, "ani@example.com")

	status, body := call(t, ts, http.MethodPost, "/auth/v1/signup", "", credentialsRequest{Email: "ANI@example.com", Password: "secret123"}, false)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
	if got := decodeError(t, body).Msg; got != "User already registered" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestSignUpWeakPassword(t *testing.T) {
	_, ts := newTestServer(t)
	status, body := call(t, ts, http.MethodPost, "/auth/v1/signup", "", credentialsRequest{Email: "a@example.com", Password: "123"}, false)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
	if decodeError(t, body).ErrorCode != "weak_password" {
		t.Errorf("expected weak_password, got %s", body)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	_, ts := newTestServer(t)
	signUp(t, ts, "ani@example.com")

	status, body := call(t, ts, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentialsRequest{Email: "ani@example.com", Password: "nope-nope"}, false)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if got := decodeError(t, body).ErrorDescription; got != "Invalid login credentials" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestSignInIssuesVerifiableToken(t *testing.T) {
	srv, ts := newTestServer(t)
	created := signUp(t, ts, "ani@example.com")

	status, body := call(t, ts, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentialsRequest{Email: "ani@example.com", Password: "secret123"}, false)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var sess sessionResponse
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := srv.verifyToken(sess.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.ID != created.User.ID || c.Email != "ani@example.com" {
		t.Errorf("unexpected caller %+v", c)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	srv, ts := newTestServer(t)
	sess := signUp(t, ts, "ani@example.com")

	srv.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	status, body := call(t, ts, http.MethodGet, "/rest/v1/todos", sess.AccessToken, nil, false)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if got := decodeError(t, body).Message; got != "JWT expired" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	_, ts := newTestServer(t)
	sess := signUp(t, ts, "ani@example.com")

	if status, _ := call(t, ts, http.MethodPost, "/auth/v1/logout", sess.AccessToken, nil, false); status != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", status)
	}
	if status, _ := call(t, ts, http.MethodGet, "/auth/v1/user", sess.AccessToken, nil, false); status != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", status)
	}
}

func TestRowsRequireUserToken(t *testing.T) {
	_, ts := newTestServer(t)
	if status, _ := call(t, ts, http.MethodGet, "/rest/v1/todos", "", nil, false); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anon key, got %d", status)
	}
}

func TestTodosAreScopedToCaller(t *testing.T) {
	_, ts := newTestServer(t)
	ani := signUp(t, ts, "ani@example.com")
	budi := signUp(t, ts, "budi@example.com")

	status, body := call(t, ts, http.MethodPost, "/rest/v1/todos?select=*", ani.AccessToken,
		[]map[string]any{{"title": "beli susu", "is_done": false, "kategori": "Penting", "user_id": ani.User.ID}}, true)
	if status != http.StatusCreated {
		t.Fatalf("insert: expected 201, got %d: %s", status, body)
	}

	status, body = call(t, ts, http.MethodGet, "/rest/v1/todos?user_id=eq."+ani.User.ID+"&select=*", budi.AccessToken, nil, false)
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	if string(bytes.TrimSpace(body)) != "[]" {
		t.Errorf("expected other user's rows to be hidden, got %s", body)
	}

	status, body = call(t, ts, http.MethodPost, "/rest/v1/todos", budi.AccessToken,
		[]map[string]any{{"title": "x", "kategori": "Penting", "user_id": ani.User.ID}}, true)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign user_id, got %d", status)
	}
	if decodeError(t, body).Code != "42501" {
		t.Errorf("expected code 42501, got %s", body)
	}
}

func TestTodosNewestFirst(t *testing.T) {
	_, ts := newTestServer(t)
	ani := signUp(t, ts, "ani@example.com")
	for _, title := range []string{"satu", "dua", "tiga"} {
		status, body := call(t, ts, http.MethodPost, "/rest/v1/todos", ani.AccessToken,
			map[string]any{"title": title, "kategori": "Biasa aja", "user_id": ani.User.ID}, false)
		if status != http.StatusCreated {
			t.Fatalf("insert %s: %d %s", title, status, body)
		}
	}

	_, body := call(t, ts, http.MethodGet, "/rest/v1/todos?order=created_at.desc", ani.AccessToken, nil, false)
	var rows []struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 3 || rows[0].Title != "tiga" || rows[2].Title != "satu" {
		t.Errorf("expected newest first, got %+v", rows)
	}
}

func TestTodoValidation(t *testing.T) {
	_, ts := newTestServer(t)
	ani := signUp(t, ts, "ani@example.com")

	cases := []struct {
		name string
		row  map[string]any
		code string
	}{
		{"empty title", map[string]any{"title": "  ", "kategori": "Penting"}, "23514"},
		{"bad category", map[string]any{"title": "a", "kategori": "Urgent"}, "23514"},
		{"read-only column", map[string]any{"title": "a", "kategori": "Penting", "created_at": "2024-01-01T00:00:00Z"}, "428C9"},
		{"unknown column", map[string]any{"title": "a", "kategori": "Penting", "color": "red"}, "PGRST204"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := call(t, ts, http.MethodPost, "/rest/v1/todos", ani.AccessToken, tc.row, true)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", status, body)
			}
			if got := decodeError(t, body).Code; got != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, got)
			}
		})
	}
}

func TestPatchEchoesUpdatedRow(t *testing.T) {
	_, ts := newTestServer(t)
	ani := signUp(t, ts, "ani@example.com")
	_, body := call(t, ts, http.MethodPost, "/rest/v1/todos", ani.AccessToken,
		map[string]any{"title": "beli susu", "kategori": "Penting"}, true)
	var created []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || len(created) != 1 {
		t.Fatalf("decode created %s: %v", body, err)
	}

	status, body := call(t, ts, http.MethodPatch, "/rest/v1/todos?id=eq."+created[0].ID, ani.AccessToken,
		map[string]any{"is_done": true}, true)
	if status != http.StatusOK {
		t.Fatalf("patch: %d %s", status, body)
	}
	var rows []struct {
		IsDone bool   `json:"is_done"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || !rows[0].IsDone || rows[0].Title != "beli susu" {
		t.Errorf("unexpected echo %+v", rows)
	}

	status, body = call(t, ts, http.MethodPatch, "/rest/v1/todos?id=eq."+created[0].ID, ani.AccessToken,
		map[string]any{"user_id": "someone-else"}, true)
	if status != http.StatusBadRequest {
		t.Fatalf("expected user_id patch to be refused, got %d: %s", status, body)
	}
}

func TestProfileDuplicateInsert(t *testing.T) {
	_, ts := newTestServer(t)
	ani := signUp(t, ts, "ani@example.com")

	row := map[string]any{"id": ani.User.ID, "name": "Ani"}
	if status, body := call(t, ts, http.MethodPost, "/rest/v1/profiles", ani.AccessToken, row, true); status != http.StatusCreated {
		t.Fatalf("first insert: %d %s", status, body)
	}
	status, body := call(t, ts, http.MethodPost, "/rest/v1/profiles", ani.AccessToken, row, true)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if decodeError(t, body).Code != "23505" {
		t.Errorf("expected code 23505, got %s", body)
	}
}

func TestPatchWithoutColumnsChangesNothing(t *testing.T) {
	_, ts := newTestServer(t)
	ani := signUp(t, ts, "ani@example.com")
	call(t, ts, http.MethodPost, "/rest/v1/profiles", ani.AccessToken, map[string]any{"id": ani.User.ID, "name": "Ani"}, false)
	call(t, ts, http.MethodPost, "/rest/v1/todos", ani.AccessToken, map[string]any{"title": "x", "kategori": "Penting"}, false)

	for _, path := range []string{"/rest/v1/profiles?id=eq." + ani.User.ID, "/rest/v1/todos?user_id=eq." + ani.User.ID} {
		status, body := call(t, ts, http.MethodPatch, path, ani.AccessToken, map[string]any{}, true)
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d %s", path, status, body)
		}
		if decodeError(t, body).Code != "PGRST102" {
			t.Errorf("%s: expected PGRST102, got %s", path, body)
		}
	}

	_, body := call(t, ts, http.MethodGet, "/rest/v1/profiles?id=eq."+ani.User.ID, ani.AccessToken, nil, false)
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ani" {
		t.Errorf("expected name kept, got %v", rows)
	}
}

func TestProfileSelectProjection(t *testing.T) {
	_, ts := newTestServer(t)
	ani := signUp(t, ts, "ani@example.com")
	call(t, ts, http.MethodPost, "/rest/v1/profiles", ani.AccessToken, map[string]any{"id": ani.User.ID, "name": "Ani"}, false)

	_, body := call(t, ts, http.MethodGet, "/rest/v1/profiles?select=name&id=eq."+ani.User.ID, ani.AccessToken, nil, false)
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ani" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if _, ok := rows[0]["id"]; ok {
		t.Errorf("expected id to be projected away, got %v", rows[0])
	}
}

func TestDeleteUserCascades(t *testing.T) {
	srv, ts := newTestServer(t)
	ani := signUp(t, ts, "ani@example.com")
	call(t, ts, http.MethodPost, "/rest/v1/profiles", ani.AccessToken, map[string]any{"id": ani.User.ID, "name": "Ani"}, false)
	call(t, ts, http.MethodPost, "/rest/v1/todos", ani.AccessToken, map[string]any{"title": "x", "kategori": "Penting"}, false)

	if status, body := call(t, ts, http.MethodDelete, "/auth/v1/user", ani.AccessToken, nil, false); status != http.StatusNoContent {
		t.Fatalf("delete user: %d %s", status, body)
	}
	if _, err := srv.store.AccountByEmail(context.Background(), "ani@example.com"); err != ErrNotFound {
		t.Errorf("expected account gone, got %v", err)
	}
	profiles, _ := srv.store.ListProfiles(context.Background(), ProfileFilter{})
	todos, _ := srv.store.ListTodos(context.Background(), TodoFilter{})
	if len(profiles) != 0 || len(todos) != 0 {
		t.Errorf("expected rows removed, got %d profiles and %d todos", len(profiles), len(todos))
	}

	// The email can be registered again.
	signUp(t, ts, "ani@example.com")
}

func TestStampIsStrictlyIncreasing(t *testing.T) {
	srv := New(NewMemoryStore(), Options{})
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return fixed }

	a, b := srv.stamp(), srv.stamp()
	if !b.After(a) {
		t.Fatalf("expected %v after %v", b, a)
	}
}
