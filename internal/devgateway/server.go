// Package devgateway is a small stand-in for the hosted data service. It
// serves the same identity and row endpoints the client uses, so the CLI can
// run and be tested without a real project.
package devgateway

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Options configures a Server.
type Options struct {
	// AnonKey must be sent as the apikey header. Empty accepts any.
	AnonKey string
	// JWTSecret signs access tokens.
	JWTSecret []byte
	// TokenTTL is the access token lifetime. Defaults to one hour.
	TokenTTL time.Duration
	Logger   *log.Logger
}

// Server is an http.Handler for the /auth/v1 and /rest/v1 endpoints.
type Server struct {
	store  Store
	opts   Options
	logger *log.Logger
	router *mux.Router
	now    func() time.Time

	mu          sync.Mutex
	revoked     map[string]time.Time
	lastCreated time.Time
}

// DefaultJWTSecret is used when no secret is configured.
const DefaultJWTSecret = "todoku-dev-secret"

// New builds the server around store.
func New(store Store, opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if len(opts.JWTSecret) == 0 {
		opts.JWTSecret = []byte(DefaultJWTSecret)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		store:   store,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		revoked: map[string]time.Time{},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	auth := r.PathPrefix("/auth/v1").Subrouter()
	auth.Use(s.requireAPIKey)
	auth.HandleFunc("/signup", s.signUp).Methods(http.MethodPost)
	auth.HandleFunc("/token", s.token).Methods(http.MethodPost)
	auth.Handle("/logout", s.requireUser(http.HandlerFunc(s.logout))).Methods(http.MethodPost)
	auth.Handle("/user", s.requireUser(http.HandlerFunc(s.user))).Methods(http.MethodGet)
	auth.Handle("/user", s.requireUser(http.HandlerFunc(s.deleteUser))).Methods(http.MethodDelete)

	rest := r.PathPrefix("/rest/v1").Subrouter()
	rest.Use(s.requireAPIKey)
	rest.Use(s.requireUser)
	rest.HandleFunc("/{table}", s.selectRows).Methods(http.MethodGet)
	rest.HandleFunc("/{table}", s.insertRows).Methods(http.MethodPost)
	rest.HandleFunc("/{table}", s.updateRows).Methods(http.MethodPatch)
	rest.HandleFunc("/{table}", s.deleteRows).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiError{Message: "not found"})
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the store.
func (s *Server) Close() error { return s.store.Close() }

// apiError is the error body. Identity endpoints fill Msg and ErrorCode,
// row endpoints fill Message and Code.
type apiError struct {
	Message          string `json:"message,omitempty"`
	Msg              string `json:"msg,omitempty"`
	Code             string `json:"code,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("%s %s %d %s", r.Method, r.URL.RequestURI(), rec.status, time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AnonKey != "" && r.Header.Get("apikey") != s.opts.AnonKey {
			writeJSON(w, http.StatusUnauthorized, apiError{Message: "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contextKey avoids collisions with other packages' context values.
type contextKey string

const userKey contextKey = "user"

// caller is the authenticated identity behind a request.
type caller struct {
	ID    string
	Email string
	JTI   string
	Exp   time.Time
}

func callerFrom(ctx context.Context) caller {
	c, _ := ctx.Value(userKey).(caller)
	return c
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireUser accepts only a valid, unrevoked user token. The anon key is
// rejected.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearer(r)
		if tok == "" || tok == s.opts.AnonKey {
			writeJSON(w, http.StatusUnauthorized, apiError{Message: "JWT required", Code: "PGRST301"})
			return
		}
		c, err := s.verifyToken(tok)
		if err != nil {
			s.logger.Printf("reject token: %v", err)
			writeJSON(w, http.StatusUnauthorized, apiError{Message: tokenErrorMessage(err), Code: "PGRST301"})
			return
		}
		ctx := context.WithValue(r.Context(), userKey, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// stamp returns a creation time strictly after every earlier one, so
// created_at ordering is total.
func (s *Server) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastCreated) {
		t = s.lastCreated.Add(time.Microsecond)
	}
	s.lastCreated = t
	return t
}
