package devgateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Makepad-fr/todoku/internal/model"
)

// MinPasswordLength is the shortest password sign-up accepts.
const MinPasswordLength = 6

// accessClaims is the access token payload.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int        `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	RefreshToken string     `json:"refresh_token"`
	User         model.User `json:"user"`
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Server) issue(a Account) (sessionResponse, error) {
	now := s.now()
	exp := now.Add(s.opts.TokenTTL)
	claims := accessClaims{
		Email: a.Email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.JWTSecret)
	if err != nil {
		return sessionResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return sessionResponse{
		AccessToken:  signed,
		TokenType:    "bearer",
		ExpiresIn:    int(s.opts.TokenTTL / time.Second),
		ExpiresAt:    exp.Unix(),
		RefreshToken: strings.ReplaceAll(uuid.NewString(), "-", ""),
		User:         model.User{ID: a.ID, Email: a.Email},
	}, nil
}

func (s *Server) verifyToken(tok string) (caller, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return s.opts.JWTSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return caller{}, err
	}
	if claims.Subject == "" {
		return caller{}, errors.New("token has no subject")
	}
	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return caller{}, errTokenRevoked
	}
	return caller{ID: claims.Subject, Email: claims.Email, JTI: claims.ID, Exp: claims.ExpiresAt.Time}, nil
}

var errTokenRevoked = errors.New("token revoked")

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "JWT expired"
	case errors.Is(err, errTokenRevoked):
		return "Session not found"
	}
	return "Invalid JWT"
}

func decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	return req, nil
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Msg: "Invalid request payload", ErrorCode: "bad_json"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, apiError{Msg: "Unable to validate email address: invalid format", ErrorCode: "validation_failed"})
		return
	}
	if len(req.Password) < MinPasswordLength {
		writeJSON(w, http.StatusUnprocessableEntity, apiError{
			Msg:       fmt.Sprintf("Password should be at least %d characters.", MinPasswordLength),
			ErrorCode: "weak_password",
		})
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		s.logger.Printf("hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Msg: "Failed to hash password"})
		return
	}
	a := Account{ID: uuid.NewString(), Email: req.Email, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.store.CreateAccount(r.Context(), a); err != nil {
		if errors.Is(err, ErrDuplicate) {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{Msg: "User already registered", ErrorCode: "user_already_exists"})
			return
		}
		s.logger.Printf("create account: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Msg: "Database error saving new user"})
		return
	}

	resp, err := s.issue(a)
	if err != nil {
		s.logger.Printf("issue token: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Msg: "Failed to issue session"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if gt := r.URL.Query().Get("grant_type"); gt != "password" {
		writeJSON(w, http.StatusBadRequest, apiError{
			Error:            "unsupported_grant_type",
			ErrorDescription: fmt.Sprintf("unsupported grant_type %q", gt),
		})
		return
	}
	req, err := decodeCredentials(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Msg: "Invalid request payload", ErrorCode: "bad_json"})
		return
	}

	a, err := s.store.AccountByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Printf("lookup account: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Msg: "Database error querying schema"})
		return
	}
	if err != nil || !checkPasswordHash(req.Password, a.PasswordHash) {
		writeJSON(w, http.StatusBadRequest, apiError{
			Error:            "invalid_grant",
			ErrorDescription: "Invalid login credentials",
			ErrorCode:        "invalid_credentials",
		})
		return
	}

	resp, err := s.issue(a)
	if err != nil {
		s.logger.Printf("issue token: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Msg: "Failed to issue session"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	s.mu.Lock()
	s.revoked[c.JTI] = c.Exp
	now := s.now()
	for jti, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, jti)
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	a, err := s.store.AccountByID(r.Context(), c.ID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{Msg: "User not found", ErrorCode: "user_not_found"})
		return
	}
	if err != nil {
		s.logger.Printf("lookup account: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Msg: "Database error finding user"})
		return
	}
	writeJSON(w, http.StatusOK, model.User{ID: a.ID, Email: a.Email})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r.Context())
	err := s.store.DeleteAccount(r.Context(), c.ID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, apiError{Msg: "User not found", ErrorCode: "user_not_found"})
		return
	}
	if err != nil {
		s.logger.Printf("delete account: %v", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Msg: "Database error deleting user"})
		return
	}
	s.mu.Lock()
	s.revoked[c.JTI] = c.Exp
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
