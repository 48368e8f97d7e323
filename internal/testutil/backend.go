package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// Message codes served by Backend.
const (
	CodeTokenMissing = "TOKEN-E-001"
	CodeTokenExpired = "TOKEN-E-002"
	CodeTokenInvalid = "TOKEN-E-003"
	CodeLoginFailed  = "AUTH-E-001"
	CodeEmailTaken   = "ACCOUNT-E-001"
	CodeServerError  = "SERVER-E-001"
)

// Backend is a fake API server speaking the success/message/messageCode/data
// envelope. Protected routes require an HS256 bearer token signed with Secret
// and answer 401 with TOKEN-E-001/002/003 otherwise.
//
// Routes:
//
//	POST /auth/refresh            issue a fresh token (see SetRefreshHandler)
//	POST /api/v1/auth/login       email/password login
//	POST /api/v1/account/register create an account (200 success=false if the email is taken)
//	GET  /users/profile           protected
//	GET  /data                    protected
//	POST /echo                    protected, echoes the JSON body as data
//	GET  /headers                 protected, returns the request headers
//	GET  /nocode                  401 without an envelope
//	GET  /boom                    500 with an error envelope
type Backend struct {
	*httptest.Server
	Secret []byte

	router chi.Router

	mu             sync.Mutex
	hits           map[string]int
	refreshCalls   int
	refreshTTL     time.Duration
	refreshHandler http.HandlerFunc
	refreshCookie  string
	users          map[string]string
}

// NewBackend starts a Backend on IPv4 loopback and closes it on cleanup.
func NewBackend(tb testing.TB) *Backend {
	tb.Helper()

	b := &Backend{
		Secret:     []byte("backend-test-secret"),
		hits:       make(map[string]int),
		refreshTTL: time.Hour,
		users:      map[string]string{"alice@example.com": "correct-password"},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.countHits)

	r.Post("/auth/refresh", b.handleRefresh)
	r.Post("/api/v1/auth/login", b.handleLogin)
	r.Post("/api/v1/account/register", b.handleRegister)
	r.Get("/nocode", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		WriteEnvelope(w, http.StatusInternalServerError, false, "internal error", CodeServerError, nil)
	})

	r.Group(func(r chi.Router) {
		r.Use(b.requireBearer)
		r.Get("/users/profile", func(w http.ResponseWriter, r *http.Request) {
			WriteEnvelope(w, http.StatusOK, true, "ok", "", map[string]any{
				"id":    1,
				"email": "alice@example.com",
				"name":  "Alice",
			})
		})
		r.Get("/data", func(w http.ResponseWriter, r *http.Request) {
			WriteEnvelope(w, http.StatusOK, true, "ok", "", map[string]string{"value": "ok"})
		})
		r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
			var body any
			_ = json.NewDecoder(r.Body).Decode(&body)
			WriteEnvelope(w, http.StatusOK, true, "ok", "", body)
		})
		r.Get("/headers", func(w http.ResponseWriter, r *http.Request) {
			WriteEnvelope(w, http.StatusOK, true, "ok", "", r.Header)
		})
	})

	b.router = r
	b.Server = NewLocalHTTPServer(tb, r)
	tb.Cleanup(b.Server.Close)

	return b
}

// Handle registers an extra unprotected route.
func (b *Backend) Handle(method, pattern string, h http.HandlerFunc) {
	b.router.MethodFunc(method, pattern, h)
}

// IssueToken signs a token valid for ttl (negative for an expired one).
func (b *Backend) IssueToken(tb testing.TB, ttl time.Duration) string {
	tb.Helper()
	return SignToken(tb, b.Secret, "user-1", ttl)
}

// SetRefreshTTL sets the lifetime of tokens issued by the refresh endpoint.
func (b *Backend) SetRefreshTTL(ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshTTL = ttl
}

// SetRefreshHandler replaces the refresh endpoint's behaviour. Calls are still counted.
func (b *Backend) SetRefreshHandler(h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshHandler = h
}

// RequireRefreshCookie makes login set, and refresh require, a cookie called name.
func (b *Backend) RequireRefreshCookie(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshCookie = name
}

// RefreshCalls returns how many times the refresh endpoint was hit.
func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// Hits returns how many requests reached method+path.
func (b *Backend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[method+" "+path]
}

// WriteEnvelope writes a JSON envelope with the given status.
func WriteEnvelope(w http.ResponseWriter, status int, success bool, message, code string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":     success,
		"message":     message,
		"messageCode": code,
		"data":        data,
	})
}

func (b *Backend) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code, message := b.CheckBearer(r.Header.Get("Authorization")); code != "" {
			WriteEnvelope(w, http.StatusUnauthorized, false, message, code, nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CheckBearer validates an Authorization header value. It returns an empty
// code when the token is accepted, otherwise the TOKEN-E-* code and message
// the backend answers with.
func (b *Backend) CheckBearer(header string) (code, message string) {
	raw := strings.TrimPrefix(header, "Bearer ")
	if header == "" || raw == header || raw == "" {
		return CodeTokenMissing, "token is missing"
	}

	_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return b.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return CodeTokenExpired, "token has expired"
	case err != nil:
		return CodeTokenInvalid, "token is invalid"
	}
	return "", ""
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	handler := b.refreshHandler
	ttl := b.refreshTTL
	cookie := b.refreshCookie
	b.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}

	if cookie != "" {
		if _, err := r.Cookie(cookie); err != nil {
			WriteEnvelope(w, http.StatusUnauthorized, false, "refresh token is missing", CodeTokenMissing, nil)
			return
		}
	}

	WriteEnvelope(w, http.StatusOK, true, "token refreshed", "", map[string]any{
		"accessToken": b.sign(ttl),
		"tokenType":   "Bearer",
		"expiresIn":   int64(ttl / time.Second),
	})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteEnvelope(w, http.StatusBadRequest, false, "malformed request", CodeLoginFailed, nil)
		return
	}

	b.mu.Lock()
	want, ok := b.users[req.Email]
	ttl := b.refreshTTL
	cookie := b.refreshCookie
	b.mu.Unlock()

	if !ok || want != req.Password {
		WriteEnvelope(w, http.StatusUnauthorized, false, "invalid email or password", CodeLoginFailed, nil)
		return
	}

	if cookie != "" {
		http.SetCookie(w, &http.Cookie{Name: cookie, Value: "refresh-" + req.Email, Path: "/", HttpOnly: true})
	}

	WriteEnvelope(w, http.StatusOK, true, "login succeeded", "", map[string]any{
		"accessToken": b.sign(ttl),
		"tokenType":   "Bearer",
		"expiresIn":   int64(ttl / time.Second),
	})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" || req.Password == "" {
		WriteEnvelope(w, http.StatusBadRequest, false, "name, email and password are required", CodeLoginFailed, nil)
		return
	}

	b.mu.Lock()
	_, taken := b.users[req.Email]
	if !taken {
		b.users[req.Email] = req.Password
	}
	b.mu.Unlock()

	if taken {
		WriteEnvelope(w, http.StatusOK, false, "email is already registered", CodeEmailTaken, nil)
		return
	}
	WriteEnvelope(w, http.StatusOK, true, "account created", "", nil)
}

func (b *Backend) sign(ttl time.Duration) string {
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}).SignedString(b.Secret)
	if err != nil {
		panic(err)
	}
	return signed
}
