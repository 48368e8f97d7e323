package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/AmmannChristian/go-sessionx/envelope"
)

// ErrNoCredential is returned by Store.Get when nothing is stored.
var ErrNoCredential = errors.New("credential: no credential stored")

// Store gives the HTTP client opaque access to the application's credential.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored credential or ErrNoCredential.
	Get(ctx context.Context) (*oauth2.Token, error)

	// Set replaces the stored credential.
	Set(ctx context.Context, token *oauth2.Token) error

	// Clear removes the stored credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns a copy of the stored credential.
func (s *MemoryStore) Get(_ context.Context) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, ErrNoCredential
	}
	tok := *s.token
	return &tok, nil
}

// Set stores a copy of token. A nil token clears the store.
func (s *MemoryStore) Set(_ context.Context, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == nil {
		s.token = nil
		return nil
	}
	tok := *token
	s.token = &tok
	return nil
}

// Clear drops the stored credential.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
	return nil
}

// FromRefreshData converts a refresh or login payload into a credential.
//
// The expiry is now+ExpiresIn when the backend sends one. Otherwise, if the
// access token is a JWT, its exp claim is used; the signature is not
// verified because the client never trusts the token, it only forwards it.
func FromRefreshData(data envelope.RefreshData, now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: data.AccessToken,
		TokenType:   data.TokenType,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	switch {
	case data.ExpiresIn > 0:
		tok.Expiry = now.Add(time.Duration(data.ExpiresIn) * time.Second)
	default:
		if exp, ok := jwtExpiry(data.AccessToken); ok {
			tok.Expiry = exp
		}
	}

	return tok
}

// jwtExpiry reads the exp claim of an unverified JWT.
func jwtExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenSource adapts a Store to oauth2.TokenSource so the stored credential
// can be used by oauth2-aware transports such as gRPC per-RPC credentials.
// Token never refreshes on its own; refreshing belongs to the HTTP client.
func TokenSource(ctx context.Context, store Store) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return &storeTokenSource{ctx: context.WithoutCancel(ctx), store: store}
}

type storeTokenSource struct {
	ctx   context.Context
	store Store
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.store.Get(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("credential: token source: %w", err)
	}
	return tok, nil
}
