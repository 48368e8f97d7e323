package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "sessionx:credential"

// RedisStore keeps the credential as JSON under a single Redis key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisKey sets the key the credential is stored under.
func WithRedisKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithRedisTTL bounds how long a credential survives in Redis.
//
// By default no TTL is set: an expired access token must stay readable so the
// backend can answer TOKEN-E-002 (refreshable) instead of TOKEN-E-001.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a store backed by client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		key:    DefaultKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads and decodes the stored credential.
func (s *RedisStore) Get(ctx context.Context) (*oauth2.Token, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("credential: redis get %s: %w", s.key, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("credential: decode %s: %w", s.key, err)
	}
	return &tok, nil
}

// Set encodes and stores token. A nil token clears the key.
func (s *RedisStore) Set(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return s.Clear(ctx)
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("credential: encode token: %w", err)
	}

	if err := s.client.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("credential: redis set %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the key.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("credential: redis del %s: %w", s.key, err)
	}
	return nil
}
