package authapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/AmmannChristian/go-sessionx/credential"
	"github.com/AmmannChristian/go-sessionx/envelope"
	"github.com/AmmannChristian/go-sessionx/httpclient"
)

const (
	// DefaultLoginPath is the backend's email/password login endpoint.
	DefaultLoginPath = "/api/v1/auth/login"
	// DefaultRegisterPath creates a new account.
	DefaultRegisterPath = "/api/v1/account/register"
	// DefaultProfilePath serves the current user's profile.
	DefaultProfilePath = "/users/profile"
	// DefaultUsersPath is the collection that user IDs are appended to.
	DefaultUsersPath = "/users"
)

// LoginRequest holds email/password credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest holds the fields of a new account.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the backend's user representation.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ProfileUpdate carries the fields of a partial profile update.
// Empty fields are omitted.
type ProfileUpdate struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Service wraps the authentication endpoints of the backend.
type Service struct {
	client       *httpclient.Client
	loginPath    string
	registerPath string
	profilePath  string
	usersPath    string
	now          func() time.Time
}

// Option is a functional option for configuring Service.
type Option func(*Service)

// WithLoginPath overrides the login endpoint.
func WithLoginPath(path string) Option {
	return func(s *Service) {
		s.loginPath = path
	}
}

// WithRegisterPath overrides the registration endpoint.
func WithRegisterPath(path string) Option {
	return func(s *Service) {
		s.registerPath = path
	}
}

// WithProfilePath overrides the profile endpoint.
func WithProfilePath(path string) Option {
	return func(s *Service) {
		s.profilePath = path
	}
}

// New creates a Service that issues its calls through client.
func New(client *httpclient.Client, opts ...Option) *Service {
	s := &Service{
		client:       client,
		loginPath:    DefaultLoginPath,
		registerPath: DefaultRegisterPath,
		profilePath:  DefaultProfilePath,
		usersPath:    DefaultUsersPath,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates with email and password. The call bypasses
// authentication handling, so a rejected login never triggers a refresh or
// the unauthorized handler. On success the issued access token is stored as
// the client's credential (when a store is configured) and returned.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*oauth2.Token, error) {
	if req.Email == "" || req.Password == "" {
		return nil, errors.New("authapi: email and password are required")
	}

	resp, err := s.client.Do(ctx, &httpclient.Request{
		Method:   http.MethodPost,
		Path:     s.loginPath,
		Body:     req,
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}

	env, err := httpclient.DecodeData[envelope.RefreshData](resp)
	if err != nil {
		return nil, fmt.Errorf("authapi: decode login response: %w", err)
	}
	if !env.Success {
		return nil, rejected(http.MethodPost, s.loginPath, resp)
	}

	// Cookie-only backends may answer without a token.
	if env.Data.AccessToken == "" {
		return &oauth2.Token{}, nil
	}

	token := credential.FromRefreshData(env.Data, s.now())
	if s.client.Store() != nil {
		if err := s.client.SetCredential(ctx, token); err != nil {
			return nil, fmt.Errorf("authapi: store credential: %w", err)
		}
	}

	return token, nil
}

// Register creates an account. Like Login it bypasses authentication
// handling; it does not log the new account in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return errors.New("authapi: name, email and password are required")
	}

	resp, err := s.client.Do(ctx, &httpclient.Request{
		Method:   http.MethodPost,
		Path:     s.registerPath,
		Body:     req,
		SkipAuth: true,
	})
	if err != nil {
		return err
	}

	if resp.Envelope == nil {
		return fmt.Errorf("authapi: decode register response: %w", envelope.ErrEmptyBody)
	}
	if !resp.Envelope.Success {
		return rejected(http.MethodPost, s.registerPath, resp)
	}
	return nil
}

// Profile returns the current user's profile.
func (s *Service) Profile(ctx context.Context) (*User, error) {
	resp, err := s.client.Get(ctx, s.profilePath)
	if err != nil {
		return nil, err
	}
	return decodeUser(http.MethodGet, s.profilePath, resp)
}

// UpdateProfile applies a partial update to the current user's profile.
func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	resp, err := s.client.Put(ctx, s.profilePath, update)
	if err != nil {
		return nil, err
	}
	return decodeUser(http.MethodPut, s.profilePath, resp)
}

// DeleteUser deletes the user with the given ID.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	path := s.usersPath + "/" + strconv.FormatInt(id, 10)

	resp, err := s.client.Delete(ctx, path)
	if err != nil {
		return err
	}
	if resp.Envelope != nil && !resp.Envelope.Success {
		return rejected(http.MethodDelete, path, resp)
	}
	return nil
}

// Logout drops the stored credential. It does not contact the backend.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.client.ClearCredential(ctx); err != nil {
		return fmt.Errorf("authapi: clear credential: %w", err)
	}
	return nil
}

func decodeUser(method, path string, resp *httpclient.Response) (*User, error) {
	env, err := httpclient.DecodeData[User](resp)
	if err != nil {
		return nil, fmt.Errorf("authapi: decode user: %w", err)
	}
	if !env.Success {
		return nil, rejected(method, path, resp)
	}
	return &env.Data, nil
}

// rejected reports a 2xx envelope with success=false as an API error.
func rejected(method, path string, resp *httpclient.Response) error {
	e := &httpclient.Error{
		Kind:       httpclient.KindAPIError,
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Envelope:   resp.Envelope,
	}
	if resp.Envelope != nil {
		e.Message = resp.Envelope.Message
		e.MessageCode = resp.Envelope.MessageCode
	}
	return e
}
