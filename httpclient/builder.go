package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/publicsuffix"

	"github.com/AmmannChristian/go-sessionx/credential"
	"github.com/AmmannChristian/go-sessionx/refresh"
)

const (
	// DefaultRefreshPath is the endpoint that issues a new access credential.
	DefaultRefreshPath = "/auth/refresh"
	// DefaultLoginPath is handed to the unauthorized handler as destination.
	DefaultLoginPath = "/login"
	// DefaultTimeout bounds every request, including the refresh call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxResponseBytes is the largest response body accepted.
	DefaultMaxResponseBytes int64 = 10 << 20
)

// Builder provides a fluent interface for constructing an authenticated
// Client with bearer or cookie credentials and optional TLS/mTLS support.
type Builder struct {
	baseURL string
	headers http.Header

	// Credential configuration
	store       credential.Store
	cookies     bool
	jar         http.CookieJar
	refreshPath string
	loginPath   string

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	timeout         time.Duration
	refreshTimeout  time.Duration
	maxBody         int64
	baseTransport   http.RoundTripper
	followRedirects bool

	onUnauthorized UnauthorizedHandler
	logger         Logger
	registerer     prometheus.Registerer
}

// NewBuilder creates a new client builder.
func NewBuilder() *Builder {
	return &Builder{
		headers:         make(http.Header),
		refreshPath:     DefaultRefreshPath,
		loginPath:       DefaultLoginPath,
		timeout:         DefaultTimeout,
		maxBody:         DefaultMaxResponseBytes,
		followRedirects: true,
	}
}

// WithBaseURL sets the URL that request paths are joined to.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.baseURL = baseURL
	return b
}

// WithCredentialStore enables bearer credentials: the stored token is
// attached to every request, replaced after a successful refresh and cleared
// on an unrecoverable authentication failure.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithCookieCredentials enables cookie credentials with an in-memory cookie
// jar, so cookies set by login or refresh are sent on later requests.
func (b *Builder) WithCookieCredentials() *Builder {
	b.cookies = true
	return b
}

// WithCookieJar enables cookie credentials with a caller-supplied jar.
func (b *Builder) WithCookieJar(jar http.CookieJar) *Builder {
	b.cookies = jar != nil
	b.jar = jar
	return b
}

// WithDefaultHeaders adds headers sent with every request. Per-request
// headers override them; the anti-cache and Authorization headers override
// both.
func (b *Builder) WithDefaultHeaders(headers http.Header) *Builder {
	for key, values := range headers {
		b.headers[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}
	return b
}

// WithRefreshPath sets the refresh endpoint path.
// Default is "/auth/refresh".
func (b *Builder) WithRefreshPath(path string) *Builder {
	b.refreshPath = path
	return b
}

// WithLoginPath sets the destination passed to the unauthorized handler.
// Default is "/login".
func (b *Builder) WithLoginPath(path string) *Builder {
	b.loginPath = path
	return b
}

// WithUnauthorizedHandler sets the policy invoked on unrecoverable
// authentication failures. Without one, failures are only logged.
func (b *Builder) WithUnauthorizedHandler(h UnauthorizedHandler) *Builder {
	b.onUnauthorized = h
	return b
}

// WithLogger sets a logger for request failures and refresh events.
func (b *Builder) WithLogger(logger Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics registers the client's Prometheus counters on reg.
func (b *Builder) WithMetrics(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
// This should only be used for testing or development purposes.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 30 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithRefreshTimeout bounds one refresh operation independently of the
// callers waiting on it. Zero leaves only the request timeout.
func (b *Builder) WithRefreshTimeout(timeout time.Duration) *Builder {
	b.refreshTimeout = timeout
	return b
}

// WithMaxResponseBytes caps the response body size. A larger body fails the
// request with ErrResponseTooLarge.
func (b *Builder) WithMaxResponseBytes(n int64) *Builder {
	b.maxBody = n
	return b
}

// WithBaseTransport sets a custom base transport.
// This is useful for adding custom middleware or using a custom connection pool.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
// By default, the client follows up to 10 redirects.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the Client with the configured options.
//
// Returns:
//   - *Client: Configured client
//   - error: Error if configuration is invalid
func (b *Builder) Build() (*Client, error) {
	if b.baseURL != "" {
		u, err := url.Parse(b.baseURL)
		if err != nil {
			return nil, fmt.Errorf("httpclient: invalid base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("httpclient: base URL must be http or https, got %q", b.baseURL)
		}
	}
	if b.refreshPath == "" {
		return nil, errors.New("httpclient: refresh path is required")
	}
	if b.maxBody <= 0 {
		return nil, fmt.Errorf("httpclient: max response bytes must be positive, got %d", b.maxBody)
	}

	transport, err := b.buildBaseTransport()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Transport: NewTransport(b.store, transport),
		Timeout:   b.timeout,
	}

	if b.cookies {
		jar := b.jar
		if jar == nil {
			jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
			if err != nil {
				return nil, fmt.Errorf("httpclient: cookie jar: %w", err)
			}
		}
		httpClient.Jar = jar
	}

	// Configure redirect policy
	if !b.followRedirects {
		httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	m, err := newMetrics(b.registerer, "sessionx")
	if err != nil {
		return nil, fmt.Errorf("httpclient: register metrics: %w", err)
	}

	headers := http.Header{"Content-Type": {"application/json"}}
	for key, values := range b.headers {
		headers[key] = append([]string(nil), values...)
	}

	c := &Client{
		http:           httpClient,
		baseURL:        b.baseURL,
		headers:        headers,
		store:          b.store,
		refreshPath:    b.refreshPath,
		loginPath:      b.loginPath,
		maxBody:        b.maxBody,
		logger:         b.logger,
		metrics:        m,
		onUnauthorized: b.onUnauthorized,
	}

	opts := []refresh.Option{refresh.WithTimeout(b.refreshTimeout)}
	if b.logger != nil {
		opts = append(opts, refresh.WithLogger(b.logger))
	}
	c.coordinator = refresh.New(c.refreshCredential, opts...)

	return c, nil
}

// buildBaseTransport returns the transport below the request pipeline.
func (b *Builder) buildBaseTransport() (http.RoundTripper, error) {
	if b.baseTransport != nil {
		return b.baseTransport, nil
	}

	httpTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// Fallback to whatever default transport is configured (e.g., a test stub)
		return http.DefaultTransport, nil
	}
	httpTransport = httpTransport.Clone()

	if b.tlsEnabled || b.tlsSkipVerify {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		httpTransport.TLSClientConfig = tlsConfig
	} else {
		// Set secure TLS defaults even when TLS is not explicitly configured
		httpTransport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return httpTransport, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	// Load CA certificate for server verification
	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	// Load client certificate for mTLS (if both cert and key are provided)
	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// New is a convenience function that creates a bearer-credential client for
// baseURL with default settings. For more configuration options, use Builder
// instead.
//
// Example:
//
//	store := credential.NewMemoryStore()
//	client, err := httpclient.New("https://api.example.com", store)
//	resp, err := client.Get(ctx, "/users/profile")
func New(baseURL string, store credential.Store) (*Client, error) {
	return NewBuilder().
		WithBaseURL(baseURL).
		WithCredentialStore(store).
		Build()
}
