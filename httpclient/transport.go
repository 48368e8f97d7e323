package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/AmmannChristian/go-sessionx/credential"
)

// antiCacheHeaders are set on every outgoing request.
var antiCacheHeaders = [...][2]string{
	{"Cache-Control", "no-cache, no-store, must-revalidate"},
	{"Pragma", "no-cache"},
	{"Expires", "0"},
}

// Transport is an http.RoundTripper implementing the request stage of the
// pipeline: it adds anti-cache headers to every request and, when a
// credential store is configured, the stored token as
// "Authorization: Bearer <token>".
//
// Pipeline headers are applied last, so they replace caller-supplied values
// for the same keys instead of being dropped. Requests whose context is
// marked with WithSkipAuth never get an Authorization header from the store.
type Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Store provides the bearer credential. If nil, no Authorization header is added.
	Store credential.Store
}

// RoundTrip implements http.RoundTripper interface.
// The original request is never modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(ctx)
	if reqClone.Header == nil {
		reqClone.Header = make(http.Header)
	}

	for _, h := range antiCacheHeaders {
		reqClone.Header.Set(h[0], h[1])
	}

	if t.Store != nil && !SkipAuthFromContext(ctx) {
		token, err := t.Store.Get(ctx)
		switch {
		case err == nil:
			if token.AccessToken != "" {
				token.SetAuthHeader(reqClone)
			}
		case errors.Is(err, credential.ErrNoCredential):
			// No credential yet: the backend answers TOKEN-E-001.
		default:
			return nil, fmt.Errorf("httpclient: failed to read credential: %w", err)
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(reqClone)
}

// NewTransport creates a pipeline transport. A nil store disables bearer
// attachment; a nil base defaults to http.DefaultTransport.
func NewTransport(store credential.Store, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &Transport{
		Base:  base,
		Store: store,
	}
}
