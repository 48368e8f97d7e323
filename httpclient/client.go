package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/AmmannChristian/go-sessionx/credential"
	"github.com/AmmannChristian/go-sessionx/envelope"
	"github.com/AmmannChristian/go-sessionx/refresh"
)

// DefaultUnauthorizedMessage is passed to the unauthorized handler when the
// failed response carried no message.
const DefaultUnauthorizedMessage = "authentication required"

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Logger is the minimal logging interface used by the client.
// It is compatible with *log.Logger and hclog's standard logger adapter.
type Logger = refresh.Logger

// UnauthorizedHandler is invoked once per request chain that ends in an
// unrecoverable authentication failure. destination is the configured login
// path and message the backend's explanation.
type UnauthorizedHandler func(ctx context.Context, destination, message string)

// Request describes one API call. The client never mutates a Request; it
// copies the headers and encodes Body once before the first attempt.
type Request struct {
	Method string
	// Path is joined to the base URL unless it is an absolute http(s) URL.
	Path string
	// Body is JSON-encoded. []byte and json.RawMessage are sent verbatim.
	Body any
	// Header overrides the client's default headers. Pipeline headers
	// (anti-cache, Authorization) still take precedence.
	Header http.Header
	// SkipAuth bypasses bearer attachment and all authentication handling.
	SkipAuth bool
}

// Response is a completed 2xx exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Envelope is nil when the body was empty or not an envelope.
	Envelope *envelope.Raw
}

// DecodeData decodes the envelope of resp with data typed as T.
func DecodeData[T any](resp *Response) (*envelope.Envelope[T], error) {
	if resp == nil || resp.Envelope == nil {
		return nil, errors.New("httpclient: response carries no envelope")
	}
	return envelope.DecodeData[T](resp.Envelope)
}

// Client is an authenticated API client. It refreshes an expired credential
// at most once per request, shares a single refresh among concurrent
// requests and routes permanent authentication failures to the
// unauthorized handler.
//
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	http        *http.Client
	baseURL     string
	headers     http.Header
	store       credential.Store
	refreshPath string
	loginPath   string
	maxBody     int64
	coordinator *refresh.Coordinator
	logger      Logger
	metrics     *metrics

	mu             sync.RWMutex
	onUnauthorized UnauthorizedHandler
}

// call is the immutable, prepared form of a Request.
type call struct {
	id     string
	method string
	path   string
	url    string
	header http.Header
	body   []byte
	skip   bool
}

// Do sends req and handles authentication failures.
//
// A 2xx response is returned as is. Any other outcome returns a nil Response
// and an *Error. An expired credential triggers one shared refresh followed
// by one replay of req.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	cl, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	if cl.skip {
		ctx = WithSkipAuth(ctx)
	} else if SkipAuthFromContext(ctx) {
		cl.skip = true
	}

	retried := false
	for {
		resp, err := c.attempt(ctx, cl)

		if cl.skip {
			return c.finishSkipAuth(cl, resp, err)
		}

		kind := Classify(resp, err, retried)
		switch kind {
		case KindSuccess:
			c.metrics.observeRequest(kind)
			return resp, nil

		case KindNetworkFailure:
			c.logf("httpclient: [%s] %s %s: no response: %v", cl.id, cl.method, cl.path, err)
			return nil, c.fail(newError(kind, cl, nil, err), retried)

		case KindAPIError:
			c.logf("httpclient: [%s] %s %s: status %d", cl.id, cl.method, cl.path, resp.StatusCode)
			return nil, c.fail(newError(kind, cl, resp, nil), retried)

		case KindAuthExpired:
			ok, werr := c.coordinator.Ensure(ctx)
			if werr != nil {
				// The caller gave up waiting; the refresh keeps running for others.
				return nil, c.fail(newError(kind, cl, resp, werr), retried)
			}
			if !ok {
				return nil, c.unauthorized(ctx, newError(kind, cl, resp, nil), retried)
			}
			c.metrics.observeReplay()
			retried = true

		default:
			return nil, c.unauthorized(ctx, newError(kind, cl, resp, nil), retried)
		}
	}
}

// Get issues a GET request for path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE request for path.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// EnsureFreshCredential refreshes the credential, joining a refresh that is
// already in flight. It returns the shared outcome, or ctx.Err() if ctx ends
// first. Other transports (see grpcclient) use it to share refreshes with
// this client.
func (c *Client) EnsureFreshCredential(ctx context.Context) (bool, error) {
	return c.coordinator.Ensure(ctx)
}

// SetUnauthorizedHandler replaces the unauthorized handler. A nil handler
// restores the default, which only logs.
func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = h
}

// Store returns the configured credential store, or nil in cookie-only mode.
func (c *Client) Store() credential.Store {
	return c.store
}

// SetCredential stores token, serialised with refresh operations.
func (c *Client) SetCredential(ctx context.Context, token *oauth2.Token) error {
	if c.store == nil {
		return errors.New("httpclient: no credential store configured")
	}
	return c.coordinator.Exclusive(func() error {
		return c.store.Set(ctx, token)
	})
}

// ClearCredential drops the stored credential, serialised with refresh
// operations. It is a no-op without a store.
func (c *Client) ClearCredential(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.coordinator.Exclusive(func() error {
		return c.store.Clear(ctx)
	})
}

// HTTPClient returns the underlying *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// RefreshStats returns the refresh coordinator's counters.
func (c *Client) RefreshStats() refresh.Stats {
	return c.coordinator.Stats()
}

// prepare validates req and freezes it into a call.
func (c *Client) prepare(req *Request) (*call, error) {
	if req == nil {
		return nil, errors.New("httpclient: request is nil")
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	cl := &call{
		id:     uuid.NewString(),
		method: method,
		path:   req.Path,
		url:    c.resolve(req.Path),
		header: c.headers.Clone(),
		skip:   req.SkipAuth,
	}

	for key, values := range req.Header {
		cl.header[key] = append([]string(nil), values...)
	}
	if cl.header.Get(RequestIDHeader) == "" {
		cl.header.Set(RequestIDHeader, cl.id)
	} else {
		cl.id = cl.header.Get(RequestIDHeader)
	}

	switch body := req.Body.(type) {
	case nil:
	case []byte:
		cl.body = append([]byte(nil), body...)
	case json.RawMessage:
		cl.body = append([]byte(nil), body...)
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode request body: %w", err)
		}
		cl.body = encoded
	}

	return cl, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if c.baseURL == "" {
		return path
	}
	if path == "" {
		return c.baseURL
	}
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// attempt performs one exchange. A non-nil error means no usable response.
func (c *Client) attempt(ctx context.Context, cl *call) (*Response, error) {
	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, cl.method, cl.url, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	httpReq.Header = cl.header.Clone()

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("httpclient: read response body: %w", err)
	}
	if int64(len(raw)) > c.maxBody {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrResponseTooLarge, c.maxBody)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       raw,
	}
	if env, err := envelope.Decode(raw); err == nil {
		resp.Envelope = env
	}

	return resp, nil
}

// finishSkipAuth maps a skip-auth outcome without any authentication handling.
func (c *Client) finishSkipAuth(cl *call, resp *Response, err error) (*Response, error) {
	if err != nil {
		c.metrics.observeRequest(KindNetworkFailure)
		return nil, newError(KindNetworkFailure, cl, nil, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.observeRequest(KindAPIError)
		return nil, newError(KindAPIError, cl, resp, nil)
	}
	c.metrics.observeRequest(KindSuccess)
	return resp, nil
}

func (c *Client) fail(e *Error, retried bool) *Error {
	e.Retried = retried
	c.metrics.observeRequest(e.Kind)
	return e
}

// unauthorized clears the credential and notifies the handler exactly once.
func (c *Client) unauthorized(ctx context.Context, e *Error, retried bool) *Error {
	c.fail(e, retried)

	message := DefaultUnauthorizedMessage
	if e.Envelope != nil && e.Envelope.Message != "" {
		message = e.Envelope.Message
	}

	c.logf("httpclient: [%s] %s %s: %s (%s), redirecting to %s", e.RequestID, e.Method, e.Path, e.Kind, message, c.loginPath)
	c.endSession(ctx, e.Kind, e.RequestID, message)

	return e
}

// ReportUnauthorized applies the unauthorized policy on behalf of another
// transport: the credential is cleared and the handler is called once with
// message, or DefaultUnauthorizedMessage when message is empty. grpcclient
// calls it when a refresh fails or a replayed call is rejected again.
func (c *Client) ReportUnauthorized(ctx context.Context, message string) {
	if message == "" {
		message = DefaultUnauthorizedMessage
	}
	c.logf("httpclient: unauthorized reported by another transport (%s), redirecting to %s", message, c.loginPath)
	c.endSession(ctx, KindAuthUnrecoverable, "-", message)
}

func (c *Client) endSession(ctx context.Context, kind Kind, requestID, message string) {
	if err := c.ClearCredential(context.WithoutCancel(ctx)); err != nil {
		c.logf("httpclient: [%s] failed to clear credential: %v", requestID, err)
	}

	c.metrics.observeUnauthorized(kind)
	c.handler()(ctx, c.loginPath, message)
}

func (c *Client) handler() UnauthorizedHandler {
	c.mu.RLock()
	h := c.onUnauthorized
	c.mu.RUnlock()

	if h != nil {
		return h
	}
	return func(_ context.Context, destination, message string) {
		c.logf("httpclient: unauthorized and no handler configured (destination %s): %s", destination, message)
	}
}

// refreshCredential is the coordinator's refresh function. It reports
// whether the backend issued a new credential.
func (c *Client) refreshCredential(ctx context.Context) bool {
	cl := &call{
		id:     uuid.NewString(),
		method: http.MethodPost,
		path:   c.refreshPath,
		url:    c.resolve(c.refreshPath),
		header: c.headers.Clone(),
		body:   []byte("{}"),
		skip:   true,
	}
	cl.header.Set(RequestIDHeader, cl.id)

	resp, err := c.attempt(WithSkipAuth(ctx), cl)
	if err != nil {
		c.logf("httpclient: [%s] refresh failed: %v", cl.id, err)
		c.metrics.observeRefresh("network_failure")
		return false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || resp.Envelope == nil || !resp.Envelope.Success {
		c.logf("httpclient: [%s] refresh rejected with status %d", cl.id, resp.StatusCode)
		c.metrics.observeRefresh("rejected")
		return false
	}

	if c.store != nil {
		env, err := envelope.DecodeData[envelope.RefreshData](resp.Envelope)
		if err != nil {
			c.logf("httpclient: [%s] refresh returned malformed data: %v", cl.id, err)
			c.metrics.observeRefresh("malformed")
			return false
		}

		if env.Data.AccessToken != "" {
			token := credential.FromRefreshData(env.Data, time.Now())
			if err := c.store.Set(ctx, token); err != nil {
				c.logf("httpclient: [%s] failed to store refreshed credential: %v", cl.id, err)
				c.metrics.observeRefresh("store_error")
				return false
			}
		}
	}

	c.metrics.observeRefresh("success")
	return true
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
