package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AmmannChristian/go-sessionx/envelope"
)

// ErrUnauthorized matches, via errors.Is, every *Error of an authentication kind.
var ErrUnauthorized = errors.New("httpclient: unauthorized")

// ErrResponseTooLarge is returned when a response body exceeds the configured
// maximum. The request then fails as a network failure.
var ErrResponseTooLarge = errors.New("httpclient: response body exceeds limit")

// Error is the single error type returned for failed requests. It carries
// enough detail to render the failure without transport-specific types.
type Error struct {
	Kind        Kind
	Method      string
	Path        string
	RequestID   string
	StatusCode  int // 0 for network failures
	Message     string
	MessageCode string
	Envelope    *envelope.Raw // nil when the body was not an envelope
	Retried     bool          // the failure happened on the replay
	Err         error         // underlying transport or context error
}

// Error renders the failure as "httpclient: <kind> <method> <path>: ...".
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "httpclient: %s %s %s", e.Kind, e.Method, e.Path)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.MessageCode != "" {
		fmt.Fprintf(&b, " (%s)", e.MessageCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil && (e.Message == "" || e.Message != e.Err.Error()) {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying transport or context error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches target. Every authentication kind
// matches ErrUnauthorized.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Kind.IsAuth()
}

// KindOf returns the Kind of err, or KindNone if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// newError builds an Error for call from an optional response and cause.
func newError(kind Kind, c *call, resp *Response, cause error) *Error {
	e := &Error{
		Kind:      kind,
		Method:    c.method,
		Path:      c.path,
		RequestID: c.id,
		Err:       cause,
	}

	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Envelope = resp.Envelope
		if resp.Envelope != nil {
			e.Message = resp.Envelope.Message
			e.MessageCode = resp.Envelope.MessageCode
		}
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
	} else if cause != nil {
		e.Message = cause.Error()
	}

	return e
}
