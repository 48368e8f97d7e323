package httpclient

import (
	"net/http"

	"github.com/AmmannChristian/go-sessionx/envelope"
)

// Kind classifies the outcome of one HTTP exchange.
type Kind int

const (
	// KindNone is returned by KindOf for errors that are not *Error.
	KindNone Kind = iota
	// KindSuccess is a 2xx response; the envelope is passed through unchanged.
	KindSuccess
	// KindNetworkFailure means no HTTP response was received.
	KindNetworkFailure
	// KindAPIError is any non-2xx response that is not an authentication failure.
	KindAPIError
	// KindAuthExpired is a 401 carrying TOKEN-E-002 on a first attempt.
	KindAuthExpired
	// KindAuthMissing is a 401 carrying TOKEN-E-001.
	KindAuthMissing
	// KindAuthInvalid is a 401 carrying TOKEN-E-003.
	KindAuthInvalid
	// KindAuthUnrecoverable is a 401 with no envelope, no or an unknown
	// messageCode, or TOKEN-E-002 on a replayed request.
	KindAuthUnrecoverable
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNetworkFailure:
		return "network failure"
	case KindAPIError:
		return "api error"
	case KindAuthExpired:
		return "auth expired"
	case KindAuthMissing:
		return "auth missing"
	case KindAuthInvalid:
		return "auth invalid"
	case KindAuthUnrecoverable:
		return "auth unrecoverable"
	default:
		return "none"
	}
}

// IsAuth reports whether k is one of the authentication failure kinds.
func (k Kind) IsAuth() bool {
	switch k {
	case KindAuthExpired, KindAuthMissing, KindAuthInvalid, KindAuthUnrecoverable:
		return true
	default:
		return false
	}
}

// Classify maps an HTTP outcome to exactly one Kind.
//
// A non-nil err or nil resp is a network failure. retried reports whether the
// request has already been replayed after a refresh; an expired credential on
// a replay is unrecoverable.
func Classify(resp *Response, err error, retried bool) Kind {
	if err != nil || resp == nil {
		return KindNetworkFailure
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return KindSuccess
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return KindAPIError
	}

	if resp.Envelope == nil {
		return KindAuthUnrecoverable
	}

	code, ok := envelope.ParseAuthErrorCode(resp.Envelope.MessageCode)
	if !ok {
		return KindAuthUnrecoverable
	}

	switch code {
	case envelope.AuthMissing:
		return KindAuthMissing
	case envelope.AuthInvalid:
		return KindAuthInvalid
	case envelope.AuthExpired:
		if retried {
			return KindAuthUnrecoverable
		}
		return KindAuthExpired
	default:
		return KindAuthUnrecoverable
	}
}
