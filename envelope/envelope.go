package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message codes the backend attaches to authentication failures.
const (
	CodeTokenMissing = "TOKEN-E-001"
	CodeTokenExpired = "TOKEN-E-002"
	CodeTokenInvalid = "TOKEN-E-003"
)

// Envelope is the response shape shared by every backend endpoint.
//
// When Success is false, MessageCode must be inspected before Data is trusted.
type Envelope[T any] struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	MessageCode string `json:"messageCode"`
	Data        T      `json:"data"`
}

// Raw is an Envelope whose payload has not been decoded yet.
type Raw = Envelope[json.RawMessage]

// ErrEmptyBody is returned by Decode when there is nothing to decode.
var ErrEmptyBody = errors.New("envelope: empty body")

// Decode parses body as an envelope without interpreting the payload.
func Decode(body []byte) (*Raw, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	var env Raw
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("envelope: decode: %w", err)
	}

	return &env, nil
}

// DecodeData re-types the payload of a raw envelope.
// An absent or null payload yields the zero value of T.
func DecodeData[T any](env *Raw) (*Envelope[T], error) {
	if env == nil {
		return nil, errors.New("envelope: nil envelope")
	}

	out := &Envelope[T]{
		Success:     env.Success,
		Message:     env.Message,
		MessageCode: env.MessageCode,
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}

	if err := json.Unmarshal(env.Data, &out.Data); err != nil {
		return nil, fmt.Errorf("envelope: decode data: %w", err)
	}

	return out, nil
}

// RefreshData is the payload returned by the refresh and login endpoints.
type RefreshData struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType,omitempty"`
	ExpiresIn   int64  `json:"expiresIn,omitempty"`
}
