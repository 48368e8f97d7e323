package httpclient

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// skipAuthKey marks a request that must bypass authentication handling.
	skipAuthKey contextKey = "httpclient.skip_auth"
)

// WithSkipAuth returns a context whose requests bypass authentication
// handling: no bearer token is attached and a failure is never classified,
// refreshed or reported to the unauthorized handler.
//
// The client uses it for the refresh call itself so that call cannot recurse
// into refresh handling.
func WithSkipAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthKey, true)
}

// SkipAuthFromContext reports whether ctx was marked by WithSkipAuth.
func SkipAuthFromContext(ctx context.Context) bool {
	skip, _ := ctx.Value(skipAuthKey).(bool)
	return skip
}
