// Package httpclient provides an authenticated API client for backends that
// answer every call with a success/message/messageCode/data envelope.
//
// Every request passes through a pipeline transport that adds anti-cache
// headers and, in bearer mode, the stored access token. Responses are
// classified into a single Kind. An expired credential (HTTP 401 with
// TOKEN-E-002) triggers one refresh call, shared by all concurrent requests
// that hit the same expiry, followed by exactly one replay of each failed
// request. Missing, invalid and otherwise unrecoverable credentials clear the
// store and invoke the configured UnauthorizedHandler once per request.
//
// Basic usage:
//
//	store := credential.NewMemoryStore()
//	client, err := httpclient.NewBuilder().
//		WithBaseURL("https://api.example.com").
//		WithCredentialStore(store).
//		WithUnauthorizedHandler(func(ctx context.Context, destination, message string) {
//			log.Printf("login required (%s): %s", destination, message)
//		}).
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	resp, err := client.Get(ctx, "/users/profile")
//	if errors.Is(err, httpclient.ErrUnauthorized) {
//		// the handler has already been notified
//	}
//	profile, err := httpclient.DecodeData[User](resp)
//
// With cookie credentials the refresh endpoint authenticates through cookies
// kept in the client's jar:
//
//	client, err := httpclient.NewBuilder().
//		WithBaseURL("https://api.example.com").
//		WithCookieCredentials().
//		Build()
//
// Requests marked with Request.SkipAuth or WithSkipAuth bypass all
// authentication handling; a non-2xx answer is returned as an APIError.
package httpclient
