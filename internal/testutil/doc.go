// Package testutil provides test helpers for go-sessionx packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// a fake envelope-speaking backend with JWT-protected routes, and self-signed certificate
// generation for TLS/mTLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - Backend: chi-based fake API with /auth/refresh, login and TOKEN-E-00x failures
//   - GRPCBackend: TLS gRPC health service behind the same bearer check
//   - RoundTripFunc / EnvelopeResponse: inline transports returning envelopes
//   - SignToken: HS256 tokens with a chosen lifetime
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
package testutil
