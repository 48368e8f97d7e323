// Package envelope defines the response envelope returned by the backend API
// and the authentication message codes carried inside it.
//
// Every endpoint answers with
//
//	{"success": bool, "message": string, "messageCode": string, "data": T}
//
// and 401 responses use messageCode to say why authentication failed:
//
//   - TOKEN-E-001: no credential (AuthMissing)
//   - TOKEN-E-002: credential expired (AuthExpired)
//   - TOKEN-E-003: credential invalid (AuthInvalid)
//
// Decode keeps the payload raw so the HTTP layer can classify a response
// without knowing its data type; DecodeData re-types it for the caller.
package envelope
