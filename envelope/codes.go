package envelope

// AuthErrorCode is the closed set of authentication failure reasons
// carried by 401 responses.
type AuthErrorCode int

const (
	// AuthMissing means the request carried no credential.
	AuthMissing AuthErrorCode = iota + 1
	// AuthExpired means the credential was valid but has expired.
	AuthExpired
	// AuthInvalid means the credential could not be verified.
	AuthInvalid
)

// String returns the symbolic name of the code.
func (c AuthErrorCode) String() string {
	switch c {
	case AuthMissing:
		return "MISSING"
	case AuthExpired:
		return "EXPIRED"
	case AuthInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// MessageCode returns the wire value for the code.
func (c AuthErrorCode) MessageCode() string {
	switch c {
	case AuthMissing:
		return CodeTokenMissing
	case AuthExpired:
		return CodeTokenExpired
	case AuthInvalid:
		return CodeTokenInvalid
	default:
		return ""
	}
}

// ParseAuthErrorCode maps a messageCode to an AuthErrorCode.
// It reports false for empty or unrecognised codes.
func ParseAuthErrorCode(messageCode string) (AuthErrorCode, bool) {
	switch messageCode {
	case CodeTokenMissing:
		return AuthMissing, true
	case CodeTokenExpired:
		return AuthExpired, true
	case CodeTokenInvalid:
		return AuthInvalid, true
	default:
		return 0, false
	}
}
