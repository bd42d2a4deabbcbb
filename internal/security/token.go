// Package security provides token masking and credential sanitization for
// everything the adapter logs or returns in an error.
package security

import "fmt"

const (
	minTokenLengthForPartialMask = 8
	maskShowChars                = 4
	maskEmpty                    = "[empty]"
	maskRedacted                 = "[redacted]"
)

// SecureToken wraps a hosting-service token so that it never prints in clear.
// All fmt verbs go through String or GoString, which mask the value.
//
//	token := NewSecureToken("BBDC-secret123456")
//	fmt.Printf("%v", token) // [token:****3456]
type SecureToken struct {
	value string
}

// NewSecureToken creates a SecureToken from a raw value.
func NewSecureToken(token string) SecureToken {
	return SecureToken{value: token}
}

// String implements fmt.Stringer with a masked representation.
func (t SecureToken) String() string {
	if t.value == "" {
		return maskEmpty
	}
	if len(t.value) < minTokenLengthForPartialMask {
		return maskRedacted
	}
	return fmt.Sprintf("[token:****%s]", t.value[len(t.value)-maskShowChars:])
}

// GoString implements fmt.GoStringer so %#v does not leak the value.
func (t SecureToken) GoString() string {
	return t.String()
}

// Value returns the raw token. Only pass the result to an HTTP or git
// transport, never to a logger.
func (t SecureToken) Value() string {
	return t.value
}

// IsEmpty reports whether no token is set.
func (t SecureToken) IsEmpty() bool {
	return t.value == ""
}
