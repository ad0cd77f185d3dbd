package security

import "crypto/subtle"

// ConstantTimeEqual compares two credentials without short-circuiting on the
// first differing byte. The length check leaks only the length.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
