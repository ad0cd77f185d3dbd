package security

import "net/http"

// SetTokenResponseHeaders marks a response carrying credentials as
// non-cacheable (RFC 6749 section 5.1).
func SetTokenResponseHeaders(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
}

// SetSecurityHeaders sets browser hardening headers on OAuth endpoint responses.
func SetSecurityHeaders(h http.Header) {
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")
}
