package oauth

import (
	"net/url"
	"strings"
)

// IsSecureTransport reports whether uri uses https. allowInsecure is the
// explicit local-development escape hatch and accepts any scheme.
func IsSecureTransport(uri string, allowInsecure bool) bool {
	if allowInsecure {
		return true
	}
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https")
}

// CheckSecureTransport returns an insecure_transport error for non-HTTPS uris.
func CheckSecureTransport(uri string, allowInsecure bool) error {
	if !IsSecureTransport(uri, allowInsecure) {
		return ErrInsecureTransport("")
	}
	return nil
}
