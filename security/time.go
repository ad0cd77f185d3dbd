package security

import "time"

// DefaultClockSkewGracePeriod absorbs small clock differences between the
// token issuer and the resource server.
const DefaultClockSkewGracePeriod = 5 * time.Second

// IsTokenExpired checks expiresAt against now with the default grace period.
func IsTokenExpired(expiresAt, now time.Time) bool {
	return IsTokenExpiredWithGracePeriod(expiresAt, now, DefaultClockSkewGracePeriod)
}

// IsTokenExpiredWithGracePeriod reports whether expiresAt lies more than
// gracePeriod before now. A zero expiresAt never expires.
func IsTokenExpiredWithGracePeriod(expiresAt, now time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.After(expiresAt.Add(gracePeriod))
}

// IsTokenExpiringSoon reports whether expiresAt falls within threshold of now.
func IsTokenExpiringSoon(expiresAt, now time.Time, threshold time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.Add(threshold).After(expiresAt)
}
