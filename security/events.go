package security

// Event types recorded by the Auditor.
const (
	// EventTokenIssued is logged when a token endpoint issues an access token
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when a refresh_token grant succeeds
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a token is revoked (RFC 7009)
	EventTokenRevoked = "token_revoked"

	// EventAuthorizationCodeIssued is logged when the authorization endpoint issues a code
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthFailure is logged when client authentication fails
	EventAuthFailure = "auth_failure"

	// EventGrantError is logged when a grant rejects a request
	EventGrantError = "grant_error"

	// EventRateLimitExceeded is logged when a client is throttled
	EventRateLimitExceeded = "rate_limit_exceeded"
)
