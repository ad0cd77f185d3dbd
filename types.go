// Package oauth is an OAuth 2.0 protocol engine (RFC 6749, 6750 and 7009).
//
// The root package holds the pieces shared by both roles: the protocol error
// taxonomy, the token model, the normalized request wrapper and the
// capability interfaces through which externally stored clients and grant
// credentials are accessed. The authorization-server dispatcher lives in the
// server package, the client session in the client package.
package oauth

// ClientType is the RFC 6749 section 2.1 client confidentiality class.
type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential"
	ClientTypePublic       ClientType = "public"
)

// Client is the capability interface of a registered client. Implementations
// are owned by the caller's storage; the engine only calls these methods.
type Client interface {
	// ClientID returns the client identifier.
	ClientID() string

	// DefaultRedirectURI returns the redirect URI used when a request omits one.
	DefaultRedirectURI() string

	// CheckRedirectURI reports whether uri is registered for the client.
	CheckRedirectURI(uri string) bool

	// HasClientSecret reports whether the client has a secret at all.
	HasClientSecret() bool

	// CheckClientSecret validates secret. Implementations must compare in
	// constant time.
	CheckClientSecret(secret string) bool

	// CheckClientType reports whether the client is of the given type.
	CheckClientType(t ClientType) bool

	// CheckResponseType reports whether the client may use responseType.
	CheckResponseType(responseType string) bool

	// CheckGrantType reports whether the client may use grantType.
	CheckGrantType(grantType string) bool

	// CheckRequestedScopes reports whether scopes are a subset of the
	// client's allowed scopes.
	CheckRequestedScopes(scopes []string) bool
}

// AuthorizationCode is a stored authorization code as seen by the
// authorization_code grant.
type AuthorizationCode interface {
	RedirectURI() string
	Scope() string
}

// TokenCredential is a stored token as seen by the refresh_token grant and
// the revocation endpoint.
type TokenCredential interface {
	// ClientID returns the client the token was issued to.
	ClientID() string
	Scope() string
	ExpiresIn() int64
	IsRefreshTokenExpired() bool
}

// GrantUser is the optional interface a resource owner may implement so
// audit logs can identify it.
type GrantUser interface {
	UserID() string
}

// Grant type and response type identifiers.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeImplicit          = "implicit"
	GrantTypePassword          = "password"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"

	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)
