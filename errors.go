package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeInsecureTransport       = "insecure_transport"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeInsufficientScope       = "insufficient_scope"
	ErrorCodeUnsupportedTokenType    = "unsupported_token_type"
	ErrorCodeServerError             = "server_error"
	ErrorCodeRateLimitExceeded       = "rate_limit_exceeded"

	// Client-side only. Never sent by an authorization server.
	ErrorCodeMissingCode      = "missing_code"
	ErrorCodeMissingToken     = "missing_token"
	ErrorCodeMissingTokenType = "missing_token_type"
	ErrorCodeMismatchingState = "mismatching_state"
)

// defaultDescriptions are used when an error is built with an empty description.
var defaultDescriptions = map[string]string{
	ErrorCodeInvalidScope:      "The requested scope is invalid, unknown, or malformed.",
	ErrorCodeAccessDenied:      "The resource owner or authorization server denied the request.",
	ErrorCodeInsecureTransport: "OAuth 2 MUST utilize https.",
	ErrorCodeInsufficientScope: "The request requires higher privileges than provided by the access token.",
	ErrorCodeInvalidToken: "The access token provided is expired, revoked, malformed, " +
		"or invalid for other reasons.",
	ErrorCodeMissingCode:      `Missing "code" in response.`,
	ErrorCodeMissingToken:     `Missing "access_token" in response.`,
	ErrorCodeMissingTokenType: `Missing "token_type" in response.`,
	ErrorCodeMismatchingState: "CSRF Warning! State not equal in request and response.",
}

// Error is an OAuth 2.0 protocol error (RFC 6749 section 5.2).
// Values are treated as immutable; the With* helpers return copies.
type Error struct {
	Code        string // stable error code, e.g. "invalid_grant"
	Description string // human-readable error_description
	URI         string // error_uri
	Status      int    // HTTP status code
	State       string // echoed CSRF state
	Realm       string // bearer realm, only used by invalid_token and insufficient_scope
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Param is a single key/value pair of an ordered error body.
type Param struct {
	Key   string
	Value string
}

// Body returns the error fields in wire order, omitting empty ones.
func (e *Error) Body() []Param {
	body := []Param{{Key: "error", Value: e.Code}}
	if e.Description != "" {
		body = append(body, Param{Key: "error_description", Value: e.Description})
	}
	if e.URI != "" {
		body = append(body, Param{Key: "error_uri", Value: e.URI})
	}
	if e.State != "" {
		body = append(body, Param{Key: "state", Value: e.State})
	}
	return body
}

// BodyMap returns Body as a map, suitable for JSON encoding.
func (e *Error) BodyMap() map[string]string {
	m := make(map[string]string, 4)
	for _, p := range e.Body() {
		m[p.Key] = p.Value
	}
	return m
}

// Headers returns the response headers required for an error response.
func (e *Error) Headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	if e.Code == ErrorCodeInvalidToken || e.Code == ErrorCodeInsufficientScope {
		h.Set("WWW-Authenticate", e.wwwAuthenticate())
	}
	return h
}

// wwwAuthenticate formats the RFC 6750 section 3 challenge.
func (e *Error) wwwAuthenticate() string {
	parts := make([]string, 0, 3)
	if e.Realm != "" {
		parts = append(parts, fmt.Sprintf("realm=%q", e.Realm))
	}
	parts = append(parts, fmt.Sprintf("error=%q", e.Code))
	if e.Description != "" {
		parts = append(parts, fmt.Sprintf("error_description=%q", e.Description))
	}
	return "Bearer " + strings.Join(parts, ", ")
}

// WithState returns a copy of the error carrying state.
func (e *Error) WithState(state string) *Error {
	c := *e
	c.State = state
	return &c
}

// WithURI returns a copy of the error carrying uri.
func (e *Error) WithURI(uri string) *Error {
	c := *e
	c.URI = uri
	return &c
}

// WithRealm returns a copy of the error carrying a bearer realm.
func (e *Error) WithRealm(realm string) *Error {
	c := *e
	c.Realm = realm
	return &c
}

// NewError creates a new OAuth error. An empty description falls back to the
// registered default for code, if any.
func NewError(code, description string, status int) *Error {
	if description == "" {
		description = defaultDescriptions[code]
	}
	return &Error{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// AsError reports whether err is, or wraps, an OAuth protocol error.
func AsError(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// ErrorURIs maps error codes to documentation URIs. It is passed explicitly
// to the components that build error responses.
type ErrorURIs map[string]string

// Resolve returns err with its URI filled from the table when err has none.
func (u ErrorURIs) Resolve(err *Error) *Error {
	if err == nil || err.URI != "" || len(u) == 0 {
		return err
	}
	if uri, ok := u[err.Code]; ok {
		return err.WithURI(uri)
	}
	return err
}

// Constructors for the protocol errors, mirroring the RFC 6749/6750/7009 registry.
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = func(desc string) *Error {
		return NewError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// ErrInvalidClient indicates client authentication failed
	ErrInvalidClient = func(desc string) *Error {
		return NewError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
	}

	// ErrInvalidGrant indicates the grant is invalid, expired, revoked or unmatched
	ErrInvalidGrant = func(desc string) *Error {
		return NewError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
	}

	// ErrUnauthorizedClient indicates the client may not use this grant type
	ErrUnauthorizedClient = func(desc string) *Error {
		return NewError(ErrorCodeUnauthorizedClient, desc, http.StatusBadRequest)
	}

	// ErrUnsupportedGrantType indicates the grant type is not supported
	ErrUnsupportedGrantType = func(desc string) *Error {
		return NewError(ErrorCodeUnsupportedGrantType, desc, http.StatusBadRequest)
	}

	// ErrUnsupportedResponseType indicates the response type is not supported
	ErrUnsupportedResponseType = func(desc string) *Error {
		return NewError(ErrorCodeUnsupportedResponseType, desc, http.StatusBadRequest)
	}

	// ErrInvalidScope indicates the requested scope is invalid or exceeds what is allowed
	ErrInvalidScope = func(desc string) *Error {
		return NewError(ErrorCodeInvalidScope, desc, http.StatusBadRequest)
	}

	// ErrAccessDenied indicates the resource owner or server denied the request
	ErrAccessDenied = func(desc string) *Error {
		return NewError(ErrorCodeAccessDenied, desc, http.StatusBadRequest)
	}

	// ErrInsecureTransport indicates a non-HTTPS URI was used
	ErrInsecureTransport = func(desc string) *Error {
		return NewError(ErrorCodeInsecureTransport, desc, http.StatusBadRequest)
	}

	// ErrInvalidToken indicates the bearer token is expired, revoked or malformed
	ErrInvalidToken = func(desc string) *Error {
		return NewError(ErrorCodeInvalidToken, desc, http.StatusUnauthorized)
	}

	// ErrInsufficientScope indicates the bearer token lacks a required scope
	ErrInsufficientScope = func(desc string) *Error {
		return NewError(ErrorCodeInsufficientScope, desc, http.StatusForbidden)
	}

	// ErrUnsupportedTokenType indicates revocation of this token type is not supported
	ErrUnsupportedTokenType = func(desc string) *Error {
		return NewError(ErrorCodeUnsupportedTokenType, desc, http.StatusBadRequest)
	}

	// ErrServerError indicates an internal server error occurred
	ErrServerError = func(desc string) *Error {
		return NewError(ErrorCodeServerError, desc, http.StatusInternalServerError)
	}

	// ErrRateLimitExceeded indicates the caller is being throttled
	ErrRateLimitExceeded = func(desc string) *Error {
		return NewError(ErrorCodeRateLimitExceeded, desc, http.StatusTooManyRequests)
	}

	// ErrMissingCode indicates an authorization response without a code
	ErrMissingCode = func(desc string) *Error {
		return NewError(ErrorCodeMissingCode, desc, http.StatusBadRequest)
	}

	// ErrMissingToken indicates a token response without an access_token
	ErrMissingToken = func(desc string) *Error {
		return NewError(ErrorCodeMissingToken, desc, http.StatusBadRequest)
	}

	// ErrMissingTokenType indicates a token response without a token_type
	ErrMissingTokenType = func(desc string) *Error {
		return NewError(ErrorCodeMissingTokenType, desc, http.StatusBadRequest)
	}

	// ErrMismatchingState indicates the CSRF state in a callback does not match
	ErrMismatchingState = func(desc string) *Error {
		return NewError(ErrorCodeMismatchingState, desc, http.StatusBadRequest)
	}
)
