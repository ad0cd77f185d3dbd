package oauth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrSlotAlreadySet is returned when a write-once request slot is written twice.
var ErrSlotAlreadySet = errors.New("request slot already set")

// maxBodySize bounds how much of an inbound request body is read.
const maxBodySize = 1 << 20

// BasicCredentials are client credentials extracted from a request.
type BasicCredentials struct {
	ClientID     string
	ClientSecret string
}

// Request is a normalized, read-only view over an inbound OAuth request.
//
// Query and Form keep the last value of duplicated keys. Data merges both,
// with body values taking precedence over query values on the same key.
// Client, GrantUser, Credential and the verified redirect URI are write-once
// slots filled in during validation.
type Request struct {
	Method string
	URI    string
	Body   string
	Header http.Header

	// RemoteAddr is the peer address when built from an *http.Request.
	RemoteAddr string

	Query map[string]string
	Form  map[string]string
	Data  map[string]string

	client      Client
	grantUser   any
	credential  any
	redirectURI string
}

// NewRequest wraps method, uri, body and header. body is parsed as
// application/x-www-form-urlencoded.
func NewRequest(method, uri, body string, header http.Header) (*Request, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, ErrInvalidRequest(fmt.Sprintf("malformed request uri: %v", err))
	}
	if header == nil {
		header = http.Header{}
	}

	r := &Request{
		Method: strings.ToUpper(method),
		URI:    uri,
		Body:   body,
		Header: header,
		Query:  lastValues(u.Query()),
		Form:   map[string]string{},
	}
	if body != "" {
		// Malformed pairs are skipped; the well-formed ones are kept.
		form, _ := url.ParseQuery(body)
		r.Form = lastValues(form)
	}

	r.Data = make(map[string]string, len(r.Query)+len(r.Form))
	for k, v := range r.Query {
		r.Data[k] = v
	}
	for k, v := range r.Form {
		r.Data[k] = v
	}
	return r, nil
}

// NewRequestFromHTTP wraps an *http.Request, rebuilding its absolute URI.
// Forwarded scheme and host headers are honoured only when trustProxy is set.
func NewRequestFromHTTP(r *http.Request, trustProxy bool) (*Request, error) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if trustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
		}
		if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
			host = strings.TrimSpace(strings.Split(fwdHost, ",")[0])
		}
	}
	uri := scheme + "://" + host + r.URL.RequestURI()

	var body string
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = string(raw)
	}

	req, err := NewRequest(r.Method, uri, body, r.Header.Clone())
	if err != nil {
		return nil, err
	}
	req.RemoteAddr = r.RemoteAddr
	return req, nil
}

func lastValues(v url.Values) map[string]string {
	m := make(map[string]string, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			m[k] = vals[len(vals)-1]
		}
	}
	return m
}

// Param returns the merged value for key.
func (r *Request) Param(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.Data[key]
	return v, ok
}

func (r *Request) get(key string) string {
	v, _ := r.Param(key)
	return v
}

func (r *Request) ClientID() string         { return r.get("client_id") }
func (r *Request) Code() string             { return r.get("code") }
func (r *Request) RedirectURIParam() string { return r.get("redirect_uri") }
func (r *Request) Scope() string            { return r.get("scope") }
func (r *Request) State() string            { return r.get("state") }
func (r *Request) ResponseType() string     { return r.get("response_type") }
func (r *Request) GrantType() string        { return r.get("grant_type") }
func (r *Request) Username() string         { return r.get("username") }
func (r *Request) Password() string         { return r.get("password") }
func (r *Request) RefreshToken() string     { return r.get("refresh_token") }
func (r *Request) Token() string            { return r.get("token") }
func (r *Request) TokenTypeHint() string    { return r.get("token_type_hint") }

// ExtractAuthorizationHeader parses an "Authorization: Basic" header. ok is
// false when the header is absent, uses another scheme, or cannot be decoded.
func (r *Request) ExtractAuthorizationHeader() (creds BasicCredentials, ok bool) {
	if r == nil || r.Header == nil {
		return BasicCredentials{}, false
	}
	auth := r.Header.Get("Authorization")
	scheme, payload, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "basic") {
		return BasicCredentials{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return BasicCredentials{}, false
	}

	id, secret, _ := strings.Cut(string(decoded), ":")
	return BasicCredentials{
		ClientID:     formUnescape(id),
		ClientSecret: formUnescape(secret),
	}, true
}

// ClientCredentials returns credentials from the Basic header if present,
// otherwise from the client_id and client_secret body parameters.
func (r *Request) ClientCredentials() (creds BasicCredentials, fromHeader bool) {
	if creds, ok := r.ExtractAuthorizationHeader(); ok {
		return creds, true
	}
	if r == nil {
		return BasicCredentials{}, false
	}
	return BasicCredentials{
		ClientID:     r.Form["client_id"],
		ClientSecret: r.Form["client_secret"],
	}, false
}

// formUnescape decodes an RFC 6749 section 2.3.1 encoded credential, falling
// back to the raw value for clients that send it unencoded.
func formUnescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// Client returns the authenticated client, nil before validation.
func (r *Request) Client() Client { return r.client }

// SetClient records the authenticated client.
func (r *Request) SetClient(c Client) error {
	if r.client != nil {
		return ErrSlotAlreadySet
	}
	r.client = c
	return nil
}

// GrantUser returns the resource owner the grant acts for.
func (r *Request) GrantUser() any { return r.grantUser }

// SetGrantUser records the resource owner.
func (r *Request) SetGrantUser(user any) error {
	if r.grantUser != nil {
		return ErrSlotAlreadySet
	}
	r.grantUser = user
	return nil
}

// Credential returns the grant credential (authorization code, refresh token).
func (r *Request) Credential() any { return r.credential }

// SetCredential records the grant credential.
func (r *Request) SetCredential(cred any) error {
	if r.credential != nil {
		return ErrSlotAlreadySet
	}
	r.credential = cred
	return nil
}

// RedirectURI returns the redirect URI verified against the client, "" if
// none has been verified yet.
func (r *Request) RedirectURI() string { return r.redirectURI }

// SetRedirectURI records the verified redirect URI.
func (r *Request) SetRedirectURI(uri string) error {
	if r.redirectURI != "" {
		return ErrSlotAlreadySet
	}
	r.redirectURI = uri
	return nil
}
