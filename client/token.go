package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/security"
)

// maxTokenResponseSize bounds the token endpoint body that is read.
const maxTokenResponseSize = 1 << 20

// tokenLogLength is the number of characters of a token included in logs
const tokenLogLength = 8

// AuthFunc authenticates an outgoing request.
type AuthFunc func(req *http.Request)

// BasicAuth returns an AuthFunc sending id and secret with HTTP Basic, both
// form-urlencoded first (RFC 6749 section 2.3.1).
func BasicAuth(id, secret string) AuthFunc {
	return func(req *http.Request) {
		req.SetBasicAuth(url.QueryEscape(id), url.QueryEscape(secret))
	}
}

// NoAuth sends no client authentication.
func NoAuth(*http.Request) {}

// FetchTokenOptions selects the grant used by FetchToken.
type FetchTokenOptions struct {
	// Code is an authorization code received on the callback
	Code string

	// AuthorizationResponse is the full callback URI
	AuthorizationResponse string

	// Method is GET or POST, default POST
	Method string

	// Auth replaces the default Basic client authentication
	Auth AuthFunc

	Username string
	Password string

	// GrantType is used when neither a code nor user credentials are given;
	// default client_credentials
	GrantType string

	// State overrides the session state the callback is checked against
	State string

	// Params are extra form parameters
	Params url.Values

	// Header is merged over the default headers
	Header http.Header

	Timeout time.Duration
}

// RefreshOptions configures RefreshToken.
type RefreshOptions struct {
	// RefreshToken defaults to the refresh token of the current token
	RefreshToken string

	// Auth defaults to Basic with the client credentials when both are set
	Auth AuthFunc

	Params  url.Values
	Header  http.Header
	Timeout time.Duration
}

// RevokeOptions configures RevokeToken.
type RevokeOptions struct {
	// Auth replaces the default Basic client authentication
	Auth AuthFunc

	Params  url.Values
	Header  http.Header
	Timeout time.Duration
}

// RequestOptions configures Request.
type RequestOptions struct {
	Header http.Header

	// Form is sent form-urlencoded; it takes precedence over Body. With body
	// placement a Body without Form is parsed as a form and the token added
	// to it.
	Form url.Values
	Body []byte

	// WithholdToken sends the request without the access token
	WithholdToken bool

	// Auth authenticates the request and, when the token must be refreshed
	// first, the refresh request
	Auth AuthFunc

	Timeout time.Duration
}

func defaultTokenHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	return h
}

func mergeHeader(dst, src http.Header) http.Header {
	for k, vs := range src {
		dst[k] = append([]string(nil), vs...)
	}
	return dst
}

// FetchToken obtains a token and stores it on the session. The grant is
// chosen from opts; see the package documentation.
func (s *Session) FetchToken(ctx context.Context, endpoint string, opts FetchTokenOptions) (*oauth.Token, error) {
	if endpoint == "" && opts.AuthorizationResponse != "" {
		return s.TokenFromFragment(opts.AuthorizationResponse)
	}

	ctx, span := s.tracer.Start(ctx, "client.FetchToken")
	defer span.End()

	if err := oauth.CheckSecureTransport(endpoint, s.config.AllowInsecureTransport); err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	form, err := s.tokenRequestForm(opts)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	grantType := form.Get("grant_type")
	instrumentation.AddOAuthFlowAttributes(span, s.config.ClientID, grantType, form.Get("scope"))
	s.logger.Debug("Fetching token", "endpoint", endpoint, "grant_type", grantType)

	method := http.MethodPost
	if opts.Method != "" {
		method = opts.Method
	}
	auth := opts.Auth
	if auth == nil {
		auth = BasicAuth(s.config.ClientID, s.config.ClientSecret)
	}

	tok, err := s.requestToken(ctx, "fetch_token", method, endpoint, form,
		mergeHeader(defaultTokenHeaders(), opts.Header), auth, opts.Timeout, s.hooks.accessTokenResponse)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	s.token = tok
	s.metrics.RecordClientTokenFetched(ctx, grantType)
	instrumentation.SetSpanSuccess(span)
	s.logger.Info("Fetched token", "grant_type", grantType, "token_prefix", util.SafeTruncate(tok.AccessToken, tokenLogLength))
	return tok, nil
}

// tokenRequestForm builds the token request body for opts.
func (s *Session) tokenRequestForm(opts FetchTokenOptions) (url.Values, error) {
	form := url.Values{}
	switch {
	case opts.Code != "" || opts.AuthorizationResponse != "":
		state := opts.State
		if state == "" {
			state = s.state
		}
		code := opts.Code
		if code == "" {
			var err error
			if code, err = parseAuthorizationResponse(opts.AuthorizationResponse, state); err != nil {
				return nil, err
			}
		}
		form.Set("grant_type", oauth.GrantTypeAuthorizationCode)
		form.Set("code", code)
		if s.config.RedirectURI != "" {
			form.Set("redirect_uri", s.config.RedirectURI)
		}
		form.Set("client_id", s.config.ClientID)
		if state != "" {
			form.Set("state", state)
		}
	case opts.Username != "" && opts.Password != "":
		form.Set("grant_type", oauth.GrantTypePassword)
		form.Set("username", opts.Username)
		form.Set("password", opts.Password)
		s.setClientParams(form)
	default:
		grantType := opts.GrantType
		if grantType == "" {
			grantType = oauth.GrantTypeClientCredentials
		}
		form.Set("grant_type", grantType)
		s.setClientParams(form)
	}
	for k, vs := range opts.Params {
		form[k] = append([]string(nil), vs...)
	}
	return form, nil
}

// setClientParams adds client_id and scope, when set, to a password or
// client credentials request.
func (s *Session) setClientParams(form url.Values) {
	if s.config.ClientID != "" {
		form.Set("client_id", s.config.ClientID)
	}
	if s.config.Scope != "" {
		form.Set("scope", s.config.Scope)
	}
}

// parseAuthorizationResponse extracts the code from a callback URI and
// checks its state.
func parseAuthorizationResponse(uri, state string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid authorization response: %w", err)
	}
	q := u.Query()
	code := q.Get("code")
	if code == "" {
		return "", oauth.ErrMissingCode("")
	}
	if state != "" && !security.ConstantTimeEqual(q.Get("state"), state) {
		return "", oauth.ErrMismatchingState("")
	}
	return code, nil
}

// TokenFromFragment reads an implicit grant token from the fragment of a
// callback URI and stores it on the session.
func (s *Session) TokenFromFragment(uri string) (*oauth.Token, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid authorization response: %w", err)
	}
	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return nil, fmt.Errorf("invalid authorization response fragment: %w", err)
	}

	params := make(map[string]any, len(fragment))
	for k := range fragment {
		if k != "state" {
			params[k] = fragment.Get(k)
		}
	}
	if err := checkTokenParams(params); err != nil {
		return nil, err
	}
	if s.state != "" && !security.ConstantTimeEqual(fragment.Get("state"), s.state) {
		return nil, oauth.ErrMismatchingState("")
	}

	tok, err := oauth.NewTokenAt(params, s.now())
	if err != nil {
		return nil, err
	}
	s.token = tok
	s.logger.Debug("Read token from authorization response fragment")
	return tok, nil
}

// RefreshToken exchanges a refresh token for a new token, stores it and
// passes it to the configured TokenUpdater. A response without a
// refresh_token keeps the previous one.
func (s *Session) RefreshToken(ctx context.Context, endpoint string, opts RefreshOptions) (*oauth.Token, error) {
	ctx, span := s.tracer.Start(ctx, "client.RefreshToken")
	defer span.End()

	if err := oauth.CheckSecureTransport(endpoint, s.config.AllowInsecureTransport); err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	refreshToken := opts.RefreshToken
	if refreshToken == "" && s.token != nil {
		refreshToken = s.token.RefreshToken
	}
	if refreshToken == "" {
		instrumentation.RecordError(span, ErrNoRefreshToken)
		return nil, ErrNoRefreshToken
	}

	form := cloneValues(s.config.RefreshTokenParams)
	for k, vs := range opts.Params {
		form[k] = append([]string(nil), vs...)
	}
	form.Set("grant_type", oauth.GrantTypeRefreshToken)
	form.Set("refresh_token", refreshToken)
	if s.config.Scope != "" {
		form.Set("scope", s.config.Scope)
	}
	instrumentation.AddOAuthFlowAttributes(span, s.config.ClientID, oauth.GrantTypeRefreshToken, s.config.Scope)

	auth := opts.Auth
	if auth == nil {
		auth = s.defaultRefreshAuth()
	}

	tok, err := s.requestToken(ctx, "refresh_token", http.MethodPost, endpoint, form,
		mergeHeader(defaultTokenHeaders(), opts.Header), auth, opts.Timeout, s.hooks.refreshTokenResponse)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok = tok.WithRefreshToken(refreshToken)
	}
	s.token = tok
	s.metrics.RecordClientTokenRefreshed(ctx)
	s.logger.Info("Refreshed token", "token_prefix", util.SafeTruncate(tok.AccessToken, tokenLogLength))

	if s.config.TokenUpdater != nil {
		if err := s.config.TokenUpdater(ctx, tok); err != nil {
			instrumentation.RecordError(span, err)
			return tok, fmt.Errorf("token updater failed: %w", err)
		}
	}
	instrumentation.SetSpanSuccess(span)
	return tok, nil
}

// defaultRefreshAuth authenticates refreshes with the client credentials when
// the client has a secret.
func (s *Session) defaultRefreshAuth() AuthFunc {
	if s.config.ClientID != "" && s.config.ClientSecret != "" {
		return BasicAuth(s.config.ClientID, s.config.ClientSecret)
	}
	return NoAuth
}

// RevokeToken asks endpoint to revoke token (RFC 7009). The raw response is
// returned; the caller must close its body.
func (s *Session) RevokeToken(ctx context.Context, endpoint, token, tokenTypeHint string, opts RevokeOptions) (*http.Response, error) {
	ctx, span := s.tracer.Start(ctx, "client.RevokeToken")
	defer span.End()
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrTokenTypeHint, tokenTypeHint))

	if err := oauth.CheckSecureTransport(endpoint, s.config.AllowInsecureTransport); err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	form := cloneValues(opts.Params)
	form.Set("token", token)
	if tokenTypeHint != "" {
		form.Set("token_type_hint", tokenTypeHint)
	}
	header := defaultTokenHeaders()
	header.Del("Accept")
	header = mergeHeader(header, opts.Header)

	endpoint, header, form, err := runRequestHooks(s.hooks.revokeTokenRequest, endpoint, header, form)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	auth := opts.Auth
	if auth == nil {
		auth = BasicAuth(s.config.ClientID, s.config.ClientSecret)
	}
	resp, err := s.send(ctx, "revoke_token", http.MethodPost, endpoint, header, form, nil, auth, opts.Timeout)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	instrumentation.AddHTTPAttributes(span, http.MethodPost, resp.StatusCode)
	s.metrics.RecordClientTokenRevoked(ctx)
	s.logger.Info("Sent token revocation", "token_type_hint", tokenTypeHint, "status", resp.StatusCode)
	instrumentation.SetSpanSuccess(span)
	return resp, nil
}

// Request sends a request to a protected resource with the access token
// attached. An expired token is refreshed first when RefreshTokenURL is set,
// otherwise ErrTokenExpired is returned and nothing is sent.
//
// The caller must close the response body.
func (s *Session) Request(ctx context.Context, method, uri string, opts RequestOptions) (*http.Response, error) {
	ctx, span := s.tracer.Start(ctx, "client.Request")
	defer span.End()

	header, form := opts.Header, opts.Form
	refreshed := false
	if s.token != nil && !opts.WithholdToken {
		if err := oauth.CheckSecureTransport(uri, s.config.AllowInsecureTransport); err != nil {
			instrumentation.RecordError(span, err)
			return nil, err
		}
		if expired, _ := s.token.IsExpiredAt(s.now()); expired {
			if s.config.RefreshTokenURL == "" {
				instrumentation.RecordError(span, ErrTokenExpired)
				return nil, ErrTokenExpired
			}
			auth := opts.Auth
			if auth == nil {
				auth = s.defaultRefreshAuth()
			}
			if _, err := s.RefreshToken(ctx, s.config.RefreshTokenURL, RefreshOptions{Auth: auth, Timeout: opts.Timeout}); err != nil {
				instrumentation.RecordError(span, err)
				return nil, err
			}
			refreshed = true
		}

		var err error
		if s.config.TokenPlacement == PlacementBody && len(form) == 0 && len(opts.Body) > 0 {
			if form, err = url.ParseQuery(string(opts.Body)); err != nil {
				err = fmt.Errorf("body token placement requires a form-urlencoded body: %w", err)
				instrumentation.RecordError(span, err)
				return nil, err
			}
		}
		if uri, header, form, err = s.AddToken(uri, header, form); err != nil {
			instrumentation.RecordError(span, err)
			return nil, err
		}
		if uri, header, form, err = runRequestHooks(s.hooks.protectedRequest, uri, header, form); err != nil {
			instrumentation.RecordError(span, err)
			return nil, err
		}
		s.metrics.RecordProtectedRequest(ctx, string(s.config.TokenPlacement), refreshed)
		instrumentation.SetSpanAttributes(span,
			attribute.String(instrumentation.AttrTokenPlacement, string(s.config.TokenPlacement)),
			attribute.Bool(instrumentation.AttrTokenRefreshed, refreshed))
	}

	body := opts.Body
	if len(form) > 0 {
		body = nil
	} else {
		form = nil
	}
	auth := opts.Auth
	if auth == nil {
		auth = NoAuth
	}
	resp, err := s.send(ctx, "request", method, uri, cloneHeader(header), form, body, auth, opts.Timeout)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}
	instrumentation.AddHTTPAttributes(span, method, resp.StatusCode)
	instrumentation.SetSpanSuccess(span)
	return resp, nil
}

// requestToken sends a token endpoint request, runs the response hooks and
// parses the result.
func (s *Session) requestToken(ctx context.Context, operation, method, endpoint string, form url.Values, header http.Header, auth AuthFunc, timeout time.Duration, responseHooks []ResponseHook) (*oauth.Token, error) {
	resp, err := s.send(ctx, operation, method, endpoint, header, form, nil, auth, timeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	final, err := runResponseHooks(responseHooks, resp)
	if err != nil {
		return nil, err
	}
	if final != resp {
		defer func() { _ = final.Body.Close() }()
	}
	return s.parseTokenResponse(final)
}

// parseTokenResponse decodes a token endpoint response. An error member
// becomes an *oauth.Error; a body that is not JSON is a transport failure.
func (s *Session) parseTokenResponse(resp *http.Response) (*oauth.Token, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to decode token response (status %d): %w", resp.StatusCode, err)
	}

	if code, ok := params["error"]; ok {
		e := &oauth.Error{
			Code:   fmt.Sprint(code),
			Status: resp.StatusCode,
		}
		e.Description = e.Code
		if desc, ok := params["error_description"].(string); ok && desc != "" {
			e.Description = desc
		}
		if uri, ok := params["error_uri"].(string); ok {
			e.URI = uri
		}
		s.logger.Debug("Token endpoint returned an error", "error", e.Code, "status", resp.StatusCode)
		return nil, e
	}

	if err := checkTokenParams(params); err != nil {
		return nil, err
	}
	return oauth.NewTokenAt(params, s.now())
}

// checkTokenParams requires access_token and token_type to be non-empty
// strings.
func checkTokenParams(params map[string]any) error {
	if v, _ := params["access_token"].(string); v == "" {
		return oauth.ErrMissingToken("")
	}
	if v, _ := params["token_type"].(string); v == "" {
		return oauth.ErrMissingTokenType("")
	}
	return nil
}
