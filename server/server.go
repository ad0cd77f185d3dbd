package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
)

var (
	// ErrRevocationDisabled is returned by CreateRevocationResponse when no
	// RevocationEndpoint is configured.
	ErrRevocationDisabled = errors.New("revocation endpoint is not configured")

	// ErrMissingHook is returned by New when a grant or the revocation
	// endpoint lacks a required hook.
	ErrMissingHook = errors.New("required hook is not set")
)

// AuthorizationServer dispatches authorization and token requests to the
// registered grants. The grant registry is fixed at construction, so an
// AuthorizationServer is safe for concurrent use.
type AuthorizationServer struct {
	config              Config
	authorizationGrants []AuthorizationGrant
	tokenGrants         []TokenGrant
	env                 *Env
	tracer              trace.Tracer
	Logger              *slog.Logger
}

// New creates an authorization server. Grants are consulted in the order
// given; each registers for every endpoint whose interface it implements.
func New(config Config, grants ...Grant) (*AuthorizationServer, error) {
	if config.QueryClient == nil {
		return nil, fmt.Errorf("client lookup is required")
	}
	if config.Revocation != nil {
		if err := config.Revocation.checkConfig(); err != nil {
			return nil, fmt.Errorf("revocation endpoint: %w", err)
		}
	}
	config = *applySecureDefaults(&config)

	srv := &AuthorizationServer{
		config: config,
		Logger: config.Logger,
		tracer: config.Instrumentation.Tracer("server"),
		env: &Env{
			QueryClient:   config.QueryClient,
			GenerateToken: config.GenerateToken,
			Logger:        config.Logger,
			Auditor:       config.Auditor,
			Metrics:       config.Instrumentation.Metrics(),
		},
	}

	for i, g := range grants {
		if g == nil {
			return nil, fmt.Errorf("grant %d is nil", i)
		}
		if c, ok := g.(configChecker); ok {
			if err := c.checkConfig(); err != nil {
				return nil, fmt.Errorf("grant %q: %w", g.GrantType(), err)
			}
		}
		registered := false
		if ag, ok := g.(AuthorizationGrant); ok {
			srv.authorizationGrants = append(srv.authorizationGrants, ag)
			registered = true
		}
		if tg, ok := g.(TokenGrant); ok {
			srv.tokenGrants = append(srv.tokenGrants, tg)
			registered = true
		}
		if !registered {
			return nil, fmt.Errorf("grant %q serves neither the authorization nor the token endpoint", g.GrantType())
		}
		srv.Logger.Debug("Registered grant", "grant_type", g.GrantType())
	}

	return srv, nil
}

// GetAuthorizationGrant returns the first authorization grant matching req.
func (s *AuthorizationServer) GetAuthorizationGrant(req *oauth.Request) (AuthorizationGrant, error) {
	if err := oauth.CheckSecureTransport(req.URI, s.config.AllowInsecureTransport); err != nil {
		return nil, err
	}
	for _, g := range s.authorizationGrants {
		if g.MatchAuthorizationRequest(req) {
			return g, nil
		}
	}
	return nil, oauth.ErrInvalidGrant("Invalid authorization grant.")
}

// GetTokenGrant returns the first token grant accepting req.Method and
// matching req.
func (s *AuthorizationServer) GetTokenGrant(req *oauth.Request) (TokenGrant, error) {
	if err := oauth.CheckSecureTransport(req.URI, s.config.AllowInsecureTransport); err != nil {
		return nil, err
	}
	for _, g := range s.tokenGrants {
		if slices.Contains(g.TokenEndpointMethods(), req.Method) && g.MatchTokenRequest(req) {
			return g, nil
		}
	}
	return nil, oauth.ErrInvalidGrant("Invalid token grant.")
}

// CreateAuthorizationResponse validates an authorization request and builds
// the redirect for grantUser, nil meaning the resource owner denied access.
//
// Protocol errors become a redirect to the verified redirect URI, or a JSON
// body when no redirect URI was verified. Other errors are returned as is.
func (s *AuthorizationServer) CreateAuthorizationResponse(ctx context.Context, req *oauth.Request, grantUser any) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "server.CreateAuthorizationResponse")
	defer span.End()
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrResponseType, req.ResponseType()),
		attribute.String(instrumentation.AttrClientID, req.ClientID()))

	grant, err := s.GetAuthorizationGrant(req)
	if err == nil {
		err = grant.ValidateAuthorizationRequest(ctx, s.env, req)
	}
	if err == nil {
		var resp *Response
		resp, err = grant.CreateAuthorizationResponse(ctx, s.env, req, grantUser)
		if err == nil {
			instrumentation.SetSpanSuccess(span)
			return resp, nil
		}
	}

	oe, ok := oauth.AsError(err)
	if !ok {
		instrumentation.RecordError(span, err)
		s.Logger.Error("Authorization request failed", "client_id", req.ClientID(), "error", err)
		return nil, err
	}
	oe = s.config.ErrorURIs.Resolve(oe)
	if state := req.State(); state != "" {
		oe = oe.WithState(state)
	}
	s.recordProtocolError(ctx, span, req, "authorization", req.ResponseType(), oe)

	if grant != nil && req.RedirectURI() != "" {
		return redirectErrorResponse(req.RedirectURI(), oe, usesFragment(grant)), nil
	}
	return ErrorResponse(oe), nil
}

// CreateTokenResponse validates a token request and issues the token.
// Protocol errors are always rendered as JSON bodies.
func (s *AuthorizationServer) CreateTokenResponse(ctx context.Context, req *oauth.Request) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "server.CreateTokenResponse")
	defer span.End()
	instrumentation.AddOAuthFlowAttributes(span, req.ClientID(), req.GrantType(), req.Scope())

	resp, err := s.createTokenResponse(ctx, req)
	if err == nil {
		instrumentation.SetSpanSuccess(span)
		return resp, nil
	}

	oe, ok := oauth.AsError(err)
	if !ok {
		instrumentation.RecordError(span, err)
		s.Logger.Error("Token request failed", "grant_type", req.GrantType(), "error", err)
		return nil, err
	}
	oe = s.config.ErrorURIs.Resolve(oe)
	s.recordProtocolError(ctx, span, req, "token", req.GrantType(), oe)

	resp = ErrorResponse(oe)
	if oe.Code == oauth.ErrorCodeInvalidClient && req.Header.Get("Authorization") != "" {
		resp.Header.Set("WWW-Authenticate", "Basic")
	}
	return resp, nil
}

func (s *AuthorizationServer) createTokenResponse(ctx context.Context, req *oauth.Request) (*Response, error) {
	if s.config.RateLimiter != nil {
		key := rateLimitKey(req)
		if !s.config.RateLimiter.Allow(key) {
			s.Logger.Warn("Token endpoint rate limit exceeded", "identifier", key)
			s.config.Auditor.LogRateLimitExceeded(key, req.RemoteAddr)
			s.env.Metrics.RecordRateLimitExceeded(ctx)
			return nil, oauth.ErrRateLimitExceeded("Too many token requests.")
		}
	}

	grant, err := s.GetTokenGrant(req)
	if err != nil {
		return nil, err
	}
	if err := grant.ValidateTokenRequest(ctx, s.env, req); err != nil {
		return nil, err
	}
	return grant.CreateTokenResponse(ctx, s.env, req)
}

// rateLimitKey identifies the caller before it has authenticated: the remote
// address, paired with the claimed client id when there is one. A caller
// claiming someone else's client id only drains its own bucket.
func rateLimitKey(req *oauth.Request) string {
	key := "addr:" + req.RemoteAddr
	if creds, _ := req.ClientCredentials(); creds.ClientID != "" {
		key += "|client:" + creds.ClientID
	}
	return key
}

// CreateRevocationResponse handles an RFC 7009 revocation request.
func (s *AuthorizationServer) CreateRevocationResponse(ctx context.Context, req *oauth.Request) (*Response, error) {
	if s.config.Revocation == nil {
		return nil, ErrRevocationDisabled
	}
	ctx, span := s.tracer.Start(ctx, "server.CreateRevocationResponse")
	defer span.End()

	err := oauth.CheckSecureTransport(req.URI, s.config.AllowInsecureTransport)
	var resp *Response
	if err == nil {
		resp, err = s.config.Revocation.handle(ctx, s.env, req)
	}
	if err == nil {
		instrumentation.SetSpanSuccess(span)
		return resp, nil
	}

	oe, ok := oauth.AsError(err)
	if !ok {
		instrumentation.RecordError(span, err)
		s.Logger.Error("Revocation request failed", "error", err)
		return nil, err
	}
	oe = s.config.ErrorURIs.Resolve(oe)
	s.recordProtocolError(ctx, span, req, "revocation", req.TokenTypeHint(), oe)

	resp = ErrorResponse(oe)
	if oe.Code == oauth.ErrorCodeInvalidClient && req.Header.Get("Authorization") != "" {
		resp.Header.Set("WWW-Authenticate", "Basic")
	}
	return resp, nil
}

func (s *AuthorizationServer) recordProtocolError(ctx context.Context, span trace.Span, req *oauth.Request, endpoint, kind string, oe *oauth.Error) {
	instrumentation.AddProtocolErrorAttributes(span, oe.Code, oe.Description)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrEndpoint, endpoint))
	s.env.Metrics.RecordGrantError(ctx, endpoint, oe.Code)

	clientID := req.ClientID()
	if c := req.Client(); c != nil {
		clientID = c.ClientID()
	}
	s.config.Auditor.LogGrantError(clientID, req.RemoteAddr, kind, oe.Code)
	s.Logger.Debug("OAuth protocol error",
		"endpoint", endpoint,
		"client_id", clientID,
		"error", oe.Code,
		"error_description", oe.Description,
		"status", http.StatusText(oe.Status))
}
