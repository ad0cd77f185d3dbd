package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	oauth "github.com/giantswarm/oauth2-engine"
)

// AuthorizationCodeGrant implements RFC 6749 section 4.1 on both endpoints.
type AuthorizationCodeGrant struct {
	// CreateAuthorizationCode generates and stores a code for a verified
	// request and returns it (required). The stored RedirectURI must be the
	// request's redirect_uri parameter, empty when it was omitted.
	CreateAuthorizationCode func(ctx context.Context, client oauth.Client, grantUser any, req *oauth.Request) (string, error)

	// ParseAuthorizationCode returns the unexpired code issued to client,
	// nil if there is none (required).
	ParseAuthorizationCode func(ctx context.Context, code string, client oauth.Client) (oauth.AuthorizationCode, error)

	// DeleteAuthorizationCode invalidates a code once exchanged (required).
	DeleteAuthorizationCode func(ctx context.Context, code oauth.AuthorizationCode) error

	// AuthenticateUser returns the resource owner a code was issued for, nil
	// if the user is gone (required).
	AuthenticateUser func(ctx context.Context, code oauth.AuthorizationCode) (any, error)

	// CreateAccessToken persists the issued token. Optional.
	CreateAccessToken SaveTokenFunc
}

var (
	_ TokenGrant         = (*AuthorizationCodeGrant)(nil)
	_ AuthorizationGrant = (*AuthorizationCodeGrant)(nil)
)

func (g *AuthorizationCodeGrant) GrantType() string { return oauth.GrantTypeAuthorizationCode }

func (g *AuthorizationCodeGrant) checkConfig() error {
	switch {
	case g.CreateAuthorizationCode == nil:
		return fmt.Errorf("%w: CreateAuthorizationCode", ErrMissingHook)
	case g.ParseAuthorizationCode == nil:
		return fmt.Errorf("%w: ParseAuthorizationCode", ErrMissingHook)
	case g.DeleteAuthorizationCode == nil:
		return fmt.Errorf("%w: DeleteAuthorizationCode", ErrMissingHook)
	case g.AuthenticateUser == nil:
		return fmt.Errorf("%w: AuthenticateUser", ErrMissingHook)
	}
	return nil
}

func (g *AuthorizationCodeGrant) TokenEndpointMethods() []string {
	return []string{http.MethodPost}
}

func (g *AuthorizationCodeGrant) MatchAuthorizationRequest(req *oauth.Request) bool {
	return req.ResponseType() == oauth.ResponseTypeCode
}

// ValidateAuthorizationRequest checks the client, its redirect URI, the
// response type and the requested scope, in that order.
func (g *AuthorizationCodeGrant) ValidateAuthorizationRequest(ctx context.Context, env *Env, req *oauth.Request) error {
	client, err := getAndValidateClient(ctx, env, req)
	if err != nil {
		return err
	}
	env.Logger.Debug("Validate authorization request", "client_id", client.ClientID(), "response_type", oauth.ResponseTypeCode)

	if err := validateAuthorizationRedirectURI(req, client); err != nil {
		return err
	}
	if !client.CheckResponseType(oauth.ResponseTypeCode) {
		return oauth.ErrUnauthorizedClient(`The client is not authorized to request an authorization code.`)
	}
	if err := validateRequestedScope(client, req.Scope()); err != nil {
		return err
	}
	if err := req.SetClient(client); err != nil {
		return fmt.Errorf("failed to record client: %w", err)
	}
	return nil
}

// CreateAuthorizationResponse redirects back with a new code, or with
// access_denied when grantUser is nil.
func (g *AuthorizationCodeGrant) CreateAuthorizationResponse(ctx context.Context, env *Env, req *oauth.Request, grantUser any) (*Response, error) {
	if grantUser == nil {
		return nil, oauth.ErrAccessDenied("")
	}
	if err := req.SetGrantUser(grantUser); err != nil {
		return nil, fmt.Errorf("failed to record grant user: %w", err)
	}

	client := req.Client()
	code, err := g.CreateAuthorizationCode(ctx, client, grantUser, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization code: %w", err)
	}

	params := []oauth.Param{{Key: "code", Value: code}}
	if state := req.State(); state != "" {
		params = append(params, oauth.Param{Key: "state", Value: state})
	}

	env.Logger.Info("Issued authorization code", "client_id", client.ClientID(), "scope", req.Scope())
	env.Auditor.LogAuthorizationCodeIssued(userID(grantUser), client.ClientID(), req.RemoteAddr, req.Scope())
	env.Metrics.RecordAuthorizationIssued(ctx, oauth.ResponseTypeCode)
	return redirectResponse(addParams(req.RedirectURI(), params, false)), nil
}

func (g *AuthorizationCodeGrant) MatchTokenRequest(req *oauth.Request) bool {
	return req.GrantType() == oauth.GrantTypeAuthorizationCode
}

// ValidateTokenRequest authenticates the client and checks the code and
// redirect URI against what was stored at authorization time.
func (g *AuthorizationCodeGrant) ValidateTokenRequest(ctx context.Context, env *Env, req *oauth.Request) error {
	client, err := authenticateClient(ctx, env, req)
	if err != nil {
		return err
	}
	env.Logger.Debug("Validate token request", "client_id", client.ClientID(), "grant_type", g.GrantType())

	if !client.CheckGrantType(oauth.GrantTypeAuthorizationCode) {
		return oauth.ErrUnauthorizedClient("")
	}

	code := req.Code()
	if code == "" {
		return oauth.ErrInvalidRequest(`Missing "code" in request.`)
	}
	ac, err := g.ParseAuthorizationCode(ctx, code, client)
	if err != nil {
		return fmt.Errorf("failed to parse authorization code: %w", err)
	}
	if ac == nil {
		return oauth.ErrInvalidGrant(`Invalid "code" in request.`)
	}
	// The redirect_uri must be identical to the one sent to the
	// authorization endpoint, including its absence.
	if req.RedirectURIParam() != ac.RedirectURI() {
		return oauth.ErrInvalidGrant(`Invalid "redirect_uri" in request.`)
	}

	if err := req.SetClient(client); err != nil {
		return fmt.Errorf("failed to record client: %w", err)
	}
	if err := req.SetCredential(ac); err != nil {
		return fmt.Errorf("failed to record authorization code: %w", err)
	}
	return nil
}

// CreateTokenResponse exchanges the code for a token and deletes the code.
func (g *AuthorizationCodeGrant) CreateTokenResponse(ctx context.Context, env *Env, req *oauth.Request) (*Response, error) {
	client := req.Client()
	ac, _ := req.Credential().(oauth.AuthorizationCode)
	if ac == nil {
		return nil, errors.New("authorization code missing from validated request")
	}

	user, err := g.AuthenticateUser(ctx, ac)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate user: %w", err)
	}
	if user == nil {
		return nil, oauth.ErrInvalidGrant(`There is no "user" for this code.`)
	}
	if err := req.SetGrantUser(user); err != nil {
		return nil, fmt.Errorf("failed to record grant user: %w", err)
	}

	tok, err := issueToken(ctx, env, req, g.CreateAccessToken, GenerateOptions{
		Client:              client,
		GrantType:           oauth.GrantTypeAuthorizationCode,
		User:                user,
		Scope:               ac.Scope(),
		IncludeRefreshToken: client.CheckClientType(oauth.ClientTypeConfidential),
	})
	if err != nil {
		return nil, err
	}
	if err := g.DeleteAuthorizationCode(ctx, ac); err != nil {
		return nil, fmt.Errorf("failed to delete authorization code: %w", err)
	}
	return tokenResponse(tok), nil
}
