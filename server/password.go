package server

import (
	"context"
	"fmt"
	"net/http"

	oauth "github.com/giantswarm/oauth2-engine"
)

// PasswordGrant implements RFC 6749 section 4.3, the resource owner
// password credentials grant.
type PasswordGrant struct {
	// AuthenticateUser verifies the resource owner's credentials and returns
	// the user, nil when they are wrong (required).
	AuthenticateUser func(ctx context.Context, username, password string, client oauth.Client) (any, error)

	// CreateAccessToken persists the issued token. Optional.
	CreateAccessToken SaveTokenFunc
}

var _ TokenGrant = (*PasswordGrant)(nil)

func (g *PasswordGrant) GrantType() string { return oauth.GrantTypePassword }

func (g *PasswordGrant) checkConfig() error {
	if g.AuthenticateUser == nil {
		return fmt.Errorf("%w: AuthenticateUser", ErrMissingHook)
	}
	return nil
}

func (g *PasswordGrant) TokenEndpointMethods() []string {
	return []string{http.MethodPost}
}

func (g *PasswordGrant) MatchTokenRequest(req *oauth.Request) bool {
	return req.GrantType() == oauth.GrantTypePassword
}

// ValidateTokenRequest authenticates the client and then the resource owner.
func (g *PasswordGrant) ValidateTokenRequest(ctx context.Context, env *Env, req *oauth.Request) error {
	client, err := authenticateClientBasic(ctx, env, req)
	if err != nil {
		return err
	}
	env.Logger.Debug("Validate token request", "client_id", client.ClientID(), "grant_type", g.GrantType())

	if !client.CheckGrantType(oauth.GrantTypePassword) {
		return oauth.ErrUnauthorizedClient("")
	}

	username, password := req.Username(), req.Password()
	if username == "" {
		return oauth.ErrInvalidRequest(`Missing "username" in request.`)
	}
	if password == "" {
		return oauth.ErrInvalidRequest(`Missing "password" in request.`)
	}

	user, err := g.AuthenticateUser(ctx, username, password, client)
	if err != nil {
		return fmt.Errorf("failed to authenticate user: %w", err)
	}
	if user == nil {
		env.Auditor.LogAuthFailure(client.ClientID(), req.RemoteAddr, "invalid resource owner credentials")
		return oauth.ErrInvalidGrant(`Invalid "username" or "password" in request.`)
	}
	if err := validateRequestedScope(client, req.Scope()); err != nil {
		return err
	}

	if err := req.SetClient(client); err != nil {
		return fmt.Errorf("failed to record client: %w", err)
	}
	if err := req.SetGrantUser(user); err != nil {
		return fmt.Errorf("failed to record grant user: %w", err)
	}
	return nil
}

// CreateTokenResponse issues an access token with a refresh token.
func (g *PasswordGrant) CreateTokenResponse(ctx context.Context, env *Env, req *oauth.Request) (*Response, error) {
	tok, err := issueToken(ctx, env, req, g.CreateAccessToken, GenerateOptions{
		Client:              req.Client(),
		GrantType:           oauth.GrantTypePassword,
		User:                req.GrantUser(),
		Scope:               req.Scope(),
		IncludeRefreshToken: true,
	})
	if err != nil {
		return nil, err
	}
	return tokenResponse(tok), nil
}
