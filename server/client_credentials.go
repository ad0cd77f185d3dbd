package server

import (
	"context"
	"fmt"
	"net/http"

	oauth "github.com/giantswarm/oauth2-engine"
)

// ClientCredentialsGrant implements RFC 6749 section 4.4. The client
// authenticates with HTTP Basic and receives a token for itself, without a
// refresh token.
type ClientCredentialsGrant struct {
	// CreateAccessToken persists the issued token. Optional.
	CreateAccessToken SaveTokenFunc
}

var _ TokenGrant = (*ClientCredentialsGrant)(nil)

func (g *ClientCredentialsGrant) GrantType() string { return oauth.GrantTypeClientCredentials }

func (g *ClientCredentialsGrant) TokenEndpointMethods() []string {
	return []string{http.MethodPost}
}

func (g *ClientCredentialsGrant) MatchTokenRequest(req *oauth.Request) bool {
	return req.GrantType() == oauth.GrantTypeClientCredentials
}

// ValidateTokenRequest authenticates the client, checks it may use this
// grant and that the requested scope is allowed.
func (g *ClientCredentialsGrant) ValidateTokenRequest(ctx context.Context, env *Env, req *oauth.Request) error {
	client, err := authenticateClientBasic(ctx, env, req)
	if err != nil {
		return err
	}
	env.Logger.Debug("Validate token request", "client_id", client.ClientID(), "grant_type", g.GrantType())

	if !client.CheckGrantType(oauth.GrantTypeClientCredentials) {
		return oauth.ErrUnauthorizedClient("")
	}
	if err := validateRequestedScope(client, req.Scope()); err != nil {
		return err
	}
	if err := req.SetClient(client); err != nil {
		return fmt.Errorf("failed to record client: %w", err)
	}
	return nil
}

// CreateTokenResponse issues the access token.
func (g *ClientCredentialsGrant) CreateTokenResponse(ctx context.Context, env *Env, req *oauth.Request) (*Response, error) {
	tok, err := issueToken(ctx, env, req, g.CreateAccessToken, GenerateOptions{
		Client:    req.Client(),
		GrantType: oauth.GrantTypeClientCredentials,
		Scope:     req.Scope(),
	})
	if err != nil {
		return nil, err
	}
	return tokenResponse(tok), nil
}
