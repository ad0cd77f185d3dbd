package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	oauth "github.com/giantswarm/oauth2-engine"
)

// RefreshTokenGrant implements RFC 6749 section 6. Only confidential clients
// may refresh, and the new token can never carry more scope than the
// original.
type RefreshTokenGrant struct {
	// AuthenticateRefreshToken returns the credential holding refreshToken
	// for client, nil if it is unknown, expired or revoked (required).
	AuthenticateRefreshToken func(ctx context.Context, refreshToken string, client oauth.Client) (oauth.TokenCredential, error)

	// AuthenticateUser returns the resource owner of credential. Optional;
	// the new token has no user when unset.
	AuthenticateUser func(ctx context.Context, credential oauth.TokenCredential) (any, error)

	// CreateAccessToken persists the issued token. Optional.
	CreateAccessToken SaveTokenFunc

	// RevokeOldCredential invalidates the credential that was refreshed.
	// Optional; set it to rotate refresh tokens.
	RevokeOldCredential func(ctx context.Context, credential oauth.TokenCredential) error
}

var _ TokenGrant = (*RefreshTokenGrant)(nil)

func (g *RefreshTokenGrant) GrantType() string { return oauth.GrantTypeRefreshToken }

func (g *RefreshTokenGrant) checkConfig() error {
	if g.AuthenticateRefreshToken == nil {
		return fmt.Errorf("%w: AuthenticateRefreshToken", ErrMissingHook)
	}
	return nil
}

func (g *RefreshTokenGrant) TokenEndpointMethods() []string {
	return []string{http.MethodPost}
}

func (g *RefreshTokenGrant) MatchTokenRequest(req *oauth.Request) bool {
	return req.GrantType() == oauth.GrantTypeRefreshToken
}

// ValidateTokenRequest authenticates the client and the refresh token and
// checks the requested scope against the original grant.
func (g *RefreshTokenGrant) ValidateTokenRequest(ctx context.Context, env *Env, req *oauth.Request) error {
	client, err := authenticateClientBasic(ctx, env, req)
	if err != nil {
		return err
	}
	env.Logger.Debug("Validate token request", "client_id", client.ClientID(), "grant_type", g.GrantType())

	if !client.CheckClientType(oauth.ClientTypeConfidential) {
		return oauth.ErrUnauthorizedClient("")
	}
	if !client.CheckGrantType(oauth.GrantTypeRefreshToken) {
		return oauth.ErrUnauthorizedClient("")
	}

	refreshToken := req.RefreshToken()
	if refreshToken == "" {
		return oauth.ErrInvalidRequest(`Missing "refresh_token" in request.`)
	}
	credential, err := g.AuthenticateRefreshToken(ctx, refreshToken, client)
	if err != nil {
		return fmt.Errorf("failed to authenticate refresh token: %w", err)
	}
	if credential == nil || credential.IsRefreshTokenExpired() {
		return oauth.ErrInvalidGrant(`Invalid "refresh_token" in request.`)
	}

	if scope := req.Scope(); scope != "" {
		original := credential.Scope()
		if original == "" || !oauth.ScopeIsSubset(scope, original) {
			return oauth.ErrInvalidScope("")
		}
	}

	if err := req.SetClient(client); err != nil {
		return fmt.Errorf("failed to record client: %w", err)
	}
	if err := req.SetCredential(credential); err != nil {
		return fmt.Errorf("failed to record credential: %w", err)
	}
	return nil
}

// CreateTokenResponse issues a new token with the original lifetime. The
// scope defaults to the original scope.
func (g *RefreshTokenGrant) CreateTokenResponse(ctx context.Context, env *Env, req *oauth.Request) (*Response, error) {
	client := req.Client()
	credential, _ := req.Credential().(oauth.TokenCredential)
	if credential == nil {
		return nil, errors.New("refresh credential missing from validated request")
	}

	var user any
	if g.AuthenticateUser != nil {
		u, err := g.AuthenticateUser(ctx, credential)
		if err != nil {
			return nil, fmt.Errorf("failed to authenticate user: %w", err)
		}
		if u == nil {
			return nil, oauth.ErrInvalidGrant(`There is no "user" for this token.`)
		}
		user = u
		if err := req.SetGrantUser(user); err != nil {
			return nil, fmt.Errorf("failed to record grant user: %w", err)
		}
	}

	scope := req.Scope()
	if scope == "" {
		scope = credential.Scope()
	}

	tok, err := issueToken(ctx, env, req, g.CreateAccessToken, GenerateOptions{
		Client:              client,
		GrantType:           oauth.GrantTypeRefreshToken,
		User:                user,
		Scope:               scope,
		ExpiresIn:           credential.ExpiresIn(),
		IncludeRefreshToken: true,
	})
	if err != nil {
		return nil, err
	}
	if g.RevokeOldCredential != nil {
		if err := g.RevokeOldCredential(ctx, credential); err != nil {
			return nil, fmt.Errorf("failed to revoke refreshed credential: %w", err)
		}
	}
	env.Auditor.LogTokenRefreshed(userID(user), client.ClientID(), req.RemoteAddr)
	return tokenResponse(tok), nil
}
