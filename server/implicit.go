package server

import (
	"context"
	"fmt"
	"strconv"

	oauth "github.com/giantswarm/oauth2-engine"
)

// ImplicitGrant implements RFC 6749 section 4.2. Only public clients may use
// it, and both tokens and errors are returned in the redirect URI fragment.
type ImplicitGrant struct {
	// CreateAccessToken persists the issued token. Optional.
	CreateAccessToken SaveTokenFunc
}

var _ AuthorizationGrant = (*ImplicitGrant)(nil)

func (g *ImplicitGrant) GrantType() string { return oauth.GrantTypeImplicit }

// UsesFragment reports that responses go in the fragment.
func (g *ImplicitGrant) UsesFragment() bool { return true }

func (g *ImplicitGrant) MatchAuthorizationRequest(req *oauth.Request) bool {
	return req.ResponseType() == oauth.ResponseTypeToken
}

// ValidateAuthorizationRequest checks the client, its redirect URI, that it
// is public and may use response_type=token, and the requested scope.
func (g *ImplicitGrant) ValidateAuthorizationRequest(ctx context.Context, env *Env, req *oauth.Request) error {
	client, err := getAndValidateClient(ctx, env, req)
	if err != nil {
		return err
	}
	env.Logger.Debug("Validate authorization request", "client_id", client.ClientID(), "response_type", oauth.ResponseTypeToken)

	if err := validateAuthorizationRedirectURI(req, client); err != nil {
		return err
	}
	if !client.CheckClientType(oauth.ClientTypePublic) {
		return oauth.ErrUnauthorizedClient(`The implicit grant is only available to public clients.`)
	}
	if !client.CheckResponseType(oauth.ResponseTypeToken) {
		return oauth.ErrUnauthorizedClient(`The client is not authorized to use "response_type=token".`)
	}
	if err := validateRequestedScope(client, req.Scope()); err != nil {
		return err
	}
	if err := req.SetClient(client); err != nil {
		return fmt.Errorf("failed to record client: %w", err)
	}
	return nil
}

// CreateAuthorizationResponse redirects with the access token in the fragment.
func (g *ImplicitGrant) CreateAuthorizationResponse(ctx context.Context, env *Env, req *oauth.Request, grantUser any) (*Response, error) {
	if grantUser == nil {
		return nil, oauth.ErrAccessDenied("")
	}
	if err := req.SetGrantUser(grantUser); err != nil {
		return nil, fmt.Errorf("failed to record grant user: %w", err)
	}

	tok, err := issueToken(ctx, env, req, g.CreateAccessToken, GenerateOptions{
		Client:    req.Client(),
		GrantType: oauth.GrantTypeImplicit,
		User:      grantUser,
		Scope:     req.Scope(),
	})
	if err != nil {
		return nil, err
	}
	env.Metrics.RecordAuthorizationIssued(ctx, oauth.ResponseTypeToken)

	params := []oauth.Param{
		{Key: "access_token", Value: tok.AccessToken},
		{Key: "token_type", Value: tok.TokenType},
	}
	if tok.ExpiresIn != 0 {
		params = append(params, oauth.Param{Key: "expires_in", Value: strconv.FormatInt(tok.ExpiresIn, 10)})
	}
	if tok.Scope != "" {
		params = append(params, oauth.Param{Key: "scope", Value: tok.Scope})
	}
	if state := req.State(); state != "" {
		params = append(params, oauth.Param{Key: "state", Value: state})
	}
	return redirectResponse(addParams(req.RedirectURI(), params, true)), nil
}
