package server

import (
	"context"
	"fmt"
	"log/slog"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
)

// Env is the server state a grant sees while handling one request.
type Env struct {
	QueryClient   ClientLookup
	GenerateToken TokenGenerator
	Logger        *slog.Logger
	Auditor       *security.Auditor
	Metrics       *instrumentation.Metrics
}

// Grant is implemented by every grant strategy.
type Grant interface {
	GrantType() string
}

// TokenGrant serves the token endpoint.
//
// Validate and create steps return nil on success, an *oauth.Error for a
// protocol failure, or any other error for an infrastructure failure.
type TokenGrant interface {
	Grant

	// TokenEndpointMethods lists the HTTP methods the grant accepts.
	TokenEndpointMethods() []string
	MatchTokenRequest(req *oauth.Request) bool
	ValidateTokenRequest(ctx context.Context, env *Env, req *oauth.Request) error
	CreateTokenResponse(ctx context.Context, env *Env, req *oauth.Request) (*Response, error)
}

// AuthorizationGrant serves the authorization endpoint.
type AuthorizationGrant interface {
	Grant

	MatchAuthorizationRequest(req *oauth.Request) bool
	ValidateAuthorizationRequest(ctx context.Context, env *Env, req *oauth.Request) error

	// CreateAuthorizationResponse builds the redirect after the resource
	// owner decided. A nil grantUser means access was denied.
	CreateAuthorizationResponse(ctx context.Context, env *Env, req *oauth.Request, grantUser any) (*Response, error)
}

// configChecker is implemented by grants with required hooks.
type configChecker interface {
	checkConfig() error
}

// fragmentResponder is implemented by grants that answer in the URI fragment.
type fragmentResponder interface {
	UsesFragment() bool
}

func usesFragment(g AuthorizationGrant) bool {
	f, ok := g.(fragmentResponder)
	return ok && f.UsesFragment()
}

const errClientAuthFailed = "Client authentication failed."

// authenticateClientBasic authenticates the client with the HTTP Basic
// Authorization header only.
func authenticateClientBasic(ctx context.Context, env *Env, req *oauth.Request) (oauth.Client, error) {
	creds, ok := req.ExtractAuthorizationHeader()
	if !ok || creds.ClientID == "" {
		env.Auditor.LogAuthFailure("", req.RemoteAddr, "missing basic credentials")
		return nil, oauth.ErrInvalidClient(errClientAuthFailed)
	}
	client, err := lookupClient(ctx, env, creds.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil || !client.CheckClientSecret(creds.ClientSecret) {
		env.Auditor.LogAuthFailure(creds.ClientID, req.RemoteAddr, "invalid client credentials")
		return nil, oauth.ErrInvalidClient(errClientAuthFailed)
	}
	env.Logger.Debug("Authenticated client via basic auth", "client_id", creds.ClientID)
	return client, nil
}

// authenticateClient accepts Basic or form credentials. A public client may
// identify itself with client_id alone.
func authenticateClient(ctx context.Context, env *Env, req *oauth.Request) (oauth.Client, error) {
	creds, _ := req.ClientCredentials()
	if creds.ClientID == "" {
		env.Auditor.LogAuthFailure("", req.RemoteAddr, "missing client_id")
		return nil, oauth.ErrInvalidClient(errClientAuthFailed)
	}
	client, err := lookupClient(ctx, env, creds.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		env.Auditor.LogAuthFailure(creds.ClientID, req.RemoteAddr, "unknown client")
		return nil, oauth.ErrInvalidClient(errClientAuthFailed)
	}
	if client.CheckClientType(oauth.ClientTypePublic) && creds.ClientSecret == "" {
		return client, nil
	}
	if !client.CheckClientSecret(creds.ClientSecret) {
		env.Auditor.LogAuthFailure(creds.ClientID, req.RemoteAddr, "invalid client credentials")
		return nil, oauth.ErrInvalidClient(errClientAuthFailed)
	}
	return client, nil
}

// getAndValidateClient resolves the client_id of an authorization request.
func getAndValidateClient(ctx context.Context, env *Env, req *oauth.Request) (oauth.Client, error) {
	clientID := req.ClientID()
	if clientID == "" {
		return nil, oauth.ErrInvalidClient(`Missing "client_id" in request.`)
	}
	client, err := lookupClient(ctx, env, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, oauth.ErrInvalidClient(fmt.Sprintf("The client does not exist on this server: %s", clientID))
	}
	return client, nil
}

func lookupClient(ctx context.Context, env *Env, clientID string) (oauth.Client, error) {
	client, err := env.QueryClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query client %q: %w", clientID, err)
	}
	return client, nil
}

// validateAuthorizationRedirectURI resolves the redirect URI of an
// authorization request and records it on req once verified.
func validateAuthorizationRedirectURI(req *oauth.Request, client oauth.Client) error {
	uri := req.RedirectURIParam()
	if uri == "" {
		uri = client.DefaultRedirectURI()
		if uri == "" {
			return oauth.ErrInvalidRequest(`Missing "redirect_uri" in request.`)
		}
	} else if !client.CheckRedirectURI(uri) {
		return oauth.ErrInvalidRequest(`Redirect URI is not supported by client.`)
	}
	return req.SetRedirectURI(uri)
}

// validateRequestedScope rejects scopes outside the client's allowed set.
func validateRequestedScope(client oauth.Client, scope string) error {
	if scope == "" {
		return nil
	}
	if !client.CheckRequestedScopes(oauth.ScopeToList(scope)) {
		return oauth.ErrInvalidScope("")
	}
	return nil
}

// issueToken generates a token and hands it to the grant's save hook.
func issueToken(ctx context.Context, env *Env, req *oauth.Request, save SaveTokenFunc, opts GenerateOptions) (*BearerToken, error) {
	tok, err := env.GenerateToken(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	if save != nil {
		if err := save(ctx, tok, opts.Client, req); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
	}
	env.Logger.Info("Issued access token",
		"grant_type", opts.GrantType,
		"client_id", opts.Client.ClientID(),
		"scope", opts.Scope,
		"refresh_token", tok.RefreshToken != "")
	env.Auditor.LogTokenIssued(userID(opts.User), opts.Client.ClientID(), req.RemoteAddr, opts.GrantType, opts.Scope)
	env.Metrics.RecordTokenIssued(ctx, opts.GrantType)
	return tok, nil
}

// SaveTokenFunc persists an issued token. The request carries the client,
// grant user and credential set during validation.
type SaveTokenFunc func(ctx context.Context, token *BearerToken, client oauth.Client, req *oauth.Request) error
