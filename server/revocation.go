package server

import (
	"context"
	"fmt"
	"net/http"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/security"
)

// RevocationEndpoint implements RFC 7009 token revocation.
type RevocationEndpoint struct {
	// QueryToken finds the credential holding token, searching the index
	// named by hint first. Nil means unknown (required).
	QueryToken func(ctx context.Context, token, hint string) (oauth.TokenCredential, error)

	// RevokeToken invalidates credential (required).
	RevokeToken func(ctx context.Context, credential oauth.TokenCredential) error
}

func (e *RevocationEndpoint) checkConfig() error {
	switch {
	case e.QueryToken == nil:
		return fmt.Errorf("%w: QueryToken", ErrMissingHook)
	case e.RevokeToken == nil:
		return fmt.Errorf("%w: RevokeToken", ErrMissingHook)
	}
	return nil
}

const (
	tokenTypeHintAccessToken  = "access_token"
	tokenTypeHintRefreshToken = "refresh_token"
)

// handle validates and executes a revocation request. Unknown tokens and
// tokens of other clients are answered like successful revocations.
func (e *RevocationEndpoint) handle(ctx context.Context, env *Env, req *oauth.Request) (*Response, error) {
	if req.Method != http.MethodPost {
		return nil, oauth.ErrInvalidRequest("Revocation requests must use POST.")
	}
	client, err := authenticateClientBasic(ctx, env, req)
	if err != nil {
		return nil, err
	}

	token := req.Token()
	if token == "" {
		return nil, oauth.ErrInvalidRequest(`Missing "token" in request.`)
	}
	hint := req.TokenTypeHint()
	if hint != "" && hint != tokenTypeHintAccessToken && hint != tokenTypeHintRefreshToken {
		return nil, oauth.ErrUnsupportedTokenType("")
	}

	credential, err := e.QueryToken(ctx, token, hint)
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}
	switch {
	case credential == nil:
		env.Logger.Debug("Revocation of unknown token ignored",
			"client_id", client.ClientID(),
			"token_prefix", util.SafeTruncate(token, tokenLogLength))
	case credential.ClientID() != client.ClientID():
		env.Logger.Warn("Revocation of token owned by another client ignored",
			"client_id", client.ClientID(),
			"owner_client_id", credential.ClientID())
		env.Auditor.LogAuthFailure(client.ClientID(), req.RemoteAddr, "revocation of foreign token")
	default:
		if err := e.RevokeToken(ctx, credential); err != nil {
			return nil, fmt.Errorf("failed to revoke token: %w", err)
		}
		env.Logger.Info("Revoked token", "client_id", client.ClientID(), "token_type_hint", hint)
		env.Auditor.LogTokenRevoked(client.ClientID(), req.RemoteAddr, hint)
		env.Metrics.RecordTokenRevoked(ctx)
	}

	h := http.Header{}
	security.SetTokenResponseHeaders(h)
	return &Response{Status: http.StatusOK, Header: h, Body: map[string]any{}}, nil
}

// tokenLogLength is the number of characters of a token included in logs
const tokenLogLength = 8
