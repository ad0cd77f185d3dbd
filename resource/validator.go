package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/server"
	"github.com/giantswarm/oauth2-engine/storage"
)

// AccessToken is a resolved bearer token.
type AccessToken interface {
	ClientID() string
	Scope() string
	// ExpiresAt returns the expiry, zero if the token never expires
	ExpiresAt() time.Time
	IsRevoked() bool
}

// AuthenticateFunc resolves a bearer token string. It returns nil with no
// error when the token is unknown; errors are reserved for infrastructure
// failures.
type AuthenticateFunc func(ctx context.Context, token string) (AccessToken, error)

// BearerValidator validates bearer tokens against required scopes.
type BearerValidator struct {
	// AuthenticateToken resolves token strings (required)
	AuthenticateToken AuthenticateFunc

	// Realm is reported in WWW-Authenticate challenges
	Realm string

	// GracePeriod tolerates clock skew on expiry.
	// Zero uses security.DefaultClockSkewGracePeriod.
	GracePeriod time.Duration

	// Now defaults to time.Now
	Now func() time.Time
}

// Validate returns the token behind tokenString if it is live and carries
// every scope in scopes. Protocol failures are *oauth.Error values with the
// validator's realm.
func (v *BearerValidator) Validate(ctx context.Context, tokenString string, scopes ...string) (AccessToken, error) {
	if v.AuthenticateToken == nil {
		return nil, errors.New("bearer validator: AuthenticateToken is required")
	}
	tok, err := v.AuthenticateToken(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate bearer token: %w", err)
	}
	if tok == nil {
		return nil, oauth.ErrInvalidToken("").WithRealm(v.Realm)
	}
	if security.IsTokenExpiredWithGracePeriod(tok.ExpiresAt(), v.now(), v.gracePeriod()) {
		return nil, oauth.ErrInvalidToken("The access token expired.").WithRealm(v.Realm)
	}
	if tok.IsRevoked() {
		return nil, oauth.ErrInvalidToken("The access token was revoked.").WithRealm(v.Realm)
	}
	if ScopeInsufficient(tok.Scope(), scopes) {
		return nil, oauth.ErrInsufficientScope("").WithRealm(v.Realm)
	}
	return tok, nil
}

// ScopeInsufficient reports whether granted lacks any of required.
// No required scopes is always sufficient.
func ScopeInsufficient(granted string, required []string) bool {
	if len(required) == 0 {
		return false
	}
	return !oauth.ScopeIsSubset(oauth.ListToScope(required), granted)
}

func (v *BearerValidator) gracePeriod() time.Duration {
	if v.GracePeriod == 0 {
		return security.DefaultClockSkewGracePeriod
	}
	return v.GracePeriod
}

func (v *BearerValidator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// StoreAuthenticator resolves opaque tokens saved by server.TokenSaver.
func StoreAuthenticator(store storage.TokenStore) AuthenticateFunc {
	return func(ctx context.Context, token string) (AccessToken, error) {
		tok, err := store.GetTokenByAccessToken(ctx, token)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, nil
		}
		return tok, nil
	}
}

// JWTAuthenticator resolves tokens issued by a server.JWTGenerator. Tokens
// failing signature or claim checks are reported as unknown.
func JWTAuthenticator(g *server.JWTGenerator) AuthenticateFunc {
	return func(_ context.Context, token string) (AccessToken, error) {
		claims, err := g.Verify(token)
		if err != nil {
			return nil, nil
		}
		return &jwtToken{claims: claims}, nil
	}
}

// jwtToken adapts verified claims. JWTs cannot be revoked individually.
type jwtToken struct {
	claims *server.AccessTokenClaims
}

func (t *jwtToken) ClientID() string { return t.claims.ClientID }
func (t *jwtToken) Scope() string    { return t.claims.Scope }
func (t *jwtToken) IsRevoked() bool  { return false }

func (t *jwtToken) ExpiresAt() time.Time {
	if t.claims.ExpiresAt == nil {
		return time.Time{}
	}
	return t.claims.ExpiresAt.Time
}

// Subject returns the sub claim.
func (t *jwtToken) Subject() string { return t.claims.Subject }
