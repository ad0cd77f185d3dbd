package server

import (
	"context"
	"encoding/json"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
)

// DefaultExpiresIn is the access token lifetime in seconds per grant type.
var DefaultExpiresIn = map[string]int64{
	oauth.GrantTypeAuthorizationCode: 864000,
	oauth.GrantTypeImplicit:          3600,
	oauth.GrantTypePassword:          864000,
	oauth.GrantTypeClientCredentials: 864000,
	oauth.GrantTypeRefreshToken:      864000,
}

// GenerateOptions describes the token a grant is about to issue.
type GenerateOptions struct {
	Client    oauth.Client
	GrantType string

	// User is the resource owner, nil for client credentials.
	User  any
	Scope string

	// ExpiresIn overrides the generator's per-grant lifetime when non-zero.
	ExpiresIn int64

	IncludeRefreshToken bool
}

// TokenGenerator builds the token a grant returns.
type TokenGenerator func(ctx context.Context, opts GenerateOptions) (*BearerToken, error)

// BearerToken is an issued token in its wire form.
type BearerToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// Extra parameters are merged into the JSON object.
	Extra map[string]any `json:"-"`
}

// MarshalJSON encodes the token with Extra merged in. Standard fields win
// over Extra keys of the same name.
func (t *BearerToken) MarshalJSON() ([]byte, error) {
	type plain BearerToken
	if len(t.Extra) == 0 {
		return json.Marshal((*plain)(t))
	}
	m := make(map[string]any, len(t.Extra)+5)
	for k, v := range t.Extra {
		m[k] = v
	}
	m["access_token"] = t.AccessToken
	m["token_type"] = t.TokenType
	if t.ExpiresIn != 0 {
		m["expires_in"] = t.ExpiresIn
	}
	if t.RefreshToken != "" {
		m["refresh_token"] = t.RefreshToken
	}
	if t.Scope != "" {
		m["scope"] = t.Scope
	}
	return json.Marshal(m)
}

// BearerTokenGenerator returns a generator of opaque random bearer tokens.
// expiresIn maps grant types to lifetimes; nil uses DefaultExpiresIn.
func BearerTokenGenerator(expiresIn map[string]int64) TokenGenerator {
	if expiresIn == nil {
		expiresIn = DefaultExpiresIn
	}
	return func(_ context.Context, opts GenerateOptions) (*BearerToken, error) {
		tok := &BearerToken{
			AccessToken: security.GenerateToken(),
			TokenType:   oauth.TokenTypeBearer,
			ExpiresIn:   lifetime(expiresIn, opts),
			Scope:       opts.Scope,
		}
		if opts.IncludeRefreshToken {
			tok.RefreshToken = security.GenerateToken()
		}
		return tok, nil
	}
}

func lifetime(expiresIn map[string]int64, opts GenerateOptions) int64 {
	if opts.ExpiresIn != 0 {
		return opts.ExpiresIn
	}
	if n, ok := expiresIn[opts.GrantType]; ok {
		return n
	}
	return DefaultExpiresIn[opts.GrantType]
}

// userID returns the id of a resource owner implementing oauth.GrantUser.
func userID(user any) string {
	if u, ok := user.(oauth.GrantUser); ok {
		return u.UserID()
	}
	return ""
}
