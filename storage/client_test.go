package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oauth "github.com/giantswarm/oauth2-engine"
)

func TestNewClient_Confidential(t *testing.T) {
	c, err := NewClient("app", "s3cret",
		[]string{"https://app.example.com/cb", "https://app.example.com/alt"},
		[]string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
		[]string{"read", "write"})
	require.NoError(t, err)

	assert.True(t, c.CheckClientType(oauth.ClientTypeConfidential))
	assert.True(t, c.HasClientSecret())
	assert.NotEqual(t, "s3cret", c.SecretHash, "secret must be stored hashed")
	assert.True(t, c.CheckClientSecret("s3cret"))
	assert.False(t, c.CheckClientSecret("wrong"))

	assert.Equal(t, "https://app.example.com/cb", c.DefaultRedirectURI())
	assert.True(t, c.CheckRedirectURI("https://app.example.com/alt"))
	assert.False(t, c.CheckRedirectURI("https://evil.example.com/cb"))

	assert.True(t, c.CheckResponseType(oauth.ResponseTypeCode))
	assert.False(t, c.CheckResponseType(oauth.ResponseTypeToken))
	assert.True(t, c.CheckGrantType(oauth.GrantTypeRefreshToken))
	assert.False(t, c.CheckGrantType(oauth.GrantTypePassword))
}

func TestNewClient_Public(t *testing.T) {
	c, err := NewClient("spa", "", []string{"https://spa.example.com/cb"},
		[]string{oauth.GrantTypeImplicit}, nil)
	require.NoError(t, err)

	assert.True(t, c.CheckClientType(oauth.ClientTypePublic))
	assert.False(t, c.HasClientSecret())
	assert.False(t, c.CheckClientSecret(""), "public clients never authenticate with a secret")
	assert.True(t, c.CheckResponseType(oauth.ResponseTypeToken))
}

func TestClient_CheckRequestedScopes(t *testing.T) {
	c := &Client{Scopes: []string{"read", "write"}}

	tests := []struct {
		name   string
		scopes []string
		want   bool
	}{
		{name: "empty", scopes: nil, want: true},
		{name: "subset", scopes: []string{"read"}, want: true},
		{name: "all", scopes: []string{"write", "read"}, want: true},
		{name: "unknown", scopes: []string{"admin"}, want: false},
		{name: "mixed", scopes: []string{"read", "admin"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.CheckRequestedScopes(tt.scopes))
		})
	}
}

func TestClient_DefaultRedirectURI_None(t *testing.T) {
	assert.Equal(t, "", (&Client{}).DefaultRedirectURI())
}

func TestToken_Credential(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	tok := &Token{
		IssuedTo:     "app",
		GrantedScope: "read",
		Lifetime:     600,
		IssuedAt:     issued,
	}
	assert.Equal(t, "app", tok.ClientID())
	assert.Equal(t, "read", tok.Scope())
	assert.Equal(t, int64(600), tok.ExpiresIn())
	assert.Equal(t, issued.Add(10*time.Minute), tok.ExpiresAt())
	assert.False(t, tok.IsRefreshTokenExpired())

	tok.RefreshExpiresAt = time.Now().Add(-time.Second)
	assert.True(t, tok.IsRefreshTokenExpired())

	assert.True(t, (&Token{}).ExpiresAt().IsZero(), "zero lifetime never expires")
}

func TestAuthorizationCode_IsExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&AuthorizationCode{}).IsExpired(now))
	assert.False(t, (&AuthorizationCode{ExpiresAt: now.Add(time.Minute)}).IsExpired(now))
	assert.True(t, (&AuthorizationCode{ExpiresAt: now.Add(-time.Minute)}).IsExpired(now))
}
