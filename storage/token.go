package storage

import (
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
)

// Token is an issued token record. It implements oauth.TokenCredential.
type Token struct {
	ID           string
	AccessToken  string
	RefreshToken string
	TokenType    string

	// IssuedTo is the client_id the token was issued to.
	IssuedTo string
	UserID   string

	GrantedScope string
	Lifetime     int64 // seconds
	IssuedAt     time.Time

	// RefreshExpiresAt bounds the refresh token; zero means it never expires.
	RefreshExpiresAt time.Time

	Revoked bool
}

var _ oauth.TokenCredential = (*Token)(nil)

func (t *Token) ClientID() string { return t.IssuedTo }
func (t *Token) Scope() string    { return t.GrantedScope }
func (t *Token) ExpiresIn() int64 { return t.Lifetime }

// IsRefreshTokenExpired reports whether the refresh token can no longer be used.
func (t *Token) IsRefreshTokenExpired() bool {
	if t.Revoked {
		return true
	}
	return !t.RefreshExpiresAt.IsZero() && time.Now().After(t.RefreshExpiresAt)
}

// IsRevoked reports whether the token was revoked.
func (t *Token) IsRevoked() bool { return t.Revoked }

// ExpiresAt returns when the access token expires, zero if it never does.
func (t *Token) ExpiresAt() time.Time {
	if t.Lifetime == 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.Lifetime) * time.Second)
}

// AuthorizationCode is a pending authorization code. It implements
// oauth.AuthorizationCode.
type AuthorizationCode struct {
	Code       string
	IssuedTo   string
	UserID     string
	RedirectTo string

	GrantedScope string
	ExpiresAt    time.Time
}

var _ oauth.AuthorizationCode = (*AuthorizationCode)(nil)

func (c *AuthorizationCode) RedirectURI() string { return c.RedirectTo }
func (c *AuthorizationCode) Scope() string       { return c.GrantedScope }

// IsExpired reports whether the code is past its expiry.
func (c *AuthorizationCode) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
