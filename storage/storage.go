package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ClientStore persists registered clients.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient creates or replaces a client
	SaveClient(ctx context.Context, client *Client) error

	// GetClient returns a client by ID, ErrNotFound if unknown
	GetClient(ctx context.Context, clientID string) (*Client, error)
}

// TokenStore persists issued tokens.
type TokenStore interface {
	// SaveToken stores a newly issued token
	SaveToken(ctx context.Context, token *Token) error

	// GetTokenByAccessToken looks a token up by its access token value
	GetTokenByAccessToken(ctx context.Context, accessToken string) (*Token, error)

	// GetTokenByRefreshToken looks a token up by its refresh token value
	GetTokenByRefreshToken(ctx context.Context, refreshToken string) (*Token, error)

	// RevokeToken marks a token revoked by its ID
	RevokeToken(ctx context.Context, tokenID string) error
}

// AuthorizationCodeStore persists authorization codes until they are exchanged.
type AuthorizationCodeStore interface {
	// SaveAuthorizationCode stores a newly issued code
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// GetAuthorizationCode returns an unexpired code, ErrNotFound otherwise
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthorizationCode removes a code after use
	DeleteAuthorizationCode(ctx context.Context, code string) error
}
