package server

import (
	"context"
	"fmt"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// DefaultAuthorizationCodeTTL is how long codes issued by CodeIssuer live.
const DefaultAuthorizationCodeTTL = 10 * time.Minute

// TokenSaver returns a CreateAccessToken hook persisting issued tokens in
// store. Refresh tokens expire after refreshTTL; zero means never.
func TokenSaver(store storage.TokenStore, refreshTTL time.Duration) SaveTokenFunc {
	return func(ctx context.Context, tok *BearerToken, client oauth.Client, req *oauth.Request) error {
		record := &storage.Token{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			TokenType:    tok.TokenType,
			IssuedTo:     client.ClientID(),
			UserID:       userID(req.GrantUser()),
			GrantedScope: tok.Scope,
			Lifetime:     tok.ExpiresIn,
			IssuedAt:     time.Now(),
		}
		if tok.RefreshToken != "" && refreshTTL > 0 {
			record.RefreshExpiresAt = record.IssuedAt.Add(refreshTTL)
		}
		return store.SaveToken(ctx, record)
	}
}

// CodeIssuer returns a CreateAuthorizationCode hook persisting random codes
// in store. A ttl of zero uses DefaultAuthorizationCodeTTL.
func CodeIssuer(store storage.AuthorizationCodeStore, ttl time.Duration) func(context.Context, oauth.Client, any, *oauth.Request) (string, error) {
	if ttl == 0 {
		ttl = DefaultAuthorizationCodeTTL
	}
	return func(ctx context.Context, client oauth.Client, grantUser any, req *oauth.Request) (string, error) {
		code := security.GenerateToken()
		err := store.SaveAuthorizationCode(ctx, &storage.AuthorizationCode{
			Code:         code,
			IssuedTo:     client.ClientID(),
			UserID:       userID(grantUser),
			RedirectTo:   req.RedirectURIParam(),
			GrantedScope: req.Scope(),
			ExpiresAt:    time.Now().Add(ttl),
		})
		if err != nil {
			return "", fmt.Errorf("failed to save authorization code: %w", err)
		}
		return code, nil
	}
}
