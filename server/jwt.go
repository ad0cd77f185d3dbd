package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
)

// AccessTokenClaims are the claims of a JWT access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	ClientID  string `json:"client_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	GrantType string `json:"grant_type,omitempty"`
}

// JWTGenerator issues signed JWT access tokens. Refresh tokens stay opaque.
type JWTGenerator struct {
	// Issuer is the iss claim
	Issuer string

	// Audience is the optional aud claim
	Audience []string

	// SigningMethod defaults to HS256
	SigningMethod jwt.SigningMethod

	// Key signs tokens: []byte for HMAC, *rsa.PrivateKey for RSA
	Key any

	// VerifyKey verifies tokens; defaults to Key, which only works for HMAC
	VerifyKey any

	// KeyID is set as the kid header when non-empty
	KeyID string

	// ExpiresIn maps grant types to lifetimes; nil uses DefaultExpiresIn
	ExpiresIn map[string]int64

	// Now defaults to time.Now
	Now func() time.Time
}

// Generate implements TokenGenerator.
func (g *JWTGenerator) Generate(_ context.Context, opts GenerateOptions) (*BearerToken, error) {
	if g.Key == nil {
		return nil, errors.New("jwt generator: signing key is required")
	}
	now := g.now()
	expiresIn := lifetime(g.expiresIn(), opts)

	clientID := ""
	if opts.Client != nil {
		clientID = opts.Client.ClientID()
	}
	subject := userID(opts.User)
	if subject == "" {
		subject = clientID
	}

	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expiresIn) * time.Second)),
			ID:        uuid.New().String(),
		},
		ClientID:  clientID,
		Scope:     opts.Scope,
		GrantType: opts.GrantType,
	}
	if len(g.Audience) > 0 {
		claims.Audience = jwt.ClaimStrings(g.Audience)
	}

	token := jwt.NewWithClaims(g.signingMethod(), claims)
	if g.KeyID != "" {
		token.Header["kid"] = g.KeyID
	}
	signed, err := token.SignedString(g.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT token: %w", err)
	}

	tok := &BearerToken{
		AccessToken: signed,
		TokenType:   oauth.TokenTypeBearer,
		ExpiresIn:   expiresIn,
		Scope:       opts.Scope,
	}
	if opts.IncludeRefreshToken {
		tok.RefreshToken = security.GenerateToken()
	}
	return tok, nil
}

// Verify parses and validates a token issued by this generator.
func (g *JWTGenerator) Verify(tokenString string) (*AccessTokenClaims, error) {
	key := g.VerifyKey
	if key == nil {
		key = g.Key
	}
	claims := &AccessTokenClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{g.signingMethod().Alg()}),
		jwt.WithTimeFunc(g.now),
	}
	if g.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(g.Issuer))
	}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	return claims, nil
}

func (g *JWTGenerator) signingMethod() jwt.SigningMethod {
	if g.SigningMethod == nil {
		return jwt.SigningMethodHS256
	}
	return g.SigningMethod
}

func (g *JWTGenerator) expiresIn() map[string]int64 {
	if g.ExpiresIn == nil {
		return DefaultExpiresIn
	}
	return g.ExpiresIn
}

func (g *JWTGenerator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}
