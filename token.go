package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrTokenValidation is returned when token parameters cannot be normalized.
var ErrTokenValidation = errors.New("invalid token parameters")

// TokenTypeBearer is the only token type the engine issues and presents.
const TokenTypeBearer = "Bearer"

// Token is an access token record as returned by a token endpoint.
//
// ExpiresAt is derived once at construction from expires_in when no absolute
// expiry is supplied, and is never recomputed. Tokens are replaced, not edited.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string

	// ExpiresIn is the relative lifetime in seconds as received, 0 if absent.
	ExpiresIn int64

	// ExpiresAt is the absolute expiry in epoch seconds, 0 if unknown.
	ExpiresAt int64

	// Extra holds any additional response parameters (id_token, etc.).
	Extra map[string]any
}

// NewToken builds a Token from token response parameters using the current time.
func NewToken(params map[string]any) (*Token, error) {
	return NewTokenAt(params, time.Now())
}

// NewTokenAt builds a Token from params, computing expires_at relative to now.
func NewTokenAt(params map[string]any, now time.Time) (*Token, error) {
	t := &Token{}
	for k, v := range params {
		switch k {
		case "access_token":
			t.AccessToken = stringValue(v)
		case "token_type":
			t.TokenType = stringValue(v)
		case "refresh_token":
			t.RefreshToken = stringValue(v)
		case "scope":
			t.Scope = stringValue(v)
		case "expires_in":
			n, err := intValue(v)
			if err != nil {
				return nil, fmt.Errorf("%w: expires_in: %w", ErrTokenValidation, err)
			}
			t.ExpiresIn = n
		case "expires_at":
			n, err := intValue(v)
			if err != nil {
				return nil, fmt.Errorf("%w: expires_at: %w", ErrTokenValidation, err)
			}
			t.ExpiresAt = n
		default:
			if t.Extra == nil {
				t.Extra = make(map[string]any)
			}
			t.Extra[k] = v
		}
	}

	_, hasAt := params["expires_at"]
	_, hasIn := params["expires_in"]
	if !hasAt && hasIn {
		t.ExpiresAt = now.Unix() + t.ExpiresIn
	}
	return t, nil
}

// IsExpired reports whether the token is expired. known is false when the
// token carries no expiry at all.
func (t *Token) IsExpired() (expired, known bool) {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt is IsExpired evaluated at now.
func (t *Token) IsExpiredAt(now time.Time) (expired, known bool) {
	if t.ExpiresAt == 0 {
		return false, false
	}
	return t.ExpiresAt < now.Unix(), true
}

// Expiry returns ExpiresAt as a time.Time, zero if unknown.
func (t *Token) Expiry() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(t.ExpiresAt, 0)
}

// IsBearer reports whether the token type is bearer (case-insensitive).
func (t *Token) IsBearer() bool {
	return strings.EqualFold(t.TokenType, TokenTypeBearer)
}

// Params returns the token in its parameter-map form.
func (t *Token) Params() map[string]any {
	p := make(map[string]any, len(t.Extra)+6)
	for k, v := range t.Extra {
		p[k] = v
	}
	p["access_token"] = t.AccessToken
	p["token_type"] = t.TokenType
	if t.RefreshToken != "" {
		p["refresh_token"] = t.RefreshToken
	}
	if t.Scope != "" {
		p["scope"] = t.Scope
	}
	if t.ExpiresIn != 0 {
		p["expires_in"] = t.ExpiresIn
	}
	if t.ExpiresAt != 0 {
		p["expires_at"] = t.ExpiresAt
	}
	return p
}

// WithRefreshToken returns a copy of the token carrying refreshToken.
func (t *Token) WithRefreshToken(refreshToken string) *Token {
	c := *t
	c.RefreshToken = refreshToken
	return &c
}

// OAuth2 converts the token to its golang.org/x/oauth2 representation.
func (t *Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
		ExpiresIn:    t.ExpiresIn,
	}
	if len(t.Extra) > 0 {
		tok = tok.WithExtra(t.Extra)
	}
	return tok
}

// TokenFromOAuth2 converts a golang.org/x/oauth2 token. Extra values are not
// recoverable from oauth2.Token and are dropped.
func TokenFromOAuth2(tok *oauth2.Token) *Token {
	if tok == nil {
		return nil
	}
	t := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
	}
	if !tok.Expiry.IsZero() {
		t.ExpiresAt = tok.Expiry.Unix()
	}
	return t
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// intValue accepts the shapes a JSON decoder or a form parser produces.
func intValue(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// Valid reports whether the token has an access token and is not known to be
// expired.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	expired, _ := t.IsExpired()
	return !expired
}
