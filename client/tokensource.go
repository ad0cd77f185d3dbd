package client

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource returns an oauth2.TokenSource backed by the session, so the
// session can drive an oauth2.NewClient transport. Expired tokens are
// refreshed through RefreshTokenURL.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	var current *oauth2.Token
	if s.token != nil {
		current = s.token.OAuth2()
	}
	return oauth2.ReuseTokenSource(current, &sessionTokenSource{ctx: ctx, session: s})
}

type sessionTokenSource struct {
	ctx     context.Context
	session *Session
}

func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	s := ts.session
	if s.token == nil {
		return nil, ErrNoToken
	}
	if expired, _ := s.token.IsExpiredAt(s.now()); expired {
		if s.config.RefreshTokenURL == "" {
			return nil, ErrTokenExpired
		}
		if _, err := s.RefreshToken(ts.ctx, s.config.RefreshTokenURL, RefreshOptions{}); err != nil {
			return nil, err
		}
	}
	return s.token.OAuth2(), nil
}
