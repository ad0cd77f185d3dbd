package resource

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/server"
)

// tokenLogLength is the number of characters of a token included in logs
const tokenLogLength = 8

// ErrNoCredentials is returned by Protector.Validate when the request carries
// no Authorization header.
var ErrNoCredentials = errors.New("request carries no credentials")

// Protector guards HTTP handlers with bearer token validation.
type Protector struct {
	// Validator validates extracted tokens (required)
	Validator *BearerValidator

	// RateLimiter throttles requests per remote address when set
	RateLimiter *security.RateLimiter

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// Auditor records rejected tokens; nil disables auditing
	Auditor *security.Auditor
}

// Validate extracts the bearer token from r and validates it against scopes.
func (p *Protector) Validate(ctx context.Context, r *http.Request, scopes ...string) (AccessToken, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, oauth.ErrUnsupportedTokenType("Unsupported token type " + scheme + ".")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, oauth.ErrInvalidToken("Missing bearer token.").WithRealm(p.Validator.Realm)
	}
	return p.Validator.Validate(ctx, token, scopes...)
}

// Middleware rejects requests without a valid token carrying scopes. Accepted
// requests reach next with the token in their context.
func (p *Protector) Middleware(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p.RateLimiter != nil && !p.RateLimiter.Allow(r.RemoteAddr) {
				p.logger().Warn("Rate limit exceeded", "ip", r.RemoteAddr)
				p.Auditor.LogRateLimitExceeded(r.RemoteAddr, r.RemoteAddr)
				w.Header().Set("Retry-After", "60")
				p.writeError(w, oauth.ErrRateLimitExceeded("Rate limit exceeded. Please try again later."))
				return
			}

			tok, err := p.Validate(r.Context(), r, scopes...)
			if errors.Is(err, ErrNoCredentials) {
				p.writeChallenge(w)
				return
			}
			if err != nil {
				oe, ok := oauth.AsError(err)
				if !ok {
					p.logger().Error("Bearer token validation failed", "path", r.URL.Path, "error", err)
					p.writeError(w, oauth.ErrServerError(""))
					return
				}
				p.logger().Debug("Rejected bearer token",
					"path", r.URL.Path,
					"error", oe.Code,
					"token_prefix", util.SafeTruncate(bearerValue(r), tokenLogLength))
				p.Auditor.LogAuthFailure("", r.RemoteAddr, oe.Code)
				p.writeError(w, oe)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), tok)))
		})
	}
}

func (p *Protector) writeError(w http.ResponseWriter, e *oauth.Error) {
	if err := server.ErrorResponse(e).Write(w); err != nil {
		p.logger().Error("Failed to write error response", "error", err)
	}
}

// writeChallenge asks for credentials without an error code (RFC 6750
// section 3.1).
func (p *Protector) writeChallenge(w http.ResponseWriter) {
	challenge := "Bearer"
	if p.Validator.Realm != "" {
		challenge += " realm=" + strconv.Quote(p.Validator.Realm)
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusUnauthorized)
}

func (p *Protector) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func bearerValue(r *http.Request) string {
	_, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	return token
}

type contextKey string

const accessTokenKey contextKey = "access_token"

// TokenFromContext returns the token stored by Middleware.
func TokenFromContext(ctx context.Context) (AccessToken, bool) {
	tok, ok := ctx.Value(accessTokenKey).(AccessToken)
	return tok, ok
}

// ContextWithToken returns ctx carrying tok. Handlers under Middleware get
// this for free; it is exported for tests of such handlers.
func ContextWithToken(ctx context.Context, tok AccessToken) context.Context {
	return context.WithValue(ctx, accessTokenKey, tok)
}
