package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
)

// Sentinel errors returned by Session methods. Protocol failures reported by
// a server are *oauth.Error instead.
var (
	ErrNoToken              = errors.New("there is no token")
	ErrTokenExpired         = errors.New("token is expired")
	ErrNoRefreshToken       = errors.New("there is no refresh token")
	ErrUnsupportedTokenType = errors.New("unsupported token type")
	ErrInvalidHook          = errors.New("invalid compliance hook")
	ErrInvalidPlacement     = errors.New("invalid token placement")
)

// Placement selects where AddToken puts the access token.
type Placement string

const (
	// PlacementHeader sends "Authorization: Bearer <token>" (RFC 6750 section 2.1)
	PlacementHeader Placement = "headers"

	// PlacementBody adds access_token to the form body (RFC 6750 section 2.2)
	PlacementBody Placement = "body"

	// PlacementURI adds access_token to the query (RFC 6750 section 2.3)
	PlacementURI Placement = "uri"
)

// Config holds the settings of a Session.
type Config struct {
	ClientID     string
	ClientSecret string

	// Scope is sent with authorization, password, client credentials and
	// refresh requests when non-empty
	Scope string

	// RedirectURI is the registered callback URI
	RedirectURI string

	// Token is the initial token, if one was stored earlier
	Token *oauth.Token

	// RefreshTokenURL enables automatic refresh of expired tokens in Request
	RefreshTokenURL string

	// RefreshTokenParams are added to every refresh request
	RefreshTokenParams url.Values

	// State is the initial CSRF state
	State string

	// TokenUpdater is called with the new token after every refresh so it can
	// be persisted
	TokenUpdater func(ctx context.Context, token *oauth.Token) error

	// TokenPlacement defaults to PlacementHeader
	TokenPlacement Placement

	// ResponseType defaults to "code"
	ResponseType string

	// HTTPClient defaults to a client with a 30 second timeout
	HTTPClient *http.Client

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// Instrumentation provides metrics and spans; nil disables them
	Instrumentation *instrumentation.Instrumentation

	// AllowInsecureTransport permits plain http endpoints.
	// WARNING: only for local development.
	AllowInsecureTransport bool

	// Now defaults to time.Now
	Now func() time.Time
}

// DefaultHTTPTimeout is the timeout of the default HTTP client.
const DefaultHTTPTimeout = 30 * time.Second

// applyDefaults fills zero values and validates the placement mode.
func applyDefaults(cfg *Config) error {
	switch cfg.TokenPlacement {
	case "", "header":
		cfg.TokenPlacement = PlacementHeader
	case PlacementHeader, PlacementBody, PlacementURI:
	default:
		return ErrInvalidPlacement
	}
	if cfg.ResponseType == "" {
		cfg.ResponseType = oauth.ResponseTypeCode
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AllowInsecureTransport {
		cfg.Logger.Warn("⚠️  SECURITY WARNING: Insecure transport is allowed",
			"risk", "Tokens and client secrets may be sent in clear text",
			"recommendation", "Only use for local development")
	}
	return nil
}
