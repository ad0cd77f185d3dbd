package server

import (
	"context"
	"log/slog"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
)

// ClientLookup resolves a client by id. An unknown client is reported as
// (nil, nil); a non-nil error means the lookup itself failed.
type ClientLookup func(ctx context.Context, clientID string) (oauth.Client, error)

// Config holds authorization server configuration
type Config struct {
	// QueryClient looks clients up by id (required)
	QueryClient ClientLookup

	// GenerateToken builds access tokens for every grant
	// Default: BearerTokenGenerator with DefaultExpiresIn
	GenerateToken TokenGenerator

	// ErrorURIs maps error codes to documentation URIs added to error responses
	ErrorURIs oauth.ErrorURIs

	// Revocation enables the RFC 7009 revocation endpoint when set
	Revocation *RevocationEndpoint

	// AllowInsecureTransport accepts non-HTTPS request URIs
	// WARNING: Only for local development. Tokens travel in clear text.
	// Default: false
	AllowInsecureTransport bool

	// TrustProxy enables X-Forwarded-Proto and X-Forwarded-Host when the HTTP
	// adapters rebuild the request URI
	// WARNING: Only enable if behind a trusted reverse proxy
	// Default: false
	TrustProxy bool

	// RateLimiter throttles the token endpoint per client when set
	RateLimiter *security.RateLimiter

	// Auditor receives security audit events. Nil disables auditing.
	Auditor *security.Auditor

	// Instrumentation provides metrics and tracing. Nil means no-op.
	Instrumentation *instrumentation.Instrumentation

	// Logger is used for flow logging. Default: slog.Default()
	Logger *slog.Logger
}

// applySecureDefaults fills zero values and warns about insecure settings
func applySecureDefaults(config *Config) *Config {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.GenerateToken == nil {
		config.GenerateToken = BearerTokenGenerator(nil)
	}
	logSecurityWarnings(config, config.Logger)
	return config
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if config.AllowInsecureTransport {
		logger.Warn("⚠️  SECURITY WARNING: Insecure transport is ALLOWED",
			"risk", "Credentials and tokens sent over plain HTTP",
			"recommendation", "Set AllowInsecureTransport=false outside local development",
			"learn_more", "https://datatracker.ietf.org/doc/html/rfc6749#section-3.1")
	}
	if config.TrustProxy {
		logger.Warn("⚠️  SECURITY NOTICE: Trusting proxy headers",
			"risk", "Scheme and host spoofing if proxy is not properly configured",
			"recommendation", "Only enable behind trusted reverse proxies")
	}
	if config.RateLimiter == nil {
		logger.Debug("Token endpoint rate limiting is disabled")
	}
}
