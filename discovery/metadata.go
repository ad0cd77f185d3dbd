package discovery

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	oauth "github.com/giantswarm/oauth2-engine"
)

// Well-known paths of the metadata document.
const (
	PathAuthorizationServer = "/.well-known/oauth-authorization-server"
	PathOpenIDConfiguration = "/.well-known/openid-configuration"
)

// Metadata is an authorization server metadata document.
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint,omitempty"`
	JWKSURI                           string   `json:"jwks_uri,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	RevocationEndpointAuthMethods     []string `json:"revocation_endpoint_auth_methods_supported,omitempty"`
}

// Validate checks that the required endpoints are present and that every
// endpoint uses https unless allowInsecure is set.
func (m *Metadata) Validate(allowInsecure bool) error {
	if m.TokenEndpoint == "" {
		return fmt.Errorf("token_endpoint is required but missing")
	}

	endpoints := []struct {
		name string
		url  string
	}{
		{"issuer", m.Issuer},
		{"authorization_endpoint", m.AuthorizationEndpoint},
		{"token_endpoint", m.TokenEndpoint},
		{"revocation_endpoint", m.RevocationEndpoint},
		{"userinfo_endpoint", m.UserInfoEndpoint},
		{"jwks_uri", m.JWKSURI},
	}
	for _, ep := range endpoints {
		if ep.url != "" && !oauth.IsSecureTransport(ep.url, allowInsecure) {
			return fmt.Errorf("%s must use HTTPS: %s", ep.name, ep.url)
		}
	}
	return nil
}

// resolve returns a copy of m with path-only endpoints joined to issuer.
func (m Metadata) resolve(issuer string) Metadata {
	if m.Issuer == "" {
		m.Issuer = issuer
	}
	base := strings.TrimSuffix(m.Issuer, "/")
	for _, ep := range []*string{
		&m.AuthorizationEndpoint, &m.TokenEndpoint, &m.RevocationEndpoint,
		&m.UserInfoEndpoint, &m.JWKSURI,
	} {
		if strings.HasPrefix(*ep, "/") {
			*ep = base + *ep
		}
	}
	return m
}

// ValidateIssuerURL rejects issuer URLs that are not https or that point at
// loopback, private or link-local addresses. allowPrivate lifts both
// restrictions for local development.
func ValidateIssuerURL(issuerURL string, allowPrivate bool) error {
	u, err := url.Parse(issuerURL)
	if err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("issuer URL must have a hostname")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("issuer URL must not carry a query or fragment")
	}
	if allowPrivate {
		return nil
	}

	if u.Scheme != "https" {
		return fmt.Errorf("issuer URL must use HTTPS, got %s", u.Scheme)
	}
	if ip := net.ParseIP(u.Hostname()); ip != nil {
		switch {
		case ip.IsLoopback():
			return fmt.Errorf("issuer URL must not point to loopback addresses")
		case ip.IsPrivate():
			return fmt.Errorf("issuer URL must not point to private IP ranges")
		case ip.IsLinkLocalUnicast(), ip.IsUnspecified():
			return fmt.Errorf("issuer URL must not point to link-local addresses")
		}
	}
	return nil
}
