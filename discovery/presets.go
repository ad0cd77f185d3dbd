package discovery

import (
	"sort"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// presets are providers with fixed endpoints. Providers that publish
// metadata, such as Dex, are discovered from their issuer instead.
var presets = map[string]Metadata{
	"google": fromEndpoint(google.Endpoint, Metadata{
		Issuer:             "https://accounts.google.com",
		RevocationEndpoint: "https://oauth2.googleapis.com/revoke",
		UserInfoEndpoint:   "https://openidconnect.googleapis.com/v1/userinfo",
		JWKSURI:            "https://www.googleapis.com/oauth2/v3/certs",
	}),
	"github": fromEndpoint(github.Endpoint, Metadata{
		Issuer:           "https://github.com",
		UserInfoEndpoint: "https://api.github.com/user",
	}),
}

func fromEndpoint(ep oauth2.Endpoint, md Metadata) Metadata {
	md.AuthorizationEndpoint = ep.AuthURL
	md.TokenEndpoint = ep.TokenURL
	return md
}

// Preset returns the metadata of a well-known provider.
func Preset(name string) (*Metadata, bool) {
	md, ok := presets[name]
	if !ok {
		return nil, false
	}
	return &md, true
}

// PresetNames lists the known provider names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
