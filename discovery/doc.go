// Package discovery publishes and fetches OAuth 2.0 authorization server
// metadata (RFC 8414).
//
// A server publishes its endpoints with Handler:
//
//	mux.Handle(discovery.PathAuthorizationServer, &discovery.Handler{
//	    Metadata: discovery.Metadata{
//	        AuthorizationEndpoint: "/authorize",
//	        TokenEndpoint:         "/token",
//	    },
//	})
//
// A client resolves them from the issuer URL, or from one of the built-in
// provider presets:
//
//	c := discovery.NewClient(nil, time.Hour, slog.Default())
//	md, err := c.Discover(ctx, "https://dex.example.com")
//
//	md, ok := discovery.Preset("github")
package discovery
