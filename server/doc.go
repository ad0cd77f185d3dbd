// Package server implements the authorization-server side of the OAuth 2.0
// engine.
//
// An AuthorizationServer dispatches incoming requests to an ordered,
// immutable list of grant strategies. Each grant validates the request and
// builds the response for the endpoint it serves:
//   - Token endpoint grants implement TokenGrant
//   - Authorization endpoint grants implement AuthorizationGrant
//
// Persistence is injected through hook functions on the grants, so the
// package never stores clients, tokens or users itself.
//
// Key Features:
//   - Client credentials, authorization code, implicit, password and
//     refresh token grants (RFC 6749)
//   - Token revocation (RFC 7009)
//   - Opaque bearer and signed JWT access token generators
//   - Optional per-client rate limiting on the token endpoint
//   - Security auditing and OpenTelemetry instrumentation
//
// Example usage:
//
//	store := memory.New()
//	srv, err := server.New(server.Config{
//	    QueryClient: store.QueryClient,
//	    Logger:      logger,
//	}, &server.ClientCredentialsGrant{CreateAccessToken: saveToken})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.Handle("/token", srv.TokenHandler())
package server
