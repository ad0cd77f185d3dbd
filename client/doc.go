// Package client implements the client role of OAuth 2.0: a Session that
// builds authorization URLs, obtains tokens from a token endpoint, refreshes
// and revokes them, and attaches them to protected resource requests.
//
// # Flows
//
// FetchToken picks the grant from its options:
//   - no endpoint and an AuthorizationResponse: the token is read from the
//     callback fragment (implicit grant), without any network call
//   - a Code or an AuthorizationResponse with a query: authorization_code
//   - Username and Password: password
//   - otherwise GrantType, defaulting to client_credentials
//
// The state returned by a callback is checked against the session state
// before any request is sent.
//
// # Compliance hooks
//
// Providers that deviate from RFC 6749 can be accommodated with hooks run
// in registration order:
//
//	sess.RegisterComplianceHook(client.HookAccessTokenResponse,
//		func(resp *http.Response) (*http.Response, error) {
//			// rewrite a non-standard body
//			return resp, nil
//		})
//
// # Concurrency
//
// A Session is not safe for concurrent use. Two concurrent refreshes both
// reach the token endpoint and the last response wins. Callers sharing a
// Session must serialize access. TokenSource is the exception: its result
// is wrapped in oauth2.ReuseTokenSource, which serializes refreshes.
//
// Example:
//
//	sess, err := client.New(client.Config{
//		ClientID:        "my-app",
//		ClientSecret:    "secret",
//		RedirectURI:     "https://app.example.com/callback",
//		Scope:           "read",
//		RefreshTokenURL: "https://auth.example.com/token",
//	})
//	if err != nil {
//		return err
//	}
//	uri, state, _ := sess.AuthorizationURL("https://auth.example.com/authorize", "", nil)
//	// redirect the user to uri, then on callback:
//	tok, err := sess.FetchToken(ctx, "https://auth.example.com/token",
//		client.FetchTokenOptions{AuthorizationResponse: callbackURL})
package client
