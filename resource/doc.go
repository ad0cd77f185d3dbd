// Package resource protects HTTP resources with RFC 6750 bearer tokens.
//
// A BearerValidator decides whether a token string grants access. It relies
// on an injected AuthenticateFunc to resolve the string into an AccessToken,
// then checks expiry, revocation and the required scopes. StoreAuthenticator
// and JWTAuthenticator cover tokens issued by the server package.
//
// Protector extracts the token from the Authorization header and exposes the
// result as net/http middleware:
//
//	protector := &resource.Protector{
//		Validator: &resource.BearerValidator{
//			AuthenticateToken: resource.StoreAuthenticator(store),
//			Realm:             "api",
//		},
//	}
//	mux.Handle("/v1/profile", protector.Middleware("profile")(profileHandler))
//
// Inside the handler the validated token is available through
// TokenFromContext.
package resource
