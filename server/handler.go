package server

import (
	"context"
	"net/http"

	oauth "github.com/giantswarm/oauth2-engine"
)

// GrantUserFunc resolves the resource owner's decision for an authorization
// request: the user on approval, nil on denial.
type GrantUserFunc func(r *http.Request) (any, error)

// TokenHandler serves the token endpoint.
func (s *AuthorizationServer) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, s.CreateTokenResponse)
	})
}

// RevocationHandler serves the RFC 7009 revocation endpoint.
func (s *AuthorizationServer) RevocationHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, s.CreateRevocationResponse)
	})
}

// AuthorizationHandler serves the authorization endpoint. resolveUser is
// called for every request to obtain the resource owner's decision.
func (s *AuthorizationServer) AuthorizationHandler(resolveUser GrantUserFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, func(ctx context.Context, req *oauth.Request) (*Response, error) {
			user, err := resolveUser(r)
			if err != nil {
				return nil, err
			}
			return s.CreateAuthorizationResponse(ctx, req, user)
		})
	})
}

func (s *AuthorizationServer) serve(w http.ResponseWriter, r *http.Request, handle func(context.Context, *oauth.Request) (*Response, error)) {
	req, err := oauth.NewRequestFromHTTP(r, s.config.TrustProxy)
	if err == nil {
		var resp *Response
		resp, err = handle(r.Context(), req)
		if err == nil {
			s.write(w, resp)
			return
		}
	}

	if oe, ok := oauth.AsError(err); ok {
		s.write(w, ErrorResponse(s.config.ErrorURIs.Resolve(oe)))
		return
	}
	s.Logger.Error("OAuth endpoint failed", "path", r.URL.Path, "error", err)
	s.write(w, ErrorResponse(oauth.ErrServerError("")))
}

func (s *AuthorizationServer) write(w http.ResponseWriter, resp *Response) {
	if err := resp.Write(w); err != nil {
		s.Logger.Debug("Failed to write response", "error", err)
	}
}
