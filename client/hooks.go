package client

import (
	"fmt"
	"net/http"
	"net/url"
)

// HookKind names the point at which a compliance hook runs.
type HookKind string

const (
	// HookAccessTokenResponse runs on the token endpoint response of FetchToken
	HookAccessTokenResponse HookKind = "access_token_response"

	// HookRefreshTokenResponse runs on the token endpoint response of RefreshToken
	HookRefreshTokenResponse HookKind = "refresh_token_response"

	// HookProtectedRequest runs on every request sent with a token attached
	HookProtectedRequest HookKind = "protected_request"

	// HookRevokeTokenRequest runs on revocation requests before they are sent
	HookRevokeTokenRequest HookKind = "revoke_token_request"
)

// ResponseHook rewrites a token endpoint response before it is parsed.
type ResponseHook func(resp *http.Response) (*http.Response, error)

// RequestHook rewrites an outgoing request.
type RequestHook func(uri string, header http.Header, body url.Values) (string, http.Header, url.Values, error)

type hooks struct {
	accessTokenResponse  []ResponseHook
	refreshTokenResponse []ResponseHook
	protectedRequest     []RequestHook
	revokeTokenRequest   []RequestHook
}

// RegisterComplianceHook adds hook to the hooks of kind. Response kinds take
// a ResponseHook, request kinds a RequestHook; plain functions of the same
// shape are accepted too.
func (s *Session) RegisterComplianceHook(kind HookKind, hook any) error {
	switch kind {
	case HookAccessTokenResponse, HookRefreshTokenResponse:
		h, ok := asResponseHook(hook)
		if !ok {
			return fmt.Errorf("%w: %s needs a response hook, got %T", ErrInvalidHook, kind, hook)
		}
		if kind == HookAccessTokenResponse {
			s.hooks.accessTokenResponse = append(s.hooks.accessTokenResponse, h)
		} else {
			s.hooks.refreshTokenResponse = append(s.hooks.refreshTokenResponse, h)
		}
	case HookProtectedRequest, HookRevokeTokenRequest:
		h, ok := asRequestHook(hook)
		if !ok {
			return fmt.Errorf("%w: %s needs a request hook, got %T", ErrInvalidHook, kind, hook)
		}
		if kind == HookProtectedRequest {
			s.hooks.protectedRequest = append(s.hooks.protectedRequest, h)
		} else {
			s.hooks.revokeTokenRequest = append(s.hooks.revokeTokenRequest, h)
		}
	default:
		return fmt.Errorf("%w: unknown hook kind %q", ErrInvalidHook, kind)
	}
	s.logger.Debug("Registered compliance hook", "kind", string(kind))
	return nil
}

func asResponseHook(hook any) (ResponseHook, bool) {
	switch h := hook.(type) {
	case ResponseHook:
		return h, h != nil
	case func(*http.Response) (*http.Response, error):
		return h, h != nil
	default:
		return nil, false
	}
}

func asRequestHook(hook any) (RequestHook, bool) {
	switch h := hook.(type) {
	case RequestHook:
		return h, h != nil
	case func(string, http.Header, url.Values) (string, http.Header, url.Values, error):
		return h, h != nil
	default:
		return nil, false
	}
}

func runResponseHooks(hooks []ResponseHook, resp *http.Response) (*http.Response, error) {
	for _, h := range hooks {
		var err error
		resp, err = h(resp)
		if err != nil {
			return nil, fmt.Errorf("compliance hook failed: %w", err)
		}
	}
	return resp, nil
}

func runRequestHooks(hooks []RequestHook, uri string, header http.Header, body url.Values) (string, http.Header, url.Values, error) {
	for _, h := range hooks {
		var err error
		uri, header, body, err = h(uri, header, body)
		if err != nil {
			return "", nil, nil, fmt.Errorf("compliance hook failed: %w", err)
		}
	}
	return uri, header, body, nil
}
