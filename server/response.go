package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
)

// Response is an endpoint result ready to be written by any HTTP framework.
// Body is encoded as JSON when non-nil; redirects carry no body.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

// Location returns the redirect target of a 302 response.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// Write writes the response to w.
func (r *Response) Write(w http.ResponseWriter) error {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	security.SetSecurityHeaders(w.Header())
	w.WriteHeader(r.Status)
	if r.Body == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(r.Body)
}

// errorBody is an error body encoded with its fields in wire order.
type errorBody []oauth.Param

func (b errorBody) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ErrorResponse renders e as a JSON error body with its status and headers.
func ErrorResponse(e *oauth.Error) *Response {
	return &Response{
		Status: e.Status,
		Header: e.Headers(),
		Body:   errorBody(e.Body()),
	}
}

// redirectErrorResponse sends e back to the client's redirect URI.
func redirectErrorResponse(redirectURI string, e *oauth.Error, fragment bool) *Response {
	return redirectResponse(addParams(redirectURI, e.Body(), fragment))
}

func redirectResponse(location string) *Response {
	h := http.Header{}
	h.Set("Location", location)
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	return &Response{Status: http.StatusFound, Header: h}
}

// tokenResponse renders an issued token with the RFC 6749 section 5.1 headers.
func tokenResponse(tok *BearerToken) *Response {
	h := http.Header{}
	security.SetTokenResponseHeaders(h)
	return &Response{Status: http.StatusOK, Header: h, Body: tok}
}

// addParams appends params to uri in the given order, to the query or to the
// fragment. Existing query parameters are kept as they are.
func addParams(uri string, params []oauth.Param, fragment bool) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	encoded := strings.Join(parts, "&")

	base, _, _ := strings.Cut(uri, "#")
	if fragment {
		return base + "#" + encoded
	}
	switch {
	case !strings.Contains(base, "?"):
		return base + "?" + encoded
	case strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&"):
		return base + encoded
	default:
		return base + "&" + encoded
	}
}
