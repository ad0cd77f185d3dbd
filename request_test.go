package oauth

import (
	"crypto/tls"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func basic(raw string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(raw)))
	return h
}

func TestNewRequest_MergesQueryAndBody(t *testing.T) {
	req, err := NewRequest("post", "https://auth.example.com/token?scope=query&state=s1&dup=a&dup=b",
		"scope=body&grant_type=client_credentials&bad=%zz", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	if req.Method != http.MethodPost {
		t.Errorf("Method = %q, want %q", req.Method, http.MethodPost)
	}
	if got := req.Scope(); got != "body" {
		t.Errorf("Scope() = %q, want the body value %q", got, "body")
	}
	if got := req.State(); got != "s1" {
		t.Errorf("State() = %q, want %q", got, "s1")
	}
	if got := req.Query["dup"]; got != "b" {
		t.Errorf("Query[dup] = %q, want the last value %q", got, "b")
	}
	if got := req.GrantType(); got != GrantTypeClientCredentials {
		t.Errorf("GrantType() = %q, want %q", got, GrantTypeClientCredentials)
	}
	if _, ok := req.Param("missing"); ok {
		t.Error("Param(missing) ok = true")
	}
	if req.Header == nil {
		t.Error("Header is nil, want an empty header")
	}
}

func TestNewRequest_MalformedURI(t *testing.T) {
	_, err := NewRequest(http.MethodGet, "https://auth.example.com/%zz", "", nil)
	oe, ok := AsError(err)
	if !ok || oe.Code != ErrorCodeInvalidRequest {
		t.Errorf("NewRequest() error = %v, want invalid_request", err)
	}
}

func TestRequest_NilAccessors(t *testing.T) {
	var req *Request
	accessors := map[string]func() string{
		"ClientID":         req.ClientID,
		"Code":             req.Code,
		"RedirectURIParam": req.RedirectURIParam,
		"Scope":            req.Scope,
		"State":            req.State,
		"ResponseType":     req.ResponseType,
		"GrantType":        req.GrantType,
		"Username":         req.Username,
		"Password":         req.Password,
		"RefreshToken":     req.RefreshToken,
		"Token":            req.Token,
		"TokenTypeHint":    req.TokenTypeHint,
	}
	for name, get := range accessors {
		if got := get(); got != "" {
			t.Errorf("%s() on nil request = %q, want empty", name, got)
		}
	}
	if _, ok := req.ExtractAuthorizationHeader(); ok {
		t.Error("ExtractAuthorizationHeader() on nil request ok = true")
	}
}

func TestRequest_ExtractAuthorizationHeader(t *testing.T) {
	tests := []struct {
		name       string
		header     http.Header
		wantOK     bool
		wantID     string
		wantSecret string
	}{
		{name: "plain", header: basic("svc:s3cret"), wantOK: true, wantID: "svc", wantSecret: "s3cret"},
		{name: "form encoded", header: basic("my%20app:s3cr%26t"), wantOK: true, wantID: "my app", wantSecret: "s3cr&t"},
		{name: "secret with colon", header: basic("svc:a:b"), wantOK: true, wantID: "svc", wantSecret: "a:b"},
		{name: "no colon", header: basic("svc"), wantOK: true, wantID: "svc"},
		{name: "raw percent kept", header: basic("svc:100%"), wantOK: true, wantID: "svc", wantSecret: "100%"},
		{name: "missing", header: http.Header{}},
		{name: "bearer scheme", header: http.Header{"Authorization": {"Bearer abc"}}},
		{name: "bad base64", header: http.Header{"Authorization": {"Basic !!!"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest(http.MethodPost, "https://auth.example.com/token", "", tt.header)
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			creds, ok := req.ExtractAuthorizationHeader()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if creds.ClientID != tt.wantID || creds.ClientSecret != tt.wantSecret {
				t.Errorf("credentials = %+v, want (%q, %q)", creds, tt.wantID, tt.wantSecret)
			}
		})
	}
}

func TestRequest_ClientCredentials(t *testing.T) {
	fromHeader, err := NewRequest(http.MethodPost, "https://auth.example.com/token",
		"client_id=body&client_secret=body-secret", basic("svc:s3cret"))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	creds, header := fromHeader.ClientCredentials()
	if !header || creds.ClientID != "svc" {
		t.Errorf("ClientCredentials() = %+v, %v, want header credentials", creds, header)
	}

	fromBody, err := NewRequest(http.MethodPost, "https://auth.example.com/token?client_secret=query",
		"client_id=body&client_secret=body-secret", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	creds, header = fromBody.ClientCredentials()
	if header || creds.ClientID != "body" || creds.ClientSecret != "body-secret" {
		t.Errorf("ClientCredentials() = %+v, %v, want body credentials", creds, header)
	}
}

func TestRequest_WriteOnceSlots(t *testing.T) {
	req, err := NewRequest(http.MethodGet, "https://auth.example.com/authorize", "", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	if err := req.SetRedirectURI("https://client.example.com/cb"); err != nil {
		t.Fatalf("SetRedirectURI() error = %v", err)
	}
	if err := req.SetRedirectURI("https://evil.example.com"); !errors.Is(err, ErrSlotAlreadySet) {
		t.Errorf("second SetRedirectURI() error = %v, want ErrSlotAlreadySet", err)
	}
	if got := req.RedirectURI(); got != "https://client.example.com/cb" {
		t.Errorf("RedirectURI() = %q, want the first value", got)
	}

	if err := req.SetGrantUser("alice"); err != nil {
		t.Fatalf("SetGrantUser() error = %v", err)
	}
	if err := req.SetGrantUser("mallory"); !errors.Is(err, ErrSlotAlreadySet) {
		t.Errorf("second SetGrantUser() error = %v, want ErrSlotAlreadySet", err)
	}

	if err := req.SetCredential("code"); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}
	if err := req.SetCredential("other"); !errors.Is(err, ErrSlotAlreadySet) {
		t.Errorf("second SetCredential() error = %v, want ErrSlotAlreadySet", err)
	}
	if req.GrantUser() != "alice" || req.Credential() != "code" {
		t.Errorf("slots = (%v, %v)", req.GrantUser(), req.Credential())
	}
}

func TestNewRequestFromHTTP(t *testing.T) {
	tests := []struct {
		name       string
		tls        bool
		trustProxy bool
		forwarded  map[string]string
		wantURI    string
	}{
		{
			name:    "plain http",
			wantURI: "http://auth.example.com/token?x=1",
		},
		{
			name:    "tls",
			tls:     true,
			wantURI: "https://auth.example.com/token?x=1",
		},
		{
			name:      "forwarded headers ignored",
			forwarded: map[string]string{"X-Forwarded-Proto": "https", "X-Forwarded-Host": "public.example.com"},
			wantURI:   "http://auth.example.com/token?x=1",
		},
		{
			name:       "forwarded headers trusted",
			trustProxy: true,
			forwarded:  map[string]string{"X-Forwarded-Proto": "HTTPS, http", "X-Forwarded-Host": "public.example.com, internal"},
			wantURI:    "https://public.example.com/token?x=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "http://auth.example.com/token?x=1",
				strings.NewReader("grant_type=client_credentials"))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			r.RemoteAddr = "192.0.2.1:1234"
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			}
			for k, v := range tt.forwarded {
				r.Header.Set(k, v)
			}

			req, err := NewRequestFromHTTP(r, tt.trustProxy)
			if err != nil {
				t.Fatalf("NewRequestFromHTTP() error = %v", err)
			}
			if req.URI != tt.wantURI {
				t.Errorf("URI = %q, want %q", req.URI, tt.wantURI)
			}
			if req.GrantType() != GrantTypeClientCredentials {
				t.Errorf("GrantType() = %q, want the body value", req.GrantType())
			}
			if req.RemoteAddr != "192.0.2.1:1234" {
				t.Errorf("RemoteAddr = %q", req.RemoteAddr)
			}
		})
	}
}

func TestNewRequestFromHTTP_GetIgnoresBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "https://auth.example.com/authorize?response_type=code",
		strings.NewReader("response_type=token"))
	req, err := NewRequestFromHTTP(r, false)
	if err != nil {
		t.Fatalf("NewRequestFromHTTP() error = %v", err)
	}
	if got := req.ResponseType(); got != ResponseTypeCode {
		t.Errorf("ResponseType() = %q, want %q", got, ResponseTypeCode)
	}
}
