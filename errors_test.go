package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
		want        string
	}{
		{
			name:        "simple error",
			code:        "invalid_request",
			description: "Missing required parameter",
			want:        "invalid_request: Missing required parameter",
		},
		{
			name:        "error with empty description",
			code:        "server_error",
			description: "",
			want:        "server_error: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Error{
				Code:        tt.code,
				Description: tt.description,
			}
			if got := e.Error(); got != tt.want {
				t.Errorf("Error.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewError(t *testing.T) {
	tests := []struct {
		name            string
		code            string
		description     string
		status          int
		wantDescription string
	}{
		{
			name:            "explicit description",
			code:            ErrorCodeInvalidGrant,
			description:     "Code expired.",
			status:          http.StatusBadRequest,
			wantDescription: "Code expired.",
		},
		{
			name:            "registered default",
			code:            ErrorCodeInsecureTransport,
			status:          http.StatusBadRequest,
			wantDescription: "OAuth 2 MUST utilize https.",
		},
		{
			name:   "no default",
			code:   ErrorCodeInvalidClient,
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewError(tt.code, tt.description, tt.status)
			if e.Code != tt.code {
				t.Errorf("Code = %q, want %q", e.Code, tt.code)
			}
			if e.Description != tt.wantDescription {
				t.Errorf("Description = %q, want %q", e.Description, tt.wantDescription)
			}
			if e.Status != tt.status {
				t.Errorf("Status = %d, want %d", e.Status, tt.status)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		ctor       func(string) *Error
		wantCode   string
		wantStatus int
	}{
		{ErrInvalidRequest, ErrorCodeInvalidRequest, http.StatusBadRequest},
		{ErrInvalidClient, ErrorCodeInvalidClient, http.StatusUnauthorized},
		{ErrInvalidGrant, ErrorCodeInvalidGrant, http.StatusBadRequest},
		{ErrUnauthorizedClient, ErrorCodeUnauthorizedClient, http.StatusBadRequest},
		{ErrUnsupportedGrantType, ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{ErrUnsupportedResponseType, ErrorCodeUnsupportedResponseType, http.StatusBadRequest},
		{ErrInvalidScope, ErrorCodeInvalidScope, http.StatusBadRequest},
		{ErrAccessDenied, ErrorCodeAccessDenied, http.StatusBadRequest},
		{ErrInsecureTransport, ErrorCodeInsecureTransport, http.StatusBadRequest},
		{ErrInvalidToken, ErrorCodeInvalidToken, http.StatusUnauthorized},
		{ErrInsufficientScope, ErrorCodeInsufficientScope, http.StatusForbidden},
		{ErrUnsupportedTokenType, ErrorCodeUnsupportedTokenType, http.StatusBadRequest},
		{ErrServerError, ErrorCodeServerError, http.StatusInternalServerError},
		{ErrRateLimitExceeded, ErrorCodeRateLimitExceeded, http.StatusTooManyRequests},
		{ErrMissingCode, ErrorCodeMissingCode, http.StatusBadRequest},
		{ErrMissingToken, ErrorCodeMissingToken, http.StatusBadRequest},
		{ErrMissingTokenType, ErrorCodeMissingTokenType, http.StatusBadRequest},
		{ErrMismatchingState, ErrorCodeMismatchingState, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			e := tt.ctor("described")
			if e.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", e.Code, tt.wantCode)
			}
			if e.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", e.Status, tt.wantStatus)
			}
			if e.Description != "described" {
				t.Errorf("Description = %q, want %q", e.Description, "described")
			}
		})
	}
}

func TestError_Body(t *testing.T) {
	e := &Error{
		Code:        ErrorCodeInvalidScope,
		Description: "Nope.",
		URI:         "https://docs.example.com/errors#invalid_scope",
		State:       "xyz",
	}
	want := []Param{
		{Key: "error", Value: ErrorCodeInvalidScope},
		{Key: "error_description", Value: "Nope."},
		{Key: "error_uri", Value: "https://docs.example.com/errors#invalid_scope"},
		{Key: "state", Value: "xyz"},
	}
	if got := e.Body(); !reflect.DeepEqual(got, want) {
		t.Errorf("Body() = %v, want %v", got, want)
	}

	bare := (&Error{Code: ErrorCodeInvalidClient}).Body()
	if len(bare) != 1 || bare[0].Key != "error" {
		t.Errorf("Body() of a bare error = %v, want only the error field", bare)
	}

	m := e.BodyMap()
	if len(m) != 4 || m["state"] != "xyz" {
		t.Errorf("BodyMap() = %v", m)
	}
}

func TestError_Headers(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		wantChallenge string
	}{
		{
			name:          "invalid_token with realm",
			err:           ErrInvalidToken("Expired.").WithRealm("api"),
			wantChallenge: `Bearer realm="api", error="invalid_token", error_description="Expired."`,
		},
		{
			name:          "insufficient_scope without realm",
			err:           &Error{Code: ErrorCodeInsufficientScope},
			wantChallenge: `Bearer error="insufficient_scope"`,
		},
		{
			name: "other errors carry no challenge",
			err:  ErrInvalidGrant("Nope."),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.err.Headers()
			if got := h.Get("WWW-Authenticate"); got != tt.wantChallenge {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tt.wantChallenge)
			}
			if got := h.Get("Cache-Control"); got != "no-store" {
				t.Errorf("Cache-Control = %q, want %q", got, "no-store")
			}
			if got := h.Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q, want %q", got, "application/json")
			}
		})
	}
}

func TestError_WithHelpersCopy(t *testing.T) {
	base := ErrAccessDenied("")
	withState := base.WithState("s1")
	withURI := withState.WithURI("https://docs.example.com")

	if base.State != "" || base.URI != "" {
		t.Errorf("base error modified: %+v", base)
	}
	if withState.URI != "" {
		t.Errorf("WithURI modified its receiver: %+v", withState)
	}
	if withURI.State != "s1" || withURI.URI != "https://docs.example.com" {
		t.Errorf("WithURI() = %+v", withURI)
	}
}

func TestErrorURIs_Resolve(t *testing.T) {
	uris := ErrorURIs{ErrorCodeInvalidClient: "https://docs.example.com/invalid_client"}

	if got := uris.Resolve(ErrInvalidClient("")); got.URI != "https://docs.example.com/invalid_client" {
		t.Errorf("Resolve().URI = %q, want the table entry", got.URI)
	}
	explicit := ErrInvalidClient("").WithURI("https://other.example.com")
	if got := uris.Resolve(explicit); got.URI != "https://other.example.com" {
		t.Errorf("Resolve() replaced an explicit URI: %q", got.URI)
	}
	if got := uris.Resolve(ErrInvalidGrant("")); got.URI != "" {
		t.Errorf("Resolve().URI = %q for an unmapped code", got.URI)
	}
	if got := ErrorURIs(nil).Resolve(nil); got != nil {
		t.Errorf("Resolve(nil) = %v, want nil", got)
	}
}

func TestAsError(t *testing.T) {
	wrapped := fmt.Errorf("token request: %w", ErrInvalidGrant("Nope."))
	oe, ok := AsError(wrapped)
	if !ok || oe.Code != ErrorCodeInvalidGrant {
		t.Errorf("AsError(wrapped) = %v, %v", oe, ok)
	}
	if _, ok := AsError(errors.New("connection refused")); ok {
		t.Error("AsError() of a plain error reported true")
	}
}
