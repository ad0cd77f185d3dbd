package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	oauth "github.com/giantswarm/oauth2-engine"
)

func TestAddParams(t *testing.T) {
	params := []oauth.Param{{Key: "code", Value: "a b"}, {Key: "state", Value: "x&y"}}

	tests := []struct {
		name     string
		uri      string
		fragment bool
		want     string
	}{
		{name: "plain", uri: "https://c.example.com/cb", want: "https://c.example.com/cb?code=a+b&state=x%26y"},
		{name: "existing query", uri: "https://c.example.com/cb?tenant=1", want: "https://c.example.com/cb?tenant=1&code=a+b&state=x%26y"},
		{name: "trailing question mark", uri: "https://c.example.com/cb?", want: "https://c.example.com/cb?code=a+b&state=x%26y"},
		{name: "existing fragment dropped", uri: "https://c.example.com/cb#old", want: "https://c.example.com/cb?code=a+b&state=x%26y"},
		{name: "fragment", uri: "https://c.example.com/cb?tenant=1", fragment: true, want: "https://c.example.com/cb?tenant=1#code=a+b&state=x%26y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := addParams(tt.uri, params, tt.fragment); got != tt.want {
				t.Errorf("addParams() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorBody_KeepsWireOrder(t *testing.T) {
	e := oauth.ErrInvalidScope("Bad scope.").WithURI("https://docs.example.com/e").WithState("s1")
	raw, err := json.Marshal(errorBody(e.Body()))
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"error":"invalid_scope","error_description":"Bad scope.","error_uri":"https://docs.example.com/e","state":"s1"}`
	if string(raw) != want {
		t.Errorf("body = %s, want %s", raw, want)
	}
}

func TestBearerToken_MarshalJSON(t *testing.T) {
	tok := &BearerToken{
		AccessToken: "at",
		TokenType:   oauth.TokenTypeBearer,
		ExpiresIn:   60,
		Extra:       map[string]any{"id_token": "it", "access_token": "ignored"},
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if m["access_token"] != "at" {
		t.Errorf("access_token = %v, want standard field to win", m["access_token"])
	}
	if m["id_token"] != "it" {
		t.Errorf("id_token = %v, want %q", m["id_token"], "it")
	}
	if _, ok := m["refresh_token"]; ok {
		t.Error("empty refresh_token should be omitted")
	}

	raw, err = json.Marshal(&BearerToken{AccessToken: "at", TokenType: "Bearer"})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if want := `{"access_token":"at","token_type":"Bearer"}`; string(raw) != want {
		t.Errorf("body = %s, want %s", raw, want)
	}
}

func TestResponse_Write(t *testing.T) {
	resp := ErrorResponse(oauth.ErrInvalidRequest("Nope."))
	rec := httptest.NewRecorder()
	if err := resp.Write(rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}

	redirect := redirectResponse("https://c.example.com/cb?code=1")
	rec = httptest.NewRecorder()
	if err := redirect.Write(rec); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("redirect body = %q, want empty", rec.Body.String())
	}
}
