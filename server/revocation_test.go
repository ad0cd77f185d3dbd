package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/testutil"
	"github.com/giantswarm/oauth2-engine/storage"
	"github.com/giantswarm/oauth2-engine/storage/memory"
)

const testRevokeURI = "https://auth.example.com/revoke"

func newRevocationServer(t *testing.T) (*memory.Store, *AuthorizationServer) {
	t.Helper()
	store := memory.New()
	t.Cleanup(store.Stop)

	ctx := context.Background()
	for _, tok := range []*storage.Token{
		{AccessToken: "mine-access", RefreshToken: "mine-refresh", IssuedTo: "webapp"},
		{AccessToken: "theirs-access", IssuedTo: "other"},
	} {
		if err := store.SaveToken(ctx, tok); err != nil {
			t.Fatalf("SaveToken() error = %v", err)
		}
	}

	client := testutil.NewConfidentialClient(t, "webapp", testClientSecret, nil)
	srv := newTestServer(t, Config{
		QueryClient: testutil.ClientLookup(client),
		Revocation: &RevocationEndpoint{
			QueryToken:  store.QueryToken,
			RevokeToken: store.RevokeCredential,
		},
	})
	return store, srv
}

func TestRevocation(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		form        url.Values
		header      http.Header
		wantStatus  int
		wantCode    string
		wantRevoked map[string]bool
	}{
		{
			name:        "own access token",
			method:      http.MethodPost,
			form:        url.Values{"token": {"mine-access"}},
			header:      basicHeader("webapp", testClientSecret),
			wantStatus:  http.StatusOK,
			wantRevoked: map[string]bool{"mine-access": true, "theirs-access": false},
		},
		{
			name:        "own refresh token with hint",
			method:      http.MethodPost,
			form:        url.Values{"token": {"mine-refresh"}, "token_type_hint": {"refresh_token"}},
			header:      basicHeader("webapp", testClientSecret),
			wantStatus:  http.StatusOK,
			wantRevoked: map[string]bool{"mine-access": true},
		},
		{
			name:        "unknown token",
			method:      http.MethodPost,
			form:        url.Values{"token": {"never-issued"}},
			header:      basicHeader("webapp", testClientSecret),
			wantStatus:  http.StatusOK,
			wantRevoked: map[string]bool{"mine-access": false},
		},
		{
			name:        "token of another client",
			method:      http.MethodPost,
			form:        url.Values{"token": {"theirs-access"}},
			header:      basicHeader("webapp", testClientSecret),
			wantStatus:  http.StatusOK,
			wantRevoked: map[string]bool{"theirs-access": false},
		},
		{
			name:       "missing token",
			method:     http.MethodPost,
			form:       url.Values{},
			header:     basicHeader("webapp", testClientSecret),
			wantStatus: http.StatusBadRequest,
			wantCode:   oauth.ErrorCodeInvalidRequest,
		},
		{
			name:       "unsupported hint",
			method:     http.MethodPost,
			form:       url.Values{"token": {"mine-access"}, "token_type_hint": {"id_token"}},
			header:     basicHeader("webapp", testClientSecret),
			wantStatus: http.StatusBadRequest,
			wantCode:   oauth.ErrorCodeUnsupportedTokenType,
		},
		{
			name:       "no client authentication",
			method:     http.MethodPost,
			form:       url.Values{"token": {"mine-access"}},
			wantStatus: http.StatusUnauthorized,
			wantCode:   oauth.ErrorCodeInvalidClient,
		},
		{
			name:       "wrong client secret",
			method:     http.MethodPost,
			form:       url.Values{"token": {"mine-access"}},
			header:     basicHeader("webapp", "wrong"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   oauth.ErrorCodeInvalidClient,
		},
		{
			name:       "GET request",
			method:     http.MethodGet,
			header:     basicHeader("webapp", testClientSecret),
			wantStatus: http.StatusBadRequest,
			wantCode:   oauth.ErrorCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, srv := newRevocationServer(t)
			ctx := context.Background()

			resp, err := srv.CreateRevocationResponse(ctx, newRequest(t, tt.method, testRevokeURI, tt.form, tt.header))
			if err != nil {
				t.Fatalf("CreateRevocationResponse() error = %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", resp.Status, tt.wantStatus)
			}
			body := decodeBody(t, resp)
			if tt.wantCode != "" {
				if body["error"] != tt.wantCode {
					t.Errorf("error = %v, want %q", body["error"], tt.wantCode)
				}
				return
			}
			if len(body) != 0 {
				t.Errorf("body = %v, want empty object", body)
			}
			if got := resp.Header.Get("Cache-Control"); got != "no-store" {
				t.Errorf("Cache-Control = %q, want %q", got, "no-store")
			}
			for access, want := range tt.wantRevoked {
				tok, err := store.GetTokenByAccessToken(ctx, access)
				if err != nil {
					t.Fatalf("GetTokenByAccessToken(%q) error = %v", access, err)
				}
				if tok.Revoked != want {
					t.Errorf("%s revoked = %v, want %v", access, tok.Revoked, want)
				}
			}
		})
	}
}

func TestRevocation_BasicChallenge(t *testing.T) {
	_, srv := newRevocationServer(t)
	resp, err := srv.CreateRevocationResponse(context.Background(), newRequest(t, http.MethodPost,
		testRevokeURI, url.Values{"token": {"mine-access"}}, basicHeader("webapp", "wrong")))
	if err != nil {
		t.Fatalf("CreateRevocationResponse() error = %v", err)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != "Basic" {
		t.Errorf("WWW-Authenticate = %q, want %q", got, "Basic")
	}
}

func TestRevocation_Disabled(t *testing.T) {
	srv := newTestServer(t, Config{QueryClient: testutil.ClientLookup()})
	_, err := srv.CreateRevocationResponse(context.Background(), newRequest(t, http.MethodPost,
		testRevokeURI, url.Values{"token": {"x"}}, nil))
	if !errors.Is(err, ErrRevocationDisabled) {
		t.Errorf("CreateRevocationResponse() error = %v, want ErrRevocationDisabled", err)
	}
}

func TestRevocation_StoreFailure(t *testing.T) {
	boom := errors.New("database unavailable")
	client := testutil.NewConfidentialClient(t, "webapp", testClientSecret, nil)
	srv := newTestServer(t, Config{
		QueryClient: testutil.ClientLookup(client),
		Revocation: &RevocationEndpoint{
			QueryToken: func(context.Context, string, string) (oauth.TokenCredential, error) {
				return nil, boom
			},
			RevokeToken: func(context.Context, oauth.TokenCredential) error { return nil },
		},
	})

	_, err := srv.CreateRevocationResponse(context.Background(), newRequest(t, http.MethodPost,
		testRevokeURI, url.Values{"token": {"x"}}, basicHeader("webapp", testClientSecret)))
	if !errors.Is(err, boom) {
		t.Errorf("CreateRevocationResponse() error = %v, want %v", err, boom)
	}
}
