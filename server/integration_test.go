package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/client"
	"github.com/giantswarm/oauth2-engine/internal/testutil"
	"github.com/giantswarm/oauth2-engine/resource"
	"github.com/giantswarm/oauth2-engine/server"
	"github.com/giantswarm/oauth2-engine/storage"
	"github.com/giantswarm/oauth2-engine/storage/memory"
)

type user string

func (u user) UserID() string { return string(u) }

type deployment struct {
	store   *memory.Store
	baseURL string
	http    *http.Client
}

// newDeployment serves an authorization server and a protected resource
// requiring the "profile" scope on one TLS test server.
func newDeployment(t *testing.T) *deployment {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	t.Cleanup(store.Stop)

	webapp := testutil.NewConfidentialClient(t, "webapp", "s3cret", []string{
		oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken, oauth.GrantTypeClientCredentials,
	}, "profile", "email")
	if err := store.SaveClient(context.Background(), webapp); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	srv, err := server.New(server.Config{
		QueryClient: store.QueryClient,
		Revocation: &server.RevocationEndpoint{
			QueryToken:  store.QueryToken,
			RevokeToken: store.RevokeCredential,
		},
		Logger: logger,
	},
		&server.AuthorizationCodeGrant{
			CreateAuthorizationCode: server.CodeIssuer(store, 0),
			ParseAuthorizationCode:  store.ParseAuthorizationCode,
			DeleteAuthorizationCode: store.DeleteCode,
			AuthenticateUser: func(_ context.Context, code oauth.AuthorizationCode) (any, error) {
				return user(code.(*storage.AuthorizationCode).UserID), nil
			},
			CreateAccessToken: server.TokenSaver(store, 0),
		},
		&server.RefreshTokenGrant{
			AuthenticateRefreshToken: store.AuthenticateRefreshToken,
			RevokeOldCredential:      store.RevokeCredential,
			CreateAccessToken:        server.TokenSaver(store, 0),
		},
		&server.ClientCredentialsGrant{CreateAccessToken: server.TokenSaver(store, 0)},
	)
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}

	protector := &resource.Protector{
		Validator: &resource.BearerValidator{AuthenticateToken: resource.StoreAuthenticator(store), Realm: "api"},
		Logger:    logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/authorize", srv.AuthorizationHandler(func(*http.Request) (any, error) {
		return user("alice"), nil
	}))
	mux.Handle("/token", srv.TokenHandler())
	mux.Handle("/revoke", srv.RevocationHandler())
	mux.Handle("/api/me", protector.Middleware("profile")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, _ := resource.TokenFromContext(r.Context())
		_, _ = io.WriteString(w, tok.ClientID())
	})))

	ts := testutil.NewMockHTTPSServer(t, mux)
	return &deployment{store: store, baseURL: ts.URL, http: ts.Client()}
}

func (d *deployment) session(t *testing.T, scope string) *client.Session {
	t.Helper()
	s, err := client.New(client.Config{
		ClientID:     "webapp",
		ClientSecret: "s3cret",
		Scope:        scope,
		RedirectURI:  "https://client.example.com/cb",
		HTTPClient:   d.http,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return s
}

// authorize follows the authorization URL like a browser and returns the
// redirect back to the client.
func (d *deployment) authorize(t *testing.T, s *client.Session) string {
	t.Helper()
	authURL, _, err := s.AuthorizationURL(d.baseURL+"/authorize", "", nil)
	if err != nil {
		t.Fatalf("AuthorizationURL() error = %v", err)
	}

	browser := *d.http
	browser.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := browser.Get(authURL)
	if err != nil {
		t.Fatalf("GET authorize: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	return resp.Header.Get("Location")
}

func (d *deployment) getProfile(t *testing.T, s *client.Session) (int, string) {
	t.Helper()
	resp, err := s.Request(context.Background(), http.MethodGet, d.baseURL+"/api/me", client.RequestOptions{})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIntegration_AuthorizationCodeLifecycle(t *testing.T) {
	ctx := context.Background()
	d := newDeployment(t)
	s := d.session(t, "profile")

	callback := d.authorize(t, s)
	tok, err := s.FetchToken(ctx, d.baseURL+"/token", client.FetchTokenOptions{AuthorizationResponse: callback})
	if err != nil {
		t.Fatalf("FetchToken() error = %v", err)
	}
	if tok.RefreshToken == "" {
		t.Fatal("authorization code exchange returned no refresh token")
	}
	saved, err := d.store.GetTokenByAccessToken(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("GetTokenByAccessToken() error = %v", err)
	}
	if saved.UserID != "alice" {
		t.Errorf("saved UserID = %q, want %q", saved.UserID, "alice")
	}

	if status, body := d.getProfile(t, s); status != http.StatusOK || body != "webapp" {
		t.Fatalf("GET /api/me = %d %q, want 200 %q", status, body, "webapp")
	}

	// The code is single use.
	if _, err := s.FetchToken(ctx, d.baseURL+"/token", client.FetchTokenOptions{AuthorizationResponse: callback}); err == nil {
		t.Error("second exchange of the same code succeeded")
	} else if oe, ok := oauth.AsError(err); !ok || oe.Code != oauth.ErrorCodeInvalidGrant {
		t.Errorf("second exchange error = %v, want invalid_grant", err)
	}
	s.SetToken(tok)

	refreshed, err := s.RefreshToken(ctx, d.baseURL+"/token", client.RefreshOptions{})
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if refreshed.AccessToken == tok.AccessToken {
		t.Error("refresh returned the old access token")
	}
	old, err := d.store.GetTokenByAccessToken(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("GetTokenByAccessToken() error = %v", err)
	}
	if !old.IsRevoked() {
		t.Error("refreshing should revoke the previous credential")
	}
	if status, _ := d.getProfile(t, s); status != http.StatusOK {
		t.Fatalf("GET /api/me with refreshed token = %d, want 200", status)
	}

	resp, err := s.RevokeToken(ctx, d.baseURL+"/revoke", refreshed.AccessToken, "access_token", client.RevokeOptions{})
	if err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status = %d, want 200", resp.StatusCode)
	}
	if status, _ := d.getProfile(t, s); status != http.StatusUnauthorized {
		t.Errorf("GET /api/me with revoked token = %d, want 401", status)
	}
}

func TestIntegration_ClientCredentialsScope(t *testing.T) {
	ctx := context.Background()
	d := newDeployment(t)

	tests := []struct {
		name       string
		scope      string
		wantStatus int
	}{
		{name: "granted profile", scope: "profile", wantStatus: http.StatusOK},
		{name: "email only", scope: "email", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := d.session(t, tt.scope)
			if _, err := s.FetchToken(ctx, d.baseURL+"/token", client.FetchTokenOptions{}); err != nil {
				t.Fatalf("FetchToken() error = %v", err)
			}
			if status, _ := d.getProfile(t, s); status != tt.wantStatus {
				t.Errorf("GET /api/me = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}

func TestIntegration_InvalidClient(t *testing.T) {
	d := newDeployment(t)
	s, err := client.New(client.Config{ClientID: "webapp", ClientSecret: "wrong", HTTPClient: d.http})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	_, err = s.FetchToken(context.Background(), d.baseURL+"/token", client.FetchTokenOptions{})
	oe, ok := oauth.AsError(err)
	if !ok {
		t.Fatalf("FetchToken() error = %v, want *oauth.Error", err)
	}
	if oe.Code != oauth.ErrorCodeInvalidClient {
		t.Errorf("Code = %q, want %q", oe.Code, oauth.ErrorCodeInvalidClient)
	}
	if s.Token() != nil {
		t.Error("a failed fetch must not store a token")
	}
}
