package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/discovery"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// run executes one oauth2ctl invocation and returns its stdout.
func run(t *testing.T, httpClient *http.Client, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	a.httpClient = httpClient
	cmd := a.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// newDevServer serves buildServer over TLS with one confidential client.
func newDevServer(t *testing.T) *httptest.Server {
	t.Helper()
	a := newApp()
	a.logger = discardLogger()
	a.cfg = &cliConfig{
		ClientID:     "svc",
		ClientSecret: "s3cret",
		Scope:        "read",
		Serve:        serveConfig{User: "dev"},
	}
	handler, cleanup, err := a.buildServer(context.Background())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenFile(t *testing.T) {
	f := tokenFile{path: filepath.Join(t.TempDir(), "nested", "token.json")}

	tok, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, tok, "a missing file holds no token")

	want := &oauth.Token{AccessToken: "at-1", TokenType: "Bearer", RefreshToken: "rt-1", ExpiresIn: 3600, ExpiresAt: 1777636800}
	require.NoError(t, f.Save(context.Background(), want))

	got, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.ExpiresAt, got.ExpiresAt, "the stored absolute expiry is kept")
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"audience=api", "prompt=", "audience=admin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "admin"}, params["audience"])
	assert.Equal(t, "", params.Get("prompt"))

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseParams([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestAuthorizeURL_ConfigFromEnvironment(t *testing.T) {
	t.Setenv("OAUTH2CTL_CLIENT_ID", "from-env")
	t.Setenv("OAUTH2CTL_AUTHORIZE_URL", "https://auth.example.com/authorize")

	out, err := run(t, nil, "authorize-url", "--state=xyz", "--scope=read", "--param=prompt=consent")
	require.NoError(t, err)
	assert.Equal(t,
		"https://auth.example.com/authorize?response_type=code&client_id=from-env&scope=read&state=xyz&prompt=consent\nstate: xyz\n",
		out)
}

func TestCommands_RequireEndpoints(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"authorize-url"}, want: "--authorize-url is required"},
		{args: []string{"token"}, want: "--token-url is required"},
		{args: []string{"refresh"}, want: "--token-url is required"},
		{args: []string{"revoke"}, want: "--revoke-url is required"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := run(t, nil, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServe_RequiresTLS(t *testing.T) {
	a := newApp()
	a.logger = discardLogger()
	a.cfg = &cliConfig{ClientID: "svc", Serve: serveConfig{Listen: "127.0.0.1:0"}}

	err := a.runServe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tls-cert")
}

func TestBuildServer_NoClients(t *testing.T) {
	a := newApp()
	a.logger = discardLogger()
	a.cfg = &cliConfig{}

	_, _, err := a.buildServer(context.Background())
	assert.ErrorContains(t, err, "no clients configured")
}

func TestEndToEnd_ClientCredentials(t *testing.T) {
	srv := newDevServer(t)
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	common := []string{
		"--client-id=svc", "--client-secret=s3cret", "--scope=read",
		"--token-file=" + tokenPath,
		"--token-url=" + srv.URL + "/token",
		"--revoke-url=" + srv.URL + "/revoke",
	}

	out, err := run(t, srv.Client(), append([]string{"token"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"token_type": "Bearer"`)
	assert.Contains(t, out, `"scope": "read"`)

	stored, err := tokenFile{path: tokenPath}.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)

	out, err = run(t, srv.Client(), append([]string{"get", srv.URL + "/userinfo"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"client_id":"svc"`)

	out, err = run(t, srv.Client(), append([]string{"revoke"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "revoked\n", out)

	out, err = run(t, srv.Client(), append([]string{"get", srv.URL + "/userinfo"}, common...)...)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, oauth.ErrorCodeInvalidToken), "revoked token is rejected: %s", out)
}

func TestEndToEnd_InvalidClient(t *testing.T) {
	srv := newDevServer(t)

	_, err := run(t, srv.Client(), "token",
		"--client-id=svc", "--client-secret=wrong",
		"--token-url="+srv.URL+"/token")
	oe, ok := oauth.AsError(err)
	require.True(t, ok, "error = %v", err)
	assert.Equal(t, oauth.ErrorCodeInvalidClient, oe.Code)
}

func TestEndToEnd_IssuerDiscovery(t *testing.T) {
	srv := newDevServer(t)

	out, err := run(t, srv.Client(), "discover", "--issuer-url="+srv.URL, "--insecure")
	require.NoError(t, err)
	var md discovery.Metadata
	require.NoError(t, json.Unmarshal([]byte(out), &md))
	assert.Equal(t, srv.URL, md.Issuer)
	assert.Equal(t, srv.URL+"/token", md.TokenEndpoint)
	assert.Equal(t, srv.URL+"/revoke", md.RevocationEndpoint)
	assert.Equal(t, []string{"code", "token"}, md.ResponseTypesSupported)
	assert.Equal(t, []string{"authorization_code", "client_credentials", "refresh_token"}, md.GrantTypesSupported)
	assert.Equal(t, []string{"read"}, md.ScopesSupported)

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	out, err = run(t, srv.Client(), "token",
		"--issuer-url="+srv.URL, "--insecure",
		"--client-id=svc", "--client-secret=s3cret",
		"--token-file="+tokenPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"access_token"`)
}

func TestDiscover_Provider(t *testing.T) {
	out, err := run(t, nil, "discover", "--provider=github")
	require.NoError(t, err)
	assert.Contains(t, out, `"token_endpoint": "https://github.com/login/oauth/access_token"`)

	out, err = run(t, nil, "authorize-url", "--provider=github", "--client-id=app", "--state=s1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "https://github.com/login/oauth/authorize?"), out)

	_, err = run(t, nil, "discover", "--provider=nope")
	assert.ErrorContains(t, err, `unknown provider "nope"`)

	_, err = run(t, nil, "discover")
	assert.ErrorContains(t, err, "--provider or --issuer-url is required")
}
