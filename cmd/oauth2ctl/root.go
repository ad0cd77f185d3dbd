package main

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/giantswarm/oauth2-engine/client"
	"github.com/giantswarm/oauth2-engine/instrumentation"
)

// app holds the state shared by all commands of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *cliConfig
	logger *slog.Logger

	// httpClient overrides the default client, for tests
	httpClient *http.Client
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func newApp() *app {
	return &app{v: newViper()}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "oauth2ctl",
		Short:         "OAuth 2.0 client and development authorization server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "serve" {
				bindServeFlags(a.v, cmd)
			}
			cfg, err := loadConfig(a.v, cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger

			switch cmd.Name() {
			case "serve", "discover":
				return nil
			}
			return a.resolveEndpoints(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Configuration file (yaml, json or toml)")
	flags.String("client-id", "", "OAuth client id")
	flags.String("client-secret", "", "OAuth client secret")
	flags.String("scope", "", "Space-delimited scope to request")
	flags.String("redirect-uri", "", "Registered redirect URI")
	flags.String("authorize-url", "", "Authorization endpoint")
	flags.String("token-url", "", "Token endpoint")
	flags.String("revoke-url", "", "Revocation endpoint")
	flags.String("issuer-url", "", "Discover unset endpoints from this issuer's metadata")
	flags.String("provider", "", "Use the endpoints of a known provider (github, google)")
	flags.String("token-file", "", "File the current token is read from and saved to")
	flags.String("placement", "headers", "Where the access token is sent: headers, body or uri")
	flags.Duration("timeout", client.DefaultHTTPTimeout, "HTTP timeout")
	flags.Bool("insecure", false, "Allow plain HTTP endpoints (local development only)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		a.authorizeURLCmd(),
		a.tokenCmd(),
		a.refreshCmd(),
		a.revokeCmd(),
		a.getCmd(),
		a.discoverCmd(),
		a.serveCmd(),
	)
	return root
}

// session builds a client session from the configuration and the token
// file. Refreshed tokens are written back to the file.
func (a *app) session() (*client.Session, error) {
	store := tokenFile{path: a.cfg.TokenFile}
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}

	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:        true,
		ServiceName:    "oauth2ctl",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, err
	}

	return client.New(client.Config{
		ClientID:               a.cfg.ClientID,
		ClientSecret:           a.cfg.ClientSecret,
		Scope:                  a.cfg.Scope,
		RedirectURI:            a.cfg.RedirectURI,
		Token:                  tok,
		RefreshTokenURL:        a.cfg.TokenURL,
		TokenUpdater:           store.Save,
		TokenPlacement:         client.Placement(a.cfg.Placement),
		HTTPClient:             a.newHTTPClient(),
		Logger:                 a.logger,
		Instrumentation:        inst,
		AllowInsecureTransport: a.cfg.Insecure,
	})
}

func (a *app) newHTTPClient() *http.Client {
	if a.httpClient != nil {
		return a.httpClient
	}
	return &http.Client{Timeout: a.cfg.Timeout}
}
