package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/client"
)

func (a *app) authorizeURLCmd() *cobra.Command {
	var state string
	var extra []string

	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the authorization URL to open in a browser",
		Long: `Print the authorization endpoint URL for the configured client, followed by
the state it carries. Keep the state: "token --response" checks it against the
callback.`,
		Example: `  oauth2ctl authorize-url --authorize-url=https://auth.example.com/authorize \
    --client-id=webapp --redirect-uri=https://client.example.com/cb --scope="profile email"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireSetting("authorize-url", a.cfg.AuthorizeURL); err != nil {
				return err
			}
			params, err := parseParams(extra)
			if err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			uri, sent, err := s.AuthorizationURL(a.cfg.AuthorizeURL, state, params)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\nstate: %s\n", uri, sent)
			return err
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "State to send (default: random)")
	cmd.Flags().StringArrayVar(&extra, "param", nil, "Extra key=value parameter, repeatable")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var opts client.FetchTokenOptions
	var extra []string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain a token from the token endpoint",
		Long: `Obtain a token and save it to --token-file. The grant is chosen from the flags:
  --response or --code     authorization_code
  --username/--password    password
  otherwise                --grant-type (default client_credentials)`,
		Example: `  oauth2ctl token --token-url=https://auth.example.com/token --client-id=svc --client-secret=...
  oauth2ctl token --response='https://client.example.com/cb?code=...&state=...' --state=...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireSetting("token-url", a.cfg.TokenURL); err != nil {
				return err
			}
			params, err := parseParams(extra)
			if err != nil {
				return err
			}
			opts.Params = params
			s, err := a.session()
			if err != nil {
				return err
			}
			tok, err := s.FetchToken(cmd.Context(), a.cfg.TokenURL, opts)
			if err != nil {
				return err
			}
			if err := (tokenFile{path: a.cfg.TokenFile}).Save(cmd.Context(), tok); err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), tok)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Code, "code", "", "Authorization code")
	f.StringVar(&opts.AuthorizationResponse, "response", "", "Full callback URL received by the redirect URI")
	f.StringVar(&opts.State, "state", "", "State expected in the callback")
	f.StringVar(&opts.Username, "username", "", "Resource owner username")
	f.StringVar(&opts.Password, "password", "", "Resource owner password")
	f.StringVar(&opts.GrantType, "grant-type", "", "Grant type when no code or password is given")
	f.StringVar(&opts.Method, "method", "", "HTTP method of the token request (default POST)")
	f.StringArrayVar(&extra, "param", nil, "Extra key=value body parameter, repeatable")
	return cmd
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireSetting("token-url", a.cfg.TokenURL); err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			// The session's TokenUpdater saves the refreshed token.
			tok, err := s.RefreshToken(cmd.Context(), a.cfg.TokenURL, client.RefreshOptions{})
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), tok)
		},
	}
}

func (a *app) revokeCmd() *cobra.Command {
	var hint string
	var refresh bool

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke the stored token (RFC 7009)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireSetting("revoke-url", a.cfg.RevokeURL); err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			tok := s.Token()
			if tok == nil {
				return client.ErrNoToken
			}
			value := tok.AccessToken
			if refresh {
				if tok.RefreshToken == "" {
					return client.ErrNoRefreshToken
				}
				value = tok.RefreshToken
				if hint == "" {
					hint = "refresh_token"
				}
			}

			resp, err := s.RevokeToken(cmd.Context(), a.cfg.RevokeURL, value, hint, client.RevokeOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("revocation failed: %s: %s", resp.Status, body)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return err
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "token_type_hint to send")
	cmd.Flags().BoolVar(&refresh, "refresh-token", false, "Revoke the refresh token instead of the access token")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	var method string
	var withhold bool

	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "Call a protected resource with the stored token",
		Long: `Send a request carrying the stored access token and print the response body.
An expired token is refreshed first when --token-url is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			resp, err := s.Request(cmd.Context(), method, args[0], client.RequestOptions{WithholdToken: withhold})
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= http.StatusBadRequest {
				a.logger.Warn("Protected resource returned an error",
					"status", resp.StatusCode,
					"www_authenticate", resp.Header.Get("WWW-Authenticate"))
			}
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().BoolVar(&withhold, "no-token", false, "Send the request without the token")
	return cmd
}

// parseParams turns repeated key=value flags into url.Values.
func parseParams(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", p)
		}
		params.Add(k, v)
	}
	return params, nil
}

func printToken(w io.Writer, tok *oauth.Token) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tok.Params())
}
