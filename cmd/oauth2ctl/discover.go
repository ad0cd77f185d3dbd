package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth2-engine/discovery"
)

// resolveEndpoints fills the endpoints not set explicitly from the --provider
// preset or from the metadata published at --issuer-url.
func (a *app) resolveEndpoints(ctx context.Context) error {
	md, err := a.metadata(ctx)
	if err != nil || md == nil {
		return err
	}
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&a.cfg.AuthorizeURL, md.AuthorizationEndpoint)
	fill(&a.cfg.TokenURL, md.TokenEndpoint)
	fill(&a.cfg.RevokeURL, md.RevocationEndpoint)
	return nil
}

// metadata returns nil when neither --provider nor --issuer-url is set.
func (a *app) metadata(ctx context.Context) (*discovery.Metadata, error) {
	switch {
	case a.cfg.Provider != "":
		md, ok := discovery.Preset(a.cfg.Provider)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q (known: %s)",
				a.cfg.Provider, strings.Join(discovery.PresetNames(), ", "))
		}
		return md, nil
	case a.cfg.IssuerURL != "":
		dc := discovery.NewClient(a.newHTTPClient(), 0, a.logger)
		dc.AllowInsecure = a.cfg.Insecure
		return dc.Discover(ctx, a.cfg.IssuerURL)
	default:
		return nil, nil
	}
}

func (a *app) discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Print the authorization server metadata",
		Long: `Print the metadata of --provider, or the metadata document published at
--issuer-url (RFC 8414, falling back to OpenID Connect discovery).`,
		Example: `  oauth2ctl discover --issuer-url=https://dex.example.com
  oauth2ctl discover --provider=github`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			md, err := a.metadata(cmd.Context())
			if err != nil {
				return err
			}
			if md == nil {
				return fmt.Errorf("--provider or --issuer-url is required")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(md)
		},
	}
}
