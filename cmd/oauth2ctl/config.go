package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "OAUTH2CTL"

// cliConfig is the merged view of flags, environment and config file.
type cliConfig struct {
	ClientID     string `mapstructure:"client-id"`
	ClientSecret string `mapstructure:"client-secret"`
	Scope        string `mapstructure:"scope"`
	RedirectURI  string `mapstructure:"redirect-uri"`

	AuthorizeURL string `mapstructure:"authorize-url"`
	TokenURL     string `mapstructure:"token-url"`
	RevokeURL    string `mapstructure:"revoke-url"`
	IssuerURL    string `mapstructure:"issuer-url"`
	Provider     string `mapstructure:"provider"`

	TokenFile string        `mapstructure:"token-file"`
	Placement string        `mapstructure:"placement"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Insecure  bool          `mapstructure:"insecure"`
	LogLevel  string        `mapstructure:"log-level"`

	Serve serveConfig `mapstructure:"serve"`
}

// serveConfig configures the development authorization server. Clients can
// only be listed in a config file.
type serveConfig struct {
	Listen       string         `mapstructure:"listen"`
	TLSCert      string         `mapstructure:"tls-cert"`
	TLSKey       string         `mapstructure:"tls-key"`
	Issuer       string         `mapstructure:"issuer"`
	JWTKey       string         `mapstructure:"jwt-key"`
	User         string         `mapstructure:"user"`
	UserPassword string         `mapstructure:"user-password"`
	RateLimit    int            `mapstructure:"rate-limit"`
	Audit        bool           `mapstructure:"audit"`
	Clients      []clientConfig `mapstructure:"clients"`
}

type clientConfig struct {
	ID           string   `mapstructure:"id"`
	Secret       string   `mapstructure:"secret"`
	RedirectURIs []string `mapstructure:"redirect_uris"`
	GrantTypes   []string `mapstructure:"grant_types"`
	Scopes       []string `mapstructure:"scopes"`
}

// newViper returns a viper instance reading OAUTH2CTL_* variables, so
// --client-secret can come from OAUTH2CTL_CLIENT_SECRET.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig binds cmd's flags, reads the optional config file and decodes
// the result.
func loadConfig(v *viper.Viper, cmd *cobra.Command) (*cliConfig, error) {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &cliConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes text logs to w at the configured level.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func requireSetting(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required (or set %s_%s)", name, envPrefix,
			strings.ToUpper(strings.ReplaceAll(name, "-", "_")))
	}
	return nil
}
