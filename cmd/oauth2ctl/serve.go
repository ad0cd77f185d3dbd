package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/discovery"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/resource"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/server"
	"github.com/giantswarm/oauth2-engine/storage"
	"github.com/giantswarm/oauth2-engine/storage/memory"
)

// serveFlags are bound under the "serve." configuration prefix.
var serveFlags = []string{"listen", "tls-cert", "tls-key", "issuer", "jwt-key", "user", "user-password", "rate-limit", "audit"}

func bindServeFlags(v *viper.Viper, cmd *cobra.Command) {
	for _, name := range serveFlags {
		_ = v.BindPFlag("serve."+name, cmd.Flags().Lookup(name))
	}
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a development authorization server",
		Long: `Run an in-memory authorization server with authorization, token and
revocation endpoints and a protected /userinfo resource.

Every authorization request is approved as --user. Tokens are lost on exit.
Clients are read from the "serve.clients" list of the config file; without
one, --client-id/--client-secret register a single client allowed every grant.`,
		Example: `  oauth2ctl serve --insecure --listen=127.0.0.1:8080 --client-id=webapp --client-secret=s3cret \
    --redirect-uri=http://127.0.0.1:9000/cb --scope="profile email"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}
	f := cmd.Flags()
	f.String("listen", "127.0.0.1:8443", "Listen address")
	f.String("tls-cert", "", "TLS certificate file")
	f.String("tls-key", "", "TLS key file")
	f.String("issuer", "", "Issuer of JWT access tokens")
	f.String("jwt-key", "", "HMAC key; when set access tokens are HS256 JWTs")
	f.String("user", "dev", "Resource owner every authorization is approved as")
	f.String("user-password", "", "Password of --user; enables the password grant")
	f.Int("rate-limit", 0, "Requests per second per client and address (0 disables)")
	f.Bool("audit", false, "Emit security audit events")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	sc := a.cfg.Serve
	useTLS := sc.TLSCert != "" && sc.TLSKey != ""
	if !useTLS && !a.cfg.Insecure {
		return errors.New("--tls-cert and --tls-key are required unless --insecure is set")
	}

	handler, cleanup, err := a.buildServer(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:              sc.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Authorization server listening", "addr", sc.Listen, "tls", useTLS)
		if useTLS {
			errCh <- httpServer.ListenAndServeTLS(sc.TLSCert, sc.TLSKey)
		} else {
			errCh <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down authorization server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// devUser is the resource owner of the development server.
type devUser string

func (u devUser) UserID() string { return string(u) }

// buildServer wires the memory store, the grants and the protected resource
// into one handler. cleanup stops background goroutines.
func (a *app) buildServer(ctx context.Context) (http.Handler, func(), error) {
	sc := a.cfg.Serve
	logger := a.logger

	store := memory.New()
	store.SetLogger(logger)
	cleanup := store.Stop

	if err := a.registerClients(ctx, store); err != nil {
		cleanup()
		return nil, nil, err
	}

	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:        true,
		ServiceName:    "oauth2ctl",
		ServiceVersion: version,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize instrumentation: %w", err)
	}

	var limiter *security.RateLimiter
	if sc.RateLimit > 0 {
		limiter = security.NewRateLimiter(sc.RateLimit, sc.RateLimit, logger)
		cleanup = func() {
			limiter.Stop()
			store.Stop()
		}
	}
	auditor := security.NewAuditor(logger, sc.Audit)

	var generator server.TokenGenerator
	if sc.JWTKey != "" {
		jwtGen := &server.JWTGenerator{Issuer: sc.Issuer, Key: []byte(sc.JWTKey)}
		generator = jwtGen.Generate
	}

	saveToken := server.TokenSaver(store, 0)
	grants := []server.Grant{
		&server.AuthorizationCodeGrant{
			CreateAuthorizationCode: server.CodeIssuer(store, 0),
			ParseAuthorizationCode:  store.ParseAuthorizationCode,
			DeleteAuthorizationCode: store.DeleteCode,
			AuthenticateUser: func(_ context.Context, code oauth.AuthorizationCode) (any, error) {
				return devUser(code.(*storage.AuthorizationCode).UserID), nil
			},
			CreateAccessToken: saveToken,
		},
		&server.ImplicitGrant{CreateAccessToken: saveToken},
		&server.ClientCredentialsGrant{CreateAccessToken: saveToken},
		&server.RefreshTokenGrant{
			AuthenticateRefreshToken: store.AuthenticateRefreshToken,
			RevokeOldCredential:      store.RevokeCredential,
			CreateAccessToken:        saveToken,
		},
	}
	if sc.UserPassword != "" {
		grants = append(grants, &server.PasswordGrant{
			AuthenticateUser: func(_ context.Context, username, password string, _ oauth.Client) (any, error) {
				if username == sc.User && security.ConstantTimeEqual(password, sc.UserPassword) {
					return devUser(username), nil
				}
				return nil, nil
			},
			CreateAccessToken: saveToken,
		})
	}

	srv, err := server.New(server.Config{
		QueryClient:   store.QueryClient,
		GenerateToken: generator,
		Revocation: &server.RevocationEndpoint{
			QueryToken:  store.QueryToken,
			RevokeToken: store.RevokeCredential,
		},
		AllowInsecureTransport: a.cfg.Insecure,
		RateLimiter:            limiter,
		Auditor:                auditor,
		Instrumentation:        inst,
		Logger:                 logger,
	}, grants...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	protector := &resource.Protector{
		Validator: &resource.BearerValidator{
			AuthenticateToken: resource.StoreAuthenticator(store),
			Realm:             "oauth2ctl",
		},
		RateLimiter: limiter,
		Logger:      logger,
		Auditor:     auditor,
	}

	logger.Warn("⚠️  SECURITY WARNING: Development server approves every authorization request",
		"user", sc.User,
		"recommendation", "Never expose this server outside local development")

	mux := http.NewServeMux()
	mux.Handle("/authorize", srv.AuthorizationHandler(func(*http.Request) (any, error) {
		return devUser(sc.User), nil
	}))
	mux.Handle("/token", srv.TokenHandler())
	mux.Handle("/revoke", srv.RevocationHandler())
	mux.Handle("/userinfo", protector.Middleware()(http.HandlerFunc(serveUserInfo)))

	metadata := &discovery.Handler{
		Metadata:    serverMetadata(sc.Issuer, grants, a.cfg.Scope),
		RateLimiter: limiter,
		Logger:      logger,
	}
	mux.Handle(discovery.PathAuthorizationServer, metadata)
	mux.Handle(discovery.PathOpenIDConfiguration, metadata)
	return mux, cleanup, nil
}

// serverMetadata describes the development server. An empty issuer is
// derived from each metadata request.
func serverMetadata(issuer string, grants []server.Grant, scope string) discovery.Metadata {
	md := discovery.Metadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             "/authorize",
		TokenEndpoint:                     "/token",
		RevocationEndpoint:                "/revoke",
		UserInfoEndpoint:                  "/userinfo",
		ScopesSupported:                   oauth.ScopeToList(scope),
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
		RevocationEndpointAuthMethods:     []string{"client_secret_basic"},
	}
	for _, g := range grants {
		switch g.GrantType() {
		case oauth.GrantTypeAuthorizationCode:
			md.ResponseTypesSupported = append(md.ResponseTypesSupported, oauth.ResponseTypeCode)
		case oauth.GrantTypeImplicit:
			md.ResponseTypesSupported = append(md.ResponseTypesSupported, oauth.ResponseTypeToken)
			continue
		}
		md.GrantTypesSupported = append(md.GrantTypesSupported, g.GrantType())
	}
	return md
}

// registerClients saves the configured clients, or a single client built
// from the top-level client settings.
func (a *app) registerClients(ctx context.Context, store *memory.Store) error {
	clients := a.cfg.Serve.Clients
	if len(clients) == 0 && a.cfg.ClientID != "" {
		var redirects []string
		if a.cfg.RedirectURI != "" {
			redirects = []string{a.cfg.RedirectURI}
		}
		clients = []clientConfig{{
			ID:           a.cfg.ClientID,
			Secret:       a.cfg.ClientSecret,
			RedirectURIs: redirects,
			GrantTypes: []string{
				oauth.GrantTypeAuthorizationCode, oauth.GrantTypeImplicit, oauth.GrantTypePassword,
				oauth.GrantTypeClientCredentials, oauth.GrantTypeRefreshToken,
			},
			Scopes: oauth.ScopeToList(a.cfg.Scope),
		}}
	}
	if len(clients) == 0 {
		return errors.New("no clients configured: set --client-id or serve.clients in the config file")
	}

	for _, c := range clients {
		record, err := storage.NewClient(c.ID, c.Secret, c.RedirectURIs, c.GrantTypes, c.Scopes)
		if err != nil {
			return fmt.Errorf("invalid client %q: %w", c.ID, err)
		}
		if err := store.SaveClient(ctx, record); err != nil {
			return fmt.Errorf("failed to register client %q: %w", c.ID, err)
		}
		a.logger.Info("Registered client",
			"client_id", c.ID,
			"confidential", c.Secret != "",
			"grant_types", strings.Join(c.GrantTypes, ","))
	}
	return nil
}

// serveUserInfo describes the token the request was authorized with.
func serveUserInfo(w http.ResponseWriter, r *http.Request) {
	tok, _ := resource.TokenFromContext(r.Context())
	info := map[string]any{
		"client_id": tok.ClientID(),
		"scope":     tok.Scope(),
	}
	if st, ok := tok.(*storage.Token); ok && st.UserID != "" {
		info["sub"] = st.UserID
	}
	if exp := tok.ExpiresAt(); !exp.IsZero() {
		info["exp"] = exp.Unix()
	}
	w.Header().Set("Content-Type", "application/json")
	security.SetSecurityHeaders(w.Header())
	if err := json.NewEncoder(w).Encode(info); err != nil {
		slog.Default().Debug("Failed to write userinfo response", "error", err)
	}
}
