package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
)

// Session is an OAuth 2.0 client session. It is not safe for concurrent use.
type Session struct {
	config Config
	token  *oauth.Token
	state  string
	hooks  hooks

	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// New creates a session from cfg.
func New(cfg Config) (*Session, error) {
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &Session{
		config:     cfg,
		token:      cfg.Token,
		state:      cfg.State,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		tracer:     cfg.Instrumentation.Tracer("client"),
		metrics:    cfg.Instrumentation.Metrics(),
		now:        cfg.Now,
	}, nil
}

// Token returns the current token, nil if there is none.
func (s *Session) Token() *oauth.Token { return s.token }

// SetToken replaces the current token.
func (s *Session) SetToken(tok *oauth.Token) { s.token = tok }

// State returns the CSRF state used to validate callbacks.
func (s *Session) State() string { return s.state }

// AuthorizationURL returns the URL to send the resource owner to and the
// state it carries. An empty state reuses the session state, or generates
// one. The chosen state is stored on the session.
//
// extra parameters are appended after the standard ones; a response_type in
// extra replaces the configured one.
func (s *Session) AuthorizationURL(endpoint, state string, extra url.Values) (string, string, error) {
	if err := oauth.CheckSecureTransport(endpoint, s.config.AllowInsecureTransport); err != nil {
		return "", "", err
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	if state == "" {
		state = s.state
	}
	if state == "" {
		state = security.GenerateToken()
	}
	s.state = state

	responseType := s.config.ResponseType
	if rt := extra.Get("response_type"); rt != "" {
		responseType = rt
	}

	params := []oauth.Param{
		{Key: "response_type", Value: responseType},
		{Key: "client_id", Value: s.config.ClientID},
	}
	if s.config.RedirectURI != "" {
		params = append(params, oauth.Param{Key: "redirect_uri", Value: s.config.RedirectURI})
	}
	if s.config.Scope != "" {
		params = append(params, oauth.Param{Key: "scope", Value: s.config.Scope})
	}
	params = append(params, oauth.Param{Key: "state", Value: state})

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if k != "response_type" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range extra[k] {
			params = append(params, oauth.Param{Key: k, Value: v})
		}
	}

	u.RawQuery = appendQuery(u.RawQuery, params)
	return u.String(), state, nil
}

// AddToken places the access token on an outgoing request according to the
// configured placement. The inputs are not modified.
func (s *Session) AddToken(uri string, header http.Header, data url.Values) (string, http.Header, url.Values, error) {
	if s.token == nil || s.token.AccessToken == "" {
		return "", nil, nil, ErrNoToken
	}
	if !s.token.IsBearer() {
		return "", nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedTokenType, s.token.TokenType)
	}

	header = cloneHeader(header)
	data = cloneValues(data)
	switch s.config.TokenPlacement {
	case PlacementBody:
		data.Set("access_token", s.token.AccessToken)
	case PlacementURI:
		u, err := url.Parse(uri)
		if err != nil {
			return "", nil, nil, fmt.Errorf("invalid request URI: %w", err)
		}
		u.RawQuery = appendQuery(u.RawQuery, []oauth.Param{{Key: "access_token", Value: s.token.AccessToken}})
		uri = u.String()
	default:
		header.Set("Authorization", "Bearer "+s.token.AccessToken)
	}
	return uri, header, data, nil
}

// appendQuery appends params, in order, to an encoded query.
func appendQuery(rawQuery string, params []oauth.Param) string {
	parts := make([]string, 0, len(params)+1)
	if rawQuery != "" {
		parts = append(parts, rawQuery)
	}
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

func cloneValues(v url.Values) url.Values {
	c := make(url.Values, len(v))
	for k, vs := range v {
		c[k] = append([]string(nil), vs...)
	}
	return c
}
