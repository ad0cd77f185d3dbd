package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a fetched document is reused.
const DefaultCacheTTL = time.Hour

// maxDocumentSize bounds the metadata document read from the network.
const maxDocumentSize = 1 << 20

// errNotPublished marks a well-known path the server does not serve.
var errNotPublished = errors.New("metadata not published")

type cachedDocument struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// Client fetches and caches authorization server metadata. It is safe for
// concurrent use.
type Client struct {
	// AllowInsecure accepts http issuers, http endpoints and private
	// network addresses. Local development only.
	AllowInsecure bool

	httpClient *http.Client
	cacheTTL   time.Duration
	logger     *slog.Logger
	cache      sync.Map // issuer -> *cachedDocument
}

// NewClient returns a discovery client. A nil httpClient uses one with a
// 10 second timeout, a zero cacheTTL uses DefaultCacheTTL and a nil logger
// uses slog.Default().
func NewClient(httpClient *http.Client, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Discover returns the metadata published by issuer. The RFC 8414 location
// is tried first, then the OpenID Connect one.
func (c *Client) Discover(ctx context.Context, issuer string) (*Metadata, error) {
	if err := ValidateIssuerURL(issuer, c.AllowInsecure); err != nil {
		return nil, err
	}
	issuer = strings.TrimSuffix(issuer, "/")

	if cached, ok := c.cache.Load(issuer); ok {
		doc := cached.(*cachedDocument)
		if time.Since(doc.fetchedAt) < c.cacheTTL {
			c.logger.Debug("Metadata cache hit", "issuer", issuer)
			return doc.metadata, nil
		}
		c.logger.Debug("Metadata cache expired", "issuer", issuer)
	}

	var md *Metadata
	var err error
	for _, location := range metadataURLs(issuer) {
		md, err = c.fetch(ctx, location)
		if !errors.Is(err, errNotPublished) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to discover %s: %w", issuer, err)
	}

	if strings.TrimSuffix(md.Issuer, "/") != issuer {
		return nil, fmt.Errorf("metadata issuer %q does not match %q", md.Issuer, issuer)
	}
	if err := md.Validate(c.AllowInsecure); err != nil {
		return nil, fmt.Errorf("invalid metadata document: %w", err)
	}

	c.cache.Store(issuer, &cachedDocument{metadata: md, fetchedAt: time.Now()})
	c.logger.Info("Metadata discovery successful",
		"issuer", issuer,
		"authorization_endpoint", md.AuthorizationEndpoint,
		"token_endpoint", md.TokenEndpoint)
	return md, nil
}

// ClearCache drops every cached document.
func (c *Client) ClearCache() {
	c.cache.Range(func(key, _ any) bool {
		c.cache.Delete(key)
		return true
	})
}

func (c *Client) fetch(ctx context.Context, location string) (*Metadata, error) {
	c.logger.Debug("Fetching metadata document", "url", location)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotPublished
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("metadata request failed with status %d", resp.StatusCode)
	}

	var md Metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata document: %w", err)
	}
	return &md, nil
}

// metadataURLs lists the well-known locations for issuer. A path in the
// issuer is inserted after the well-known prefix for RFC 8414 and appended
// before it for OpenID Connect.
func metadataURLs(issuer string) []string {
	u, err := url.Parse(issuer)
	if err != nil {
		return nil
	}
	origin := u.Scheme + "://" + u.Host
	path := strings.TrimSuffix(u.Path, "/")
	return []string{
		origin + PathAuthorizationServer + path,
		origin + path + PathOpenIDConfiguration,
	}
}
