package storage

import (
	"slices"
	"time"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/security"
)

// Client is a registered OAuth client. It implements oauth.Client.
type Client struct {
	ID string

	// SecretHash is the bcrypt hash of the client secret; empty for public clients.
	SecretHash string

	Type          oauth.ClientType
	RedirectURIs  []string
	GrantTypes    []string
	ResponseTypes []string

	// Scopes are the scopes the client may request.
	Scopes []string

	Name      string
	CreatedAt time.Time
}

var _ oauth.Client = (*Client)(nil)

// NewClient builds a client record, hashing secret with bcrypt. An empty
// secret yields a public client.
func NewClient(id, secret string, redirectURIs, grantTypes, scopes []string) (*Client, error) {
	c := &Client{
		ID:           id,
		Type:         oauth.ClientTypePublic,
		RedirectURIs: redirectURIs,
		GrantTypes:   grantTypes,
		Scopes:       scopes,
		CreatedAt:    time.Now(),
	}
	if slices.Contains(grantTypes, oauth.GrantTypeAuthorizationCode) {
		c.ResponseTypes = append(c.ResponseTypes, oauth.ResponseTypeCode)
	}
	if slices.Contains(grantTypes, oauth.GrantTypeImplicit) {
		c.ResponseTypes = append(c.ResponseTypes, oauth.ResponseTypeToken)
	}
	if secret != "" {
		hash, err := security.HashSecret(secret)
		if err != nil {
			return nil, err
		}
		c.SecretHash = hash
		c.Type = oauth.ClientTypeConfidential
	}
	return c, nil
}

func (c *Client) ClientID() string { return c.ID }

func (c *Client) DefaultRedirectURI() string {
	if len(c.RedirectURIs) == 0 {
		return ""
	}
	return c.RedirectURIs[0]
}

func (c *Client) CheckRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

func (c *Client) HasClientSecret() bool { return c.SecretHash != "" }

func (c *Client) CheckClientSecret(secret string) bool {
	return security.CompareSecret(c.SecretHash, secret)
}

func (c *Client) CheckClientType(t oauth.ClientType) bool { return c.Type == t }

func (c *Client) CheckResponseType(responseType string) bool {
	return slices.Contains(c.ResponseTypes, responseType)
}

func (c *Client) CheckGrantType(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}

func (c *Client) CheckRequestedScopes(scopes []string) bool {
	for _, s := range scopes {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}
