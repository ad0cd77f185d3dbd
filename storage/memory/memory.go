// Package memory provides an in-memory implementation of all storage interfaces.
// It is suitable for development, testing, and single-instance deployments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/storage"
)

// tokenLogLength is the number of characters of a token included in logs
const tokenLogLength = 8

// Store is an in-memory implementation of ClientStore, TokenStore and
// AuthorizationCodeStore. It is safe for concurrent use. Tokens are copied on
// the way in and out; stored records are replaced, never mutated.
type Store struct {
	mu sync.RWMutex

	clients map[string]*storage.Client

	tokens       map[string]*storage.Token // token ID -> token
	accessIndex  map[string]string         // access token -> token ID
	refreshIndex map[string]string         // refresh token -> token ID

	codes map[string]*storage.AuthorizationCode

	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
	logger      *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.ClientStore            = (*Store)(nil)
	_ storage.TokenStore             = (*Store)(nil)
	_ storage.AuthorizationCodeStore = (*Store)(nil)
)

// New creates a new in-memory store with a one minute cleanup interval.
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a store that sweeps expired authorization codes
// every interval.
func NewWithInterval(interval time.Duration) *Store {
	s := &Store{
		clients:      make(map[string]*storage.Client),
		tokens:       make(map[string]*storage.Token),
		accessIndex:  make(map[string]string),
		refreshIndex: make(map[string]string),
		codes:        make(map[string]*storage.AuthorizationCode),
		now:          time.Now,
		stopCleanup:  make(chan struct{}),
		logger:       slog.Default(),
	}
	go s.cleanupLoop(interval)
	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupExpiredCodes()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Store) cleanupExpiredCodes() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for code, ac := range s.codes {
		if ac.IsExpired(now) {
			delete(s.codes, code)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Cleaned up expired authorization codes", "count", removed)
	}
}

// ============================================================
// ClientStore
// ============================================================

// SaveClient creates or replaces a client
func (s *Store) SaveClient(_ context.Context, client *storage.Client) error {
	if client == nil || client.ID == "" {
		return fmt.Errorf("client ID cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
	return nil
}

// GetClient returns a client by ID
func (s *Store) GetClient(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %q: %w", clientID, storage.ErrNotFound)
	}
	return c, nil
}

// QueryClient adapts GetClient to the engine's client lookup contract: an
// unknown client is reported as (nil, nil), not as an error.
func (s *Store) QueryClient(ctx context.Context, clientID string) (oauth.Client, error) {
	c, err := s.GetClient(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ============================================================
// TokenStore
// ============================================================

// SaveToken stores a token, assigning an ID when it has none
func (s *Store) SaveToken(_ context.Context, token *storage.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("access token cannot be empty")
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.IssuedAt.IsZero() {
		token.IssuedAt = s.now()
	}

	record := *token

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = &record
	s.accessIndex[token.AccessToken] = token.ID
	if token.RefreshToken != "" {
		s.refreshIndex[token.RefreshToken] = token.ID
	}

	s.logger.Debug("Saved token",
		"token_id", token.ID,
		"client_id", token.IssuedTo,
		"access_token_prefix", util.SafeTruncate(token.AccessToken, tokenLogLength))
	return nil
}

// GetTokenByAccessToken looks a token up by access token
func (s *Store) GetTokenByAccessToken(_ context.Context, accessToken string) (*storage.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.accessIndex, accessToken)
}

// GetTokenByRefreshToken looks a token up by refresh token
func (s *Store) GetTokenByRefreshToken(_ context.Context, refreshToken string) (*storage.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.refreshIndex, refreshToken)
}

// lookup resolves value through index. Caller holds mu.
func (s *Store) lookup(index map[string]string, value string) (*storage.Token, error) {
	id, ok := index[value]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tok, ok := s.tokens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *tok
	return &c, nil
}

// RevokeToken marks a token revoked
func (s *Store) RevokeToken(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[tokenID]
	if !ok {
		return storage.ErrNotFound
	}
	revoked := *tok
	revoked.Revoked = true
	s.tokens[tokenID] = &revoked
	return nil
}

// QueryToken finds a token by value for revocation. hint selects which index
// is searched first; both are searched either way (RFC 7009 section 2.1).
func (s *Store) QueryToken(ctx context.Context, value, hint string) (oauth.TokenCredential, error) {
	lookups := []func(context.Context, string) (*storage.Token, error){
		s.GetTokenByAccessToken, s.GetTokenByRefreshToken,
	}
	if hint == "refresh_token" {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}
	for _, lookup := range lookups {
		tok, err := lookup(ctx, value)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// RevokeCredential revokes a credential returned by QueryToken or
// AuthenticateRefreshToken.
func (s *Store) RevokeCredential(ctx context.Context, credential oauth.TokenCredential) error {
	tok, ok := credential.(*storage.Token)
	if !ok {
		return fmt.Errorf("unsupported credential type %T", credential)
	}
	return s.RevokeToken(ctx, tok.ID)
}

// AuthenticateRefreshToken returns the live token holding refreshToken if it
// was issued to client.
func (s *Store) AuthenticateRefreshToken(ctx context.Context, refreshToken string, client oauth.Client) (oauth.TokenCredential, error) {
	tok, err := s.GetTokenByRefreshToken(ctx, refreshToken)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tok.IssuedTo != client.ClientID() || tok.Revoked {
		return nil, nil
	}
	return tok, nil
}

// ============================================================
// AuthorizationCodeStore
// ============================================================

// SaveAuthorizationCode stores a newly issued code
func (s *Store) SaveAuthorizationCode(_ context.Context, code *storage.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return fmt.Errorf("authorization code cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code.Code] = code
	return nil
}

// GetAuthorizationCode returns an unexpired code
func (s *Store) GetAuthorizationCode(_ context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ac, ok := s.codes[code]
	if !ok || ac.IsExpired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return ac, nil
}

// DeleteAuthorizationCode removes a code after use
func (s *Store) DeleteAuthorizationCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

// Stats returns the number of stored clients, tokens and codes.
func (s *Store) Stats() (clients, tokens, codes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), len(s.tokens), len(s.codes)
}

// ParseAuthorizationCode returns the unexpired code if it was issued to client.
func (s *Store) ParseAuthorizationCode(ctx context.Context, code string, client oauth.Client) (oauth.AuthorizationCode, error) {
	ac, err := s.GetAuthorizationCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ac.IssuedTo != client.ClientID() {
		return nil, nil
	}
	return ac, nil
}

// DeleteCode removes a code returned by ParseAuthorizationCode.
func (s *Store) DeleteCode(ctx context.Context, code oauth.AuthorizationCode) error {
	ac, ok := code.(*storage.AuthorizationCode)
	if !ok {
		return fmt.Errorf("unsupported authorization code type %T", code)
	}
	return s.DeleteAuthorizationCode(ctx, ac.Code)
}
