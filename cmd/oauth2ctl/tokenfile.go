package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	oauth "github.com/giantswarm/oauth2-engine"
)

// tokenFile stores a token as its JSON parameter map, the same shape a token
// endpoint returns plus expires_at.
type tokenFile struct {
	path string
}

// Load returns the stored token, nil if the file does not exist.
func (f tokenFile) Load() (*oauth.Token, error) {
	if f.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", f.path, err)
	}
	return oauth.NewToken(params)
}

// Save writes tok with owner-only permissions.
func (f tokenFile) Save(_ context.Context, tok *oauth.Token) error {
	if f.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(tok.Params(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(f.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
