// Package auth holds the narrow interfaces to the external auth
// collaborators: per-user OAuth token storage and bearer-token resolution.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

// TokenStore saves and loads a user's OAuth token for one provider.
// The production deployment backs this with the account store; the
// file-based implementation below serves local development and tests.
type TokenStore interface {
	LoadToken(ctx context.Context, userID string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID string, token *oauth2.Token) error
}

// DirTokenStore keeps one JSON token file per user under Dir.
type DirTokenStore struct {
	Dir string
}

// NewDirTokenStore creates a DirTokenStore rooted at dir.
func NewDirTokenStore(dir string) *DirTokenStore {
	return &DirTokenStore{Dir: dir}
}

func (s *DirTokenStore) path(userID string) string {
	// User IDs are opaque strings from the auth collaborator; strip path
	// separators so they cannot escape the token directory.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(userID)
	return filepath.Join(s.Dir, safe+".json")
}

// LoadToken loads the user's token. Returns nil, nil when no token exists.
func (s *DirTokenStore) LoadToken(_ context.Context, userID string) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

// SaveToken writes the user's token, creating the directory if needed.
func (s *DirTokenStore) SaveToken(_ context.Context, userID string, token *oauth2.Token) error {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(s.path(userID), data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}
