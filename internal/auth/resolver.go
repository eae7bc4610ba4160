package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// User is the identity resolved from a bearer token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ErrUnauthenticated is returned when a token does not resolve to a user.
var ErrUnauthenticated = errors.New("unauthenticated")

// UserResolver resolves a bearer token to a user identity. The auth service
// (session store, JWT verifier) lives outside this backend.
type UserResolver interface {
	Resolve(ctx context.Context, token string) (User, error)
}

// HTTPResolver resolves tokens against an external auth endpoint that
// accepts the bearer token and returns {id, email}.
type HTTPResolver struct {
	URL    string
	Client *http.Client
}

// NewHTTPResolver creates a resolver for the given auth endpoint URL.
func NewHTTPResolver(url string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return User{}, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.Client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return User{}, ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if user.ID == "" {
		return User{}, ErrUnauthenticated
	}

	return user, nil
}

// StaticResolver maps fixed tokens to users. Used in tests and local runs.
type StaticResolver struct {
	Users map[string]User // token -> user
}

func (r *StaticResolver) Resolve(_ context.Context, token string) (User, error) {
	if user, ok := r.Users[token]; ok {
		return user, nil
	}
	return User{}, ErrUnauthenticated
}

// TimezoneLookup returns the user's local timezone. Only the fuzzy event
// locator consults it; everything else works in UTC.
type TimezoneLookup interface {
	Lookup(ctx context.Context, userID string) (*time.Location, error)
}

// FixedTimezoneLookup returns the same location for every user. Stands in
// for the profile-backed lookup the production deployment provides.
type FixedTimezoneLookup struct {
	Location *time.Location
}

func (l *FixedTimezoneLookup) Lookup(_ context.Context, _ string) (*time.Location, error) {
	if l.Location == nil {
		return time.UTC, nil
	}
	return l.Location, nil
}
