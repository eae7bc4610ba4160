// Package config loads the server configuration from the environment,
// applying defaults and validating the combinations that matter.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// AuthMode selects how requests are authenticated.
type AuthMode string

const (
	// AuthModeProduction accepts bearer tokens only.
	AuthModeProduction AuthMode = "production"
	// AuthModeDevelopment additionally accepts the X-User-Id/X-User-Email
	// header fallback. Never enable outside local development.
	AuthModeDevelopment AuthMode = "development"
)

// Config holds everything the server needs at startup.
type Config struct {
	ListenAddr  string
	Environment string // "development" or "production"; controls log format
	LogLevel    string

	AuthMode       AuthMode
	AuthServiceURL string
	AuthTimeout    time.Duration

	DefaultTimezone string

	GoogleCredentialsPath string
	GoogleTokenDir        string
	GoogleTimeout         time.Duration

	OutlookClientID     string
	OutlookClientSecret string
	OutlookTokenDir     string
	OutlookTimeout      time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load reads configuration from environment variables. Defaults favor a
// local development setup; production mode requires the auth service URL.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:            envOr("MIRA_LISTEN_ADDR", ":8080"),
		Environment:           envOr("MIRA_ENV", "development"),
		LogLevel:              envOr("MIRA_LOG_LEVEL", "info"),
		AuthMode:              AuthMode(envOr("MIRA_AUTH_MODE", string(AuthModeDevelopment))),
		AuthServiceURL:        os.Getenv("MIRA_AUTH_SERVICE_URL"),
		DefaultTimezone:       envOr("MIRA_DEFAULT_TIMEZONE", "UTC"),
		GoogleCredentialsPath: os.Getenv("MIRA_GOOGLE_CREDENTIALS_PATH"),
		GoogleTokenDir:        envOr("MIRA_GOOGLE_TOKEN_DIR", "tokens/google"),
		OutlookClientID:       os.Getenv("MIRA_OUTLOOK_CLIENT_ID"),
		OutlookClientSecret:   os.Getenv("MIRA_OUTLOOK_CLIENT_SECRET"),
		OutlookTokenDir:       envOr("MIRA_OUTLOOK_TOKEN_DIR", "tokens/outlook"),
	}

	var err error
	if cfg.AuthTimeout, err = envDuration("MIRA_AUTH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.GoogleTimeout, err = envDuration("MIRA_GOOGLE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutlookTimeout, err = envDuration("MIRA_OUTLOOK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDuration("MIRA_RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = envInt("MIRA_RATE_LIMIT_MAX", 60); err != nil {
		return nil, err
	}

	switch cfg.AuthMode {
	case AuthModeProduction, AuthModeDevelopment:
	default:
		return nil, fmt.Errorf("MIRA_AUTH_MODE must be %q or %q, got %q",
			AuthModeProduction, AuthModeDevelopment, cfg.AuthMode)
	}

	if cfg.AuthMode == AuthModeProduction && cfg.AuthServiceURL == "" {
		return nil, fmt.Errorf("MIRA_AUTH_SERVICE_URL is required when MIRA_AUTH_MODE=production")
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid MIRA_DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

// GoogleCredentials represents the structure of a Google OAuth credentials
// JSON file as downloaded from the Google Cloud Console.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads the OAuth client id/secret from a credentials
// file, trying the "installed" section first, then "web".
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}
