// Command mirad runs the Mira assistant calendar backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"mira/internal/assistant"
	"mira/internal/auth"
	"mira/internal/config"
	"mira/internal/conflict"
	"mira/internal/logging"
	"mira/internal/provider"
	"mira/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mirad: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Environment, cfg.LogLevel)

	googleOAuth, err := googleOAuthConfig(cfg)
	if err != nil {
		return err
	}
	outlookOAuth := &oauth2.Config{
		ClientID:     cfg.OutlookClientID,
		ClientSecret: cfg.OutlookClientSecret,
		Endpoint:     microsoft.AzureADEndpoint("common"),
		Scopes:       []string{"offline_access", "Calendars.Read"},
	}

	googleClient := provider.NewGoogleClient(googleOAuth,
		auth.NewDirTokenStore(cfg.GoogleTokenDir), cfg.GoogleTimeout)
	outlookClient := provider.NewOutlookClient(outlookOAuth,
		auth.NewDirTokenStore(cfg.OutlookTokenDir), cfg.OutlookTimeout)

	checker := conflict.NewChecker(logger, googleClient, outlookClient)

	defaultTZ, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("loading default timezone: %w", err)
	}
	timezones := &auth.FixedTimezoneLookup{Location: defaultTZ}

	svc := assistant.NewService(checker, googleClient, timezones, logger)

	var resolver auth.UserResolver
	if cfg.AuthServiceURL != "" {
		resolver = auth.NewHTTPResolver(cfg.AuthServiceURL, cfg.AuthTimeout)
	} else {
		// Development mode without an auth service: every bearer token is
		// rejected and only the X-User-Id header fallback works.
		resolver = &auth.StaticResolver{}
	}

	srv := server.New(cfg, svc, resolver, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func googleOAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	oc := &oauth2.Config{
		Endpoint: google.Endpoint,
		Scopes:   []string{"https://www.googleapis.com/auth/calendar"},
	}
	if cfg.GoogleCredentialsPath == "" {
		return oc, nil
	}
	id, secret, err := config.LoadGoogleCredentials(cfg.GoogleCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("loading google credentials: %w", err)
	}
	oc.ClientID = id
	oc.ClientSecret = secret
	return oc, nil
}
