package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"mira/internal/auth"
	"mira/internal/calendar"
)

const (
	msGraphBaseURL = "https://graph.microsoft.com/v1.0"

	// Refresh the access token when it expires within this buffer, so a
	// token that dies mid-request never reaches Graph.
	outlookTokenExpiryBuffer = 5 * time.Minute
)

// OutlookClient reads a user's Outlook calendar through the Microsoft Graph
// calendarView endpoint. This backend never writes to Outlook: Graph events
// feed conflict detection only.
type OutlookClient struct {
	oauthConfig *oauth2.Config
	tokens      auth.TokenStore
	httpClient  *http.Client
	baseURL     string
}

// NewOutlookClient creates a Graph adapter with a fixed request timeout.
func NewOutlookClient(oauthConfig *oauth2.Config, tokens auth.TokenStore, timeout time.Duration) *OutlookClient {
	return &OutlookClient{
		oauthConfig: oauthConfig,
		tokens:      tokens,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     msGraphBaseURL,
	}
}

func (c *OutlookClient) Provider() calendar.Provider { return calendar.ProviderOutlook }

// accessToken returns a usable access token for the user, refreshing once
// through the OAuth endpoint when the stored token is near expiry. A failed
// refresh surfaces as auth_expired ("calendar not connected" upstream).
func (c *OutlookClient) accessToken(ctx context.Context, userID string) (string, error) {
	token, err := c.tokens.LoadToken(ctx, userID)
	if err != nil {
		return "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrOther, Err: err}
	}
	if token == nil {
		return "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrAuthExpired,
			Err: errors.New("outlook calendar not connected")}
	}

	if token.Expiry.IsZero() || time.Until(token.Expiry) > outlookTokenExpiryBuffer {
		return token.AccessToken, nil
	}

	if token.RefreshToken == "" {
		return "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrAuthExpired,
			Err: errors.New("outlook token expired and no refresh token available")}
	}

	refreshed, err := c.oauthConfig.TokenSource(ctx, token).Token()
	if err != nil {
		return "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrAuthExpired,
			Err: fmt.Errorf("failed to refresh outlook token: %w", err)}
	}
	if err := c.tokens.SaveToken(ctx, userID, refreshed); err != nil {
		return "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrOther,
			Err: fmt.Errorf("failed to save refreshed token: %w", err)}
	}

	return refreshed.AccessToken, nil
}

// FetchEvents queries /me/calendarView over the window, following
// pagination links until exhausted.
func (c *OutlookClient) FetchEvents(ctx context.Context, userID string, window calendar.TimeWindow) ([]calendar.RawEvent, error) {
	accessToken, err := c.accessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("startDateTime", window.Start.Format(time.RFC3339))
	params.Set("endDateTime", window.End.Format(time.RFC3339))
	params.Set("$orderby", "start/dateTime")
	endpoint := c.baseURL + "/me/calendarView?" + params.Encode()

	var raws []calendar.RawEvent
	for endpoint != "" {
		page, next, err := c.fetchPage(ctx, endpoint, accessToken)
		if err != nil {
			return nil, err
		}
		raws = append(raws, page...)
		endpoint = next
	}
	return raws, nil
}

func (c *OutlookClient) fetchPage(ctx context.Context, endpoint, accessToken string) ([]calendar.RawEvent, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrOther,
			Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := ErrOther
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			kind = ErrTimeout
		}
		return nil, "", &Error{Provider: calendar.ProviderOutlook, Kind: kind,
			Err: fmt.Errorf("calendarView request failed: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrAuthExpired,
			Err: fmt.Errorf("calendarView returned status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrRateLimited,
			Err: fmt.Errorf("calendarView returned status %d", resp.StatusCode)}
	default:
		return nil, "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrOther,
			Err: fmt.Errorf("calendarView returned status %d", resp.StatusCode)}
	}

	var result struct {
		Value    []calendar.OutlookEvent `json:"value"`
		NextLink string                  `json:"@odata.nextLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", &Error{Provider: calendar.ProviderOutlook, Kind: ErrOther,
			Err: fmt.Errorf("failed to decode calendarView response: %w", err)}
	}

	raws := make([]calendar.RawEvent, 0, len(result.Value))
	for i := range result.Value {
		raws = append(raws, calendar.RawEvent{Provider: calendar.ProviderOutlook, Outlook: &result.Value[i]})
	}
	return raws, result.NextLink, nil
}
