package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mira/internal/auth"
	"mira/internal/calendar"
)

// GoogleClient adapts Google Calendar for both the read path (conflict
// checking, locator) and the write path (schedule, reschedule, cancel).
// Writes only ever target Google; Outlook events are read-only here.
type GoogleClient struct {
	oauthConfig *oauth2.Config
	tokens      auth.TokenStore
	timeout     time.Duration
	calendarID  string
	extraOpts   []option.ClientOption
}

// NewGoogleClient creates a Google Calendar adapter. Extra client options
// are appended after the authenticated HTTP client, which lets tests point
// the service at a local server.
func NewGoogleClient(oauthConfig *oauth2.Config, tokens auth.TokenStore, timeout time.Duration, extraOpts ...option.ClientOption) *GoogleClient {
	return &GoogleClient{
		oauthConfig: oauthConfig,
		tokens:      tokens,
		timeout:     timeout,
		calendarID:  "primary",
		extraOpts:   extraOpts,
	}
}

func (c *GoogleClient) Provider() calendar.Provider { return calendar.ProviderGoogle }

// savingTokenSource persists refreshed tokens back to the store so the next
// request starts from the newest refresh token.
type savingTokenSource struct {
	ctx    context.Context
	source oauth2.TokenSource
	tokens auth.TokenStore
	userID string
	last   *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || s.last.AccessToken != token.AccessToken {
		if err := s.tokens.SaveToken(s.ctx, s.userID, token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		s.last = token
	}
	return token, nil
}

// service builds a per-user calendar service. A nil stored token means the
// user never connected Google Calendar.
func (c *GoogleClient) service(ctx context.Context, userID string) (*gcal.Service, error) {
	token, err := c.tokens.LoadToken(ctx, userID)
	if err != nil {
		return nil, &Error{Provider: calendar.ProviderGoogle, Kind: ErrOther, Err: err}
	}
	if token == nil {
		return nil, &Error{Provider: calendar.ProviderGoogle, Kind: ErrAuthExpired,
			Err: errors.New("google calendar not connected")}
	}

	source := &savingTokenSource{
		ctx:    ctx,
		source: oauth2.ReuseTokenSource(token, c.oauthConfig.TokenSource(ctx, token)),
		tokens: c.tokens,
		userID: userID,
		last:   token,
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, source))}, c.extraOpts...)
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, &Error{Provider: calendar.ProviderGoogle, Kind: ErrOther,
			Err: fmt.Errorf("failed to create calendar service: %w", err)}
	}
	return service, nil
}

// FetchEvents lists events in the window using an explicit timeMin/timeMax
// query with recurring events expanded. Sync-token listing is deliberately
// not used here: interval queries need the window form.
func (c *GoogleClient) FetchEvents(ctx context.Context, userID string, window calendar.TimeWindow) ([]calendar.RawEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	service, err := c.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	var raws []calendar.RawEvent
	pageToken := ""
	for {
		call := service.Events.List(c.calendarID).
			TimeMin(window.Start.Format(time.RFC3339)).
			TimeMax(window.End.Format(time.RFC3339)).
			SingleEvents(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, c.classify(fmt.Errorf("failed to list events: %w", err))
		}

		for _, ev := range list.Items {
			raws = append(raws, calendar.RawEvent{Provider: calendar.ProviderGoogle, Google: ev})
		}

		if list.NextPageToken == "" {
			return raws, nil
		}
		pageToken = list.NextPageToken
	}
}

// GetEvent fetches and normalizes a single event.
func (c *GoogleClient) GetEvent(ctx context.Context, userID, eventID string) (calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	service, err := c.service(ctx, userID)
	if err != nil {
		return calendar.Event{}, err
	}

	ev, err := service.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, c.classify(fmt.Errorf("failed to get event: %w", err))
	}

	normalized, ok := calendar.Normalize(calendar.RawEvent{Provider: calendar.ProviderGoogle, Google: ev})
	if !ok {
		return calendar.Event{}, &Error{Provider: calendar.ProviderGoogle, Kind: ErrOther,
			Err: fmt.Errorf("event %s has unparseable times", eventID)}
	}
	return normalized, nil
}

// InsertEvent creates the event and returns its normalized form. The write
// is never retried: a failure here surfaces directly to the caller.
func (c *GoogleClient) InsertEvent(ctx context.Context, userID string, draft EventDraft) (calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	service, err := c.service(ctx, userID)
	if err != nil {
		return calendar.Event{}, err
	}

	body := &gcal.Event{
		Summary:     draft.Summary,
		Description: draft.Description,
		Location:    draft.Location,
		Start:       &gcal.EventDateTime{DateTime: draft.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: draft.End.Format(time.RFC3339)},
	}
	for _, email := range draft.Attendees {
		body.Attendees = append(body.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := service.Events.Insert(c.calendarID, body).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, c.classify(fmt.Errorf("failed to insert event: %w", err))
	}

	normalized, ok := calendar.Normalize(calendar.RawEvent{Provider: calendar.ProviderGoogle, Google: created})
	if !ok {
		// The write succeeded; report it from the draft rather than failing.
		return calendar.Event{
			ID:          created.Id,
			Provider:    calendar.ProviderGoogle,
			Summary:     draft.Summary,
			Description: draft.Description,
			Location:    draft.Location,
			Start:       draft.Start.UTC(),
			End:         draft.End.UTC(),
		}, nil
	}
	return normalized, nil
}

// PatchEventTimes moves an event to a new start/end, leaving every other
// field untouched.
func (c *GoogleClient) PatchEventTimes(ctx context.Context, userID, eventID string, start, end time.Time) (calendar.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	service, err := c.service(ctx, userID)
	if err != nil {
		return calendar.Event{}, err
	}

	patch := &gcal.Event{
		Start: &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:   &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}

	updated, err := service.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
	if err != nil {
		return calendar.Event{}, c.classify(fmt.Errorf("failed to patch event: %w", err))
	}

	normalized, ok := calendar.Normalize(calendar.RawEvent{Provider: calendar.ProviderGoogle, Google: updated})
	if !ok {
		return calendar.Event{
			ID:       eventID,
			Provider: calendar.ProviderGoogle,
			Start:    start.UTC(),
			End:      end.UTC(),
		}, nil
	}
	return normalized, nil
}

// DeleteEvent removes an event from the user's calendar.
func (c *GoogleClient) DeleteEvent(ctx context.Context, userID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	service, err := c.service(ctx, userID)
	if err != nil {
		return err
	}

	if err := service.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return c.classify(fmt.Errorf("failed to delete event: %w", err))
	}
	return nil
}

func (c *GoogleClient) classify(err error) *Error {
	kind := ErrOther

	var gerr *googleapi.Error
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.As(err, &nerr) && nerr.Timeout():
		kind = ErrTimeout
	case errors.As(err, &gerr):
		switch gerr.Code {
		case 401:
			kind = ErrAuthExpired
		case 404, 410:
			kind = ErrNotFound
		case 429:
			kind = ErrRateLimited
		}
	}

	return &Error{Provider: calendar.ProviderGoogle, Kind: kind, Err: err}
}
