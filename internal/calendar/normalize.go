package calendar

import (
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

// OutlookEvent mirrors the subset of a Microsoft Graph event the normalizer
// needs. The provider layer decodes Graph JSON directly into this shape.
type OutlookEvent struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	BodyPreview string `json:"bodyPreview"`
	IsAllDay    bool   `json:"isAllDay"`
	Start       struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"end"`
	Location struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
}

// RawEvent is a tagged union of the two provider-native event shapes.
// Exactly one of Google or Outlook is set. Raw events never travel past
// Normalize; everything downstream works on the normalized Event.
type RawEvent struct {
	Provider Provider
	Google   *gcal.Event
	Outlook  *OutlookEvent
}

// Normalize maps a provider-native event into the common Event shape.
// Returns false when the start or end cannot be parsed, or when the parsed
// interval is empty or inverted; such events are dropped.
func Normalize(raw RawEvent) (Event, bool) {
	switch raw.Provider {
	case ProviderGoogle:
		return normalizeGoogle(raw.Google)
	case ProviderOutlook:
		return normalizeOutlook(raw.Outlook)
	default:
		return Event{}, false
	}
}

func normalizeGoogle(ev *gcal.Event) (Event, bool) {
	if ev == nil || ev.Start == nil || ev.End == nil {
		return Event{}, false
	}

	out := Event{
		ID:          ev.Id,
		Provider:    ProviderGoogle,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}

	// All-day events carry a date-only Start.Date; timed events use DateTime.
	if ev.Start.Date != "" {
		day, err := time.ParseInLocation("2006-01-02", ev.Start.Date, time.UTC)
		if err != nil {
			return Event{}, false
		}
		out.Start = day
		out.End = day.Add(24 * time.Hour)
		out.IsAllDay = true
		return out, true
	}

	start, allDay, ok := parseTimestamp(ev.Start.DateTime)
	if !ok || allDay {
		return Event{}, false
	}
	end, _, ok := parseTimestamp(ev.End.DateTime)
	if !ok {
		return Event{}, false
	}
	out.Start, out.End = start, end
	if !out.Start.Before(out.End) {
		return Event{}, false
	}
	return out, true
}

func normalizeOutlook(ev *OutlookEvent) (Event, bool) {
	if ev == nil {
		return Event{}, false
	}

	out := Event{
		ID:          ev.ID,
		Provider:    ProviderOutlook,
		Summary:     ev.Subject,
		Description: ev.BodyPreview,
		Location:    ev.Location.DisplayName,
	}

	start, startIsDate, ok := parseTimestamp(ev.Start.DateTime)
	if !ok {
		return Event{}, false
	}
	end, _, ok := parseTimestamp(ev.End.DateTime)
	if !ok {
		return Event{}, false
	}

	if ev.IsAllDay || startIsDate {
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		out.Start = day
		out.End = day.Add(24 * time.Hour)
		out.IsAllDay = true
		return out, true
	}

	out.Start, out.End = start, end
	if !out.Start.Before(out.End) {
		return Event{}, false
	}
	return out, true
}

// parseTimestamp handles the timestamp shapes the providers emit: RFC 3339
// with offset, date-only YYYY-MM-DD (all-day), and Graph's naive local form
// with optional fractional seconds. Naive timestamps are assumed UTC.
// Results are always UTC; dateOnly marks a YYYY-MM-DD value.
func parseTimestamp(s string) (t time.Time, dateOnly, ok bool) {
	if s == "" {
		return time.Time{}, false, false
	}

	if len(s) == 10 {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}

	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.9999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), false, true
		}
	}

	return time.Time{}, false, false
}
