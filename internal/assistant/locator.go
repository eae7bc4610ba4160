package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mira/internal/calendar"
)

// locatorRadius bounds the search around an approximate start time.
const locatorRadius = 30 * time.Minute

// ApproxTime is a user-supplied approximate instant. Naive marks a
// timestamp that carried no UTC offset; the locator interprets its
// wall-clock fields in the user's local timezone, so "8 PM" means 8 PM
// where the user lives, not 8 PM UTC.
type ApproxTime struct {
	Time  time.Time
	Naive bool
}

// locateEvent resolves an approximate start (and optional summary filter)
// to exactly one Google event. Zero candidates is NotFound; more than one
// is Ambiguous and must be clarified by the caller, never guessed.
func (s *Service) locateEvent(ctx context.Context, userID string, approx ApproxTime, summaryFilter string) (calendar.Event, error) {
	loc, err := s.timezones.Lookup(ctx, userID)
	if err != nil {
		s.logger.Warn("timezone lookup failed, defaulting to UTC", "user", userID, "err", err)
		loc = time.UTC
	}

	center := approx.Time.In(loc)
	if approx.Naive {
		// The wall clock was parsed as if UTC; rebuild it in the user's
		// zone to recover the instant the user meant.
		wall := approx.Time.UTC()
		center = time.Date(wall.Year(), wall.Month(), wall.Day(),
			wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
	}

	window, err := calendar.NewTimeWindow(center.Add(-locatorRadius), center.Add(locatorRadius))
	if err != nil {
		return calendar.Event{}, fmt.Errorf("failed to build locator window: %w", err)
	}

	raws, err := s.google.FetchEvents(ctx, userID, window)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("failed to search events: %w", err)
	}

	var candidates []calendar.Event
	for _, raw := range raws {
		ev, ok := calendar.Normalize(raw)
		if !ok {
			continue
		}
		if !summaryMatches(summaryFilter, ev.Summary) {
			continue
		}
		candidates = append(candidates, ev)
	}

	switch len(candidates) {
	case 0:
		return calendar.Event{}, &NotFoundError{
			Msg: fmt.Sprintf("no event found around %s", center.Format("3:04 PM")),
		}
	case 1:
		return candidates[0], nil
	default:
		return calendar.Event{}, &AmbiguousError{Candidates: candidates}
	}
}

// summaryMatches applies the locator's title heuristic: case-insensitive
// substring, or any shared token longer than two characters. The generic
// filter "event" matches everything, as does an empty filter.
func summaryMatches(filter, summary string) bool {
	f := strings.ToLower(strings.TrimSpace(filter))
	if f == "" || f == "event" {
		return true
	}

	sum := strings.ToLower(summary)
	if strings.Contains(sum, f) {
		return true
	}

	for _, token := range strings.Fields(f) {
		if len(token) <= 2 {
			continue
		}
		for _, word := range strings.Fields(sum) {
			if token == word {
				return true
			}
		}
	}
	return false
}
