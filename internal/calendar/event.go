// Package calendar defines the normalized event model shared by both
// providers, and the interval logic used for conflict detection.
package calendar

import (
	"fmt"
	"time"
)

// Provider identifies which external calendar an event came from.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// Event is the normalized, provider-independent event shape. Events are
// transient: they are built fresh for each request and never persisted.
// Every constructed Event satisfies Start.Before(End); raw events that
// cannot be normalized are dropped instead of retained with sentinel times.
type Event struct {
	ID          string   `json:"id"`
	Provider    Provider `json:"provider"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`

	// Start and End are always UTC. For all-day events Start is the UTC
	// midnight of the date and End is Start plus 24 hours.
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	IsAllDay bool      `json:"is_all_day"`
}

// TimeWindow is a half-open interval [Start, End) used both as a provider
// query range and as the candidate slot for a new or rescheduled event.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow validates that start precedes end.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if !start.Before(end) {
		return TimeWindow{}, fmt.Errorf("invalid time window: start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeWindow{Start: start.UTC(), End: end.UTC()}, nil
}

// Expand returns a window widened by d on each side. Used by the conflict
// checker so events straddling the window boundary survive the provider's
// own timeMin/timeMax filtering.
func (w TimeWindow) Expand(d time.Duration) TimeWindow {
	return TimeWindow{Start: w.Start.Add(-d), End: w.End.Add(d)}
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
