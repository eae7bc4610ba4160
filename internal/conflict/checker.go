// Package conflict implements the read-only conflict check: fetch both
// calendars over a window, normalize, and test each event against the
// candidate slot.
package conflict

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"mira/internal/calendar"
	"mira/internal/provider"
)

// fetchBuffer widens the provider query on each side so events straddling
// the window boundary are not dropped by the provider's own filtering.
const fetchBuffer = time.Minute

// Report is the outcome of one conflict check. It is computed fresh per
// request and never persisted.
type Report struct {
	HasConflict bool             `json:"has_conflict"`
	Conflicts   []calendar.Event `json:"conflicts"`
}

// CountByProvider returns how many conflicts came from the given provider.
func (r *Report) CountByProvider(p calendar.Provider) int {
	n := 0
	for _, ev := range r.Conflicts {
		if ev.Provider == p {
			n++
		}
	}
	return n
}

// Options adjusts a single check.
type Options struct {
	// ExcludeEventID drops the named event from the conflict set, so a
	// reschedule does not collide with its own old occurrence.
	ExcludeEventID string
}

// Checker runs conflict checks across any number of event sources.
type Checker struct {
	sources []provider.EventSource
	logger  *slog.Logger
}

// NewChecker creates a Checker over the given sources.
func NewChecker(logger *slog.Logger, sources ...provider.EventSource) *Checker {
	return &Checker{sources: sources, logger: logger}
}

// Check fetches events from every source concurrently and reports which of
// them overlap the window. A source that fails contributes nothing rather
// than aborting the check: a degraded read still lets the user act on the
// providers that answered.
func (c *Checker) Check(ctx context.Context, userID string, window calendar.TimeWindow, opts Options) *Report {
	results := c.fetchAll(ctx, userID, window.Expand(fetchBuffer))

	report := &Report{Conflicts: []calendar.Event{}}
	for _, raws := range results {
		for _, raw := range raws {
			ev, ok := calendar.Normalize(raw)
			if !ok {
				continue
			}
			if opts.ExcludeEventID != "" && ev.ID == opts.ExcludeEventID {
				continue
			}
			if ev.ConflictsWith(window) {
				report.Conflicts = append(report.Conflicts, ev)
			}
		}
	}
	report.HasConflict = len(report.Conflicts) > 0
	return report
}

// Merged fetches and normalizes every event from every source over the
// window, sorted by start time. Like Check, a failing source degrades the
// result instead of aborting it.
func (c *Checker) Merged(ctx context.Context, userID string, window calendar.TimeWindow) []calendar.Event {
	results := c.fetchAll(ctx, userID, window)

	events := []calendar.Event{}
	for _, raws := range results {
		for _, raw := range raws {
			if ev, ok := calendar.Normalize(raw); ok {
				events = append(events, ev)
			}
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

func (c *Checker) fetchAll(ctx context.Context, userID string, window calendar.TimeWindow) [][]calendar.RawEvent {
	results := make([][]calendar.RawEvent, len(c.sources))
	var wg sync.WaitGroup
	for i, source := range c.sources {
		wg.Add(1)
		go func(i int, source provider.EventSource) {
			defer wg.Done()
			raws, err := source.FetchEvents(ctx, userID, window)
			if err != nil {
				c.logger.Warn("provider fetch failed, degrading to available sources",
					"provider", source.Provider(),
					"kind", provider.KindOf(err),
					"err", err)
				return
			}
			results[i] = raws
		}(i, source)
	}
	wg.Wait()
	return results
}
