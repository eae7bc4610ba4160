// Package assistant implements the calendar mutation operations behind the
// conversational interface: schedule, reschedule, and cancel. Each mutation
// is a two-phase read-then-write: a conflict check followed by a single,
// unretried provider write. There is deliberately no isolation between the
// phases; see DESIGN.md for the accepted race.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mira/internal/auth"
	"mira/internal/calendar"
	"mira/internal/conflict"
	"mira/internal/provider"
)

// GoogleCalendar is the slice of the Google adapter the mutations need.
// All writes target Google; Outlook participates in conflict reads only.
type GoogleCalendar interface {
	FetchEvents(ctx context.Context, userID string, window calendar.TimeWindow) ([]calendar.RawEvent, error)
	GetEvent(ctx context.Context, userID, eventID string) (calendar.Event, error)
	InsertEvent(ctx context.Context, userID string, draft provider.EventDraft) (calendar.Event, error)
	PatchEventTimes(ctx context.Context, userID, eventID string, start, end time.Time) (calendar.Event, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

// ConflictChecker runs the read phase of a mutation and serves merged
// read-only views.
type ConflictChecker interface {
	Check(ctx context.Context, userID string, window calendar.TimeWindow, opts conflict.Options) *conflict.Report
	Merged(ctx context.Context, userID string, window calendar.TimeWindow) []calendar.Event
}

// Service wires the mutation operations to the conflict checker and the
// Google write path.
type Service struct {
	checker   ConflictChecker
	google    GoogleCalendar
	timezones auth.TimezoneLookup
	logger    *slog.Logger
}

// NewService creates the assistant calendar service.
func NewService(checker ConflictChecker, google GoogleCalendar, timezones auth.TimezoneLookup, logger *slog.Logger) *Service {
	return &Service{
		checker:   checker,
		google:    google,
		timezones: timezones,
		logger:    logger,
	}
}

// ScheduleRequest describes a new event to create.
type ScheduleRequest struct {
	Summary     string
	Description string
	Location    string
	Attendees   []string
	Window      calendar.TimeWindow
}

// Schedule checks the candidate window against both calendars and, when
// clear, creates the event on Google. A conflict blocks the write and comes
// back as *ConflictError with the full report.
func (s *Service) Schedule(ctx context.Context, userID string, req ScheduleRequest) (calendar.Event, error) {
	report := s.checker.Check(ctx, userID, req.Window, conflict.Options{})
	if report.HasConflict {
		return calendar.Event{}, &ConflictError{Report: report}
	}

	created, err := s.google.InsertEvent(ctx, userID, provider.EventDraft{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Attendees:   req.Attendees,
		Start:       req.Window.Start,
		End:         req.Window.End,
	})
	if err != nil {
		return calendar.Event{}, fmt.Errorf("schedule write failed: %w", err)
	}

	s.logger.Info("event scheduled", "user", userID, "event", created.ID,
		"start", created.Start, "end", created.End)
	return created, nil
}

// RescheduleRequest moves an existing event to a new window. The event is
// named either directly by ID or by its old start time (plus an optional
// summary filter) for the locator.
type RescheduleRequest struct {
	EventID   string
	OldStart  *ApproxTime
	Summary   string
	NewWindow calendar.TimeWindow
}

// Reschedule resolves the target event, re-checks the new window with the
// event excluded from its own conflict set, then patches the Google event's
// times. Outlook-native events cannot be rescheduled here.
func (s *Service) Reschedule(ctx context.Context, userID string, req RescheduleRequest) (calendar.Event, error) {
	eventID := req.EventID
	if eventID == "" {
		if req.OldStart == nil {
			return calendar.Event{}, &ValidationError{Msg: "either event_id or old_start is required"}
		}
		located, err := s.locateEvent(ctx, userID, *req.OldStart, req.Summary)
		if err != nil {
			return calendar.Event{}, err
		}
		eventID = located.ID
	} else {
		// Verify a directly named event before checking conflicts, so a
		// stale ID comes back as not-found rather than a spurious 409.
		if _, err := s.google.GetEvent(ctx, userID, eventID); err != nil {
			if provider.KindOf(err) == provider.ErrNotFound {
				return calendar.Event{}, &NotFoundError{Msg: fmt.Sprintf("event %s not found", eventID)}
			}
			return calendar.Event{}, fmt.Errorf("failed to load event: %w", err)
		}
	}

	report := s.checker.Check(ctx, userID, req.NewWindow, conflict.Options{ExcludeEventID: eventID})
	if report.HasConflict {
		return calendar.Event{}, &ConflictError{Report: report}
	}

	updated, err := s.google.PatchEventTimes(ctx, userID, eventID, req.NewWindow.Start, req.NewWindow.End)
	if err != nil {
		if provider.KindOf(err) == provider.ErrNotFound {
			return calendar.Event{}, &NotFoundError{Msg: fmt.Sprintf("event %s not found", eventID)}
		}
		return calendar.Event{}, fmt.Errorf("reschedule write failed: %w", err)
	}

	s.logger.Info("event rescheduled", "user", userID, "event", eventID,
		"start", updated.Start, "end", updated.End)
	return updated, nil
}

// CancelRequest removes an event, named directly or by approximate start.
type CancelRequest struct {
	EventID string
	Start   *ApproxTime
	Summary string
}

// Cancel resolves the target event and deletes it from Google. Deletion
// needs no conflict check.
func (s *Service) Cancel(ctx context.Context, userID string, req CancelRequest) (string, error) {
	eventID := req.EventID
	if eventID == "" {
		if req.Start == nil {
			return "", &ValidationError{Msg: "either event_id or start is required"}
		}
		located, err := s.locateEvent(ctx, userID, *req.Start, req.Summary)
		if err != nil {
			return "", err
		}
		eventID = located.ID
	}

	if err := s.google.DeleteEvent(ctx, userID, eventID); err != nil {
		if provider.KindOf(err) == provider.ErrNotFound {
			return "", &NotFoundError{Msg: fmt.Sprintf("event %s not found", eventID)}
		}
		return "", fmt.Errorf("cancel write failed: %w", err)
	}

	s.logger.Info("event cancelled", "user", userID, "event", eventID)
	return eventID, nil
}

// CheckWindow exposes a bare conflict check for the read-only endpoint.
func (s *Service) CheckWindow(ctx context.Context, userID string, window calendar.TimeWindow) *conflict.Report {
	return s.checker.Check(ctx, userID, window, conflict.Options{})
}

// Agenda returns every event from every connected calendar over the window,
// sorted by start time, for the ICS export.
func (s *Service) Agenda(ctx context.Context, userID string, window calendar.TimeWindow) []calendar.Event {
	return s.checker.Merged(ctx, userID, window)
}

// AsConflict unwraps a *ConflictError if err is one.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := errors.As(err, &ce)
	return ce, ok
}
