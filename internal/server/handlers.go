package server

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"mira/internal/agenda"
	"mira/internal/assistant"
	"mira/internal/calendar"
	"mira/internal/provider"
)

// naiveTimeLayout is the timezone-less timestamp shape some clients send; it
// is assumed UTC, matching the normalizer.
const naiveTimeLayout = "2006-01-02T15:04:05"

type checkConflictsRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) handleCheckConflicts(c *fiber.Ctx) error {
	var req checkConflictsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	window, err := parseWindow(req.Start, req.End)
	if err != nil {
		return badRequest(c, err.Error())
	}

	report := s.assistant.CheckWindow(c.UserContext(), userID(c), window)
	return c.JSON(report)
}

type scheduleRequest struct {
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Attendees   []string `json:"attendees"`
}

func (s *Server) handleSchedule(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	window, err := parseWindow(req.Start, req.End)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if req.Summary == "" {
		return badRequest(c, "summary is required")
	}

	created, err := s.assistant.Schedule(c.UserContext(), userID(c), assistant.ScheduleRequest{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Attendees:   req.Attendees,
		Window:      window,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":       "scheduled",
		"event":        created,
		"has_conflict": false,
	})
}

type rescheduleRequest struct {
	EventID  string `json:"event_id"`
	OldStart string `json:"old_start"`
	Summary  string `json:"summary"`
	NewStart string `json:"new_start"`
	NewEnd   string `json:"new_end"`
}

func (s *Server) handleReschedule(c *fiber.Ctx) error {
	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	window, err := parseWindow(req.NewStart, req.NewEnd)
	if err != nil {
		return badRequest(c, fmt.Sprintf("new window: %v", err))
	}

	var oldStart *assistant.ApproxTime
	if req.OldStart != "" {
		at, err := parseApproxTime(req.OldStart)
		if err != nil {
			return badRequest(c, fmt.Sprintf("old_start: %v", err))
		}
		oldStart = &at
	}

	updated, err := s.assistant.Reschedule(c.UserContext(), userID(c), assistant.RescheduleRequest{
		EventID:   req.EventID,
		OldStart:  oldStart,
		Summary:   req.Summary,
		NewWindow: window,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":   "rescheduled",
		"event_id": updated.ID,
		"event":    updated,
	})
}

type cancelRequest struct {
	EventID string `json:"event_id"`
	Start   string `json:"start"`
	Summary string `json:"summary"`
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	var start *assistant.ApproxTime
	if req.Start != "" {
		at, err := parseApproxTime(req.Start)
		if err != nil {
			return badRequest(c, fmt.Sprintf("start: %v", err))
		}
		start = &at
	}

	eventID, err := s.assistant.Cancel(c.UserContext(), userID(c), assistant.CancelRequest{
		EventID: req.EventID,
		Start:   start,
		Summary: req.Summary,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":   "cancelled",
		"event_id": eventID,
	})
}

// handleAgenda serves the merged two-calendar agenda as iCalendar. The window
// defaults to the next seven days.
func (s *Server) handleAgenda(c *fiber.Ctx) error {
	now := time.Now().UTC().Truncate(time.Minute)
	start, end := now, now.AddDate(0, 0, 7)

	var err error
	if v := c.Query("start"); v != "" {
		if start, err = parseTime(v); err != nil {
			return badRequest(c, fmt.Sprintf("start: %v", err))
		}
	}
	if v := c.Query("end"); v != "" {
		if end, err = parseTime(v); err != nil {
			return badRequest(c, fmt.Sprintf("end: %v", err))
		}
	}

	window, err := calendar.NewTimeWindow(start, end)
	if err != nil {
		return badRequest(c, err.Error())
	}

	events := s.assistant.Agenda(c.UserContext(), userID(c), window)

	var buf bytes.Buffer
	if err := agenda.WriteICS(&buf, events); err != nil {
		s.logger.Error("agenda render failed", "user", userID(c), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "agenda_failed",
			"message": "could not render agenda",
		})
	}

	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	return c.Send(buf.Bytes())
}

// writeError maps assistant and provider errors to HTTP responses.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	var (
		conflictErr   *assistant.ConflictError
		ambiguousErr  *assistant.AmbiguousError
		notFoundErr   *assistant.NotFoundError
		validationErr *assistant.ValidationError
	)

	switch {
	case errors.As(err, &conflictErr):
		report := conflictErr.Report
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":             "scheduling_conflict",
			"message":           conflictErr.Error(),
			"conflicts":         report.Conflicts,
			"conflict_count":    len(report.Conflicts),
			"google_conflicts":  report.CountByProvider(calendar.ProviderGoogle),
			"outlook_conflicts": report.CountByProvider(calendar.ProviderOutlook),
		})
	case errors.As(err, &ambiguousErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":      "ambiguous_event",
			"message":    ambiguousErr.Error(),
			"candidates": ambiguousErr.Candidates,
		})
	case errors.As(err, &notFoundErr):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "event_not_found",
			"message": notFoundErr.Error(),
		})
	case errors.As(err, &validationErr):
		return badRequest(c, validationErr.Error())
	}

	if provider.KindOf(err) == provider.ErrAuthExpired {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "calendar_not_connected",
			"message": "calendar connection expired; please reconnect",
		})
	}

	s.logger.Error("calendar operation failed", "user", userID(c), "err", err)
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error":   "provider_error",
		"message": "the calendar provider rejected the operation",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "invalid_request",
		"message": msg,
	})
}

func parseWindow(start, end string) (calendar.TimeWindow, error) {
	if start == "" || end == "" {
		return calendar.TimeWindow{}, errors.New("start and end are required")
	}
	s, err := parseTime(start)
	if err != nil {
		return calendar.TimeWindow{}, fmt.Errorf("start: %w", err)
	}
	e, err := parseTime(end)
	if err != nil {
		return calendar.TimeWindow{}, fmt.Errorf("end: %w", err)
	}
	return calendar.NewTimeWindow(s, e)
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(naiveTimeLayout, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

// parseApproxTime keeps track of whether the timestamp carried an offset.
// Naive locator inputs are resolved against the user's timezone later, not
// pinned to UTC here.
func parseApproxTime(value string) (assistant.ApproxTime, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return assistant.ApproxTime{Time: t.UTC()}, nil
	}
	if t, err := time.Parse(naiveTimeLayout, value); err == nil {
		return assistant.ApproxTime{Time: t, Naive: true}, nil
	}
	return assistant.ApproxTime{}, fmt.Errorf("invalid timestamp %q", value)
}
