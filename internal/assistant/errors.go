package assistant

import (
	"fmt"

	"mira/internal/calendar"
	"mira/internal/conflict"
)

// ConflictError blocks a schedule or reschedule. It is a normal outcome,
// not a fault: the caller is expected to re-prompt the user with the list.
type ConflictError struct {
	Report *conflict.Report
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scheduling conflict with %d existing event(s)", len(e.Report.Conflicts))
}

// NotFoundError means the locator (or a direct ID) matched nothing.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// AmbiguousError means the locator matched more than one event. It is
// surfaced as a "please clarify" distinct from a scheduling conflict and is
// never silently resolved to the first match.
type AmbiguousError struct {
	Candidates []calendar.Event
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d events match; need a more specific time or title", len(e.Candidates))
}

// ValidationError covers malformed requests, such as a cancel with neither
// an event ID nor an approximate start.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
