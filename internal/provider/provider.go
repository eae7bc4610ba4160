// Package provider implements the per-provider calendar adapters: Google
// Calendar through the official API client and Outlook through Microsoft
// Graph. Transport failures are reported as typed errors so the conflict
// checker can degrade reads while mutation paths propagate.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mira/internal/calendar"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	ErrTimeout     ErrorKind = "timeout"
	ErrAuthExpired ErrorKind = "auth_expired"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrNotFound    ErrorKind = "not_found"
	ErrOther       ErrorKind = "other"
)

// Error is a classified provider failure.
type Error struct {
	Provider calendar.Provider
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind from err, or ErrOther when err is not a
// provider error.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrOther
}

// EventSource fetches a user's raw events in a time window from one
// external calendar. Implementations classify failures but never retry;
// the caller decides whether to degrade or propagate.
type EventSource interface {
	Provider() calendar.Provider
	FetchEvents(ctx context.Context, userID string, window calendar.TimeWindow) ([]calendar.RawEvent, error)
}

// EventDraft carries the fields of a new event for the provider write path.
type EventDraft struct {
	Summary     string
	Description string
	Location    string
	Attendees   []string
	Start       time.Time
	End         time.Time
}
