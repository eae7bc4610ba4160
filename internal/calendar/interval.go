package calendar

import "time"

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching intervals (aEnd == bStart) do not
// conflict; exact matches, partial overlaps, and containment all do.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ConflictsWith reports whether the event occupies any part of the window.
// All-day events are tested against their full UTC day rather than whatever
// the provider stored in the time fields.
func (e *Event) ConflictsWith(w TimeWindow) bool {
	start, end := e.Start, e.End
	if e.IsAllDay {
		day := e.Start.UTC()
		start = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
	}
	return Overlaps(w.Start, w.End, start, end)
}
