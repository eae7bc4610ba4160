// Package agenda renders a user's merged two-provider event list as an
// iCalendar document, for subscription from external calendar apps.
package agenda

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"mira/internal/calendar"
)

// WriteICS encodes the events as a single VCALENDAR. Events must already be
// normalized; all timestamps are emitted in UTC.
func WriteICS(w io.Writer, events []calendar.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//Mira//Calendar Agenda//EN")

	now := time.Now().UTC()
	for _, event := range events {
		vevent := ical.NewComponent(ical.CompEvent)

		vevent.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s", event.ID, event.Provider))
		if event.Summary != "" {
			vevent.Props.SetText(ical.PropSummary, event.Summary)
		}
		if event.Description != "" {
			vevent.Props.SetText(ical.PropDescription, event.Description)
		}
		if event.Location != "" {
			vevent.Props.SetText(ical.PropLocation, event.Location)
		}
		vevent.Props.SetText("X-MIRA-PROVIDER", string(event.Provider))

		if event.IsAllDay {
			dtstart := ical.NewProp("DTSTART")
			dtstart.SetDate(event.Start)
			vevent.Props.Set(dtstart)

			dtend := ical.NewProp("DTEND")
			dtend.SetDate(event.End)
			vevent.Props.Set(dtend)
		} else {
			vevent.Props.SetDateTime("DTSTART", event.Start)
			vevent.Props.SetDateTime("DTEND", event.End)
		}

		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now)
		cal.Children = append(cal.Children, vevent)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode agenda: %w", err)
	}
	return nil
}
