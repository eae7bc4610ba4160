package calendar

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	gcal "google.golang.org/api/calendar/v3"
)

func TestNormalizeGoogle_Timed(t *testing.T) {
	raw := RawEvent{
		Provider: ProviderGoogle,
		Google: &gcal.Event{
			Id:      "g1",
			Summary: "Standup",
			Start:   &gcal.EventDateTime{DateTime: "2025-01-15T09:00:00-05:00"},
			End:     &gcal.EventDateTime{DateTime: "2025-01-15T09:30:00-05:00"},
		},
	}

	got, ok := Normalize(raw)
	if !ok {
		t.Fatalf("Normalize returned ok=false")
	}

	want := Event{
		ID:       "g1",
		Provider: ProviderGoogle,
		Summary:  "Standup",
		Start:    time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeGoogle_AllDay(t *testing.T) {
	raw := RawEvent{
		Provider: ProviderGoogle,
		Google: &gcal.Event{
			Id:      "g2",
			Summary: "Offsite",
			Start:   &gcal.EventDateTime{Date: "2025-01-15"},
			End:     &gcal.EventDateTime{Date: "2025-01-16"},
		},
	}

	got, ok := Normalize(raw)
	if !ok {
		t.Fatalf("Normalize returned ok=false")
	}
	if !got.IsAllDay {
		t.Errorf("expected IsAllDay=true")
	}
	if !got.Start.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v, want UTC midnight of 2025-01-15", got.Start)
	}
	if got.End.Sub(got.Start) != 24*time.Hour {
		t.Errorf("all-day interval = %v, want 24h", got.End.Sub(got.Start))
	}
}

func TestNormalizeGoogle_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		ev   *gcal.Event
	}{
		{"missing start", &gcal.Event{Id: "x", End: &gcal.EventDateTime{DateTime: "2025-01-15T10:00:00Z"}}},
		{"garbage start", &gcal.Event{
			Id:    "x",
			Start: &gcal.EventDateTime{DateTime: "not-a-time"},
			End:   &gcal.EventDateTime{DateTime: "2025-01-15T10:00:00Z"},
		}},
		{"inverted interval", &gcal.Event{
			Id:    "x",
			Start: &gcal.EventDateTime{DateTime: "2025-01-15T11:00:00Z"},
			End:   &gcal.EventDateTime{DateTime: "2025-01-15T10:00:00Z"},
		}},
		{"zero duration", &gcal.Event{
			Id:    "x",
			Start: &gcal.EventDateTime{DateTime: "2025-01-15T10:00:00Z"},
			End:   &gcal.EventDateTime{DateTime: "2025-01-15T10:00:00Z"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Normalize(RawEvent{Provider: ProviderGoogle, Google: tt.ev}); ok {
				t.Errorf("expected event to be dropped")
			}
		})
	}
}

func TestNormalizeOutlook_NaiveTimestampsAssumedUTC(t *testing.T) {
	ev := &OutlookEvent{ID: "o1", Subject: "1:1"}
	ev.Start.DateTime = "2025-01-15T16:00:00.0000000"
	ev.Start.TimeZone = "UTC"
	ev.End.DateTime = "2025-01-15T17:00:00.0000000"
	ev.End.TimeZone = "UTC"
	ev.Location.DisplayName = "Room 4"

	got, ok := Normalize(RawEvent{Provider: ProviderOutlook, Outlook: ev})
	if !ok {
		t.Fatalf("Normalize returned ok=false")
	}

	want := Event{
		ID:       "o1",
		Provider: ProviderOutlook,
		Summary:  "1:1",
		Location: "Room 4",
		Start:    time.Date(2025, 1, 15, 16, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 1, 15, 17, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeOutlook_AllDay(t *testing.T) {
	ev := &OutlookEvent{ID: "o2", Subject: "Holiday", IsAllDay: true}
	ev.Start.DateTime = "2025-01-15T00:00:00.0000000"
	ev.End.DateTime = "2025-01-16T00:00:00.0000000"

	got, ok := Normalize(RawEvent{Provider: ProviderOutlook, Outlook: ev})
	if !ok {
		t.Fatalf("Normalize returned ok=false")
	}
	if !got.IsAllDay {
		t.Errorf("expected IsAllDay=true")
	}
	if !got.Start.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) || got.End.Sub(got.Start) != 24*time.Hour {
		t.Errorf("all-day interval = [%v, %v), want full UTC day of 2025-01-15", got.Start, got.End)
	}
}

func TestNormalizeOutlook_DateOnlyString(t *testing.T) {
	// A 10-character date-only start marks the event all-day even without the flag.
	ev := &OutlookEvent{ID: "o3", Subject: "Travel"}
	ev.Start.DateTime = "2025-01-15"
	ev.End.DateTime = "2025-01-16"

	got, ok := Normalize(RawEvent{Provider: ProviderOutlook, Outlook: ev})
	if !ok {
		t.Fatalf("Normalize returned ok=false")
	}
	if !got.IsAllDay {
		t.Errorf("expected date-only start to mark the event all-day")
	}
}

func TestNormalizeOutlook_Unparseable(t *testing.T) {
	ev := &OutlookEvent{ID: "o4"}
	ev.Start.DateTime = "yesterday-ish"
	ev.End.DateTime = "2025-01-15T17:00:00"

	if _, ok := Normalize(RawEvent{Provider: ProviderOutlook, Outlook: ev}); ok {
		t.Errorf("expected event to be dropped")
	}
}

func TestNormalize_UnknownProvider(t *testing.T) {
	if _, ok := Normalize(RawEvent{Provider: Provider("caldav")}); ok {
		t.Errorf("expected unknown provider to be dropped")
	}
}
