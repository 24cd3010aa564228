package service

import (
	"strings"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
	ical "github.com/arran4/golang-ical"
)

func TestEntry(t *testing.T) {
	tests := []struct {
		name      string
		event     model.Event
		wantTitle string
		wantColor string
	}{
		{
			name:      "open",
			event:     model.Event{ID: "e2", Title: "Yoga", NumberOfParticipants: 2, MaxParticipants: 5},
			wantTitle: "Yoga \n (Spots Available: 3/5)",
		},
		{
			name:      "full",
			event:     model.Event{ID: "e1", Title: "Bouldering", NumberOfParticipants: 2, MaxParticipants: 2},
			wantTitle: "Bouldering \n (Spots Available: 0/2)",
			wantColor: "grey",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Entry(tt.event)
			if got.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.BackgroundColor != tt.wantColor {
				t.Errorf("colour = %q, want %q", got.BackgroundColor, tt.wantColor)
			}
		})
	}
}

func TestEntry_CarriesRosterAndTimes(t *testing.T) {
	e := model.Event{
		ID: "e2", Title: "Yoga", Start: start, End: start.Add(time.Hour),
		Participants: model.ParseRoster("Alice, Bob"), NumberOfParticipants: 2, MaxParticipants: 5,
	}
	got := Entry(e)
	if got.ExtendedProps.Participants != "Alice, Bob" {
		t.Errorf("participants = %q", got.ExtendedProps.Participants)
	}
	if got.Start != "2025-03-17T18:00:00" || got.End != "2025-03-17T19:00:00" {
		t.Errorf("times = %q - %q", got.Start, got.End)
	}
}

func TestInRange(t *testing.T) {
	events := []model.Event{
		{ID: "a", Start: start},
		{ID: "b", Start: start.Add(24 * time.Hour)},
		{ID: "c", Start: start.Add(48 * time.Hour)},
	}
	got := InRange(events, start.Add(time.Hour), start.Add(48*time.Hour))
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected range %+v", got)
	}
	if len(InRange(events, time.Time{}, time.Time{})) != 3 {
		t.Fatal("open range must keep every event")
	}
}

func TestExportICS(t *testing.T) {
	events := []model.Event{
		{ID: "e2", Title: "Yoga", Start: start, End: start.Add(90 * time.Minute),
			Participants: model.ParseRoster("Alice, Bob"), NumberOfParticipants: 2, MaxParticipants: 5},
		{ID: "open-end", Title: "Run", Start: start.Add(24 * time.Hour)},
		{ID: "undated", Title: "TBD"},
	}
	out := ExportICS(events, start)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	got := cal.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 VEVENTs, got %d", len(got))
	}
	if got[0].Id() != "e2@club-schedule" {
		t.Errorf("uid = %q", got[0].Id())
	}
	if p := got[0].GetProperty(ical.ComponentPropertySummary); p == nil || p.Value != "Yoga" {
		t.Errorf("summary = %+v", p)
	}
	if !strings.Contains(out, "Spots available: 3/5") {
		t.Error("description missing spot count")
	}

	end, err := got[1].GetEndAt()
	if err != nil {
		t.Fatalf("GetEndAt: %v", err)
	}
	if !end.Equal(start.Add(25 * time.Hour)) {
		t.Errorf("open-ended event ends at %v", end)
	}
}
