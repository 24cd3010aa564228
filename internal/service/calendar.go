package service

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
	ical "github.com/arran4/golang-ical"
)

// Calendar headings.
const (
	HeadingReady   = "Club Schedule"
	HeadingLoading = "Loading Events..."
)

const (
	fullColor   = "grey"
	icsProdID   = "-//club-schedule//EN"
	icsUIDHost  = "club-schedule"
	defaultSpan = time.Hour
)

// CalendarOptions returns the calendar widget configuration.
func CalendarOptions() model.CalendarOptions {
	return model.CalendarOptions{
		InitialView: "timeGridWeek",
		SlotMinTime: "09:00:00",
		SlotMaxTime: "24:00:00",
		HeaderToolbar: model.Toolbar{
			Left:   "prev,next today",
			Center: "title",
			Right:  "dayGridMonth,timeGridWeek,timeGridDay",
		},
		Editable:   true,
		Selectable: true,
	}
}

// Entry renders e as a calendar entry. Full events are greyed out.
func Entry(e model.Event) model.CalendarEntry {
	entry := model.CalendarEntry{
		ID:    e.ID,
		Title: fmt.Sprintf("%s \n (Spots Available: %d/%d)", e.Title, e.SpotsAvailable(), e.MaxParticipants),
		Start: formatEntryTime(e.Start),
		End:   formatEntryTime(e.End),
		ExtendedProps: model.EntryProps{
			Participants: e.Participants.String(),
		},
	}
	if e.IsFull() {
		entry.BackgroundColor = fullColor
	}
	return entry
}

func formatEntryTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.DateTimeLayout)
}

// InRange returns the events starting in [from, to). A zero bound is open.
func InRange(events []model.Event, from, to time.Time) []model.Event {
	if from.IsZero() && to.IsZero() {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if !from.IsZero() && e.Start.Before(from) {
			continue
		}
		if !to.IsZero() && !e.Start.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ExportICS renders events as an iCalendar feed. Events without a start are
// skipped; events without an end last one hour.
func ExportICS(events []model.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProdID)

	for _, e := range events {
		if e.Start.IsZero() {
			continue
		}
		end := e.End
		if end.IsZero() || end.Before(e.Start) {
			end = e.Start.Add(defaultSpan)
		}

		ve := cal.AddEvent(e.ID + "@" + icsUIDHost)
		ve.SetDtStampTime(now)
		ve.SetSummary(e.Title)
		ve.SetStartAt(e.Start)
		ve.SetEndAt(end)
		ve.SetDescription(fmt.Sprintf("Spots available: %d/%d\nParticipants: %s",
			e.SpotsAvailable(), e.MaxParticipants, e.Participants.String()))
	}
	return cal.Serialize()
}
