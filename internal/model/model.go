// Package model defines the core domain types for the club schedule.
package model

import (
	"strings"
	"time"
)

// Actions understood by the remote event endpoint.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionEdit   = "edit"
)

// Participant is a single entry on an event roster. ID is the member's email
// when known; rosters loaded from the spreadsheet only carry names.
type Participant struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Same reports whether p and o denote the same member. IDs win when both
// sides have one, otherwise the display names must match exactly.
func (p Participant) Same(o Participant) bool {
	if p.ID != "" && o.ID != "" {
		return p.ID == o.ID
	}
	return p.Name == o.Name
}

// rosterSeparator joins participant names on the wire.
const rosterSeparator = ", "

// Roster is the ordered list of participants of an event.
type Roster []Participant

// ParseRoster splits a wire participant list into a Roster.
func ParseRoster(s string) Roster {
	if strings.TrimSpace(s) == "" {
		return Roster{}
	}
	parts := strings.Split(s, rosterSeparator)
	r := make(Roster, 0, len(parts))
	for _, name := range parts {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r = append(r, Participant{Name: name})
	}
	return r
}

// String renders the roster in its wire form.
func (r Roster) String() string {
	names := make([]string, len(r))
	for i, p := range r {
		names[i] = p.Name
	}
	return strings.Join(names, rosterSeparator)
}

// With returns a copy of r with p appended.
func (r Roster) With(p Participant) Roster {
	out := make(Roster, 0, len(r)+1)
	out = append(out, r...)
	return append(out, p)
}

// Without returns a copy of r with every entry denoting p removed.
func (r Roster) Without(p Participant) Roster {
	out := make(Roster, 0, len(r))
	for _, q := range r {
		if q.Same(p) {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Contains reports whether p is on the roster.
func (r Roster) Contains(p Participant) bool {
	for _, q := range r {
		if q.Same(p) {
			return true
		}
	}
	return false
}

// Event is a scheduled club session with a capacity and a roster.
// INVARIANT: NumberOfParticipants moves in lockstep with roster edits made
// through WithParticipant / WithoutParticipant.
type Event struct {
	ID                   string
	Title                string
	Start                time.Time
	End                  time.Time
	Participants         Roster
	NumberOfParticipants int
	MaxParticipants      int
}

// SpotsAvailable returns the number of free places.
func (e *Event) SpotsAvailable() int {
	return e.MaxParticipants - e.NumberOfParticipants
}

// IsFull returns true when no places remain.
func (e *Event) IsFull() bool {
	return e.NumberOfParticipants >= e.MaxParticipants
}

// Date returns the date portion of the event start (YYYY-MM-DD).
func (e *Event) Date() string {
	if e.Start.IsZero() {
		return ""
	}
	return e.Start.Format(DateLayout)
}

// WithParticipant returns a copy of e with p appended and the count raised.
func (e Event) WithParticipant(p Participant) Event {
	e.Participants = e.Participants.With(p)
	e.NumberOfParticipants++
	return e
}

// WithoutParticipant returns a copy of e with p removed and the count
// lowered. The count never drops below zero.
func (e Event) WithoutParticipant(p Participant) Event {
	e.Participants = e.Participants.Without(p)
	if e.NumberOfParticipants > 0 {
		e.NumberOfParticipants--
	}
	return e
}

// User is a club member. Booking is the member's remaining allowance: it
// goes down when joining an event and back up when leaving one.
type User struct {
	Email   string
	Phone   string
	Name    string
	Booking int
}

// Participant returns the roster entry for u.
func (u User) Participant() Participant {
	return Participant{ID: u.Email, Name: u.Name}
}

// WithBooking returns a copy of u with delta applied to the booking counter.
func (u User) WithBooking(delta int) User {
	u.Booking += delta
	return u
}

// BookingDelta maps a participation action to its booking counter change.
func BookingDelta(action string) int {
	switch action {
	case ActionAdd:
		return -1
	case ActionRemove:
		return 1
	default:
		return 0
	}
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
