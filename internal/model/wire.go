package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Layouts used by the spreadsheet endpoint.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

var startLayouts = []string{
	time.RFC3339,
	DateTimeLayout,
	"2006-01-02T15:04",
	DateLayout,
}

// ParseTime parses a spreadsheet date-time. Values without an offset are
// read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date-time %q", s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateTimeLayout)
}

// flexInt decodes a JSON number or a numeric string.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*n = flexInt(f)
	return nil
}

// flexString decodes a JSON string or a bare number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

type wireEvent struct {
	ID                   flexString `json:"id"`
	Title                string     `json:"title"`
	Start                string     `json:"start"`
	End                  string     `json:"end"`
	Participants         string     `json:"participants"`
	NumberOfParticipants flexInt    `json:"number_of_participants"`
	MaxParticipants      flexInt    `json:"maxParticipants"`
}

// MarshalJSON renders the event in the spreadsheet wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID                   string `json:"id"`
		Title                string `json:"title"`
		Start                string `json:"start"`
		End                  string `json:"end"`
		Participants         string `json:"participants"`
		NumberOfParticipants int    `json:"number_of_participants"`
		MaxParticipants      int    `json:"maxParticipants"`
	}{
		ID:                   e.ID,
		Title:                e.Title,
		Start:                formatTime(e.Start),
		End:                  formatTime(e.End),
		Participants:         e.Participants.String(),
		NumberOfParticipants: e.NumberOfParticipants,
		MaxParticipants:      e.MaxParticipants,
	})
}

// UnmarshalJSON reads the spreadsheet wire shape.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	start, err := ParseTime(w.Start, time.Local)
	if err != nil {
		return fmt.Errorf("event %s start: %w", w.ID, err)
	}
	end, err := ParseTime(w.End, time.Local)
	if err != nil {
		return fmt.Errorf("event %s end: %w", w.ID, err)
	}
	*e = Event{
		ID:                   string(w.ID),
		Title:                w.Title,
		Start:                start,
		End:                  end,
		Participants:         ParseRoster(w.Participants),
		NumberOfParticipants: int(w.NumberOfParticipants),
		MaxParticipants:      int(w.MaxParticipants),
	}
	return nil
}

// MarshalJSON renders the user record.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Name    string `json:"name"`
		Booking int    `json:"booking"`
	}{u.Email, u.Phone, u.Name, u.Booking})
}

// UnmarshalJSON accepts numeric fields as numbers or strings.
func (u *User) UnmarshalJSON(b []byte) error {
	var w struct {
		Email   string     `json:"email"`
		Phone   flexString `json:"phone"`
		Name    string     `json:"name"`
		Booking flexInt    `json:"booking"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*u = User{
		Email:   w.Email,
		Phone:   string(w.Phone),
		Name:    w.Name,
		Booking: int(w.Booking),
	}
	return nil
}

// UserRecord is the body posted to the user endpoint to persist a booking
// counter. The endpoint expects the counter as a string.
type UserRecord struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Booking string `json:"booking"`
}

// RecordOf builds the user endpoint payload for u.
func RecordOf(u User) UserRecord {
	return UserRecord{
		Email:   u.Email,
		Phone:   u.Phone,
		Booking: strconv.Itoa(u.Booking),
	}
}

// EventPatch holds the fields a caller supplied when editing an event, as
// raw JSON keyed by wire name. Keys the caller left out are never sent.
type EventPatch map[string]json.RawMessage

// Apply returns e with the patch laid over its wire form. Keys the Event
// type does not model are ignored here but still reach the endpoint.
func (p EventPatch) Apply(e Event) (Event, error) {
	base, err := json.Marshal(e)
	if err != nil {
		return Event{}, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return Event{}, err
	}
	maps.Copy(fields, p)
	merged, err := json.Marshal(fields)
	if err != nil {
		return Event{}, err
	}

	var out Event
	if err := json.Unmarshal(merged, &out); err != nil {
		return Event{}, fmt.Errorf("apply event patch: %w", err)
	}
	// The wire form drops member IDs and time zones; keep what was not patched.
	if _, ok := p["participants"]; !ok {
		out.Participants = slices.Clone(e.Participants)
	}
	if _, ok := p["start"]; !ok {
		out.Start = e.Start
	}
	if _, ok := p["end"]; !ok {
		out.End = e.End
	}
	return out, nil
}

// EventRequest is the body posted to the event endpoint.
type EventRequest struct {
	EventID         string
	ParticipantName string
	EventDate       string
	Action          string

	// Patch carries the caller's fields for ActionEdit. They are merged
	// over the identity fields above.
	Patch EventPatch
}

// MarshalJSON flattens the request into a single JSON object.
func (r EventRequest) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"eventId":   r.EventID,
		"eventDate": r.EventDate,
	}
	if r.ParticipantName != "" {
		body["participantName"] = r.ParticipantName
	}
	for k, v := range r.Patch {
		body[k] = v
	}
	body["action"] = r.Action
	return json.Marshal(body)
}

// Reverse returns the request undoing r. Only add and remove can be reversed.
func (r EventRequest) Reverse() (EventRequest, bool) {
	switch r.Action {
	case ActionAdd:
		r.Action = ActionRemove
	case ActionRemove:
		r.Action = ActionAdd
	default:
		return r, false
	}
	r.Patch = nil
	return r, true
}
