package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseRoster(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"single", "Alice", []string{"Alice"}},
		{"several", "Alice, Bob, Carol", []string{"Alice", "Bob", "Carol"}},
		{"stray separator", ", Alice", []string{"Alice"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := ParseRoster(tc.in)
			if len(r) != len(tc.want) {
				t.Fatalf("expected %d participants, got %d (%v)", len(tc.want), len(r), r)
			}
			for i, name := range tc.want {
				if r[i].Name != name {
					t.Fatalf("participant %d: expected %q, got %q", i, name, r[i].Name)
				}
			}
		})
	}
}

func TestRoster_WithAndString(t *testing.T) {
	r := ParseRoster("Alice, Bob")
	got := r.With(Participant{ID: "carol@example.com", Name: "Carol"})
	if got.String() != "Alice, Bob, Carol" {
		t.Fatalf("unexpected roster %q", got.String())
	}
	if r.String() != "Alice, Bob" {
		t.Fatalf("With must not modify the receiver, got %q", r.String())
	}

	empty := Roster{}.With(Participant{Name: "Carol"})
	if empty.String() != "Carol" {
		t.Fatalf("expected no leading separator, got %q", empty.String())
	}
}

func TestRoster_Without(t *testing.T) {
	r := Roster{
		{Name: "Alice"},
		{ID: "bob1@example.com", Name: "Bob"},
		{ID: "bob2@example.com", Name: "Bob"},
		{Name: "Bobby"},
	}

	byID := r.Without(Participant{ID: "bob2@example.com", Name: "Bob"})
	if byID.String() != "Alice, Bob, Bobby" {
		t.Fatalf("expected only the matching id removed, got %q", byID.String())
	}

	byName := r.Without(Participant{Name: "Alice"})
	if byName.Contains(Participant{Name: "Alice"}) {
		t.Fatal("Alice should be gone")
	}
	if !byName.Contains(Participant{Name: "Bobby"}) {
		t.Fatal("Bobby is not an exact match for anyone removed")
	}

	loaded := ParseRoster("Alice, Carol")
	out := loaded.Without(Participant{ID: "carol@example.com", Name: "Carol"})
	if out.String() != "Alice" {
		t.Fatalf("name fallback failed, got %q", out.String())
	}
}

func TestEvent_Capacity(t *testing.T) {
	e := Event{NumberOfParticipants: 2, MaxParticipants: 5}
	if e.IsFull() {
		t.Fatal("2/5 should not be full")
	}
	if e.SpotsAvailable() != 3 {
		t.Fatalf("expected 3 spots, got %d", e.SpotsAvailable())
	}
	e.NumberOfParticipants = 5
	if !e.IsFull() {
		t.Fatal("5/5 should be full")
	}
	e.NumberOfParticipants = 6
	if !e.IsFull() {
		t.Fatal("6/5 should be full")
	}
}

func TestEvent_WithParticipant(t *testing.T) {
	e := Event{ID: "e2", Participants: ParseRoster("Alice, Bob"), NumberOfParticipants: 2, MaxParticipants: 5}
	joined := e.WithParticipant(Participant{Name: "Carol"})
	if joined.Participants.String() != "Alice, Bob, Carol" || joined.NumberOfParticipants != 3 {
		t.Fatalf("unexpected event after join: %q/%d", joined.Participants.String(), joined.NumberOfParticipants)
	}
	if e.NumberOfParticipants != 2 || e.Participants.String() != "Alice, Bob" {
		t.Fatal("original event must stay unchanged")
	}

	left := joined.WithoutParticipant(Participant{Name: "Bob"})
	if left.Participants.String() != "Alice, Carol" || left.NumberOfParticipants != 2 {
		t.Fatalf("unexpected event after leave: %q/%d", left.Participants.String(), left.NumberOfParticipants)
	}

	zero := Event{}.WithoutParticipant(Participant{Name: "Nobody"})
	if zero.NumberOfParticipants != 0 {
		t.Fatalf("count must not go negative, got %d", zero.NumberOfParticipants)
	}
}

func TestEvent_JSON(t *testing.T) {
	raw := `{"id":7,"title":"Open Mat","start":"2025-03-15T18:00:00","end":"2025-03-15T19:30:00",
		"participants":"Alice, Bob","number_of_participants":"2","maxParticipants":12}`

	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.ID != "7" || e.Title != "Open Mat" {
		t.Fatalf("unexpected identity %q/%q", e.ID, e.Title)
	}
	if e.NumberOfParticipants != 2 || e.MaxParticipants != 12 {
		t.Fatalf("unexpected counts %d/%d", e.NumberOfParticipants, e.MaxParticipants)
	}
	if e.Date() != "2025-03-15" {
		t.Fatalf("unexpected date %q", e.Date())
	}
	if e.Start.Hour() != 18 || e.End.Minute() != 30 {
		t.Fatalf("unexpected times %v - %v", e.Start, e.End)
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{
		`"id":"7"`,
		`"start":"2025-03-15T18:00:00"`,
		`"participants":"Alice, Bob"`,
		`"number_of_participants":2`,
		`"maxParticipants":12`,
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("marshalled event missing %s: %s", want, out)
		}
	}
}

func TestEvent_JSONBadStart(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"id":"x","start":"next tuesday"}`), &e)
	if err == nil {
		t.Fatal("expected error for unparseable start")
	}
}

func TestParseTime_RFC3339(t *testing.T) {
	got, err := ParseTime("2025-03-15T18:00:00Z", time.Local)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !got.Equal(time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestUser_JSON(t *testing.T) {
	var u User
	if err := json.Unmarshal([]byte(`{"email":"c@example.com","phone":21555123,"name":"Carol","booking":"3"}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.Phone != "21555123" || u.Booking != 3 {
		t.Fatalf("unexpected user %+v", u)
	}

	rec := RecordOf(u.WithBooking(BookingDelta(ActionAdd)))
	if rec.Booking != "2" {
		t.Fatalf("expected booking \"2\", got %q", rec.Booking)
	}
	if BookingDelta(ActionRemove) != 1 || BookingDelta(ActionEdit) != 0 {
		t.Fatal("unexpected booking deltas")
	}
}

func TestEventRequest_JSON(t *testing.T) {
	req := EventRequest{EventID: "e2", ParticipantName: "Carol", EventDate: "2025-03-15", Action: ActionAdd}
	var body map[string]any
	mustRoundTrip(t, req, &body)
	if body["eventId"] != "e2" || body["participantName"] != "Carol" || body["eventDate"] != "2025-03-15" || body["action"] != "add" {
		t.Fatalf("unexpected body %v", body)
	}

	edit := EventRequest{
		EventID:         "e2",
		ParticipantName: "Carol",
		EventDate:       "2025-03-15",
		Action:          ActionEdit,
		Patch:           EventPatch{"title": json.RawMessage(`"Renamed"`), "location": json.RawMessage(`"Hall B"`)},
	}
	body = nil
	mustRoundTrip(t, edit, &body)
	want := map[string]any{
		"eventId":         "e2",
		"participantName": "Carol",
		"eventDate":       "2025-03-15",
		"title":           "Renamed",
		"location":        "Hall B",
		"action":          "edit",
	}
	if len(body) != len(want) {
		t.Fatalf("edit body carries unsupplied keys: %v", body)
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v, want %v", k, body[k], v)
		}
	}

	anon := EventRequest{EventID: "e2", EventDate: "2025-03-15", Action: ActionAdd}
	body = nil
	mustRoundTrip(t, anon, &body)
	if _, ok := body["participantName"]; ok {
		t.Fatal("empty participantName should be omitted")
	}
}

func TestEventPatch_Apply(t *testing.T) {
	start := time.Date(2025, 3, 18, 18, 0, 0, 0, time.Local)
	e := Event{
		ID: "e2", Title: "Yoga", Start: start, End: start.Add(time.Hour),
		Participants:         Roster{{ID: "carol@example.com", Name: "Carol"}},
		NumberOfParticipants: 1, MaxParticipants: 5,
	}

	got, err := EventPatch{"title": json.RawMessage(`"Evening Yoga"`), "location": json.RawMessage(`"Hall B"`)}.Apply(e)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Title != "Evening Yoga" || got.ID != "e2" || got.MaxParticipants != 5 || got.NumberOfParticipants != 1 {
		t.Fatalf("unexpected event %+v", got)
	}
	if !got.Start.Equal(start) || len(got.Participants) != 1 || got.Participants[0].ID != "carol@example.com" {
		t.Fatalf("untouched fields changed: %+v", got)
	}

	got, _ = EventPatch{"maxParticipants": json.RawMessage(`"8"`)}.Apply(e)
	if got.MaxParticipants != 8 {
		t.Fatalf("maxParticipants = %d", got.MaxParticipants)
	}

	if _, err := (EventPatch{"start": json.RawMessage(`"next tuesday"`)}).Apply(e); err == nil {
		t.Fatal("expected an error for an unparseable start")
	}
}

func TestRoster_NormalizesOnAppend(t *testing.T) {
	carol := Participant{Name: "Carol"}
	if got := ParseRoster("Alice , Bob").With(carol).String(); got != "Alice, Bob, Carol" {
		t.Fatalf("got %q", got)
	}
	if got := ParseRoster("").With(carol).String(); got != "Carol" {
		t.Fatalf("empty roster: got %q", got)
	}
}

func TestEventRequest_Reverse(t *testing.T) {
	add := EventRequest{EventID: "e1", Action: ActionAdd}
	rev, ok := add.Reverse()
	if !ok || rev.Action != ActionRemove {
		t.Fatalf("expected remove, got %q (%v)", rev.Action, ok)
	}
	rev, ok = rev.Reverse()
	if !ok || rev.Action != ActionAdd {
		t.Fatalf("expected add, got %q (%v)", rev.Action, ok)
	}
	if _, ok := (EventRequest{Action: ActionEdit}).Reverse(); ok {
		t.Fatal("edit must not be reversible")
	}
}

func TestCompensation_Backoff(t *testing.T) {
	c := Compensation{MaxAttempts: 3}
	base, ceiling := time.Minute, time.Hour
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if !c.Due(now, base, ceiling) {
		t.Fatal("never-attempted compensation should be due")
	}
	c.MarkAttempt(now)
	if c.NextRetryDelay(base, ceiling) != 2*time.Minute {
		t.Fatalf("unexpected delay %v", c.NextRetryDelay(base, ceiling))
	}
	if c.Due(now.Add(time.Minute), base, ceiling) {
		t.Fatal("should not be due within backoff")
	}
	if !c.Due(now.Add(2*time.Minute), base, ceiling) {
		t.Fatal("should be due after backoff")
	}

	c.Attempts = 20
	if c.NextRetryDelay(base, ceiling) != ceiling {
		t.Fatal("delay should be capped")
	}
	if !c.Exhausted() {
		t.Fatal("expected exhausted after max attempts")
	}
}

func mustRoundTrip(t *testing.T, v any, dst any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}
