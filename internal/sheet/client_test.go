package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
)

func TestPostEvent_SendsBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &got); err != nil {
			t.Errorf("body is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	err := c.PostEvent(context.Background(), model.EventRequest{
		EventID:         "e2",
		ParticipantName: "Carol",
		EventDate:       "2025-03-15",
		Action:          model.ActionAdd,
	})
	if err != nil {
		t.Fatalf("PostEvent: %v", err)
	}
	if got["eventId"] != "e2" || got["participantName"] != "Carol" || got["action"] != "add" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestPostEvent_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	err := c.PostEvent(context.Background(), model.EventRequest{EventID: "e1", Action: model.ActionAdd})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusTooManyRequests || se.Text != "Too Many Requests" {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestPostEvent_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, url, time.Second)
	err := c.PostEvent(context.Background(), model.EventRequest{EventID: "e1", Action: model.ActionRemove})
	if err == nil {
		t.Fatal("expected transport error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Fatal("transport failure must not look like a status error")
	}
}

func TestPostUser_BookingAsString(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	rec := model.RecordOf(model.User{Email: "c@example.com", Phone: "021", Booking: 2})
	if err := c.PostUser(context.Background(), rec); err != nil {
		t.Fatalf("PostUser: %v", err)
	}
	if got["booking"] != "2" || got["email"] != "c@example.com" {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestFetchEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"array", `[{"id":"e1","title":"Open Mat","start":"2025-03-15T18:00:00","maxParticipants":10}]`, 1},
		{"wrapped", `{"events":[{"id":"e1"},{"id":"e2"}]}`, 2},
		{"empty", `[]`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, srv.URL, time.Second)
			events, err := c.FetchEvents(context.Background())
			if err != nil {
				t.Fatalf("FetchEvents: %v", err)
			}
			if events == nil || len(events) != tc.want {
				t.Fatalf("expected %d events, got %v", tc.want, events)
			}
		})
	}
}

func TestFetchUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("email") {
		case "carol@example.com":
			_, _ = io.WriteString(w, `{"email":"carol@example.com","phone":"021","name":"Carol","booking":3}`)
		case "ghost@example.com":
			_, _ = io.WriteString(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, time.Second)
	u, err := c.FetchUser(context.Background(), "carol@example.com")
	if err != nil {
		t.Fatalf("FetchUser: %v", err)
	}
	if u.Name != "Carol" || u.Booking != 3 {
		t.Fatalf("unexpected user %+v", u)
	}

	for _, email := range []string{"ghost@example.com", "nobody@example.com"} {
		if _, err := c.FetchUser(context.Background(), email); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("%s: expected ErrUserNotFound, got %v", email, err)
		}
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://script.example.com/macros/s/SECRET/exec?key=1")
	if got != "https://script.example.com/...(redacted)" {
		t.Fatalf("unexpected redaction %q", got)
	}
}
