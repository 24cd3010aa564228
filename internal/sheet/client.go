// Package sheet talks to the spreadsheet-backed club endpoints: the event
// endpoint holding the schedule and the member endpoint holding booking
// counters.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
)

// ErrUserNotFound is returned when the member endpoint has no such user.
var ErrUserNotFound = errors.New("user not found")

// StatusError is returned when an endpoint answers with anything but 200.
type StatusError struct {
	Code int
	Text string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, e.Text)
}

// maxBody caps how much of a response body is read.
const maxBody = 8 << 20

// Client calls the event and member endpoints.
type Client struct {
	eventURL string
	userURL  string
	http     *http.Client
}

// NewClient constructs a Client. timeout bounds every call.
func NewClient(eventURL, userURL string, timeout time.Duration) *Client {
	return &Client{
		eventURL: eventURL,
		userURL:  userURL,
		http:     &http.Client{Timeout: timeout},
	}
}

// PostEvent sends a participation or edit request to the event endpoint.
// A non-200 answer yields a *StatusError.
func (c *Client) PostEvent(ctx context.Context, req model.EventRequest) error {
	if err := c.post(ctx, c.eventURL, req); err != nil {
		return fmt.Errorf("post event %s %s: %w", req.Action, req.EventID, err)
	}
	return nil
}

// PostUser persists a member's booking counter.
func (c *Client) PostUser(ctx context.Context, rec model.UserRecord) error {
	if err := c.post(ctx, c.userURL, rec); err != nil {
		return fmt.Errorf("post user: %w", err)
	}
	return nil
}

// FetchEvents loads the full schedule. The endpoint may answer with a bare
// array or with {"events": [...]}.
func (c *Client) FetchEvents(ctx context.Context) ([]model.Event, error) {
	body, err := c.get(ctx, c.eventURL)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	var events []model.Event
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Events []model.Event `json:"events"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		events = wrapped.Events
	} else if err := json.Unmarshal(trimmed, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// FetchUser loads a single member record by email.
func (c *Client) FetchUser(ctx context.Context, email string) (model.User, error) {
	u, err := url.Parse(c.userURL)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user endpoint: %w", err)
	}
	q := u.Query()
	q.Set("email", email)
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("fetch user: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(body, &user); err != nil {
		return model.User{}, fmt.Errorf("decode user: %w", err)
	}
	if user.Email == "" {
		return model.User{}, ErrUserNotFound
	}
	return user, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	// Script-hosted endpoints only accept text/plain bodies.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	slog.Debug("sheet_post", "endpoint", redactURL(endpoint), "status", resp.StatusCode, "duration", time.Since(start))
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	slog.Debug("sheet_get", "endpoint", redactURL(endpoint), "status", resp.StatusCode, "duration", time.Since(start))
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// statusError extracts the reason phrase from resp.Status ("404 Not Found").
func statusError(resp *http.Response) *StatusError {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return &StatusError{Code: resp.StatusCode, Text: text}
}

// redactURL keeps only scheme and host for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
