// Package service implements the club schedule: calendar rendering, the
// per-user selection state, and the join / leave / edit protocols that keep
// the remote spreadsheet and the local stores in step.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
	"github.com/Shivanand-hulikatti/club-schedule/internal/repository"
	"github.com/Shivanand-hulikatti/club-schedule/internal/sheet"
)

// ErrUnknownUser is returned when neither the User Store nor the member
// endpoint knows the requesting user.
var ErrUnknownUser = errors.New("unknown user")

// EventStore is the shared store of scheduled events.
type EventStore interface {
	List(ctx context.Context) ([]model.Event, error)
	Get(ctx context.Context, id string) (model.Event, error)
	AddParticipant(ctx context.Context, eventID string, p model.Participant) error
	RemoveParticipant(ctx context.Context, e model.Event) error
}

// UserStore is the shared store of member records.
type UserStore interface {
	Get(ctx context.Context, email string) (model.User, error)
	Set(ctx context.Context, u model.User) error
}

// CompensationStore journals compensations that could not be delivered.
type CompensationStore interface {
	Save(ctx context.Context, c model.Compensation) error
	ListPending(ctx context.Context, limit int) ([]model.Compensation, error)
	Delete(ctx context.Context, id string) error
}

// Remote is the pair of spreadsheet endpoints.
type Remote interface {
	PostEvent(ctx context.Context, req model.EventRequest) error
	PostUser(ctx context.Context, rec model.UserRecord) error
	FetchUser(ctx context.Context, email string) (model.User, error)
}

// FetchStatus reports whether the event list is being reloaded.
type FetchStatus interface {
	IsFetching() bool
}

// Deps holds the collaborators of a Schedule.
type Deps struct {
	Events        EventStore
	Users         UserStore
	Compensations CompensationStore // optional: nil only logs lost compensations
	Remote        Remote
	Status        FetchStatus             // optional
	CanEdit       func(email string) bool // optional: nil lets everyone edit
}

// Schedule is the club schedule shared by all users. Each signed-in user
// gets a View holding their selection.
type Schedule struct {
	deps Deps
	now  func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

// NewSchedule constructs a Schedule.
func NewSchedule(deps Deps) *Schedule {
	return &Schedule{
		deps:  deps,
		now:   time.Now,
		views: make(map[string]*View),
	}
}

// View returns the view of the user with the given email, creating it on
// first use. Unknown users are looked up on the member endpoint and cached
// in the User Store.
func (s *Schedule) View(ctx context.Context, email string) (*View, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrUnknownUser
	}

	s.mu.Lock()
	v, ok := s.views[email]
	s.mu.Unlock()
	if ok {
		return v, nil
	}

	user, err := s.loadUser(ctx, email)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.views[email]; ok {
		return v, nil
	}
	v = &View{s: s, user: user}
	s.views[email] = v
	return v, nil
}

func (s *Schedule) loadUser(ctx context.Context, email string) (model.User, error) {
	u, err := s.deps.Users.Get(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("load user: %w", err)
	}

	u, err = s.deps.Remote.FetchUser(ctx, email)
	if err != nil {
		if errors.Is(err, sheet.ErrUserNotFound) {
			return model.User{}, ErrUnknownUser
		}
		return model.User{}, fmt.Errorf("fetch user: %w", err)
	}
	u.Email = email
	if err := s.deps.Users.Set(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("store user: %w", err)
	}
	return u, nil
}

// IsFetching reports whether the event list is being reloaded.
func (s *Schedule) IsFetching() bool {
	return s.deps.Status != nil && s.deps.Status.IsFetching()
}

// Calendar builds the calendar page model. A zero from or to leaves that
// side of the range open.
func (s *Schedule) Calendar(ctx context.Context, from, to time.Time) (model.Calendar, error) {
	events, err := s.deps.Events.List(ctx)
	if err != nil {
		return model.Calendar{}, fmt.Errorf("list events: %w", err)
	}

	cal := model.Calendar{
		Heading: HeadingReady,
		Loading: s.IsFetching(),
		Options: CalendarOptions(),
		Events:  make([]model.CalendarEntry, 0, len(events)),
	}
	if cal.Loading {
		cal.Heading = HeadingLoading
	}
	for _, e := range InRange(events, from, to) {
		cal.Events = append(cal.Events, Entry(e))
	}
	return cal, nil
}

// Events returns the events in the given range.
func (s *Schedule) Events(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	events, err := s.deps.Events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return InRange(events, from, to), nil
}
