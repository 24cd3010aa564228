package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
)

// MemoryEventStore keeps the event mirror in process memory.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string]model.Event
}

// NewMemoryEventStore constructs an empty MemoryEventStore.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string]model.Event)}
}

// List returns all events ordered by start time.
func (s *MemoryEventStore) List(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, cloneEvent(e))
	}
	slices.SortFunc(out, func(a, b model.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Get returns a single event or ErrNotFound.
func (s *MemoryEventStore) Get(_ context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return cloneEvent(e), nil
}

// AddParticipant appends p to the stored roster and raises the count.
func (s *MemoryEventStore) AddParticipant(_ context.Context, eventID string, p model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return ErrNotFound
	}
	s.events[eventID] = e.WithParticipant(p)
	return nil
}

// RemoveParticipant stores the roster and count of e.
func (s *MemoryEventStore) RemoveParticipant(_ context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.events[e.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Participants = slices.Clone(e.Participants)
	cur.NumberOfParticipants = e.NumberOfParticipants
	s.events[e.ID] = cur
	return nil
}

// ReplaceAll makes the store hold exactly events.
func (s *MemoryEventStore) ReplaceAll(_ context.Context, events []model.Event) error {
	next := make(map[string]model.Event, len(events))
	for _, e := range events {
		next[e.ID] = cloneEvent(e)
	}

	s.mu.Lock()
	s.events = next
	s.mu.Unlock()
	return nil
}

func cloneEvent(e model.Event) model.Event {
	e.Participants = slices.Clone(e.Participants)
	if e.Participants == nil {
		e.Participants = model.Roster{}
	}
	return e
}

// MemoryUserStore keeps member records in process memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewMemoryUserStore constructs an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]model.User)}
}

// Get returns the user with the given email or ErrNotFound.
func (s *MemoryUserStore) Get(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// Set inserts or replaces a user record.
func (s *MemoryUserStore) Set(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.Email] = u
	return nil
}

// MemoryCompensationStore keeps the compensation journal in process memory.
type MemoryCompensationStore struct {
	mu    sync.Mutex
	items map[string]model.Compensation
}

// NewMemoryCompensationStore constructs an empty MemoryCompensationStore.
func NewMemoryCompensationStore() *MemoryCompensationStore {
	return &MemoryCompensationStore{items: make(map[string]model.Compensation)}
}

// Save inserts or updates a compensation.
func (s *MemoryCompensationStore) Save(_ context.Context, c model.Compensation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[c.ID] = c
	return nil
}

// ListPending returns compensations that still have attempts left, oldest
// first.
func (s *MemoryCompensationStore) ListPending(_ context.Context, limit int) ([]model.Compensation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Compensation, 0, len(s.items))
	for _, c := range s.items {
		if c.Exhausted() {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b model.Compensation) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a delivered compensation.
func (s *MemoryCompensationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	return nil
}
