// Package repository implements the event, user and compensation stores.
// PostgreSQL-backed stores use pgx directly (no ORM); the in-memory stores in
// memory.go serve single-instance deployments and tests.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// EventRepository handles persistence for the local event mirror.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, starts_at, ends_at, participants, number_of_participants, max_participants`

// List returns all events ordered by start time.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY starts_at ASC NULLS LAST, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Get returns a single event or ErrNotFound.
func (r *EventRepository) Get(ctx context.Context, id string) (model.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, err
	}
	return e, nil
}

// AddParticipant appends p to the event roster and raises the count in a
// single statement, leaving the other columns untouched.
func (r *EventRepository) AddParticipant(ctx context.Context, eventID string, p model.Participant) error {
	entry, err := json.Marshal([]model.Participant{p})
	if err != nil {
		return fmt.Errorf("encode participant: %w", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET participants = participants || $2::jsonb,
		     number_of_participants = number_of_participants + 1
		 WHERE id = $1`,
		eventID, entry,
	)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveParticipant stores the roster and count of an event whose
// participant was removed.
func (r *EventRepository) RemoveParticipant(ctx context.Context, e model.Event) error {
	roster, err := encodeRoster(e.Participants)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET participants = $2::jsonb, number_of_participants = $3
		 WHERE id = $1`,
		e.ID, roster, e.NumberOfParticipants,
	)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAll makes the mirror match events exactly, in one transaction.
func (r *EventRepository) ReplaceAll(ctx context.Context, events []model.Event) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ids := make([]string, 0, len(events))
	for _, e := range events {
		roster, encErr := encodeRoster(e.Participants)
		if encErr != nil {
			return encErr
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO events (`+eventColumns+`)
			 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
			   title = EXCLUDED.title,
			   starts_at = EXCLUDED.starts_at,
			   ends_at = EXCLUDED.ends_at,
			   participants = EXCLUDED.participants,
			   number_of_participants = EXCLUDED.number_of_participants,
			   max_participants = EXCLUDED.max_participants`,
			e.ID, e.Title, nullTime(e.Start), nullTime(e.End), roster, e.NumberOfParticipants, e.MaxParticipants,
		)
		if err != nil {
			return fmt.Errorf("upsert event %s: %w", e.ID, err)
		}
		ids = append(ids, e.ID)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM events WHERE NOT (id = ANY($1))`, ids); err != nil {
		return fmt.Errorf("delete stale events: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func scanEvent(row pgx.Row) (model.Event, error) {
	var (
		e          model.Event
		start, end *time.Time
		roster     []byte
	)
	err := row.Scan(&e.ID, &e.Title, &start, &end, &roster, &e.NumberOfParticipants, &e.MaxParticipants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan event: %w", err)
	}
	if start != nil {
		e.Start = start.Local()
	}
	if end != nil {
		e.End = end.Local()
	}
	e.Participants = model.Roster{}
	if len(roster) > 0 {
		if err := json.Unmarshal(roster, &e.Participants); err != nil {
			return e, fmt.Errorf("decode roster of %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func encodeRoster(r model.Roster) ([]byte, error) {
	if r == nil {
		r = model.Roster{}
	}
	b, err := json.Marshal([]model.Participant(r))
	if err != nil {
		return nil, fmt.Errorf("encode roster: %w", err)
	}
	return b, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// UserRepository handles persistence for member records.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Get returns the user with the given email or ErrNotFound.
func (r *UserRepository) Get(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx,
		`SELECT email, phone, name, booking FROM users WHERE email = $1`,
		email,
	).Scan(&u.Email, &u.Phone, &u.Name, &u.Booking)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Set inserts or replaces a user record.
func (r *UserRepository) Set(ctx context.Context, u model.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (email, phone, name, booking)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE SET
		   phone = EXCLUDED.phone, name = EXCLUDED.name, booking = EXCLUDED.booking`,
		u.Email, u.Phone, u.Name, u.Booking,
	)
	if err != nil {
		return fmt.Errorf("set user: %w", err)
	}
	return nil
}

// CompensationRepository journals compensations awaiting delivery.
type CompensationRepository struct {
	db *pgxpool.Pool
}

// NewCompensationRepository constructs a CompensationRepository.
func NewCompensationRepository(db *pgxpool.Pool) *CompensationRepository {
	return &CompensationRepository{db: db}
}

// Save inserts or updates a compensation.
func (r *CompensationRepository) Save(ctx context.Context, c model.Compensation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO compensations
		   (id, event_id, participant_name, event_date, action, attempts, max_attempts, last_error, last_attempted_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   attempts = EXCLUDED.attempts,
		   last_error = EXCLUDED.last_error,
		   last_attempted_at = EXCLUDED.last_attempted_at`,
		c.ID, c.EventID, c.ParticipantName, c.EventDate, c.Action,
		c.Attempts, c.MaxAttempts, c.LastError, nullTime(c.LastAttemptedAt), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save compensation: %w", err)
	}
	return nil
}

// ListPending returns compensations that still have attempts left, oldest
// first.
func (r *CompensationRepository) ListPending(ctx context.Context, limit int) ([]model.Compensation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, participant_name, event_date, action, attempts, max_attempts, last_error, last_attempted_at, created_at
		 FROM compensations
		 WHERE attempts < max_attempts
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list compensations: %w", err)
	}
	defer rows.Close()

	var out []model.Compensation
	for rows.Next() {
		var (
			c    model.Compensation
			last *time.Time
		)
		if err := rows.Scan(&c.ID, &c.EventID, &c.ParticipantName, &c.EventDate, &c.Action,
			&c.Attempts, &c.MaxAttempts, &c.LastError, &last, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan compensation: %w", err)
		}
		if last != nil {
			c.LastAttemptedAt = *last
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a delivered compensation.
func (r *CompensationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM compensations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete compensation: %w", err)
	}
	return nil
}
