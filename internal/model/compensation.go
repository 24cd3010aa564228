package model

import "time"

// DefaultMaxAttempts bounds how often a compensation is retried.
const DefaultMaxAttempts = 10

// Compensation is a reverse event write that could not be delivered when a
// join or leave was rolled back. It is retried until it succeeds or runs
// out of attempts.
type Compensation struct {
	ID              string
	EventID         string
	ParticipantName string
	EventDate       string
	Action          string
	Attempts        int
	MaxAttempts     int
	LastError       string
	LastAttemptedAt time.Time
	CreatedAt       time.Time
}

// Request returns the event endpoint call this compensation replays.
func (c *Compensation) Request() EventRequest {
	return EventRequest{
		EventID:         c.EventID,
		ParticipantName: c.ParticipantName,
		EventDate:       c.EventDate,
		Action:          c.Action,
	}
}

// MarkAttempt records a delivery attempt.
func (c *Compensation) MarkAttempt(now time.Time) {
	c.Attempts++
	c.LastAttemptedAt = now
}

// MarkFailed records the error of the last attempt.
func (c *Compensation) MarkFailed(err error) {
	c.LastError = err.Error()
}

// Exhausted reports whether no attempts remain.
func (c *Compensation) Exhausted() bool {
	limit := c.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	return c.Attempts >= limit
}

// Due reports whether the backoff since the last attempt has elapsed.
func (c *Compensation) Due(now time.Time, base, ceiling time.Duration) bool {
	if c.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(c.LastAttemptedAt.Add(c.NextRetryDelay(base, ceiling)))
}

// NextRetryDelay is 2^attempts * base, capped at ceiling.
func (c *Compensation) NextRetryDelay(base, ceiling time.Duration) time.Duration {
	if c.Attempts >= 30 {
		return ceiling
	}
	delay := base * time.Duration(1<<c.Attempts)
	if delay <= 0 || delay > ceiling {
		return ceiling
	}
	return delay
}
