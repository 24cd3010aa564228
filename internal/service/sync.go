package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
	"github.com/robfig/cron/v3"
)

// Compensation retry backoff.
const (
	RetryBase    = time.Minute
	RetryCeiling = time.Hour
	retryBatch   = 50
)

// ErrRefreshRunning is returned by Refresh when another refresh is in flight.
var ErrRefreshRunning = errors.New("refresh already running")

// EventSource loads the full event list from the event endpoint.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]model.Event, error)
}

// EventMirror is the part of the Event Store the Syncer rewrites.
type EventMirror interface {
	ReplaceAll(ctx context.Context, events []model.Event) error
}

// EventSender delivers event requests.
type EventSender interface {
	PostEvent(ctx context.Context, req model.EventRequest) error
}

// SyncDeps holds the collaborators of a Syncer.
type SyncDeps struct {
	Source        EventSource
	Mirror        EventMirror
	Compensations CompensationStore // optional
	Sender        EventSender
}

// Syncer reloads the Event Store from the event endpoint and replays
// journaled compensations.
type Syncer struct {
	deps     SyncDeps
	now      func() time.Time
	fetching atomic.Bool
	cron     *cron.Cron
}

// NewSyncer constructs a Syncer.
func NewSyncer(deps SyncDeps) *Syncer {
	return &Syncer{deps: deps, now: time.Now}
}

// IsFetching reports whether a refresh is in flight.
func (s *Syncer) IsFetching() bool {
	return s.fetching.Load()
}

// Refresh replaces the Event Store contents with the remote event list.
func (s *Syncer) Refresh(ctx context.Context) error {
	if !s.fetching.CompareAndSwap(false, true) {
		return ErrRefreshRunning
	}
	defer s.fetching.Store(false)

	started := s.now()
	events, err := s.deps.Source.FetchEvents(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	if err := s.deps.Mirror.ReplaceAll(ctx, events); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	slog.Info("events_refreshed", "count", len(events), "duration", s.now().Sub(started))
	return nil
}

// RetryCompensations replays due compensations. Delivered ones are removed
// from the journal; failed ones are saved with the attempt recorded.
func (s *Syncer) RetryCompensations(ctx context.Context) error {
	if s.deps.Compensations == nil {
		return nil
	}
	pending, err := s.deps.Compensations.ListPending(ctx, retryBatch)
	if err != nil {
		return fmt.Errorf("list pending compensations: %w", err)
	}

	now := s.now()
	for _, c := range pending {
		if !c.Due(now, RetryBase, RetryCeiling) {
			continue
		}
		c.MarkAttempt(now)
		sendErr := s.deps.Sender.PostEvent(ctx, c.Request())
		if sendErr == nil {
			if err := s.deps.Compensations.Delete(ctx, c.ID); err != nil {
				return fmt.Errorf("delete compensation %s: %w", c.ID, err)
			}
			slog.Info("compensation_delivered", "id", c.ID, "event_id", c.EventID, "action", c.Action, "attempts", c.Attempts)
			continue
		}

		c.MarkFailed(sendErr)
		if err := s.deps.Compensations.Save(ctx, c); err != nil {
			return fmt.Errorf("save compensation %s: %w", c.ID, err)
		}
		if c.Exhausted() {
			slog.Error("compensation_abandoned", "id", c.ID, "event_id", c.EventID, "action", c.Action,
				"participant", c.ParticipantName, "attempts", c.Attempts, "error", sendErr)
			continue
		}
		slog.Warn("compensation_retry_failed", "id", c.ID, "event_id", c.EventID, "attempts", c.Attempts,
			"next_retry", c.NextRetryDelay(RetryBase, RetryCeiling), "error", sendErr)
	}
	return nil
}

// Start schedules refreshes and compensation retries and runs one refresh
// right away. Jobs stop when ctx is cancelled or Stop is called.
func (s *Syncer) Start(ctx context.Context, refreshSched, retrySched string) error {
	logger := cronLogger{}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	if _, err := c.AddFunc(refreshSched, func() {
		if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshRunning) {
			slog.Error("refresh_failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", refreshSched, err)
	}
	if _, err := c.AddFunc(retrySched, func() {
		if err := s.RetryCompensations(ctx); err != nil {
			slog.Error("compensation_retry_failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule retry %q: %w", retrySched, err)
	}

	s.cron = c
	c.Start()

	go func() {
		if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshRunning) {
			slog.Error("refresh_failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *Syncer) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron_"+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron_"+msg, append(keysAndValues, "error", err)...)
}
