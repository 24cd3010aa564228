package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
	"github.com/Shivanand-hulikatti/club-schedule/internal/sheet"
	"github.com/google/uuid"
)

// View is one user's window onto the schedule: the selected event, whether
// the registration modal is open, and the user's own record. Operations on
// a View run one at a time.
type View struct {
	s *Schedule

	mu       sync.Mutex
	user     model.User
	selected *model.Event
	open     bool
}

// User returns the view's copy of the user record.
func (v *View) User() model.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.user
}

// Modal returns the state the registration modal renders from.
func (v *View) Modal() model.ModalState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.modalLocked()
}

func (v *View) modalLocked() model.ModalState {
	st := model.ModalState{Show: v.open, User: v.user}
	if v.selected != nil {
		e := *v.selected
		st.SelectedEvent = &e
	}
	return st
}

// Select makes the event with the given id the selected one and opens the
// modal.
func (v *View) Select(ctx context.Context, eventID string) (model.ModalState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, err := v.s.deps.Events.Get(ctx, eventID)
	if err != nil {
		return model.ModalState{}, fmt.Errorf("select event %s: %w", eventID, err)
	}
	v.selected = &e
	v.open = true
	return v.modalLocked(), nil
}

// Close hides the modal and clears the selection.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = nil
	v.open = false
}

// Participate adds the user to the selected event.
// PRE: an event is selected and it is not full; otherwise no remote call
// is made.
// POST: on success the remote roster, the booking counter, the selected
// event and the Event Store all include the user. On failure nothing local
// changes.
func (v *View) Participate(ctx context.Context) model.Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.selected == nil {
		return model.Failed(model.ReasonNoSelection, model.MsgNoSelection)
	}
	ev := *v.selected
	if ev.IsFull() {
		return model.Failed(model.ReasonFull, model.MsgEventFull)
	}
	v.reloadUser(ctx)

	req := model.EventRequest{
		EventID:         ev.ID,
		ParticipantName: v.user.Name,
		EventDate:       ev.Date(),
		Action:          model.ActionAdd,
	}
	if err := v.s.deps.Remote.PostEvent(ctx, req); err != nil {
		slog.Error("participate_failed", "event_id", ev.ID, "user", v.user.Email, "error", err)
		return remoteFailure(err, model.MsgServerLimit)
	}

	if res := v.updateBooking(ctx, model.ActionAdd); !res.Success {
		v.s.compensate(ctx, req)
		return res
	}

	p := v.user.Participant()
	patched := ev.WithParticipant(p)
	v.selected = &patched
	if err := v.s.deps.Events.AddParticipant(ctx, ev.ID, p); err != nil {
		slog.Error("event_store_add_failed", "event_id", ev.ID, "user", v.user.Email, "error", err)
	}
	return model.Succeeded()
}

// CancelParticipation removes the user from the selected event.
// POST: on success the remote roster, the booking counter, the selected
// event and the Event Store no longer include the user. On failure nothing
// local changes.
func (v *View) CancelParticipation(ctx context.Context) model.Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.selected == nil {
		return model.Failed(model.ReasonNoSelection, model.MsgNoSelection)
	}
	ev := *v.selected
	v.reloadUser(ctx)

	req := model.EventRequest{
		EventID:         ev.ID,
		ParticipantName: v.user.Name,
		EventDate:       ev.Date(),
		Action:          model.ActionRemove,
	}
	if err := v.s.deps.Remote.PostEvent(ctx, req); err != nil {
		slog.Error("cancel_participation_failed", "event_id", ev.ID, "user", v.user.Email, "error", err)
		return remoteFailure(err, model.MsgTryLater)
	}

	if res := v.updateBooking(ctx, model.ActionRemove); !res.Success {
		v.s.compensate(ctx, req)
		return res
	}

	patched := ev.WithoutParticipant(v.user.Participant())
	v.selected = &patched
	if err := v.s.deps.Events.RemoveParticipant(ctx, patched); err != nil {
		slog.Error("event_store_remove_failed", "event_id", ev.ID, "user", v.user.Email, "error", err)
	}
	return model.Succeeded()
}

// UpdateEvent sends the caller's edited fields and, once the endpoint
// accepts them, makes the patched event the selected one. Only the keys in
// patch are posted.
func (v *View) UpdateEvent(ctx context.Context, patch model.EventPatch) model.Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.selected == nil {
		return model.Failed(model.ReasonNoSelection, model.MsgNoSelection)
	}
	if canEdit := v.s.deps.CanEdit; canEdit != nil && !canEdit(v.user.Email) {
		return model.Failed(model.ReasonForbidden, model.MsgNotEditor)
	}
	updated, err := patch.Apply(*v.selected)
	if err != nil {
		return model.Failed(model.ReasonInvalid, model.MsgInvalidEdit)
	}

	req := model.EventRequest{
		EventID:         v.selected.ID,
		ParticipantName: v.user.Name,
		EventDate:       v.selected.Date(),
		Action:          model.ActionEdit,
		Patch:           patch,
	}
	if err := v.s.deps.Remote.PostEvent(ctx, req); err != nil {
		return remoteFailure(err, model.MsgTryLater)
	}

	v.selected = &updated
	return model.Succeeded()
}

// reloadUser picks up booking changes made outside this view. The cached
// record is kept when the User Store cannot be read. The caller holds v.mu.
func (v *View) reloadUser(ctx context.Context) {
	u, err := v.s.deps.Users.Get(ctx, v.user.Email)
	if err != nil {
		slog.Warn("user_reload_failed", "user", v.user.Email, "error", err)
		return
	}
	v.user = u
}

// updateBooking moves the user's booking counter for action and stores the
// patched record. The caller holds v.mu.
func (v *View) updateBooking(ctx context.Context, action string) model.Result {
	patched := v.user.WithBooking(model.BookingDelta(action))
	if err := v.s.deps.Remote.PostUser(ctx, model.RecordOf(patched)); err != nil {
		slog.Warn("booking_update_failed", "user", v.user.Email, "action", action, "error", err)
		return model.Failed(model.ReasonUnavailable, model.MsgServerLimit)
	}
	if err := v.s.deps.Users.Set(ctx, patched); err != nil {
		slog.Error("user_store_set_failed", "user", v.user.Email, "error", err)
	}
	v.user = patched
	return model.Succeeded()
}

// compensate reverts an accepted event write whose booking update failed.
// Undeliverable compensations are journaled for the Syncer to retry.
func (s *Schedule) compensate(ctx context.Context, req model.EventRequest) {
	rev, ok := req.Reverse()
	if !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)

	err := s.deps.Remote.PostEvent(ctx, rev)
	if err == nil {
		slog.Info("compensation_applied", "event_id", rev.EventID, "action", rev.Action, "participant", rev.ParticipantName)
		return
	}

	now := s.now()
	c := model.Compensation{
		ID:              uuid.NewString(),
		EventID:         rev.EventID,
		ParticipantName: rev.ParticipantName,
		EventDate:       rev.EventDate,
		Action:          rev.Action,
		Attempts:        1,
		MaxAttempts:     model.DefaultMaxAttempts,
		LastError:       err.Error(),
		LastAttemptedAt: now,
		CreatedAt:       now,
	}
	if s.deps.Compensations == nil {
		slog.Error("compensation_lost", "event_id", c.EventID, "action", c.Action, "participant", c.ParticipantName, "error", err)
		return
	}
	if saveErr := s.deps.Compensations.Save(ctx, c); saveErr != nil {
		slog.Error("compensation_lost", "event_id", c.EventID, "action", c.Action, "participant", c.ParticipantName, "error", err, "save_error", saveErr)
		return
	}
	slog.Error("compensation_journaled", "id", c.ID, "event_id", c.EventID, "action", c.Action, "error", err)
}

// remoteFailure maps an event endpoint error to a Result. Status errors
// carry the endpoint's status text; anything else gets fallback.
func remoteFailure(err error, fallback string) model.Result {
	var se *sheet.StatusError
	if errors.As(err, &se) {
		return model.Failed(model.ReasonRejected, "Error: "+se.Text)
	}
	return model.Failed(model.ReasonUnavailable, fallback)
}
