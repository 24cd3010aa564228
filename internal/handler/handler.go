// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/club-schedule/internal/model"
	"github.com/Shivanand-hulikatti/club-schedule/internal/repository"
	"github.com/Shivanand-hulikatti/club-schedule/internal/service"
	"github.com/go-chi/chi/v5"
)

// UserHeader carries the signed-in member's email.
const UserHeader = "X-User-Email"

// ScheduleHandler holds all HTTP handlers for the schedule page.
type ScheduleHandler struct {
	svc *service.Schedule
	now func() time.Time
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(svc *service.Schedule) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, now: time.Now}
}

// Routes mounts the schedule endpoints on r.
func (h *ScheduleHandler) Routes(r chi.Router) {
	r.Get("/schedule", h.Calendar)
	r.Get("/schedule.ics", h.ExportICS)
	r.Get("/schedule/modal", h.Modal)
	r.Post("/schedule/events/{id}/select", h.SelectEvent)
	r.Post("/schedule/modal/close", h.CloseModal)
	r.Post("/schedule/participate", h.Participate)
	r.Post("/schedule/cancel", h.CancelParticipation)
	r.Put("/schedule/event", h.UpdateEvent)
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeResult maps an operation outcome to its HTTP status.
func writeResult(w http.ResponseWriter, res model.Result) {
	status := http.StatusOK
	switch res.Reason {
	case model.ReasonFull:
		status = http.StatusConflict
	case model.ReasonForbidden:
		status = http.StatusForbidden
	case model.ReasonNoSelection, model.ReasonInvalid:
		status = http.StatusBadRequest
	case model.ReasonRejected, model.ReasonUnavailable:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

// view resolves the caller's View, writing the error response itself when
// that fails.
func (h *ScheduleHandler) view(w http.ResponseWriter, r *http.Request) (*service.View, bool) {
	email := r.Header.Get(UserHeader)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return nil, false
	}
	v, err := h.svc.View(r.Context(), email)
	if err != nil {
		if errors.Is(err, service.ErrUnknownUser) {
			writeError(w, http.StatusForbidden, "unknown member")
			return nil, false
		}
		slog.Error("load_view_failed", "user", email, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load member record")
		return nil, false
	}
	return v, true
}

// parseRange reads the optional from/to query parameters.
func parseRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if from, err = model.ParseTime(q.Get("from"), time.Local); err != nil {
		return
	}
	to, err = model.ParseTime(q.Get("to"), time.Local)
	return
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Calendar handles GET /schedule
// Returns the calendar page model, optionally limited by ?from=&to=.
func (h *ScheduleHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cal, err := h.svc.Calendar(r.Context(), from, to)
	if err != nil {
		slog.Error("calendar_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	writeJSON(w, http.StatusOK, cal)
}

// ExportICS handles GET /schedule.ics
// Returns the schedule as an iCalendar feed.
func (h *ScheduleHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.svc.Events(r.Context(), from, to)
	if err != nil {
		slog.Error("ics_export_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(service.ExportICS(events, h.now())))
}

// Modal handles GET /schedule/modal
// Returns the caller's modal state.
func (h *ScheduleHandler) Modal(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Modal())
}

// SelectEvent handles POST /schedule/events/{id}/select
// Selects the clicked event and opens the modal.
func (h *ScheduleHandler) SelectEvent(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	st, err := v.Select(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		slog.Error("select_event_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to select event")
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// CloseModal handles POST /schedule/modal/close
func (h *ScheduleHandler) CloseModal(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	v.Close()
	writeJSON(w, http.StatusOK, v.Modal())
}

// Participate handles POST /schedule/participate
// Joins the caller to the selected event.
func (h *ScheduleHandler) Participate(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	writeResult(w, v.Participate(r.Context()))
}

// CancelParticipation handles POST /schedule/cancel
// Removes the caller from the selected event.
func (h *ScheduleHandler) CancelParticipation(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	writeResult(w, v.CancelParticipation(r.Context()))
}

// UpdateEvent handles PUT /schedule/event
// Sends the supplied fields of the selected event; omitted fields are left
// alone.
func (h *ScheduleHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}

	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	writeResult(w, v.UpdateEvent(r.Context(), patch))
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
