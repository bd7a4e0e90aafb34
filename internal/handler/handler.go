// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/service"
)

// API holds all HTTP handlers for the ElderLink core.
type API struct {
	events        *service.EventService
	attendance    *service.AttendanceService
	users         *service.UserService
	notifications *service.NotificationService
	logger        *slog.Logger
}

// NewAPI constructs an API.
func NewAPI(
	events *service.EventService,
	attendance *service.AttendanceService,
	users *service.UserService,
	notifications *service.NotificationService,
	logger *slog.Logger,
) *API {
	return &API{
		events:        events,
		attendance:    attendance,
		users:         users,
		notifications: notifications,
		logger:        logger,
	}
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

// decodeJSON decodes a bounded body. An empty body leaves dst untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeServiceError maps the domain error taxonomy to status codes.
// Unexpected failures are logged and reported without detail.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrCapacityExceeded):
		writeError(w, http.StatusForbidden, "event is full")
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusForbidden, "already exists")
	case errors.Is(err, model.ErrNotAttending):
		writeError(w, http.StatusForbidden, "you are not attending this event")
	case errors.Is(err, model.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		a.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Event handlers ───────────────────────────────────────────────────────────

// CreateEvent handles POST /events
// Creates a new event owned by the acting user.
func (a *API) CreateEvent(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := a.events.CreateEvent(r.Context(), creatorID, req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
// Returns a JSON array of all events.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.events.ListEvents(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (a *API) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := a.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// EditEvent handles PATCH /events/{id}
// Only the creator may edit; attendees are notified asynchronously.
func (a *API) EditEvent(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := a.events.EditEvent(r.Context(), chi.URLParam(r, "id"), ownerID, patch)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}
// Only the creator may delete; attendees are notified asynchronously.
func (a *API) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := a.events.DeleteEvent(r.Context(), chi.URLParam(r, "id"), ownerID); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
