package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/elderlink/elderlink/internal/model"
)

// attendee resolves whose attendance a request changes: the body's userId,
// defaulting to the acting user. An authenticated caller may only act for
// itself, and with bearer auth enforced an anonymous caller may not act at all.
func attendee(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req model.AttendanceRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return "", false
	}
	bodyID := strings.TrimSpace(req.UserID)
	actor := actingUser(r)

	switch {
	case actor == "" && strictAuth(r):
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	case bodyID == "" && actor == "":
		writeError(w, http.StatusBadRequest, "userId is required")
		return "", false
	case bodyID == "":
		return actor, true
	case actor != "" && actor != bodyID:
		writeError(w, http.StatusForbidden, "cannot change attendance for another user")
		return "", false
	}
	return bodyID, true
}

// Join handles POST /events/{id}/attendees
// Adds the user to the event's attendees if a slot is free.
func (a *API) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := attendee(w, r)
	if !ok {
		return
	}

	event, err := a.attendance.Join(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "joined event", Event: event})
}

// Withdraw handles DELETE /events/{id}/attendees
func (a *API) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := attendee(w, r)
	if !ok {
		return
	}

	event, err := a.attendance.Withdraw(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "withdrew from event", Event: event})
}
