package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ownNotifications checks that the acting user is the {userId} in the path.
func ownNotifications(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor, ok := requireUser(w, r)
	if !ok {
		return "", false
	}
	userID := chi.URLParam(r, "userId")
	if actor != userID {
		writeError(w, http.StatusForbidden, "cannot access another user's notifications")
		return "", false
	}
	return userID, true
}

// ListNotifications handles GET /notifications/{userId}
// An empty list is a 200 with [].
func (a *API) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownNotifications(w, r)
	if !ok {
		return
	}

	items, err := a.notifications.List(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// MarkNotificationRead handles PATCH /notifications/{userId}/{notificationId}/read
func (a *API) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownNotifications(w, r)
	if !ok {
		return
	}

	if err := a.notifications.MarkRead(r.Context(), userID, chi.URLParam(r, "notificationId")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "notification marked read"})
}

// RemoveNotification handles DELETE /notifications/{userId}/{notificationId}
func (a *API) RemoveNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownNotifications(w, r)
	if !ok {
		return
	}

	if err := a.notifications.Remove(r.Context(), userID, chi.URLParam(r, "notificationId")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "notification removed"})
}
