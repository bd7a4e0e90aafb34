package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/elderlink/elderlink/internal/model"
)

// CreateUser handles POST /users
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	user, err := a.users.CreateUser(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /users/{id}
func (a *API) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
