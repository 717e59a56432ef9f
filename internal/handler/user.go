package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/repository"
	"github.com/sakif/disaster-ready/internal/service"
)

// UserHandler serves the public leaderboard and the admin user endpoints.
// The admin routes rely on auth.RequireAdmin being mounted in front of them.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// updateUserRequest uses pointers so an omitted field is left untouched.
type updateUserRequest struct {
	Name    *string `json:"name" validate:"omitnil,min=1,max=100"`
	Email   *string `json:"email" validate:"omitnil,email"`
	IsAdmin *bool   `json:"isAdmin"`
}

// HandleLeaderboard returns the top users by score.
//
// HTTP: GET /api/leaderboard?limit=10
func (h *UserHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.users.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleList returns users for the admin console.
//
// HTTP: GET /api/admin/users?limit=50&offset=0
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.users.List(r.Context(), repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet returns one user.
//
// HTTP: GET /api/admin/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate changes a user's name, email or role. Score is not editable
// here; it only moves through quiz scoring.
//
// HTTP: PUT /api/admin/users/{id}
// REQUEST BODY: {"name": "...", "email": "...", "isAdmin": true} (all optional)
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Update(r.Context(), r.PathValue("id"), service.UpdateUserInput{
		Name:    req.Name,
		Email:   req.Email,
		IsAdmin: req.IsAdmin,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete removes a user together with their earned-points records.
//
// HTTP: DELETE /api/admin/users/{id}
// RESPONSE: 204 No Content
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
