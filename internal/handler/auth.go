package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/auth"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/service"
)

// AuthHandler serves registration, login and the current-user lookup.
//
//   - HandleRegister → POST /api/register
//   - HandleLogin    → POST /api/login
//   - HandleMe       → GET  /api/me (behind RequireAuth)
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userResponse wraps a user with a message. model.User never serializes its
// password hash.
type userResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

type loginResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

// HandleRegister creates a regular (non-admin) account.
//
// HTTP: POST /api/register
// REQUEST BODY: {"name": "Ada", "email": "ada@example.com", "password": "..."}
// RESPONSE: 201 {"message": "user registered", "user": {...}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{Message: "user registered", User: user})
}

// HandleLogin exchanges credentials for a bearer token.
//
// HTTP: POST /api/login
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE: 200 {"message": "login successful", "user": {...}, "token": "..."}
//
// The token is returned in the body; clients send it back as
// "Authorization: Bearer <token>".
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message: "login successful",
		User:    result.User,
		Token:   result.Token,
	})
}

// HandleMe returns the authenticated user's record.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// identity reads the caller placed in the context by auth.RequireAuth. A
// route mounted without the gate answers 401 rather than panicking.
func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("valid authentication required"))
		return auth.Identity{}, false
	}
	return id, true
}
