package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_HandleRegister(t *testing.T) {
	t.Run("creates user without exposing the hash", func(t *testing.T) {
		env := newTestEnv(t)
		rr := httptest.NewRecorder()

		env.auth.HandleRegister(rr, jsonRequest(t, http.MethodPost, "/api/register", map[string]string{
			"name": "Ada", "email": "ada@example.com", "password": "password123",
		}))

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.NotContains(t, rr.Body.String(), "password")
		assert.NotContains(t, rr.Body.String(), "$2a$")

		res := decode[map[string]any](t, rr)
		user, ok := res["user"].(map[string]any)
		require.True(t, ok, "response has a user object")
		assert.Equal(t, "ada@example.com", user["email"])
		assert.Equal(t, false, user["isAdmin"])
		assert.EqualValues(t, 0, user["score"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Ada", "ada@example.com")
		rr := httptest.NewRecorder()

		env.auth.HandleRegister(rr, jsonRequest(t, http.MethodPost, "/api/register", map[string]string{
			"name": "Other Ada", "email": "ADA@example.com", "password": "password123",
		}))

		assertError(t, rr, http.StatusConflict, "conflict")
	})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"name":`},
		{"missing name", `{"email":"a@b.co","password":"password123"}`},
		{"bad email", `{"name":"A","email":"nope","password":"password123"}`},
		{"short password", `{"name":"A","email":"a@b.co","password":"short"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := httptest.NewRecorder()

			env.auth.HandleRegister(rr, jsonRequest(t, http.MethodPost, "/api/register", tt.body))

			assertError(t, rr, http.StatusBadRequest, "validation_error")
		})
	}
}

func TestAuthHandler_HandleLogin(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "Ada", "ada@example.com")

	t.Run("valid credentials", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleLogin(rr, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{
			"email": "ada@example.com", "password": "password123",
		}))

		require.Equal(t, http.StatusOK, rr.Code)
		res := decode[struct {
			Message string         `json:"message"`
			User    map[string]any `json:"user"`
			Token   string         `json:"token"`
		}](t, rr)

		assert.NotEmpty(t, res.Message)
		assert.Equal(t, user.ID, res.User["id"])
		_, hasHash := res.User["passwordHash"]
		assert.False(t, hasHash)
		assert.Len(t, strings.Split(res.Token, "."), 3)

		claims, err := env.tokens.Decode(res.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.False(t, claims.IsAdmin)
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleLogin(rr, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{
			"email": "ada@example.com", "password": "wrong-password",
		}))
		assertError(t, rr, http.StatusUnauthorized, "unauthenticated")
	})

	t.Run("unknown email", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleLogin(rr, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{
			"email": "nobody@example.com", "password": "password123",
		}))
		assertError(t, rr, http.StatusUnauthorized, "unauthenticated")
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleLogin(rr, jsonRequest(t, http.MethodPost, "/api/login", `{"email":"ada@example.com"}`))
		assertError(t, rr, http.StatusBadRequest, "validation_error")
	})
}

func TestAuthHandler_HandleMe(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "Ada", "ada@example.com")

	t.Run("authenticated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleMe(rr, as(jsonRequest(t, http.MethodGet, "/api/me", nil), user.ID, false))

		require.Equal(t, http.StatusOK, rr.Code)
		res := decode[map[string]any](t, rr)
		assert.Equal(t, "Ada", res["name"])
	})

	t.Run("no identity in context", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleMe(rr, jsonRequest(t, http.MethodGet, "/api/me", nil))
		assertError(t, rr, http.StatusUnauthorized, "unauthenticated")
	})

	t.Run("user deleted after login", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleMe(rr, as(jsonRequest(t, http.MethodGet, "/api/me", nil), "cv0000000000000000000", false))
		assertError(t, rr, http.StatusNotFound, "not_found")
	})
}
