package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/disaster-ready/internal/auth"
	"github.com/sakif/disaster-ready/internal/handler"
	"github.com/sakif/disaster-ready/internal/metrics"
	"github.com/sakif/disaster-ready/internal/model"
	sqliteRepo "github.com/sakif/disaster-ready/internal/repository/sqlite"
	"github.com/sakif/disaster-ready/internal/service"
)

// testEnv wires real services over an in-memory SQLite database.
type testEnv struct {
	db     *sqliteRepo.DB
	tokens *auth.TokenService

	auth    *handler.AuthHandler
	quizzes *handler.QuizHandler
	users   *handler.UserHandler

	authSvc *service.AuthService
	quizSvc *service.QuizService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	passwords, err := auth.NewPasswordService(bcrypt.MinCost)
	require.NoError(t, err)

	authSvc := service.NewAuthService(db.Users(), tokens, passwords, logger)
	quizSvc := service.NewQuizService(db.Quizzes(), logger)
	scoringSvc := service.NewScoringService(db.Users(), db.Quizzes(), db.Ledger(), metrics.Scoring{}, logger)
	userSvc := service.NewUserService(db.Users(), logger)

	return &testEnv{
		db:      db,
		tokens:  tokens,
		auth:    handler.NewAuthHandler(authSvc, logger),
		quizzes: handler.NewQuizHandler(quizSvc, scoringSvc, logger),
		users:   handler.NewUserHandler(userSvc, logger),
		authSvc: authSvc,
		quizSvc: quizSvc,
	}
}

func (e *testEnv) register(t *testing.T, name, email string) *model.User {
	t.Helper()
	user, err := e.authSvc.Register(context.Background(), service.RegisterInput{
		Name: name, Email: email, Password: "password123",
	})
	require.NoError(t, err)
	return user
}

// seedQuiz stores a quiz with questions worth 10 and 20; the first choice
// of each is correct.
func (e *testEnv) seedQuiz(t *testing.T) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		Title:        "Wildfire evacuation",
		DisasterType: "wildfire",
		Questions: []model.Question{
			{Text: "Go-bag location?", Points: 10, Choices: []model.Choice{
				{Text: "By the door", IsCorrect: true},
				{Text: "In the attic"},
			}},
			{Text: "When to leave?", Points: 20, Choices: []model.Choice{
				{Text: "When told to", IsCorrect: true},
				{Text: "When you see flames"},
			}},
		},
	}
	require.NoError(t, e.quizSvc.Create(context.Background(), quiz))
	return quiz
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// as attaches an identity the way auth.RequireAuth would.
func as(req *http.Request, userID string, isAdmin bool) *http.Request {
	ctx := auth.ContextWithIdentity(req.Context(), auth.Identity{UserID: userID, IsAdmin: isAdmin})
	return req.WithContext(ctx)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, errorType string) {
	t.Helper()
	assert.Equal(t, status, rr.Code)
	res := decode[handler.ErrorResponse](t, rr)
	assert.Equal(t, errorType, res.Error)
	assert.NotEmpty(t, res.Message)
}
