package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/service"
)

// QuizHandler serves the quiz catalog and accepts submissions.
type QuizHandler struct {
	quizzes *service.QuizService
	scoring *service.ScoringService
	logger  *slog.Logger
}

func NewQuizHandler(quizzes *service.QuizService, scoring *service.ScoringService, logger *slog.Logger) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, scoring: scoring, logger: logger}
}

// submitRequest is the body of POST /api/quizzes/submit.
//
// submittedAnswers is keyed by question id as a JSON object key, so keys are
// always strings. Values are kept raw: an entry whose key or value is not an
// integer is dropped on its own instead of failing the whole submission.
type submitRequest struct {
	QuizID           int64                      `json:"quizId" validate:"required,gt=0"`
	SubmittedAnswers map[string]json.RawMessage `json:"submittedAnswers"`
}

type submitResponse struct {
	Message     string `json:"message"`
	ScoreEarned int    `json:"scoreEarned"`
}

// HandleList returns every quiz without questions.
//
// HTTP: GET /api/quizzes
func (h *QuizHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.quizzes.List(r.Context())
	if err != nil {
		h.logger.Error("listing quizzes", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if quizzes == nil {
		quizzes = []model.Quiz{}
	}
	writeJSON(w, http.StatusOK, quizzes)
}

// HandleGet returns one quiz with its questions and choices. Which choice is
// correct is never included.
//
// HTTP: GET /api/quizzes/{id}
func (h *QuizHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuizID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	quiz, err := h.quizzes.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

// HandleSubmit scores a submission for the authenticated user.
//
// HTTP: POST /api/quizzes/submit
// REQUEST BODY: {"quizId": 1, "submittedAnswers": {"12": 40, "13": 44}}
// RESPONSE: 200 {"message": "quiz submitted", "scoreEarned": 10}
//
// scoreEarned is what this submission added, not the user's total. Sending
// the same answers again earns 0.
func (h *QuizHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	answers := parseAnswers(req.SubmittedAnswers)
	if dropped := len(req.SubmittedAnswers) - len(answers); dropped > 0 {
		h.logger.Debug("dropped malformed answers",
			slog.String("userID", id.UserID),
			slog.Int("dropped", dropped),
		)
	}

	earned, err := h.scoring.Submit(r.Context(), id.UserID, req.QuizID, answers)
	if err != nil {
		h.logger.Error("scoring submission",
			slog.String("userID", id.UserID),
			slog.Int64("quizID", req.QuizID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{Message: "quiz submitted", ScoreEarned: earned})
}

// parseAnswers keeps the entries whose question id and choice id are both
// integers. A choice id may arrive as a JSON number or a numeric string.
func parseAnswers(raw map[string]json.RawMessage) map[int64]int64 {
	answers := make(map[int64]int64, len(raw))
	for key, value := range raw {
		questionID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		choiceID, ok := parseChoiceID(value)
		if !ok {
			continue
		}
		answers[questionID] = choiceID
	}
	return answers
}

func parseChoiceID(value json.RawMessage) (int64, bool) {
	var n int64
	if err := json.Unmarshal(value, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseQuizID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "quiz id must be a positive integer")
	}
	return id, nil
}
