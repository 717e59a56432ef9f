package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/repository"
)

// QuizService serves the catalog to players and loads new quizzes.
type QuizService struct {
	quizzes repository.QuizRepository
	logger  *slog.Logger
}

func NewQuizService(quizzes repository.QuizRepository, logger *slog.Logger) *QuizService {
	return &QuizService{quizzes: quizzes, logger: logger}
}

func (s *QuizService) List(ctx context.Context) ([]model.Quiz, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/quiz: listing quizzes: %w", err)
	}
	return quizzes, nil
}

// Get returns the quiz with its questions and choices. Correct answers are
// stripped.
func (s *QuizService) Get(ctx context.Context, id int64) (*model.Quiz, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "quiz id must be a positive integer")
	}
	quiz, err := s.quizzes.GetQuizWithQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/quiz: getting quiz %d: %w", id, err)
	}
	return quiz.Redacted(), nil
}

// Create validates and stores a quiz definition.
func (s *QuizService) Create(ctx context.Context, quiz *model.Quiz) error {
	if err := ValidateQuiz(quiz); err != nil {
		return err
	}
	if err := s.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return fmt.Errorf("service/quiz: creating quiz %q: %w", quiz.Title, err)
	}
	s.logger.Info("quiz created",
		slog.Int64("quizID", quiz.ID),
		slog.String("title", quiz.Title),
		slog.Int("questions", len(quiz.Questions)),
	)
	return nil
}

// ValidateQuiz enforces the catalog rules: a title, at least one question,
// positive points, at least two choices and exactly one correct choice per
// question.
func ValidateQuiz(quiz *model.Quiz) error {
	if quiz == nil || strings.TrimSpace(quiz.Title) == "" {
		return apperror.ValidationFailed("title", "quiz title is required")
	}
	if len(quiz.Questions) == 0 {
		return apperror.ValidationFailed("questions", fmt.Sprintf("quiz %q has no questions", quiz.Title))
	}
	for i, q := range quiz.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return apperror.ValidationFailed("text", fmt.Sprintf("quiz %q question %d has no text", quiz.Title, i+1))
		}
		if q.Points <= 0 {
			return apperror.ValidationFailed("points", fmt.Sprintf("quiz %q question %d must be worth at least 1 point", quiz.Title, i+1))
		}
		if len(q.Choices) < 2 {
			return apperror.ValidationFailed("choices", fmt.Sprintf("quiz %q question %d needs at least two choices", quiz.Title, i+1))
		}
		correct := 0
		for _, c := range q.Choices {
			if c.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return apperror.ValidationFailed("choices", fmt.Sprintf("quiz %q question %d must have exactly one correct choice, has %d", quiz.Title, i+1, correct))
		}
	}
	return nil
}
