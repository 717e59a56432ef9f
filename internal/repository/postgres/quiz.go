package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/repository"
)

var _ repository.QuizRepository = (*QuizStore)(nil)

type QuizStore struct {
	pool *pgxpool.Pool
}

func (s *QuizStore) ListQuizzes(ctx context.Context) ([]model.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, disaster_type FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := []model.Quiz{}
	for rows.Next() {
		var q model.Quiz
		if err := rows.Scan(&q.ID, &q.Title, &q.DisasterType); err != nil {
			return nil, fmt.Errorf("postgres: scanning quiz: %w", err)
		}
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating quizzes: %w", err)
	}
	return quizzes, nil
}

func (s *QuizStore) GetQuizWithQuestions(ctx context.Context, quizID int64) (*model.Quiz, error) {
	var quiz model.Quiz
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, disaster_type FROM quizzes WHERE id = $1`, quizID,
	).Scan(&quiz.ID, &quiz.Title, &quiz.DisasterType)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("quiz", strconv.FormatInt(quizID, 10))
		}
		return nil, fmt.Errorf("postgres: getting quiz %d: %w", quizID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT q.id, q.text, q.points, c.id, c.text, c.is_correct
		 FROM questions q
		 LEFT JOIN choices c ON c.question_id = q.id
		 WHERE q.quiz_id = $1
		 ORDER BY q.id, c.id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("postgres: loading questions for quiz %d: %w", quizID, err)
	}
	defer rows.Close()

	quiz.Questions = []model.Question{}
	for rows.Next() {
		var (
			qID      int64
			qText    string
			points   int
			cID      *int64
			cText    *string
			cCorrect *bool
		)
		if err := rows.Scan(&qID, &qText, &points, &cID, &cText, &cCorrect); err != nil {
			return nil, fmt.Errorf("postgres: scanning question row: %w", err)
		}

		n := len(quiz.Questions)
		if n == 0 || quiz.Questions[n-1].ID != qID {
			quiz.Questions = append(quiz.Questions, model.Question{
				ID: qID, QuizID: quizID, Text: qText, Points: points, Choices: []model.Choice{},
			})
			n++
		}
		if cID != nil {
			quiz.Questions[n-1].Choices = append(quiz.Questions[n-1].Choices, model.Choice{
				ID:         *cID,
				QuestionID: qID,
				Text:       *cText,
				IsCorrect:  *cCorrect,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating questions: %w", err)
	}
	return &quiz, nil
}

func (s *QuizStore) CorrectChoices(ctx context.Context, questionIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(questionIDs))
	if len(questionIDs) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT question_id, id FROM choices WHERE is_correct AND question_id = ANY($1)`,
		questionIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: loading correct choices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qID, cID int64
		if err := rows.Scan(&qID, &cID); err != nil {
			return nil, fmt.Errorf("postgres: scanning correct choice: %w", err)
		}
		result[qID] = cID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating correct choices: %w", err)
	}
	return result, nil
}

func (s *QuizStore) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO quizzes (title, disaster_type) VALUES ($1, $2) RETURNING id`,
			quiz.Title, quiz.DisasterType).Scan(&quiz.ID)
		if err != nil {
			return fmt.Errorf("postgres: inserting quiz %q: %w", quiz.Title, err)
		}

		for i := range quiz.Questions {
			q := &quiz.Questions[i]
			q.QuizID = quiz.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO questions (quiz_id, text, points) VALUES ($1, $2, $3) RETURNING id`,
				q.QuizID, q.Text, q.Points).Scan(&q.ID)
			if err != nil {
				return fmt.Errorf("postgres: inserting question %q: %w", q.Text, err)
			}

			for j := range q.Choices {
				c := &q.Choices[j]
				c.QuestionID = q.ID
				err := tx.QueryRow(ctx,
					`INSERT INTO choices (question_id, text, is_correct) VALUES ($1, $2, $3) RETURNING id`,
					c.QuestionID, c.Text, c.IsCorrect).Scan(&c.ID)
				if err != nil {
					if isUniqueViolation(err) {
						return apperror.ValidationFailed("choices", fmt.Sprintf("question %q has more than one correct choice", q.Text))
					}
					return fmt.Errorf("postgres: inserting choice %q: %w", c.Text, err)
				}
			}
		}
		return nil
	})
}
