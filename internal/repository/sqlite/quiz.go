package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/repository"
)

var _ repository.QuizRepository = (*QuizStore)(nil)

// QuizStore is the SQLite quiz catalog.
type QuizStore struct {
	conn *sql.DB
}

// ListQuizzes returns quiz headers (no questions) ordered by id.
func (s *QuizStore) ListQuizzes(ctx context.Context) ([]model.Quiz, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, title, disaster_type FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := []model.Quiz{}
	for rows.Next() {
		var q model.Quiz
		if err := rows.Scan(&q.ID, &q.Title, &q.DisasterType); err != nil {
			return nil, fmt.Errorf("sqlite: scanning quiz: %w", err)
		}
		quizzes = append(quizzes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating quizzes: %w", err)
	}
	return quizzes, nil
}

// GetQuizWithQuestions loads the quiz, its questions ordered by id and each
// question's choices ordered by id.
func (s *QuizStore) GetQuizWithQuestions(ctx context.Context, quizID int64) (*model.Quiz, error) {
	var quiz model.Quiz
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, title, disaster_type FROM quizzes WHERE id = ?`, quizID,
	).Scan(&quiz.ID, &quiz.Title, &quiz.DisasterType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("quiz", strconv.FormatInt(quizID, 10))
		}
		return nil, fmt.Errorf("sqlite: getting quiz %d: %w", quizID, err)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT q.id, q.text, q.points, c.id, c.text, c.is_correct
		 FROM questions q
		 LEFT JOIN choices c ON c.question_id = q.id
		 WHERE q.quiz_id = ?
		 ORDER BY q.id, c.id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading questions for quiz %d: %w", quizID, err)
	}
	defer rows.Close()

	quiz.Questions = []model.Question{}
	for rows.Next() {
		var (
			qID, points int64
			qText       string
			cID         sql.NullInt64
			cText       sql.NullString
			cCorrect    sql.NullBool
		)
		if err := rows.Scan(&qID, &qText, &points, &cID, &cText, &cCorrect); err != nil {
			return nil, fmt.Errorf("sqlite: scanning question row: %w", err)
		}

		n := len(quiz.Questions)
		if n == 0 || quiz.Questions[n-1].ID != qID {
			quiz.Questions = append(quiz.Questions, model.Question{
				ID:      qID,
				QuizID:  quizID,
				Text:    qText,
				Points:  int(points),
				Choices: []model.Choice{},
			})
			n++
		}
		if cID.Valid {
			quiz.Questions[n-1].Choices = append(quiz.Questions[n-1].Choices, model.Choice{
				ID:         cID.Int64,
				QuestionID: qID,
				Text:       cText.String,
				IsCorrect:  cCorrect.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating questions: %w", err)
	}
	return &quiz, nil
}

// CorrectChoices returns question id → correct choice id for the given ids.
func (s *QuizStore) CorrectChoices(ctx context.Context, questionIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(questionIDs))
	if len(questionIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(questionIDs))
	for i, id := range questionIDs {
		args[i] = id
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT question_id, id FROM choices
		 WHERE is_correct = 1 AND question_id IN (`+placeholders(len(args))+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading correct choices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var qID, cID int64
		if err := rows.Scan(&qID, &cID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning correct choice: %w", err)
		}
		result[qID] = cID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating correct choices: %w", err)
	}
	return result, nil
}

// CreateQuiz inserts the quiz tree in one transaction and writes the
// generated ids back into quiz.
func (s *QuizStore) CreateQuiz(ctx context.Context, quiz *model.Quiz) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning quiz transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO quizzes (title, disaster_type) VALUES (?, ?)`,
		quiz.Title, quiz.DisasterType)
	if err != nil {
		return fmt.Errorf("sqlite: inserting quiz %q: %w", quiz.Title, err)
	}
	if quiz.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: reading quiz id: %w", err)
	}

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		q.QuizID = quiz.ID

		res, err = tx.ExecContext(ctx,
			`INSERT INTO questions (quiz_id, text, points) VALUES (?, ?, ?)`,
			q.QuizID, q.Text, q.Points)
		if err != nil {
			return fmt.Errorf("sqlite: inserting question %q: %w", q.Text, err)
		}
		if q.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("sqlite: reading question id: %w", err)
		}

		for j := range q.Choices {
			c := &q.Choices[j]
			c.QuestionID = q.ID

			res, err = tx.ExecContext(ctx,
				`INSERT INTO choices (question_id, text, is_correct) VALUES (?, ?, ?)`,
				c.QuestionID, c.Text, c.IsCorrect)
			if err != nil {
				if isUniqueViolation(err) {
					return apperror.ValidationFailed("choices", fmt.Sprintf("question %q has more than one correct choice", q.Text))
				}
				return fmt.Errorf("sqlite: inserting choice %q: %w", c.Text, err)
			}
			if c.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("sqlite: reading choice id: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing quiz: %w", err)
	}
	return nil
}
