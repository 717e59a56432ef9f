// Package repository declares the storage contracts the services depend on.
//
// Implementations live in sub-packages (sqlite, postgres). Every
// implementation must translate "row not found" into apperror.NotFound and
// wrap every other driver error; services rely on that split to tell a
// missing record from a storage failure.
package repository

import (
	"context"

	"github.com/sakif/disaster-ready/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository is the credential store.
type UserRepository interface {
	// Create inserts the user and fills in ID and timestamps. A duplicate
	// email yields apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	// Update writes name, email and isAdmin. Score and password hash are
	// never touched.
	Update(ctx context.Context, user *model.User) error
	// Delete removes the user and their earned-points records.
	Delete(ctx context.Context, id string) error
	// IncrementScore atomically adds points to the stored score.
	IncrementScore(ctx context.Context, id string, points int) error
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// QuizRepository is the quiz catalog. The scoring flow only reads from it.
type QuizRepository interface {
	ListQuizzes(ctx context.Context) ([]model.Quiz, error)
	// GetQuizWithQuestions returns the quiz with questions ordered by id,
	// each with its choices. A missing quiz yields apperror.ErrNotFound.
	GetQuizWithQuestions(ctx context.Context, quizID int64) (*model.Quiz, error)
	// CorrectChoices maps each given question id to its correct choice id.
	// Ids with no question are absent from the result.
	CorrectChoices(ctx context.Context, questionIDs []int64) (map[int64]int64, error)
	// CreateQuiz stores a quiz with its questions and choices in one
	// transaction and fills in the generated ids.
	CreateQuiz(ctx context.Context, quiz *model.Quiz) error
}

// LedgerRepository records which (user, question) pairs have been credited.
// Records are only ever inserted.
type LedgerRepository interface {
	HasRecord(ctx context.Context, userID string, questionID int64) (bool, error)
	// InsertIfAbsent creates the record in a single atomic statement.
	// inserted is false when the record already existed; that is not an error.
	InsertIfAbsent(ctx context.Context, userID string, questionID int64) (inserted bool, err error)
}
