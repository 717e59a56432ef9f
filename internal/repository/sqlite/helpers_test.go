package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/disaster-ready/internal/model"
)

// newTestDB returns a fresh in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderplacehold",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// createTestQuiz stores a two-question quiz worth 10 and 20 points.
// The first choice of each question is the correct one.
func createTestQuiz(t *testing.T, db *DB) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		Title:        "Flood readiness",
		DisasterType: "flood",
		Questions: []model.Question{
			{Text: "Move to?", Points: 10, Choices: []model.Choice{
				{Text: "Higher ground", IsCorrect: true},
				{Text: "The basement"},
			}},
			{Text: "Walk through moving water?", Points: 20, Choices: []model.Choice{
				{Text: "Never", IsCorrect: true},
				{Text: "If it looks shallow"},
				{Text: "Only at night"},
			}},
		},
	}
	if err := db.Quizzes().CreateQuiz(context.Background(), quiz); err != nil {
		t.Fatalf("failed to create test quiz: %v", err)
	}
	return quiz
}
