// Package postgres implements the repository interfaces on PostgreSQL using
// a pgx connection pool. It mirrors the sqlite package so the two backends
// are interchangeable behind the repository interfaces.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// DB owns the pgx pool shared by the per-aggregate stores.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to url, verifies the connection and applies the schema.
func New(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) Users() *UserStore { return &UserStore{pool: db.pool} }

func (db *DB) Quizzes() *QuizStore { return &QuizStore{pool: db.pool} }

func (db *DB) Ledger() *LedgerStore { return &LedgerStore{pool: db.pool} }

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			score         INTEGER NOT NULL DEFAULT 0 CHECK (score >= 0),
			is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_users_score ON users(score DESC);

		CREATE TABLE IF NOT EXISTS quizzes (
			id            BIGSERIAL PRIMARY KEY,
			title         TEXT NOT NULL,
			disaster_type TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS questions (
			id      BIGSERIAL PRIMARY KEY,
			quiz_id BIGINT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
			text    TEXT NOT NULL,
			points  INTEGER NOT NULL CHECK (points > 0)
		);
		CREATE INDEX IF NOT EXISTS idx_questions_quiz_id ON questions(quiz_id);
		CREATE TABLE IF NOT EXISTS choices (
			id          BIGSERIAL PRIMARY KEY,
			question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			text        TEXT NOT NULL,
			is_correct  BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_choices_question_id ON choices(question_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_choices_one_correct
			ON choices(question_id) WHERE is_correct;

		CREATE TABLE IF NOT EXISTS earned_points (
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			question_id BIGINT NOT NULL REFERENCES questions(id),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, question_id)
		);
	`)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
