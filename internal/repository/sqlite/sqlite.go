// Package sqlite implements the repository interfaces on an embedded SQLite
// database (modernc.org/sqlite, pure Go, no cgo).
//
// One *DB owns the connection pool. The per-aggregate stores returned by
// Users, Quizzes and Ledger share it:
//
//	db, err := sqlite.New("data/disaster-ready.db")
//	users := db.Users()     // repository.UserRepository
//	quizzes := db.Quizzes() // repository.QuizRepository
//	ledger := db.Ledger()   // repository.LedgerRepository
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
//
// dbPath examples:
//   - "data/disaster-ready.db" → file-based database (persistent)
//   - ":memory:"               → in-memory database (tests)
//
// foreign_keys and busy_timeout are per-connection settings in SQLite, so
// they go in the DSN and the driver applies them to every pooled connection.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress. It is a
	// property of the database file, so setting it once is enough.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the credential store.
func (db *DB) Users() *UserStore { return &UserStore{conn: db.conn} }

// Quizzes returns the quiz catalog.
func (db *DB) Quizzes() *QuizStore { return &QuizStore{conn: db.conn} }

// Ledger returns the earned-points ledger.
func (db *DB) Ledger() *LedgerStore { return &LedgerStore{conn: db.conn} }

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it safe to run
// on every start.
//
// The earned_points primary key is what makes crediting idempotent: a second
// insert for the same (user, question) is a no-op, never a second row.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			score         INTEGER NOT NULL DEFAULT 0 CHECK (score >= 0),
			is_admin      INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_score ON users(score DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS quizzes (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			title         TEXT NOT NULL,
			disaster_type TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS questions (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
			text    TEXT NOT NULL,
			points  INTEGER NOT NULL CHECK (points > 0)
		);
		CREATE INDEX IF NOT EXISTS idx_questions_quiz_id ON questions(quiz_id);
		CREATE TABLE IF NOT EXISTS choices (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			text        TEXT NOT NULL,
			is_correct  INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_choices_question_id ON choices(question_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_choices_one_correct
			ON choices(question_id) WHERE is_correct = 1;
	`)
	if err != nil {
		return fmt.Errorf("creating quiz tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS earned_points (
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			question_id INTEGER NOT NULL REFERENCES questions(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, question_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating earned_points table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// placeholders returns "?, ?, ?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
