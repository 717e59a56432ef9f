package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/disaster-ready/internal/repository"
)

var _ repository.LedgerRepository = (*LedgerStore)(nil)

// LedgerStore is the SQLite earned-points ledger.
type LedgerStore struct {
	conn *sql.DB
}

func (s *LedgerStore) HasRecord(ctx context.Context, userID string, questionID int64) (bool, error) {
	var exists bool
	err := s.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM earned_points WHERE user_id = ? AND question_id = ?)`,
		userID, questionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking ledger (%s, %d): %w", userID, questionID, err)
	}
	return exists, nil
}

// InsertIfAbsent relies on the (user_id, question_id) primary key. When two
// requests race, exactly one statement affects a row; the other sees zero
// rows affected and reports inserted=false.
func (s *LedgerStore) InsertIfAbsent(ctx context.Context, userID string, questionID int64) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO earned_points (user_id, question_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, question_id) DO NOTHING`,
		userID, questionID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("sqlite: recording ledger (%s, %d): %w", userID, questionID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking ledger insert: %w", err)
	}
	return n == 1, nil
}
