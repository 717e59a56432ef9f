package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakif/disaster-ready/internal/repository"
)

var _ repository.LedgerRepository = (*LedgerStore)(nil)

type LedgerStore struct {
	pool *pgxpool.Pool
}

func (s *LedgerStore) HasRecord(ctx context.Context, userID string, questionID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM earned_points WHERE user_id = $1 AND question_id = $2)`,
		userID, questionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: checking ledger (%s, %d): %w", userID, questionID, err)
	}
	return exists, nil
}

// InsertIfAbsent: ON CONFLICT DO NOTHING makes the losing side of a race
// affect zero rows instead of raising a unique violation.
func (s *LedgerStore) InsertIfAbsent(ctx context.Context, userID string, questionID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO earned_points (user_id, question_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, question_id) DO NOTHING`,
		userID, questionID)
	if err != nil {
		return false, fmt.Errorf("postgres: recording ledger (%s, %d): %w", userID, questionID, err)
	}
	return tag.RowsAffected() == 1, nil
}
