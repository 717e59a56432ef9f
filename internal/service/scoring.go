package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/metrics"
	"github.com/sakif/disaster-ready/internal/repository"
)

// ScoringRecorder receives scoring events. metrics.Scoring implements it.
type ScoringRecorder interface {
	PointsCredited(n int)
	CreditSuppressed()
	Submission(outcome string)
}

// ScoringService turns a quiz submission into newly earned points.
//
// A question's points are credited to a user at most once, ever. The ledger
// insert is the gate: only the request whose insert actually creates the
// (user, question) record gets the points, so replays and concurrent
// duplicates earn nothing. The user's score is then raised by exactly the
// sum that passed the gate, keeping score equal to the ledger total.
type ScoringService struct {
	users    repository.UserRepository
	quizzes  repository.QuizRepository
	ledger   repository.LedgerRepository
	recorder ScoringRecorder
	logger   *slog.Logger
}

func NewScoringService(
	users repository.UserRepository,
	quizzes repository.QuizRepository,
	ledger repository.LedgerRepository,
	recorder ScoringRecorder,
	logger *slog.Logger,
) *ScoringService {
	return &ScoringService{
		users:    users,
		quizzes:  quizzes,
		ledger:   ledger,
		recorder: recorder,
		logger:   logger,
	}
}

// Submit scores answers (question id → chosen choice id) for quizID on
// behalf of userID and returns the points newly earned by this call.
//
//   - invalid input or unknown user: error, nothing written
//   - unknown or empty quiz: 0, nil
//   - answers for questions outside the quiz are ignored
//   - a correct answer already in the ledger earns 0
func (s *ScoringService) Submit(ctx context.Context, userID string, quizID int64, answers map[int64]int64) (int, error) {
	if userID == "" {
		s.recorder.Submission(metrics.OutcomeRejected)
		return 0, apperror.ValidationFailed("userId", "user id is required")
	}
	if quizID <= 0 {
		s.recorder.Submission(metrics.OutcomeRejected)
		return 0, apperror.ValidationFailed("quizId", "quizId must be a positive integer")
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		s.recorder.Submission(metrics.OutcomeRejected)
		return 0, fmt.Errorf("service/scoring: loading user %s: %w", userID, err)
	}

	quiz, err := s.quizzes.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.recorder.Submission(metrics.OutcomeNoCredit)
			return 0, nil
		}
		s.recorder.Submission(metrics.OutcomeFailed)
		return 0, fmt.Errorf("service/scoring: loading quiz %d: %w", quizID, err)
	}
	if len(quiz.Questions) == 0 {
		s.recorder.Submission(metrics.OutcomeNoCredit)
		return 0, nil
	}

	correct, err := s.quizzes.CorrectChoices(ctx, quiz.QuestionIDs())
	if err != nil {
		s.recorder.Submission(metrics.OutcomeFailed)
		return 0, fmt.Errorf("service/scoring: loading answers for quiz %d: %w", quizID, err)
	}

	total := 0
	for _, q := range quiz.Questions {
		chosen, answered := answers[q.ID]
		if !answered {
			continue
		}
		want, ok := correct[q.ID]
		if !ok || chosen != want {
			continue
		}

		earned, err := s.credit(ctx, userID, q.ID)
		if err != nil {
			// Records inserted so far are durable. Add their points before
			// bailing out, otherwise a retry would never earn them.
			s.settle(ctx, userID, total)
			s.recorder.Submission(metrics.OutcomeFailed)
			return 0, fmt.Errorf("service/scoring: crediting question %d: %w", q.ID, err)
		}
		if !earned {
			s.recorder.CreditSuppressed()
			continue
		}
		total += q.Points
	}

	if total == 0 {
		s.recorder.Submission(metrics.OutcomeNoCredit)
		return 0, nil
	}

	if err := s.users.IncrementScore(ctx, userID, total); err != nil {
		s.recorder.Submission(metrics.OutcomeFailed)
		return 0, fmt.Errorf("service/scoring: adding %d points to %s: %w", total, userID, err)
	}

	s.recorder.PointsCredited(total)
	s.recorder.Submission(metrics.OutcomeCredited)
	s.logger.Info("points credited",
		slog.String("userID", userID),
		slog.Int64("quizID", quizID),
		slog.Int("points", total),
	)
	return total, nil
}

// credit reports whether this call created the ledger record for
// (userID, questionID). HasRecord is a cheap read that skips the write for
// the common replay case; InsertIfAbsent decides races.
func (s *ScoringService) credit(ctx context.Context, userID string, questionID int64) (bool, error) {
	has, err := s.ledger.HasRecord(ctx, userID, questionID)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	return s.ledger.InsertIfAbsent(ctx, userID, questionID)
}

func (s *ScoringService) settle(ctx context.Context, userID string, points int) {
	if points == 0 {
		return
	}
	if err := s.users.IncrementScore(ctx, userID, points); err != nil {
		s.logger.Error("score out of sync with ledger",
			slog.String("userID", userID),
			slog.Int("points", points),
			slog.String("error", err.Error()),
		)
		return
	}
	s.recorder.PointsCredited(points)
}
