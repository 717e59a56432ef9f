package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

var errStorage = errors.New("storage unavailable")

// quietLogger only prints errors, keeping test output readable.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeUserRepo is an in-memory repository.UserRepository. All access is
// mutex-guarded so it can back concurrency tests.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	// set to a non-nil error to simulate a database failure
	getByIDErr    error
	getByEmailErr error
	incrementErr  error

	incrementCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) add(name, email, hash string, isAdmin bool) *model.User {
	u := &model.User{Name: name, Email: email, PasswordHash: hash, IsAdmin: isAdmin}
	if err := f.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fakeUserRepo) score(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].Score
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	user.ID = xid.New().String()
	user.Score = 0
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByEmailErr != nil {
		return nil, f.getByEmailErr
	}
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	for id, u := range f.users {
		if id != user.ID && u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	existing.Name = user.Name
	existing.Email = user.Email
	existing.IsAdmin = user.IsAdmin
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) IncrementScore(ctx context.Context, id string, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementCalls++
	if f.incrementErr != nil {
		return f.incrementErr
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Score += points
	return nil
}

func (f *fakeUserRepo) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.LeaderboardEntry{}
	for _, u := range f.users {
		out = append(out, model.LeaderboardEntry{ID: u.ID, Name: u.Name, Score: u.Score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeQuizRepo is an in-memory repository.QuizRepository.
type fakeQuizRepo struct {
	mu      sync.Mutex
	quizzes map[int64]*model.Quiz
	nextID  int64

	getErr     error
	correctErr error
	asked      [][]int64
}

func newFakeQuizRepo() *fakeQuizRepo {
	return &fakeQuizRepo{quizzes: make(map[int64]*model.Quiz)}
}

func (f *fakeQuizRepo) ListQuizzes(ctx context.Context) ([]model.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Quiz{}
	for _, q := range f.quizzes {
		out = append(out, model.Quiz{ID: q.ID, Title: q.Title, DisasterType: q.DisasterType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeQuizRepo) GetQuizWithQuestions(ctx context.Context, id int64) (*model.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	q, ok := f.quizzes[id]
	if !ok {
		return nil, apperror.NotFound("quiz", strconv.FormatInt(id, 10))
	}
	cp := *q
	cp.Questions = append([]model.Question(nil), q.Questions...)
	return &cp, nil
}

func (f *fakeQuizRepo) CorrectChoices(ctx context.Context, ids []int64) (map[int64]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, ids)
	if f.correctErr != nil {
		return nil, f.correctErr
	}
	out := map[int64]int64{}
	for _, q := range f.quizzes {
		for _, question := range q.Questions {
			for _, id := range ids {
				if id != question.ID {
					continue
				}
				for _, c := range question.Choices {
					if c.IsCorrect {
						out[id] = c.ID
					}
				}
			}
		}
	}
	return out, nil
}

func (f *fakeQuizRepo) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	quiz.ID = f.nextID
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		f.nextID++
		q.ID = f.nextID
		q.QuizID = quiz.ID
		for j := range q.Choices {
			f.nextID++
			q.Choices[j].ID = f.nextID
			q.Choices[j].QuestionID = q.ID
		}
	}
	cp := *quiz
	f.quizzes[quiz.ID] = &cp
	return nil
}

// fakeLedger is an in-memory repository.LedgerRepository. InsertIfAbsent is
// a single critical section, like the unique-key insert it stands in for.
type fakeLedger struct {
	mu      sync.Mutex
	records map[string]bool

	hasErr    error
	insertErr error
	// failAfter makes InsertIfAbsent fail once this many inserts succeeded;
	// zero disables it.
	failAfter int
	inserts   int
	// skipHas makes HasRecord always report false so every call reaches
	// InsertIfAbsent, exercising the race path.
	skipHas bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]bool)}
}

func ledgerKey(userID string, questionID int64) string {
	return userID + "/" + strconv.FormatInt(questionID, 10)
}

func (f *fakeLedger) HasRecord(ctx context.Context, userID string, questionID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasErr != nil {
		return false, f.hasErr
	}
	if f.skipHas {
		return false, nil
	}
	return f.records[ledgerKey(userID, questionID)], nil
}

func (f *fakeLedger) InsertIfAbsent(ctx context.Context, userID string, questionID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if f.failAfter > 0 && f.inserts >= f.failAfter {
		return false, errStorage
	}
	key := ledgerKey(userID, questionID)
	if f.records[key] {
		return false, nil
	}
	f.records[key] = true
	f.inserts++
	return true, nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeRecorder counts scoring events.
type fakeRecorder struct {
	mu         sync.Mutex
	credited   int
	suppressed int
	outcomes   map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: map[string]int{}}
}

func (r *fakeRecorder) PointsCredited(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credited += n
}

func (r *fakeRecorder) CreditSuppressed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed++
}

func (r *fakeRecorder) Submission(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}
