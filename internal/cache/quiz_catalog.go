// Package cache provides a Redis read-through cache for the quiz catalog.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/repository"
)

var _ repository.QuizRepository = (*QuizCatalog)(nil)

const (
	quizListKey   = "catalog:quizzes"
	correctHash   = "catalog:correct"
	quizKeyPrefix = "catalog:quiz:"

	// loadTimeout bounds a shared store load, which no longer follows any
	// single caller's deadline.
	loadTimeout = 10 * time.Second
)

// QuizCatalog decorates a QuizRepository with Redis caching.
//
// Layout:
//
//	GET  catalog:quizzes        → JSON list of quiz headers
//	GET  catalog:quiz:{id}      → JSON quiz with questions and choices
//	HGET catalog:correct {qid}  → correct choice id
//
// Redis failures are logged and fall through to the backing store; the cache
// never turns a readable catalog into an error. Concurrent misses for the
// same key are collapsed with singleflight.
type QuizCatalog struct {
	client *redis.Client
	next   repository.QuizRepository
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group
}

func NewQuizCatalog(client *redis.Client, next repository.QuizRepository, ttl time.Duration, logger *slog.Logger) *QuizCatalog {
	return &QuizCatalog{client: client, next: next, ttl: ttl, logger: logger}
}

func (c *QuizCatalog) ListQuizzes(ctx context.Context) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	if c.getJSON(ctx, quizListKey, &quizzes) {
		return quizzes, nil
	}

	v, err := c.load(ctx, quizListKey, func(ctx context.Context) (any, error) {
		quizzes, err := c.next.ListQuizzes(ctx)
		if err != nil {
			return nil, err
		}
		c.setJSON(ctx, quizListKey, quizzes)
		return quizzes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Quiz), nil
}

func (c *QuizCatalog) GetQuizWithQuestions(ctx context.Context, quizID int64) (*model.Quiz, error) {
	key := quizKeyPrefix + strconv.FormatInt(quizID, 10)

	var quiz model.Quiz
	if c.getJSON(ctx, key, &quiz) {
		return &quiz, nil
	}

	v, err := c.load(ctx, key, func(ctx context.Context) (any, error) {
		// Re-check in case another caller filled it.
		var cached model.Quiz
		if c.getJSON(ctx, key, &cached) {
			return &cached, nil
		}
		q, err := c.next.GetQuizWithQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		c.setJSON(ctx, key, q)
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Quiz), nil
}

// load collapses concurrent misses for key into one call of fn. fn runs on a
// context detached from the caller's cancellation, so a client that goes
// away does not fail the other callers waiting on the same key. Each caller
// still stops waiting when its own ctx is done.
func (c *QuizCatalog) load(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.sf.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return fn(loadCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CorrectChoices serves what it can from the hash and loads the rest from
// the backing store in one call.
func (c *QuizCatalog) CorrectChoices(ctx context.Context, questionIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(questionIDs))
	if len(questionIDs) == 0 {
		return result, nil
	}

	fields := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		fields[i] = strconv.FormatInt(id, 10)
	}

	var missing []int64
	vals, err := c.client.HMGet(ctx, correctHash, fields...).Result()
	if err != nil {
		c.logger.Warn("cache: reading correct choices", slog.String("error", err.Error()))
		missing = questionIDs
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, questionIDs[i])
				continue
			}
			cid, perr := strconv.ParseInt(s, 10, 64)
			if perr != nil {
				missing = append(missing, questionIDs[i])
				continue
			}
			result[questionIDs[i]] = cid
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	loaded, err := c.next.CorrectChoices(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(loaded) > 0 {
		values := make(map[string]any, len(loaded))
		for qid, cid := range loaded {
			result[qid] = cid
			values[strconv.FormatInt(qid, 10)] = cid
		}
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, correctHash, values)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, correctHash, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			c.logger.Warn("cache: writing correct choices", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

// CreateQuiz writes through to the backing store and drops the cached list.
func (c *QuizCatalog) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	if err := c.next.CreateQuiz(ctx, quiz); err != nil {
		return err
	}
	if err := c.client.Del(ctx, quizListKey).Err(); err != nil {
		c.logger.Warn("cache: invalidating quiz list", slog.String("error", err.Error()))
	}
	return nil
}

func (c *QuizCatalog) getJSON(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache: get", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("cache: decoding entry", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

func (c *QuizCatalog) setJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err(); err != nil {
		c.logger.Warn("cache: set", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// ttlWithJitter spreads expiries over ttl..1.1*ttl so entries written
// together do not all expire together.
func (c *QuizCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
