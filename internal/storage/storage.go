// Package storage opens the configured database backend and hands out the
// repositories the services need.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/disaster-ready/internal/cache"
	"github.com/sakif/disaster-ready/internal/config"
	"github.com/sakif/disaster-ready/internal/repository"
	"github.com/sakif/disaster-ready/internal/repository/postgres"
	"github.com/sakif/disaster-ready/internal/repository/sqlite"
)

// Stores groups the repositories of one backend. Close releases the
// underlying pool.
type Stores struct {
	Users   repository.UserRepository
	Quizzes repository.QuizRepository
	Ledger  repository.LedgerRepository
	Close   func() error
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.Database) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("storage: creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:   db.Users(),
			Quizzes: db.Quizzes(),
			Ledger:  db.Ledger(),
			Close:   db.Close,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Users:   db.Users(),
			Quizzes: db.Quizzes(),
			Ledger:  db.Ledger(),
			Close:   db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

// OpenCached opens the database like Open and, when cfg.Redis.Addr is set,
// puts the Redis catalog cache in front of the quiz store. An unreachable
// Redis at startup is an error; later Redis failures only degrade to the
// database.
func OpenCached(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Stores, error) {
	stores, err := Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Redis.Addr == "" {
		return stores, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		_ = stores.Close()
		return nil, fmt.Errorf("storage: connecting to redis at %s: %w", cfg.Redis.Addr, err)
	}

	logger.Info("quiz catalog cache enabled",
		slog.String("addr", cfg.Redis.Addr),
		slog.Duration("ttl", cfg.CacheTTL()),
	)

	closeDB := stores.Close
	stores.Quizzes = cache.NewQuizCatalog(client, stores.Quizzes, cfg.CacheTTL(), logger)
	stores.Close = func() error {
		return errors.Join(client.Close(), closeDB())
	}
	return stores, nil
}
