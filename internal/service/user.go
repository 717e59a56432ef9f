package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/disaster-ready/internal/apperror"
	"github.com/sakif/disaster-ready/internal/model"
	"github.com/sakif/disaster-ready/internal/repository"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// UserService backs the leaderboard and admin user management.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// UpdateUserInput carries the fields an admin may change. Nil means "leave
// as is". There is no Score field: score only moves through scoring.
type UpdateUserInput struct {
	Name    *string
	Email   *string
	IsAdmin *bool
}

func (s *UserService) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	if opts.Offset < 0 {
		return nil, apperror.ValidationFailed("offset", "offset must not be negative")
	}
	users, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: getting user %s: %w", id, err)
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: getting user %s: %w", id, err)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "name must not be empty")
		}
		user.Name = name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, apperror.ValidationFailed("email", "a valid email is required")
		}
		user.Email = email
	}
	if in.IsAdmin != nil {
		user.IsAdmin = *in.IsAdmin
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating user %s: %w", id, err)
	}

	s.logger.Info("user updated", slog.String("userID", id), slog.Bool("isAdmin", user.IsAdmin))
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("service/user: deleting user %s: %w", id, err)
	}
	s.logger.Info("user deleted", slog.String("userID", id))
	return nil
}

// SetAdminByEmail grants or revokes the admin role. It is the bootstrap path
// for the first administrator. Tokens already issued keep their old role
// until they expire.
func (s *UserService) SetAdminByEmail(ctx context.Context, email string, isAdmin bool) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("service/user: finding %s: %w", email, err)
	}
	return s.Update(ctx, user.ID, UpdateUserInput{IsAdmin: &isAdmin})
}

// Leaderboard returns the top users by score. limit is clamped to
// [1, MaxLeaderboardSize]; zero selects DefaultLeaderboardSize.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	switch {
	case limit == 0:
		limit = DefaultLeaderboardSize
	case limit < 0:
		return nil, apperror.ValidationFailed("limit", "limit must be positive")
	case limit > MaxLeaderboardSize:
		limit = MaxLeaderboardSize
	}

	entries, err := s.users.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service/user: leaderboard: %w", err)
	}
	return entries, nil
}

// IsNotFound is a small helper for callers that treat a missing user
// specially (the CLI, for one).
func IsNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
