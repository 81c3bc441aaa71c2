package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/msomdec/user-board/internal/domain"
)

// Seed users inserted into an empty store.
var defaultUsers = []domain.NewUser{
	{Name: "a8m", Age: 30},
}

// UserService backs the collection endpoint.
type UserService struct {
	users domain.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

// Create validates the input and stores a new user.
func (s *UserService) Create(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if in.Age < 0 {
		return nil, fmt.Errorf("%w: age must not be negative", domain.ErrInvalidInput)
	}

	user := &domain.User{Name: name, Age: in.Age}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user created", "id", user.ID, "name", user.Name)
	return user, nil
}

// List returns the whole collection. It never returns a nil slice on success.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *UserService) GetByName(ctx context.Context, name string) (*domain.User, error) {
	return s.users.GetByName(ctx, name)
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// SeedDefaults inserts the default users when the store is empty. Safe to call
// on every start-up.
func (s *UserService) SeedDefaults(ctx context.Context) error {
	n, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, u := range defaultUsers {
		if _, err := s.Create(ctx, u); err != nil {
			return fmt.Errorf("seed %s: %w", u.Name, err)
		}
	}
	return nil
}
