package service

import (
	"context"
	"log/slog"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/repository"
)

// UserService registers and reads user profiles.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// CreateUser validates req and stores the profile.
func (s *UserService) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	user, err := model.NewUser(req)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, passThrough("create user", err)
	}
	s.logger.Info("user created", slog.String("user_id", user.ID))
	return user, nil
}

// GetUser returns a profile with its back-references.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	id, err := requireID("user id", id)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, passThrough("get user", err)
	}
	return user, nil
}
