package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/repository"
	"github.com/immxrtalbeast/axenix_call/lib/logger/sl"
)

// UserService lets the surrounding application keep the user directory in
// sync with the display names the signaling core hands out.
type UserService struct {
	users repository.UserRepository
	log   *slog.Logger
}

func NewUserService(users repository.UserRepository, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, log: log}
}

func (s *UserService) CreateUser(ctx context.Context, id string, name string, email string) (*domain.User, error) {
	const op = "service.user.create"
	log := s.log.With(slog.String("op", op))

	name = strings.TrimSpace(name)
	if name == "" {
		log.Warn("no name provided")
		return nil, errors.New("name is required")
	}
	if id == "" {
		id = uuid.NewString()
	}

	user := domain.NewUser(id, name, strings.TrimSpace(email))
	if err := s.users.Create(ctx, user); err != nil {
		log.Error("failed to create user", sl.Err(err))
		return nil, err
	}
	log.Info("user created", slog.String("user_id", user.ID))
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) UpdateUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("user is required")
	}
	user.UpdatedAt = time.Now().UTC()
	return s.users.Update(ctx, user)
}
