package repository

import (
	"context"
	"errors"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrUserEmailExists = errors.New("user with email already exists")
)

// UserRepository is the user directory the signaling core consults for
// display names. It is owned by the surrounding application.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}
