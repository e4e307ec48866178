package repository

import (
	"context"
	"sync"

	"github.com/immxrtalbeast/axenix_call/internal/domain"
)

type InMemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[string]*domain.User
	emails map[string]string
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:  make(map[string]*domain.User),
		emails: make(map[string]string),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return ErrUserExists
	}
	if user.Email != "" {
		if _, ok := r.emails[user.Email]; ok {
			return ErrUserEmailExists
		}
		r.emails[user.Email] = user.ID
	}

	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	found := *user
	return &found, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if user.Email != "" && user.Email != existing.Email {
		if owner, taken := r.emails[user.Email]; taken && owner != user.ID {
			return ErrUserEmailExists
		}
	}
	if existing.Email != "" && existing.Email != user.Email {
		delete(r.emails, existing.Email)
	}
	if user.Email != "" {
		r.emails[user.Email] = user.ID
	}

	stored := *user
	r.users[user.ID] = &stored
	return nil
}
