package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/immxrtalbeast/axenix_call/internal/config"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) *GormUserRepository {
	t.Helper()
	db, err := OpenDatabase(config.DirectoryConfig{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "users.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormUserRepository(db)
}

func repositories(t *testing.T) map[string]UserRepository {
	return map[string]UserRepository{
		"memory": NewInMemoryUserRepository(),
		"sqlite": newSQLiteRepo(t),
	}
}

func TestUserRepository_CreateGetUpdate(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, repo.Create(ctx, domain.NewUser("u1", "Alice", "alice@example.com")))

			got, err := repo.GetByID(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "Alice", got.Name)
			assert.Equal(t, "alice@example.com", got.Email)

			got.Name = "Alice B."
			got.Email = ""
			require.NoError(t, repo.Update(ctx, got))

			got, err = repo.GetByID(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "Alice B.", got.Name)
			assert.Empty(t, got.Email)
		})
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.GetByID(ctx, "missing")
			assert.ErrorIs(t, err, ErrUserNotFound)

			err = repo.Update(ctx, domain.NewUser("missing", "Nobody", ""))
			assert.ErrorIs(t, err, ErrUserNotFound)
		})
	}
}

func TestUserRepository_RespectsCanceledContext(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := repo.GetByID(ctx, "u1")
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestInMemoryUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewInMemoryUserRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewUser("u1", "Alice", "a@example.com")))
	assert.ErrorIs(t, repo.Create(ctx, domain.NewUser("u2", "Eve", "a@example.com")), ErrUserEmailExists)
	assert.ErrorIs(t, repo.Create(ctx, domain.NewUser("u1", "Alice", "")), ErrUserExists)
}

func TestOpenDatabase_RejectsUnknownDriver(t *testing.T) {
	_, err := OpenDatabase(config.DirectoryConfig{Driver: "mongo", DSN: "x"})
	assert.Error(t, err)

	_, err = OpenDatabase(config.DirectoryConfig{Driver: DriverSQLite})
	assert.Error(t, err)
}
