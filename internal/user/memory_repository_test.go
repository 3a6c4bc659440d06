package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(id, email string, createdAt time.Time) *User {
	return &User{
		ID:             id,
		Email:          email,
		FullName:       "Test User",
		HashedPassword: "hash",
		Salt:           "salt",
		RefreshToken:   "refresh-" + id,
		CreatedAt:      createdAt,
	}
}

func TestMemoryRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newTestUser("u1", "a@example.com", now)))
	assert.ErrorIs(t, repo.Create(ctx, newTestUser("u2", "a@example.com", now)), ErrDuplicateEmail)

	got, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepositoryGetByIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newTestUser("u1", "a@example.com", now)))
	require.NoError(t, repo.Create(ctx, newTestUser("u2", "b@example.com", now)))

	users, err := repo.GetByIDs(ctx, []string{"u1", "u2", "u1", "ghost"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestMemoryRepositoryCheckRefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, newTestUser("u1", "a@example.com", time.Now())))

	ok, err := repo.CheckRefreshToken(ctx, "u1", "refresh-u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CheckRefreshToken(ctx, "u1", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.CheckRefreshToken(ctx, "ghost", "refresh-u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepositoryDeleteCreatedBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newTestUser("old", "old@example.com", cutoff.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, newTestUser("new", "new@example.com", cutoff.Add(time.Hour))))

	n, err := repo.DeleteCreatedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByID(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, "new")
	assert.NoError(t, err)
}
