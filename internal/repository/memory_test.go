package repository

import (
	"context"
	"testing"
	"time"

	"parkly/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionRepository(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()

	session := &models.Session{
		Token: "tok-1",
		Email: "alice@example.com",
		Role:  models.RoleUser,
	}
	require.NoError(t, repo.SetSession(ctx, session))

	got, err := repo.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, models.RoleUser, got.Role)

	// Unknown token resolves to nil session, not an error.
	got, err = repo.GetSession(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.DeleteSession(ctx, "tok-1"))
	got, err = repo.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySessionRepository_TTLExpiry(t *testing.T) {
	repo := NewMemorySessionRepository(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "short", Email: "x@example.com"}))

	time.Sleep(30 * time.Millisecond)

	got, err := repo.GetSession(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySessionRepository_RateLimit(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "tok", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, "tok", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different token has its own counter.
	allowed, err = repo.CheckRateLimit(ctx, "other", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemorySessionRepository_RateLimitWindowReset(t *testing.T) {
	repo := NewMemorySessionRepository(time.Hour)
	ctx := context.Background()

	allowed, err := repo.CheckRateLimit(ctx, "tok", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, "tok", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, allowed)

	time.Sleep(20 * time.Millisecond)

	allowed, err = repo.CheckRateLimit(ctx, "tok", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)
}
