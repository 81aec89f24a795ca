package repository

import (
	"context"
	"testing"
	"time"

	"parkly/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSessionRepository(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	session := &models.Session{
		Token: "tok-redis",
		Email: "bob@example.com",
		Role:  models.RoleAdmin,
	}
	require.NoError(t, repo.SetSession(ctx, session))

	// Stored under the session: prefix with the configured TTL.
	assert.True(t, mr.Exists("session:tok-redis"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("session:tok-redis").Seconds(), 1)

	got, err := repo.GetSession(ctx, "tok-redis")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bob@example.com", got.Email)
	assert.Equal(t, models.RoleAdmin, got.Role)

	got, err = repo.GetSession(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.DeleteSession(ctx, "tok-redis"))
	assert.False(t, mr.Exists("session:tok-redis"))
}

func TestRedisSessionRepository_RateLimit(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "tok", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, "tok", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisSessionRepository_ErrorAfterClose(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	mr.Close()

	_, err := repo.GetSession(ctx, "any")
	assert.Error(t, err)

	err = repo.SetSession(ctx, &models.Session{Token: "any"})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	mr, client := newTestRedis(t)

	assert.NoError(t, Ping(context.Background(), client))

	mr.Close()
	assert.Error(t, Ping(context.Background(), client))
}
