package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkly/internal/domain"
	"parkly/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSessionRepository errors on every call once broken.
type failingSessionRepository struct {
	inner  domain.SessionRepository
	broken bool
}

var errRepoDown = errors.New("repository down")

func (f *failingSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if f.broken {
		return nil, errRepoDown
	}
	return f.inner.GetSession(ctx, token)
}

func (f *failingSessionRepository) SetSession(ctx context.Context, session *models.Session) error {
	if f.broken {
		return errRepoDown
	}
	return f.inner.SetSession(ctx, session)
}

func (f *failingSessionRepository) DeleteSession(ctx context.Context, token string) error {
	if f.broken {
		return errRepoDown
	}
	return f.inner.DeleteSession(ctx, token)
}

func (f *failingSessionRepository) CheckRateLimit(ctx context.Context, token string, limit int, window time.Duration) (bool, error) {
	if f.broken {
		return false, errRepoDown
	}
	return f.inner.CheckRateLimit(ctx, token, limit, window)
}

func TestFailoverSessionRepository_PrimaryHealthy(t *testing.T) {
	logger := zerolog.Nop()
	primary := &failingSessionRepository{inner: NewMemorySessionRepository(time.Hour)}
	fallback := NewMemorySessionRepository(time.Hour)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	session := &models.Session{Token: "tok", Email: "a@example.com", Role: models.RoleUser}
	require.NoError(t, repo.SetSession(ctx, session))

	got, err := repo.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.Email)

	// The write was mirrored into the fallback.
	mirrored, err := fallback.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.NotNil(t, mirrored)
}

func TestFailoverSessionRepository_FallsBackOnError(t *testing.T) {
	logger := zerolog.Nop()
	primary := &failingSessionRepository{inner: NewMemorySessionRepository(time.Hour)}
	fallback := NewMemorySessionRepository(time.Hour)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	// Session written while the primary was healthy survives its outage.
	require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "tok", Email: "a@example.com"}))
	primary.broken = true

	got, err := repo.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.Email)

	// Writes during the outage land in the fallback.
	require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "tok2", Email: "b@example.com"}))
	got, err = repo.GetSession(ctx, "tok2")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestFailoverSessionRepository_PrimaryRecovery(t *testing.T) {
	logger := zerolog.Nop()
	primary := &failingSessionRepository{inner: NewMemorySessionRepository(time.Hour)}
	fallback := NewMemorySessionRepository(time.Hour)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "tok", Email: "a@example.com"}))

	primary.broken = true
	got, err := repo.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, repo.isDown.Load())

	// Primary recovers; once the hold-off elapses the next read probes it
	// and flips back.
	primary.broken = false
	repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

	got, err = repo.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.Email)
	assert.False(t, repo.isDown.Load())
}

func TestFailoverSessionRepository_RateLimitFallback(t *testing.T) {
	logger := zerolog.Nop()
	primary := &failingSessionRepository{inner: NewMemorySessionRepository(time.Hour), broken: true}
	fallback := NewMemorySessionRepository(time.Hour)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	allowed, err := repo.CheckRateLimit(ctx, "tok", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, "tok", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestFailoverSessionRepository_DeleteHitsBoth(t *testing.T) {
	logger := zerolog.Nop()
	primaryInner := NewMemorySessionRepository(time.Hour)
	primary := &failingSessionRepository{inner: primaryInner}
	fallback := NewMemorySessionRepository(time.Hour)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "tok", Email: "a@example.com"}))
	require.NoError(t, repo.DeleteSession(ctx, "tok"))

	got, err := primaryInner.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = fallback.GetSession(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}
