package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"parkly/internal/database"
	"parkly/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_NextDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 8*time.Second, policy.NextDelay(4))
	// Clamped to MaxDelay past that
	assert.Equal(t, 10*time.Second, policy.NextDelay(5))
	assert.Equal(t, 10*time.Second, policy.NextDelay(20))
}

func TestRetryPolicy_Defaults(t *testing.T) {
	// A zero policy behaves like DefaultRetryPolicy.
	policy := RetryPolicy{}
	def := DefaultRetryPolicy()
	assert.Equal(t, def.InitialDelay, policy.NextDelay(0))
	assert.Equal(t, def.InitialDelay, policy.NextDelay(1))
	assert.Equal(t, 2*def.InitialDelay, policy.NextDelay(2))
	assert.Equal(t, def.MaxDelay, policy.NextDelay(50))
}

func TestRetryPolicy_NextAttemptAt(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(time.Second), policy.NextAttemptAt(now, 1))
	assert.Equal(t, now.Add(4*time.Second), policy.NextAttemptAt(now, 3))
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))
	assert.True(t, policy.Exhausted(4))

	// Zero policy uses the default budget.
	assert.False(t, RetryPolicy{}.Exhausted(4))
	assert.True(t, RetryPolicy{}.Exhausted(DefaultRetryPolicy().MaxRetries))
}

func newWorkerDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// flakyAppender fails a fixed number of times before succeeding.
type flakyAppender struct {
	failures int
	appended []*models.BookingHistory
}

func (a *flakyAppender) AppendRecord(record *models.BookingHistory) error {
	if a.failures > 0 {
		a.failures--
		return errors.New("transient write error")
	}
	a.appended = append(a.appended, record)
	return nil
}

func closedRecord(id int64) *models.BookingHistory {
	leavingAt := time.Now()
	duration := 1.0
	cost := 20.0
	return &models.BookingHistory{
		ID:         id,
		UserEmail:  "driver@example.com",
		LotName:    "Central",
		SpotNumber: "S1",
		BookedAt:   leavingAt.Add(-time.Hour),
		LeavingAt:  &leavingAt,
		Duration:   &duration,
		Cost:       &cost,
	}
}

func TestReportWorker_EnqueuePersistsTask(t *testing.T) {
	db := newWorkerDB(t)
	logger := zerolog.Nop()
	w := NewReportWorker(db, &flakyAppender{}, RetryPolicy{}, &logger)
	ctx := context.Background()

	require.NoError(t, w.EnqueueRecord(ctx, closedRecord(11)))

	tasks, err := db.GetPendingReportTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(11), tasks[0].HistoryID)
	assert.Equal(t, models.TaskStatusPending, tasks[0].Status)
}

func TestReportWorker_EnqueueRejectsUnsavedRecord(t *testing.T) {
	db := newWorkerDB(t)
	logger := zerolog.Nop()
	w := NewReportWorker(db, &flakyAppender{}, RetryPolicy{}, &logger)

	assert.Error(t, w.EnqueueRecord(context.Background(), &models.BookingHistory{}))
	assert.Error(t, w.EnqueueRecord(context.Background(), nil))
}

func TestReportWorker_ProcessSuccess(t *testing.T) {
	db := newWorkerDB(t)
	logger := zerolog.Nop()
	appender := &flakyAppender{}
	w := NewReportWorker(db, appender, RetryPolicy{}, &logger)
	ctx := context.Background()

	require.NoError(t, w.EnqueueRecord(ctx, closedRecord(5)))
	w.drainPending(ctx)

	require.Len(t, appender.appended, 1)
	assert.Equal(t, int64(5), appender.appended[0].ID)
	assert.Equal(t, "S1", appender.appended[0].SpotNumber)

	// The task is done and no longer pending.
	tasks, err := db.GetPendingReportTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestReportWorker_RetriesThenSucceeds(t *testing.T) {
	db := newWorkerDB(t)
	logger := zerolog.Nop()
	appender := &flakyAppender{failures: 1}
	w := NewReportWorker(db, appender, RetryPolicy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, &logger)
	ctx := context.Background()

	require.NoError(t, w.EnqueueRecord(ctx, closedRecord(7)))

	// First pass fails and schedules a retry.
	w.drainPending(ctx)
	assert.Empty(t, appender.appended)

	time.Sleep(5 * time.Millisecond)

	// Second pass picks the retry up and succeeds.
	w.drainPending(ctx)
	require.Len(t, appender.appended, 1)
}

func TestReportWorker_ExhaustsRetries(t *testing.T) {
	db := newWorkerDB(t)
	logger := zerolog.Nop()
	appender := &flakyAppender{failures: 100}
	w := NewReportWorker(db, appender, RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, &logger)
	ctx := context.Background()

	require.NoError(t, w.EnqueueRecord(ctx, closedRecord(9)))

	for i := 0; i < 3; i++ {
		w.drainPending(ctx)
		time.Sleep(5 * time.Millisecond)
	}

	// The task is parked as failed and never retried again.
	tasks, err := db.GetPendingReportTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Empty(t, appender.appended)
}

func TestReportWorker_StartStops(t *testing.T) {
	db := newWorkerDB(t)
	logger := zerolog.Nop()
	w := NewReportWorker(db, &flakyAppender{}, RetryPolicy{}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}
