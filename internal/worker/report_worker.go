package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parkly/internal/database"
	"parkly/internal/models"

	"github.com/rs/zerolog"
)

// ReportAppender persists one closed ledger record to the rolling report.
type ReportAppender interface {
	AppendRecord(record *models.BookingHistory) error
}

// ReportWorker consumes report_queue tasks and appends closed ledger entries
// to the XLSX ledger. Tasks are persisted before scheduling so a crash never
// loses a record; failed appends retry with exponential backoff.
type ReportWorker struct {
	db           *database.DB
	appender     ReportAppender
	retryPolicy  RetryPolicy
	queue        chan models.ReportTask
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

// NewReportWorker builds a worker; zero fields in retry fall back to
// DefaultRetryPolicy.
func NewReportWorker(db *database.DB, appender ReportAppender, retry RetryPolicy, logger *zerolog.Logger) *ReportWorker {
	return &ReportWorker{
		db:           db,
		appender:     appender,
		retryPolicy:  retry.normalized(),
		queue:        make(chan models.ReportTask, models.WorkerQueueSize),
		pollInterval: 2 * time.Second,
		batchSize:    20,
		logger:       logger,
	}
}

// EnqueueRecord persists the record as a task and schedules it.
func (w *ReportWorker) EnqueueRecord(ctx context.Context, record *models.BookingHistory) error {
	if record == nil || record.ID == 0 {
		return fmt.Errorf("history record id is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.ReportTask{
		HistoryID: record.ID,
		Payload:   string(payload),
		Status:    models.TaskStatusPending,
	}
	if err := w.db.CreateReportTask(ctx, &task); err != nil {
		return err
	}

	select {
	case w.queue <- task:
	default:
		// Channel full; the poll loop picks the task up from the database.
	}
	return nil
}

// Start runs the worker loop until the context is cancelled.
func (w *ReportWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("report worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("report worker stopped")
			return
		case task := <-w.queue:
			w.process(ctx, task)
		case <-ticker.C:
			w.drainPending(ctx)
		}
	}
}

func (w *ReportWorker) drainPending(ctx context.Context) {
	tasks, err := w.db.GetPendingReportTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to load pending report tasks")
		return
	}
	for _, task := range tasks {
		w.process(ctx, task)
	}
}

func (w *ReportWorker) process(ctx context.Context, task models.ReportTask) {
	var record models.BookingHistory
	if err := json.Unmarshal([]byte(task.Payload), &record); err != nil {
		// An undecodable payload never improves; park it immediately.
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("bad report task payload")
		_ = w.db.MarkReportTaskRetry(ctx, task.ID, w.retryPolicy.MaxRetries, err.Error(), time.Now(), true)
		return
	}

	if err := w.appender.AppendRecord(&record); err != nil {
		retryCount := task.RetryCount + 1
		nextRetry := w.retryPolicy.NextAttemptAt(time.Now(), retryCount)
		w.logger.Warn().Err(err).
			Int64("task_id", task.ID).
			Int("retry", retryCount).
			Time("next_retry_at", nextRetry).
			Msg("report append failed")
		_ = w.db.MarkReportTaskRetry(ctx, task.ID, retryCount, err.Error(), nextRetry, w.retryPolicy.Exhausted(retryCount))
		return
	}

	if err := w.db.MarkReportTaskDone(ctx, task.ID); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("failed to mark report task done")
	}
}
