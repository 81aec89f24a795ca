package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parkly/internal/models"
)

func (db *DB) CreateReportTask(ctx context.Context, task *models.ReportTask) error {
	query := `INSERT INTO report_queue (history_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		task.HistoryID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetPendingReportTasks(ctx context.Context, limit int) ([]models.ReportTask, error) {
	query := `SELECT id, history_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM report_queue
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending report tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.ReportTask
	for rows.Next() {
		var t models.ReportTask
		var lastError sql.NullString
		var processedAt, nextRetryAt sql.NullTime
		err := rows.Scan(
			&t.ID, &t.HistoryID, &t.Payload, &t.Status, &t.RetryCount,
			&lastError, &t.CreatedAt, &processedAt, &nextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report task: %w", err)
		}
		t.LastError = lastError.String
		if processedAt.Valid {
			v := processedAt.Time
			t.ProcessedAt = &v
		}
		if nextRetryAt.Valid {
			v := nextRetryAt.Time
			t.NextRetryAt = &v
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (db *DB) MarkReportTaskDone(ctx context.Context, id int64) error {
	query := `UPDATE report_queue SET status = ?, processed_at = ?, last_error = NULL WHERE id = ?`
	_, err := db.ExecContext(ctx, query, models.TaskStatusDone, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark report task done: %w", err)
	}
	return nil
}

// MarkReportTaskRetry schedules another attempt, or parks the task as failed
// when the caller reports attempts exhausted.
func (db *DB) MarkReportTaskRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time, exhausted bool) error {
	status := models.TaskStatusRetry
	if exhausted {
		status = models.TaskStatusFailed
	}
	query := `UPDATE report_queue SET status = ?, retry_count = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, status, retryCount, lastError, nextRetryAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark report task for retry: %w", err)
	}
	return nil
}
