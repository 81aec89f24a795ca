package models

import "time"

// ReportTask is a persisted unit of work for the report worker: a closed
// history record waiting to be appended to the XLSX report.
type ReportTask struct {
	ID          int64      `json:"id"`
	HistoryID   int64      `json:"history_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"` // pending, retry, done, failed
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}
