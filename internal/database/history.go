package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkly/internal/models"
)

func insertHistoryTx(ctx context.Context, tx *sql.Tx, h *models.BookingHistory) error {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO booking_history (user_email, lot_name, spot_number, booked_at, car_number, car_model)
         VALUES (?, ?, ?, ?, ?, ?)`,
		h.UserEmail, h.LotName, h.SpotNumber, h.BookedAt, h.CarNumber, h.CarModel,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// closeHistoryTx fills leaving_at/duration/cost on the open record matching
// (user, lot name, spot number) and returns the closed record. If duplicates
// exist it closes the most-recently-opened one.
func closeHistoryTx(ctx context.Context, tx *sql.Tx, userEmail, lotName, spotNumber string, leavingAt time.Time, duration, cost float64) (*models.BookingHistory, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM booking_history
         WHERE user_email = ? AND lot_name = ? AND spot_number = ? AND leaving_at IS NULL
         ORDER BY booked_at DESC, id DESC LIMIT 1`,
		userEmail, lotName, spotNumber).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoOpenRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open history record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE booking_history SET leaving_at = ?, duration = ?, cost = ? WHERE id = ?`,
		leavingAt, duration, cost, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to close history record: %w", err)
	}

	record, err := scanHistory(tx.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM booking_history WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read closed history record: %w", err)
	}
	return record, nil
}

const historyColumns = `id, user_email, lot_name, spot_number, booked_at, leaving_at, duration, cost, car_number, car_model`

func scanHistory(row interface{ Scan(...any) error }) (*models.BookingHistory, error) {
	var h models.BookingHistory
	var leavingAt sql.NullTime
	var duration, cost sql.NullFloat64
	err := row.Scan(
		&h.ID, &h.UserEmail, &h.LotName, &h.SpotNumber, &h.BookedAt,
		&leavingAt, &duration, &cost, &h.CarNumber, &h.CarModel,
	)
	if err != nil {
		return nil, err
	}
	if leavingAt.Valid {
		t := leavingAt.Time
		h.LeavingAt = &t
	}
	if duration.Valid {
		d := duration.Float64
		h.Duration = &d
	}
	if cost.Valid {
		c := cost.Float64
		h.Cost = &c
	}
	return &h, nil
}

func (db *DB) queryHistory(ctx context.Context, query string, args ...any) ([]*models.BookingHistory, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []*models.BookingHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, h)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// GetUserHistory returns all of a user's records, open and closed, ordered
// by booking time ascending for history display.
func (db *DB) GetUserHistory(ctx context.Context, userEmail string) ([]*models.BookingHistory, error) {
	return db.queryHistory(ctx,
		`SELECT `+historyColumns+` FROM booking_history WHERE user_email = ? ORDER BY booked_at ASC, id ASC`,
		userEmail)
}

// GetAllHistory returns every ledger record ordered by booking time, for the
// admin report export.
func (db *DB) GetAllHistory(ctx context.Context) ([]*models.BookingHistory, error) {
	return db.queryHistory(ctx,
		`SELECT `+historyColumns+` FROM booking_history ORDER BY booked_at ASC, id ASC`)
}

// CountOpenRecords counts open ledger entries for the (user, lot, spot)
// triple. The invariant is at most one.
func (db *DB) CountOpenRecords(ctx context.Context, userEmail, lotName, spotNumber string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM booking_history
         WHERE user_email = ? AND lot_name = ? AND spot_number = ? AND leaving_at IS NULL`,
		userEmail, lotName, spotNumber).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open records: %w", err)
	}
	return count, nil
}
