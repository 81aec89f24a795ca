package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkly/internal/billing"
	"parkly/internal/models"
)

const spotColumns = `id, lot_id, spot_number, is_booked, booked_by, booked_at, released_at`

func scanSpot(row interface{ Scan(...any) error }) (*models.ParkingSpot, error) {
	var spot models.ParkingSpot
	var bookedBy sql.NullString
	var bookedAt, releasedAt sql.NullTime
	err := row.Scan(
		&spot.ID, &spot.LotID, &spot.SpotNumber, &spot.IsBooked,
		&bookedBy, &bookedAt, &releasedAt,
	)
	if err != nil {
		return nil, err
	}
	if bookedBy.Valid {
		spot.BookedBy = &bookedBy.String
	}
	if bookedAt.Valid {
		t := bookedAt.Time
		spot.BookedAt = &t
	}
	if releasedAt.Valid {
		t := releasedAt.Time
		spot.ReleasedAt = &t
	}
	return &spot, nil
}

func (db *DB) GetSpot(ctx context.Context, id int64) (*models.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots WHERE id = ?`
	spot, err := scanSpot(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spot: %w", err)
	}
	return spot, nil
}

func (db *DB) querySpots(ctx context.Context, query string, args ...any) ([]*models.ParkingSpot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spots: %w", err)
	}
	defer rows.Close()

	var spots []*models.ParkingSpot
	for rows.Next() {
		spot, err := scanSpot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan spot: %w", err)
		}
		spots = append(spots, spot)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return spots, nil
}

// Spot listings order by id, the creation order within a lot. Spot numbers
// are strings (S1..S10..) and do not sort correctly past S9.

func (db *DB) GetSpotsByLot(ctx context.Context, lotID int64) ([]*models.ParkingSpot, error) {
	return db.querySpots(ctx, `SELECT `+spotColumns+` FROM parking_spots WHERE lot_id = ? ORDER BY id`, lotID)
}

// GetFreeSpots returns the free spots of a lot. lotID 0 lists free spots
// across all lots.
func (db *DB) GetFreeSpots(ctx context.Context, lotID int64) ([]*models.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots WHERE is_booked = 0`
	args := []any{}
	if lotID != 0 {
		query += ` AND lot_id = ?`
		args = append(args, lotID)
	}
	return db.querySpots(ctx, query+` ORDER BY id`, args...)
}

func (db *DB) GetAllSpots(ctx context.Context) ([]*models.ParkingSpot, error) {
	return db.querySpots(ctx, `SELECT `+spotColumns+` FROM parking_spots ORDER BY id`)
}

// GetSpotsByOwner returns the spots currently booked by the user.
func (db *DB) GetSpotsByOwner(ctx context.Context, email string) ([]*models.ParkingSpot, error) {
	return db.querySpots(ctx, `SELECT `+spotColumns+` FROM parking_spots WHERE booked_by = ? AND is_booked = 1 ORDER BY id`, email)
}

// BookSpot marks a specific spot as booked by the user. The booking flag is
// checked and set inside one transaction, so two concurrent callers cannot
// both claim the spot and a second attempt never overwrites the owner.
// This direct path intentionally writes no history record; only
// ReserveFirstFree opens a ledger entry.
func (db *DB) BookSpot(ctx context.Context, spotID int64, userEmail string, now time.Time) (*models.ParkingSpot, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	spot, err := scanSpot(tx.QueryRowContext(ctx,
		`SELECT `+spotColumns+` FROM parking_spots WHERE id = ?`, spotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spot in tx: %w", err)
	}

	if spot.IsBooked {
		return nil, ErrSpotAlreadyBooked
	}

	bookedAt := now.Truncate(time.Second)
	_, err = tx.ExecContext(ctx,
		`UPDATE parking_spots SET is_booked = 1, booked_by = ?, booked_at = ?, released_at = NULL WHERE id = ?`,
		userEmail, bookedAt, spotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to book spot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	spot.IsBooked = true
	spot.BookedBy = &userEmail
	spot.BookedAt = &bookedAt
	spot.ReleasedAt = nil
	return spot, nil
}

// ReserveFirstFree books the first free spot of the lot in creation order and
// opens the matching history record. Spot mutation and ledger insert commit
// together or not at all.
func (db *DB) ReserveFirstFree(ctx context.Context, lotID int64, userEmail, carNumber, carModel string, now time.Time) (*models.ParkingSpot, *models.BookingHistory, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	lot, err := scanLot(tx.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM parking_lots WHERE id = ?`, lotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrLotNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get lot in tx: %w", err)
	}

	// First-fit: creation order, not spot-number order.
	spot, err := scanSpot(tx.QueryRowContext(ctx,
		`SELECT `+spotColumns+` FROM parking_spots WHERE lot_id = ? AND is_booked = 0 ORDER BY id LIMIT 1`, lotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNoAvailableSpot
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find free spot in tx: %w", err)
	}

	bookedAt := now.Truncate(time.Second)
	_, err = tx.ExecContext(ctx,
		`UPDATE parking_spots SET is_booked = 1, booked_by = ?, booked_at = ?, released_at = NULL WHERE id = ?`,
		userEmail, bookedAt, spot.ID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to book spot in tx: %w", err)
	}

	history := &models.BookingHistory{
		UserEmail:  userEmail,
		LotName:    lot.Name,
		SpotNumber: spot.SpotNumber,
		BookedAt:   bookedAt,
		CarNumber:  carNumber,
		CarModel:   carModel,
	}
	if err := insertHistoryTx(ctx, tx, history); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	spot.IsBooked = true
	spot.BookedBy = &userEmail
	spot.BookedAt = &bookedAt
	spot.ReleasedAt = nil
	return spot, history, nil
}

// ReleaseResult carries the outcome of a spot release.
type ReleaseResult struct {
	Spot       *models.ParkingSpot
	LotName    string
	BookedAt   time.Time
	ReleasedAt time.Time
	Duration   float64 // hours
	Cost       float64
	Record     *models.BookingHistory // closed ledger entry, nil on LedgerMiss
	LedgerMiss bool                   // no open history record matched; release proceeded anyway
}

// ReleaseSpot frees a spot booked by requester, computes duration and cost
// from the lot's hourly price, and closes the open ledger entry. Ownership
// check, billing, spot mutation and ledger close share one transaction. A
// missing ledger entry is reported via LedgerMiss, not an error.
func (db *DB) ReleaseSpot(ctx context.Context, spotID int64, requester string, now time.Time) (*ReleaseResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	spot, err := scanSpot(tx.QueryRowContext(ctx,
		`SELECT `+spotColumns+` FROM parking_spots WHERE id = ?`, spotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spot in tx: %w", err)
	}

	if !spot.IsBooked || spot.BookedBy == nil || *spot.BookedBy != requester {
		return nil, ErrNotSpotOwner
	}
	if spot.BookedAt == nil {
		return nil, fmt.Errorf("booked spot %d has no booked_at timestamp", spotID)
	}

	lot, err := scanLot(tx.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM parking_lots WHERE id = ?`, spot.LotID))
	if err != nil {
		return nil, fmt.Errorf("failed to get lot in tx: %w", err)
	}

	releasedAt := now.Truncate(time.Second)
	duration, cost, err := billing.ComputeCost(*spot.BookedAt, releasedAt, lot.Price)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE parking_spots SET is_booked = 0, booked_by = NULL, booked_at = NULL, released_at = ? WHERE id = ?`,
		releasedAt, spotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to release spot: %w", err)
	}

	record, err := closeHistoryTx(ctx, tx, requester, lot.Name, spot.SpotNumber, releasedAt, duration, cost)
	ledgerMiss := false
	if errors.Is(err, ErrNoOpenRecord) {
		// Direct-booked spots have no ledger entry; free the spot regardless.
		ledgerMiss = true
	} else if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}

	bookedAt := *spot.BookedAt
	spot.IsBooked = false
	spot.BookedBy = nil
	spot.BookedAt = nil
	spot.ReleasedAt = &releasedAt
	return &ReleaseResult{
		Spot:       spot,
		LotName:    lot.Name,
		BookedAt:   bookedAt,
		ReleasedAt: releasedAt,
		Duration:   duration,
		Cost:       cost,
		Record:     record,
		LedgerMiss: ledgerMiss,
	}, nil
}
