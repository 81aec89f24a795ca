package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkly/internal/models"
)

// CreateLot inserts the lot and provisions spots S1..S<max_spots> in one
// transaction. Spot rows are inserted in ascending number order so that
// autoincrement ids preserve creation order for first-fit allocation.
func (db *DB) CreateLot(ctx context.Context, lot *models.ParkingLot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO parking_lots (name, location, address, pincode, price, max_spots, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lot.Name, lot.Location, lot.Address, lot.Pincode, lot.Price, lot.MaxSpots, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create lot: %w", err)
	}

	lotID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i := 1; i <= lot.MaxSpots; i++ {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO parking_spots (lot_id, spot_number, is_booked) VALUES (?, ?, 0)`,
			lotID, fmt.Sprintf("S%d", i),
		)
		if err != nil {
			return fmt.Errorf("failed to create spot %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lot creation: %w", err)
	}

	lot.ID = lotID
	lot.CreatedAt = now
	lot.UpdatedAt = now
	return nil
}

const lotColumns = `id, name, location, address, pincode, price, max_spots, created_at, updated_at`

func scanLot(row interface{ Scan(...any) error }) (*models.ParkingLot, error) {
	var lot models.ParkingLot
	err := row.Scan(
		&lot.ID, &lot.Name, &lot.Location, &lot.Address, &lot.Pincode,
		&lot.Price, &lot.MaxSpots, &lot.CreatedAt, &lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (db *DB) GetLot(ctx context.Context, id int64) (*models.ParkingLot, error) {
	query := `SELECT ` + lotColumns + ` FROM parking_lots WHERE id = ?`
	lot, err := scanLot(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

func (db *DB) GetAllLots(ctx context.Context) ([]*models.ParkingLot, error) {
	query := `SELECT ` + lotColumns + ` FROM parking_lots ORDER BY id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get lots: %w", err)
	}
	defer rows.Close()

	var lots []*models.ParkingLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, lot)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return lots, nil
}

// UpdateLot updates the admin-editable fields: name, location, price.
func (db *DB) UpdateLot(ctx context.Context, id int64, name, location string, price float64) error {
	query := `UPDATE parking_lots SET name = ?, location = ?, price = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, name, location, price, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrLotNotFound
	}
	return nil
}

// DeleteLot removes a lot and all its spots in one transaction. The occupancy
// check runs inside the transaction so a concurrent booking cannot slip in
// between check and delete.
func (db *DB) DeleteLot(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_lots WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check lot: %w", err)
	}
	if exists == 0 {
		return ErrLotNotFound
	}

	var occupied int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parking_spots WHERE lot_id = ? AND is_booked = 1`, id).Scan(&occupied)
	if err != nil {
		return fmt.Errorf("failed to count occupied spots: %w", err)
	}
	if occupied > 0 {
		return ErrLotOccupied
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_spots WHERE lot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete spots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete lot: %w", err)
	}

	return tx.Commit()
}

// CountSpots returns the number of spots in a lot with the given booking
// flag. lotID 0 counts across all lots.
func (db *DB) CountSpots(ctx context.Context, lotID int64, booked bool) (int, error) {
	query := `SELECT COUNT(*) FROM parking_spots WHERE is_booked = ?`
	args := []any{booked}
	if lotID != 0 {
		query += ` AND lot_id = ?`
		args = append(args, lotID)
	}

	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count spots: %w", err)
	}
	return count, nil
}

// GetLotOccupancy returns booked/free counts per lot for the admin dashboard.
func (db *DB) GetLotOccupancy(ctx context.Context) ([]*models.LotOccupancy, error) {
	query := `SELECT l.id, l.name,
                     COALESCE(SUM(CASE WHEN s.is_booked = 1 THEN 1 ELSE 0 END), 0),
                     COALESCE(SUM(CASE WHEN s.is_booked = 0 THEN 1 ELSE 0 END), 0)
              FROM parking_lots l
              LEFT JOIN parking_spots s ON s.lot_id = l.id
              GROUP BY l.id, l.name
              ORDER BY l.id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get lot occupancy: %w", err)
	}
	defer rows.Close()

	var occupancy []*models.LotOccupancy
	for rows.Next() {
		o := &models.LotOccupancy{}
		if err := rows.Scan(&o.LotID, &o.LotName, &o.Booked, &o.Free); err != nil {
			return nil, fmt.Errorf("failed to scan occupancy: %w", err)
		}
		occupancy = append(occupancy, o)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return occupancy, nil
}
