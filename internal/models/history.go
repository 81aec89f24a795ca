package models

import "time"

// BookingHistory is a denormalized snapshot of a rental. LotName and
// SpotNumber are copied at booking time so the record survives lot deletion.
// LeavingAt, Duration and Cost stay nil while the rental is active; a record
// with LeavingAt == nil is the open ledger entry. Closed records are never
// mutated again.
type BookingHistory struct {
	ID         int64      `json:"id"`
	UserEmail  string     `json:"user_email"`
	LotName    string     `json:"lot_name"`
	SpotNumber string     `json:"spot_number"`
	BookedAt   time.Time  `json:"booked_at"`
	LeavingAt  *time.Time `json:"leaving_at,omitempty"`
	Duration   *float64   `json:"duration,omitempty"` // hours
	Cost       *float64   `json:"cost,omitempty"`
	CarNumber  string     `json:"car_number,omitempty"`
	CarModel   string     `json:"car_model,omitempty"`
}

// Open reports whether the record is the active rental for its spot.
func (h *BookingHistory) Open() bool {
	return h.LeavingAt == nil
}
