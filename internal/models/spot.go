package models

import "time"

// ParkingSpot belongs to exactly one lot. A spot is booked iff BookedBy and
// BookedAt are both set; the three booking fields are mutated together and
// only inside the store's book/release transactions.
type ParkingSpot struct {
	ID         int64      `json:"id"`
	LotID      int64      `json:"lot_id"`
	SpotNumber string     `json:"spot_number"` // S1..S<max>, assigned at lot creation
	IsBooked   bool       `json:"is_booked"`
	BookedBy   *string    `json:"booked_by,omitempty"`
	BookedAt   *time.Time `json:"booked_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}
