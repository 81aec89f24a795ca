package models

import "time"

type ParkingLot struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Address   string    `json:"address"`
	Pincode   int       `json:"pincode"`
	Price     float64   `json:"price"` // hourly, non-negative
	MaxSpots  int       `json:"max_spots"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LotOccupancy is a dashboard aggregate for a single lot.
type LotOccupancy struct {
	LotID   int64  `json:"lot_id"`
	LotName string `json:"lot_name"`
	Booked  int    `json:"booked"`
	Free    int    `json:"free"`
}
