package domain

import (
	"context"
	"time"

	"parkly/internal/database"
	"parkly/internal/models"
)

// Store is the durable entity store consumed by the services. The SQLite
// implementation lives in internal/database.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserProfile(ctx context.Context, email, name, address string, pincode int) error
	DeleteUser(ctx context.Context, id int64) error
	SearchUsers(ctx context.Context, search string) ([]*models.User, error)

	CreateLot(ctx context.Context, lot *models.ParkingLot) error
	GetLot(ctx context.Context, id int64) (*models.ParkingLot, error)
	GetAllLots(ctx context.Context) ([]*models.ParkingLot, error)
	UpdateLot(ctx context.Context, id int64, name, location string, price float64) error
	DeleteLot(ctx context.Context, id int64) error
	CountSpots(ctx context.Context, lotID int64, booked bool) (int, error)
	GetLotOccupancy(ctx context.Context) ([]*models.LotOccupancy, error)

	GetSpot(ctx context.Context, id int64) (*models.ParkingSpot, error)
	GetSpotsByLot(ctx context.Context, lotID int64) ([]*models.ParkingSpot, error)
	GetFreeSpots(ctx context.Context, lotID int64) ([]*models.ParkingSpot, error)
	GetAllSpots(ctx context.Context) ([]*models.ParkingSpot, error)
	GetSpotsByOwner(ctx context.Context, email string) ([]*models.ParkingSpot, error)
	BookSpot(ctx context.Context, spotID int64, userEmail string, now time.Time) (*models.ParkingSpot, error)
	ReserveFirstFree(ctx context.Context, lotID int64, userEmail, carNumber, carModel string, now time.Time) (*models.ParkingSpot, *models.BookingHistory, error)
	ReleaseSpot(ctx context.Context, spotID int64, requester string, now time.Time) (*database.ReleaseResult, error)

	GetUserHistory(ctx context.Context, userEmail string) ([]*models.BookingHistory, error)
	GetAllHistory(ctx context.Context) ([]*models.BookingHistory, error)
}

// SessionRepository stores authenticated sessions keyed by token, with a
// per-session rate-limit counter.
type SessionRepository interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, token string) error
	CheckRateLimit(ctx context.Context, token string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ReportWorker accepts closed ledger records for asynchronous export.
type ReportWorker interface {
	EnqueueRecord(ctx context.Context, record *models.BookingHistory) error
}
