package database

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrLotNotFound  = errors.New("parking lot not found")
	ErrSpotNotFound = errors.New("parking spot not found")

	// ErrSpotAlreadyBooked the spot's booking flag is already set; the
	// original owner is never overwritten.
	ErrSpotAlreadyBooked = errors.New("spot already booked")

	// ErrNoAvailableSpot no free spot in the lot for first-fit reservation.
	ErrNoAvailableSpot = errors.New("no available spot in lot")

	// ErrNotSpotOwner release requested by someone other than the booker.
	ErrNotSpotOwner = errors.New("spot booked by another user")

	// ErrLotOccupied a lot cannot be deleted while any of its spots is booked.
	ErrLotOccupied = errors.New("lot has occupied spots")

	// ErrNoOpenRecord no open ledger entry matches the released spot. The
	// release itself still proceeds; callers log and continue.
	ErrNoOpenRecord = errors.New("no open history record")
)
