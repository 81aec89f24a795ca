package service

import (
	"context"
	"testing"
	"time"

	"parkly/internal/database"
	"parkly/internal/events"
	"parkly/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLotService(t *testing.T) (*LotService, *database.DB, *events.EventBus) {
	t.Helper()
	db := newTestStore(t)
	bus := events.NewEventBus()
	logger := zerolog.Nop()
	return NewLotService(db, bus, &logger), db, bus
}

func TestLotService_CreateValidation(t *testing.T) {
	svc, _, _ := newLotService(t)
	ctx := context.Background()

	err := svc.CreateLot(ctx, &models.ParkingLot{Name: "Bad", Price: -1, MaxSpots: 5}, "admin@example.com")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	err = svc.CreateLot(ctx, &models.ParkingLot{Name: "Bad", Price: 10, MaxSpots: 0}, "admin@example.com")
	assert.ErrorIs(t, err, ErrInvalidMaxSpots)

	err = svc.CreateLot(ctx, &models.ParkingLot{Name: "Free", Price: 0, MaxSpots: 1}, "admin@example.com")
	assert.NoError(t, err, "zero price is a valid free lot")
}

func TestLotService_UpdateValidation(t *testing.T) {
	svc, _, _ := newLotService(t)
	ctx := context.Background()

	lot := &models.ParkingLot{Name: "Lot", Price: 10, MaxSpots: 2}
	require.NoError(t, svc.CreateLot(ctx, lot, "admin@example.com"))

	assert.ErrorIs(t, svc.UpdateLot(ctx, lot.ID, "Lot", "Here", -5), ErrInvalidPrice)
	assert.NoError(t, svc.UpdateLot(ctx, lot.ID, "Lot", "Here", 15))
}

func TestLotService_DeletePublishesEvent(t *testing.T) {
	svc, _, bus := newLotService(t)
	ctx := context.Background()

	var deleted []string
	bus.Subscribe(events.EventLotDeleted, func(event *events.Event) error {
		deleted = append(deleted, event.Type)
		return nil
	})

	lot := &models.ParkingLot{Name: "Doomed", Price: 10, MaxSpots: 1}
	require.NoError(t, svc.CreateLot(ctx, lot, "admin@example.com"))
	require.NoError(t, svc.DeleteLot(ctx, lot.ID, "admin@example.com"))

	assert.Len(t, deleted, 1)

	_, err := svc.GetLot(ctx, lot.ID)
	assert.ErrorIs(t, err, database.ErrLotNotFound)
}

func TestLotService_Occupancy(t *testing.T) {
	svc, db, _ := newLotService(t)
	ctx := context.Background()

	lotA := &models.ParkingLot{Name: "A", Price: 10, MaxSpots: 2}
	require.NoError(t, svc.CreateLot(ctx, lotA, "admin@example.com"))
	lotB := &models.ParkingLot{Name: "B", Price: 10, MaxSpots: 3}
	require.NoError(t, svc.CreateLot(ctx, lotB, "admin@example.com"))

	_, _, err := db.ReserveFirstFree(ctx, lotA.ID, "driver@example.com", "", "", time.Now())
	require.NoError(t, err)

	lots, totalBooked, totalFree, err := svc.Occupancy(ctx)
	require.NoError(t, err)
	assert.Len(t, lots, 2)
	assert.Equal(t, 1, totalBooked)
	assert.Equal(t, 4, totalFree)
}
