package service

import (
	"context"
	"errors"

	"parkly/internal/domain"
	"parkly/internal/events"
	"parkly/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidPrice    = errors.New("price must be non-negative")
	ErrInvalidMaxSpots = errors.New("max_spots must be at least 1")
)

// LotService covers the admin side: lot lifecycle and occupancy aggregates.
type LotService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewLotService(store domain.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *LotService {
	return &LotService{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateLot validates and persists a lot; spots S1..S<max> are provisioned
// by the store in the same transaction.
func (s *LotService) CreateLot(ctx context.Context, lot *models.ParkingLot, adminEmail string) error {
	if lot.Price < 0 {
		return ErrInvalidPrice
	}
	if lot.MaxSpots < 1 {
		return ErrInvalidMaxSpots
	}

	if err := s.store.CreateLot(ctx, lot); err != nil {
		return err
	}

	s.logger.Info().
		Int64("lot_id", lot.ID).
		Str("name", lot.Name).
		Int("max_spots", lot.MaxSpots).
		Str("admin", adminEmail).
		Msg("lot created")
	s.publish(events.EventLotCreated, events.LotEventPayload{
		LotID:    lot.ID,
		Name:     lot.Name,
		MaxSpots: lot.MaxSpots,
		ByEmail:  adminEmail,
	})
	return nil
}

func (s *LotService) UpdateLot(ctx context.Context, id int64, name, location string, price float64) error {
	if price < 0 {
		return ErrInvalidPrice
	}
	return s.store.UpdateLot(ctx, id, name, location, price)
}

// DeleteLot removes a lot and its spots; the store rejects the delete while
// any spot is occupied.
func (s *LotService) DeleteLot(ctx context.Context, id int64, adminEmail string) error {
	lot, err := s.store.GetLot(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteLot(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Int64("lot_id", id).Str("admin", adminEmail).Msg("lot deleted")
	s.publish(events.EventLotDeleted, events.LotEventPayload{
		LotID:   id,
		Name:    lot.Name,
		ByEmail: adminEmail,
	})
	return nil
}

func (s *LotService) GetLot(ctx context.Context, id int64) (*models.ParkingLot, error) {
	return s.store.GetLot(ctx, id)
}

func (s *LotService) ListLots(ctx context.Context) ([]*models.ParkingLot, error) {
	return s.store.GetAllLots(ctx)
}

// Occupancy returns per-lot booked/free counts plus the global totals.
func (s *LotService) Occupancy(ctx context.Context) ([]*models.LotOccupancy, int, int, error) {
	lots, err := s.store.GetLotOccupancy(ctx)
	if err != nil {
		return nil, 0, 0, err
	}

	totalBooked, err := s.store.CountSpots(ctx, 0, true)
	if err != nil {
		return nil, 0, 0, err
	}
	totalFree, err := s.store.CountSpots(ctx, 0, false)
	if err != nil {
		return nil, 0, 0, err
	}

	return lots, totalBooked, totalFree, nil
}

func (s *LotService) publish(eventType string, payload any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
