package service

import (
	"context"
	"time"

	"parkly/internal/domain"
	"parkly/internal/events"
	"parkly/internal/metrics"
	"parkly/internal/models"

	"github.com/rs/zerolog"
)

// ParkingService is the allocation engine: it owns the book/reserve/release
// lifecycle of spots. Caller identity always arrives as an explicit
// parameter; authorization by role happens at the API boundary.
type ParkingService struct {
	store        domain.Store
	eventBus     domain.EventPublisher
	reportWorker domain.ReportWorker
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewParkingService(store domain.Store, eventBus domain.EventPublisher, reportWorker domain.ReportWorker, logger *zerolog.Logger) *ParkingService {
	return &ParkingService{
		store:        store,
		eventBus:     eventBus,
		reportWorker: reportWorker,
		logger:       logger,
		now:          time.Now,
	}
}

// BookSpot books a specific spot directly. Unlike ReserveInLot this path
// opens no history record; the two operations diverge deliberately, matching
// the admin-override behavior of the direct path.
func (s *ParkingService) BookSpot(ctx context.Context, spotID int64, userEmail string) (*models.ParkingSpot, error) {
	spot, err := s.store.BookSpot(ctx, spotID, userEmail, s.now())
	if err != nil {
		return nil, err
	}

	metrics.IncBooking("book")
	s.publishSpotEvent(events.EventSpotBooked, spot, userEmail, 0, 0)
	return spot, nil
}

// ReserveInLot books the first free spot of the lot in creation order and
// opens the matching ledger entry; the store commits both atomically.
func (s *ParkingService) ReserveInLot(ctx context.Context, lotID int64, userEmail, carNumber, carModel string) (*models.ParkingSpot, *models.BookingHistory, error) {
	spot, history, err := s.store.ReserveFirstFree(ctx, lotID, userEmail, carNumber, carModel, s.now())
	if err != nil {
		return nil, nil, err
	}

	metrics.IncBooking("reserve")
	s.logger.Info().
		Int64("spot_id", spot.ID).
		Str("spot_number", spot.SpotNumber).
		Str("user", userEmail).
		Msg("spot reserved")
	s.publishSpotEvent(events.EventSpotReserved, spot, userEmail, 0, 0)
	return spot, history, nil
}

// ReleaseSpot frees the requester's spot, returning the billed duration and
// cost. A missing ledger entry is logged and does not block the release.
func (s *ParkingService) ReleaseSpot(ctx context.Context, spotID int64, requestingUserEmail string) (float64, float64, *models.ParkingSpot, error) {
	result, err := s.store.ReleaseSpot(ctx, spotID, requestingUserEmail, s.now())
	if err != nil {
		return 0, 0, nil, err
	}

	if result.LedgerMiss {
		metrics.IncLedgerMiss()
		s.logger.Warn().
			Int64("spot_id", spotID).
			Str("user", requestingUserEmail).
			Msg("no open history record for released spot")
	} else if s.reportWorker != nil {
		if err := s.reportWorker.EnqueueRecord(ctx, result.Record); err != nil {
			s.logger.Error().Err(err).Int64("history_id", result.Record.ID).Msg("report enqueue error")
		}
	}

	metrics.IncRelease(result.Cost)
	s.logger.Info().
		Int64("spot_id", spotID).
		Str("user", requestingUserEmail).
		Float64("duration_hours", result.Duration).
		Float64("cost", result.Cost).
		Msg("spot released")

	spot := result.Spot
	payload := events.SpotEventPayload{
		SpotID:     spot.ID,
		LotID:      spot.LotID,
		LotName:    result.LotName,
		SpotNumber: spot.SpotNumber,
		UserEmail:  requestingUserEmail,
		ReleasedAt: &result.ReleasedAt,
		Duration:   result.Duration,
		Cost:       result.Cost,
	}
	s.publish(events.EventSpotReleased, payload)

	return result.Duration, result.Cost, spot, nil
}

// ListFreeSpots and ListBookedByUser are pure queries with no side effects.

func (s *ParkingService) ListFreeSpots(ctx context.Context, lotID int64) ([]*models.ParkingSpot, error) {
	return s.store.GetFreeSpots(ctx, lotID)
}

func (s *ParkingService) ListBookedByUser(ctx context.Context, userEmail string) ([]*models.ParkingSpot, error) {
	return s.store.GetSpotsByOwner(ctx, userEmail)
}

func (s *ParkingService) ListSpotsByLot(ctx context.Context, lotID int64) ([]*models.ParkingSpot, error) {
	return s.store.GetSpotsByLot(ctx, lotID)
}

func (s *ParkingService) ListAllSpots(ctx context.Context) ([]*models.ParkingSpot, error) {
	return s.store.GetAllSpots(ctx)
}

func (s *ParkingService) GetHistory(ctx context.Context, userEmail string) ([]*models.BookingHistory, error) {
	return s.store.GetUserHistory(ctx, userEmail)
}

func (s *ParkingService) GetAllHistory(ctx context.Context) ([]*models.BookingHistory, error) {
	return s.store.GetAllHistory(ctx)
}

func (s *ParkingService) publishSpotEvent(eventType string, spot *models.ParkingSpot, userEmail string, duration, cost float64) {
	payload := events.SpotEventPayload{
		SpotID:     spot.ID,
		LotID:      spot.LotID,
		SpotNumber: spot.SpotNumber,
		UserEmail:  userEmail,
		BookedAt:   spot.BookedAt,
		Duration:   duration,
		Cost:       cost,
	}
	s.publish(eventType, payload)
}

func (s *ParkingService) publish(eventType string, payload any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
