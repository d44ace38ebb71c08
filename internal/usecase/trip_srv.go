package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/internal/data/repository"
	"ride-booking/internal/dto/request"
	"ride-booking/internal/dto/response"
	"ride-booking/pkg/mq"
	"ride-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TripService interface {
	CreateTrip(ctx context.Context, driverID uuid.UUID, req *request.CreateTripRequest) (*response.TripResponse, error)
	GetTrip(ctx context.Context, tripID string) (*response.TripResponse, error)
	GetTripSnapshot(ctx context.Context, tripID string) (*entity.TripSnapshot, error)
	// ListTrips is the rider search. Without a status it shows pending trips only.
	ListTrips(ctx context.Context, req *request.ListTripsRequest) (*response.PaginatedResponse[response.TripResponse], error)
	// ListDriverTrips is a driver's own trips in any status unless one is asked for.
	ListDriverTrips(ctx context.Context, driverID uuid.UUID, req *request.ListTripsRequest) (*response.PaginatedResponse[response.TripResponse], error)

	// UpdateTripStatus is allowed to the trip's driver and to admins.
	UpdateTripStatus(ctx context.Context, actorID uuid.UUID, isAdmin bool, tripID string, req *request.UpdateTripStatusRequest) (*response.TripResponse, error)

	// ApplySeatDelta is the seat ledger entry point used by the queue consumer.
	ApplySeatDelta(ctx context.Context, d entity.SeatDelta) (*response.SeatDeltaResponse, error)
}

type tripService struct {
	trips     repository.TripRepository
	publisher Publisher
	now       func() time.Time
	log       *zap.Logger
}

func NewTripService(trips repository.TripRepository, publisher Publisher, log *zap.Logger) TripService {
	return &tripService{
		trips:     trips,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With(zap.String("service", "trip")),
	}
}

func (s *tripService) CreateTrip(ctx context.Context, driverID uuid.UUID, req *request.CreateTripRequest) (*response.TripResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create trip validation failed", zap.Any("errors", errs))
		return nil, apperror.ValidationFields(errs, utils.FormatValidationErrors(errs))
	}

	departure, err := time.Parse("2006-01-02", req.DepartureDate)
	if err != nil {
		return nil, apperror.Validation("departure_date", "must be YYYY-MM-DD")
	}
	now := s.now()
	if departure.Before(truncateDay(now)) {
		return nil, apperror.Validation("departure_date", "must not be in the past")
	}

	price, err := decimal.NewFromString(req.TotalPrice)
	if err != nil {
		return nil, apperror.Validation("total_price", "must be a decimal amount")
	}

	trip := &entity.Trip{
		Base:            entity.NewBase(now),
		DriverID:        driverID,
		DepartureCity:   req.DepartureCity,
		DestinationCity: req.DestinationCity,
		DepartureDate:   departure,
		DepartureTime:   req.DepartureTime,
		TotalPrice:      price,
		AvailableSeats:  req.AvailableSeats,
		Status:          entity.TripStatusPending,
	}

	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}

	s.log.Info("Trip created",
		zap.String("trip_id", trip.ID.String()),
		zap.String("driver_id", driverID.String()),
		zap.Int("seats", trip.AvailableSeats),
	)

	resp := response.TripToResponse(trip)
	return &resp, nil
}

func (s *tripService) findTrip(ctx context.Context, tripID string) (*entity.Trip, error) {
	id, err := uuid.Parse(tripID)
	if err != nil {
		return nil, apperror.Validation("trip_id", "must be a valid UUID")
	}

	trip, err := s.trips.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find trip %s: %w", id, err)
	}
	if trip == nil {
		return nil, apperror.NotFound("trip", id.String())
	}
	return trip, nil
}

func (s *tripService) GetTrip(ctx context.Context, tripID string) (*response.TripResponse, error) {
	trip, err := s.findTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	resp := response.TripToResponse(trip)
	return &resp, nil
}

func (s *tripService) GetTripSnapshot(ctx context.Context, tripID string) (*entity.TripSnapshot, error) {
	trip, err := s.findTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return trip.Snapshot(), nil
}

func (s *tripService) ListTrips(ctx context.Context, req *request.ListTripsRequest) (*response.PaginatedResponse[response.TripResponse], error) {
	if req.Status == "" {
		req.Status = string(entity.TripStatusPending)
	}
	f, err := s.tripFilter(req)
	if err != nil {
		return nil, err
	}
	return s.listTrips(ctx, f, req)
}

func (s *tripService) ListDriverTrips(ctx context.Context, driverID uuid.UUID, req *request.ListTripsRequest) (*response.PaginatedResponse[response.TripResponse], error) {
	f, err := s.tripFilter(req)
	if err != nil {
		return nil, err
	}
	f.DriverID = &driverID
	return s.listTrips(ctx, f, req)
}

func (s *tripService) tripFilter(req *request.ListTripsRequest) (repository.TripFilter, error) {
	var f repository.TripFilter
	if req.Status != "" {
		st := entity.TripStatus(req.Status)
		if !st.Valid() {
			return f, apperror.Validation("status", "unknown trip status")
		}
		f.Status = &st
	}
	if req.DepartureDate != "" {
		date, err := time.Parse("2006-01-02", req.DepartureDate)
		if err != nil {
			return f, apperror.Validation("departure_date", "must be YYYY-MM-DD")
		}
		f.DepartureDate = &date
	}
	f.DepartureCity = strings.TrimSpace(req.DepartureCity)
	f.DestinationCity = strings.TrimSpace(req.DestinationCity)
	if len(f.DepartureCity) > 120 || len(f.DestinationCity) > 120 {
		return f, apperror.Validation("city", "must be at most 120 characters")
	}

	return f, nil
}

func (s *tripService) listTrips(ctx context.Context, f repository.TripFilter, req *request.ListTripsRequest) (*response.PaginatedResponse[response.TripResponse], error) {
	trips, err := s.trips.FindAll(ctx, f, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	total, err := s.trips.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("count trips: %w", err)
	}

	data := make([]response.TripResponse, 0, len(trips))
	for _, t := range trips {
		data = append(data, response.TripToResponse(t))
	}

	return response.NewPaginatedResponse(data, req.Page, req.Limit(), total), nil
}

func (s *tripService) UpdateTripStatus(ctx context.Context, actorID uuid.UUID, isAdmin bool, tripID string, req *request.UpdateTripStatusRequest) (*response.TripResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.ValidationFields(errs, utils.FormatValidationErrors(errs))
	}

	trip, err := s.findTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && trip.DriverID != actorID {
		return nil, apperror.Domain(apperror.CodeForbidden, "only the trip's driver can change its status")
	}

	to := entity.TripStatus(req.Status)
	if !trip.Status.CanTransitionTo(to) {
		return nil, apperror.InvalidTransition("trip", trip.Status, to)
	}

	now := s.now()
	var outbox []*entity.OutboxMessage
	if to == entity.TripStatusCompleted {
		outbox, err = tripCompletedMessages(trip.ID, now)
		if err != nil {
			return nil, err
		}
	}

	changed, err := s.trips.UpdateStatus(ctx, trip.ID, trip.Status, to, now, outbox...)
	if err != nil {
		return nil, fmt.Errorf("update trip %s status: %w", trip.ID, err)
	}
	if !changed {
		s.log.Warn("Trip status changed concurrently",
			zap.String("trip_id", trip.ID.String()),
			zap.String("from", string(trip.Status)),
			zap.String("to", string(to)),
		)
		return nil, apperror.Conflict("trip", "status changed concurrently, reload and retry")
	}

	s.log.Info("Trip status updated",
		zap.String("trip_id", trip.ID.String()),
		zap.String("from", string(trip.Status)),
		zap.String("to", string(to)),
	)

	trip.Status = to
	trip.UpdatedAt = now
	s.publisher.PublishNow(ctx, outbox...)

	resp := response.TripToResponse(trip)
	return &resp, nil
}

// tripCompletedMessages fans trip.completed out to the payment and booking queues.
func tripCompletedMessages(tripID uuid.UUID, at time.Time) ([]*entity.OutboxMessage, error) {
	event := mq.TripCompletedMessage{
		Event:       mq.EventTripCompleted,
		TripID:      tripID.String(),
		CompletedAt: at,
	}

	var msgs []*entity.OutboxMessage
	for _, queue := range []string{mq.QueueTripCompleted, mq.QueueBookingTripCompleted} {
		m, err := entity.NewOutboxMessage(queue, tripID.String(), event, at)
		if err != nil {
			return nil, fmt.Errorf("encode trip completed event: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *tripService) ApplySeatDelta(ctx context.Context, d entity.SeatDelta) (*response.SeatDeltaResponse, error) {
	now := s.now()

	var onReject []*entity.OutboxMessage
	if d.Direction == entity.SeatReserve {
		msg, err := seatRejectedMessage(d, now)
		if err != nil {
			return nil, err
		}
		onReject = append(onReject, msg)
	}

	plan, err := s.trips.ApplySeatDelta(ctx, d, now, onReject...)
	if err != nil {
		if apperror.IsDomain(err) || apperror.IsNotFound(err) {
			s.log.Warn("Seat delta rejected",
				zap.Error(err),
				zap.String("trip_id", d.TripID.String()),
				zap.String("booking_id", d.BookingID.String()),
				zap.String("direction", string(d.Direction)),
			)
		}
		return nil, err
	}

	if plan.Outcome == entity.SeatDeltaRejected {
		s.log.Error("Seat reservation rejected, failing booking",
			zap.String("trip_id", d.TripID.String()),
			zap.String("booking_id", d.BookingID.String()),
			zap.Int("seats", d.Seats),
			zap.Int("available_seats", plan.Available),
		)
		s.publisher.PublishNow(ctx, onReject...)
	}

	s.log.Info("Seat delta processed",
		zap.String("trip_id", d.TripID.String()),
		zap.String("booking_id", d.BookingID.String()),
		zap.String("direction", string(d.Direction)),
		zap.String("outcome", string(plan.Outcome)),
		zap.Int("available_seats", plan.Available),
	)

	return &response.SeatDeltaResponse{
		TripID:         d.TripID.String(),
		BookingID:      d.BookingID.String(),
		Outcome:        plan.Outcome,
		Applied:        plan.Outcome == entity.SeatDeltaApplied,
		AvailableSeats: plan.Available,
	}, nil
}

// seatRejectedMessage tells the booking service to fail a booking whose seats
// could not be reserved. It is only committed when the reserve is rejected.
func seatRejectedMessage(d entity.SeatDelta, now time.Time) (*entity.OutboxMessage, error) {
	msg, err := entity.NewOutboxMessage(mq.QueueBookingSeatRejected, d.BookingID.String(), mq.SeatRejectedMessage{
		Event:         mq.EventSeatsRejected,
		TripID:        d.TripID.String(),
		BookingID:     d.BookingID.String(),
		NumberOfSeats: d.Seats,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("encode seat rejection: %w", err)
	}
	return msg, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
