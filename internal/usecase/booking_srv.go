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
	"ride-booking/pkg/money"
	"ride-booking/pkg/mq"
	"ride-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TripLookup reads the trip facts a booking depends on.
type TripLookup interface {
	GetTrip(ctx context.Context, id uuid.UUID) (*entity.TripSnapshot, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	GetBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID string) (*response.BookingResponse, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetDriverBookings(ctx context.Context, driverID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)
	GetTripPassengers(ctx context.Context, tripID string) ([]response.PassengerResponse, error)

	// CancelBooking is allowed to the booking's passenger and to admins.
	CancelBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID string) (*response.CancelBookingResponse, error)

	// CompleteBookingsByTrip is idempotent; a second call completes nothing.
	CompleteBookingsByTrip(ctx context.Context, tripID uuid.UUID) (*response.CompleteBookingsResponse, error)

	// FailBooking marks a confirmed booking failed after the trip service could
	// not reserve its seats, refunding everything charged. Any other status is
	// left alone and reported as InvalidTransition.
	FailBooking(ctx context.Context, bookingID uuid.UUID) (*response.BookingResponse, error)
}

type bookingService struct {
	bookings  repository.BookingRepository
	trips     TripLookup
	publisher Publisher
	defaults  utils.BookingConfig
	now       func() time.Time
	log       *zap.Logger
}

func NewBookingService(bookings repository.BookingRepository, trips TripLookup, publisher Publisher, defaults utils.BookingConfig, log *zap.Logger) BookingService {
	return &bookingService{
		bookings:  bookings,
		trips:     trips,
		publisher: publisher,
		defaults:  defaults,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With(zap.String("service", "booking")),
	}
}

// bookingInput is a create request with defaults applied and amounts parsed.
type bookingInput struct {
	tripID    uuid.UUID
	stopID    *uuid.UUID
	driverID  *uuid.UUID
	seats     int
	price     decimal.Decimal
	fee       decimal.Decimal
	taxRate   decimal.Decimal
	taxRegion string
	currency  string
	method    money.PayoutMethod
	paidWith  string
	cutoff    time.Time
}

func (s *bookingService) parseCreate(req *request.CreateBookingRequest) (*bookingInput, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, apperror.ValidationFields(errs, utils.FormatValidationErrors(errs))
	}

	in := &bookingInput{
		seats:     req.NumberOfSeats,
		method:    money.PayoutMethod(req.ChauffeurPaymentMethod),
		taxRegion: s.defaults.TaxRegion,
		currency:  s.defaults.Currency,
		paidWith:  "card",
		cutoff:    req.FreeCancellationUntil.UTC(),
	}

	var err error
	if in.tripID, err = uuid.Parse(req.TripID); err != nil {
		return nil, apperror.Validation("trip_id", "must be a valid UUID")
	}
	if req.StopID != nil {
		if in.stopID, err = utils.ParseOptionalUUID(*req.StopID); err != nil {
			return nil, apperror.Validation("stop_id", "must be a valid UUID")
		}
	}
	if req.DriverID != nil {
		if in.driverID, err = utils.ParseOptionalUUID(*req.DriverID); err != nil {
			return nil, apperror.Validation("driver_id", "must be a valid UUID")
		}
	}

	if in.price, err = decimal.NewFromString(req.PricePerSeat); err != nil {
		return nil, apperror.Validation("price_per_seat", "must be a decimal amount")
	}
	if in.fee, err = decimalOr(req.ReservationFeePerSeat, s.defaults.ReservationFeePerSeat); err != nil {
		return nil, apperror.Validation("reservation_fee_per_seat", "must be a decimal amount")
	}
	if in.taxRate, err = decimalOr(req.TaxRate, s.defaults.TaxRate); err != nil {
		return nil, apperror.Validation("tax_rate", "must be a decimal rate")
	}
	if req.TaxRegion != nil && *req.TaxRegion != "" {
		in.taxRegion = *req.TaxRegion
	}
	if req.Currency != nil && *req.Currency != "" {
		in.currency = strings.ToUpper(*req.Currency)
	}
	if req.PaymentMethodUsed != nil && *req.PaymentMethodUsed != "" {
		in.paidWith = *req.PaymentMethodUsed
	}

	return in, nil
}

func decimalOr(value *string, fallback string) (decimal.Decimal, error) {
	if value != nil && *value != "" {
		return decimal.NewFromString(*value)
	}
	return decimal.NewFromString(fallback)
}

func (s *bookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	in, err := s.parseCreate(req)
	if err != nil {
		return nil, err
	}

	trip, err := s.trips.GetTrip(ctx, in.tripID)
	if err != nil {
		if apperror.IsNotFound(err) || apperror.IsTransient(err) {
			return nil, err
		}
		return nil, apperror.Transient("trip lookup", err)
	}

	now := s.now()
	if err := checkBookable(trip, userID, in, now); err != nil {
		s.log.Info("Booking rejected",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("trip_id", in.tripID.String()),
		)
		return nil, err
	}

	existing, err := s.bookings.FindActiveByUserAndTrip(ctx, userID, in.tripID)
	if err != nil {
		return nil, fmt.Errorf("check existing booking: %w", err)
	}
	if existing != nil {
		return nil, apperror.Domain(apperror.CodeDuplicateBooking,
			"user %s already holds booking %s on trip %s", userID, existing.ID, in.tripID)
	}

	totals, err := money.ComputeBookingTotals(in.seats, in.price, in.fee, in.taxRate, in.method)
	if err != nil {
		return nil, apperror.ValidationError{Msg: "invalid booking amounts", Err: err}
	}

	booking := &entity.Booking{
		Base:                   entity.NewBase(now),
		UserID:                 userID,
		TripID:                 in.tripID,
		StopID:                 in.stopID,
		DriverID:               trip.DriverID,
		NumberOfSeats:          in.seats,
		PricePerSeat:           in.price,
		ReservationFeePerSeat:  in.fee,
		Currency:               in.currency,
		TaxRate:                in.taxRate,
		TaxRegion:              &in.taxRegion,
		ChauffeurPaymentMethod: in.method,
		PaymentMethodUsed:      in.paidWith,
		Status:                 entity.BookingStatusConfirmed,
		FreeCancellationUntil:  in.cutoff,
	}
	booking.ApplyTotals(totals)

	msg, err := seatMessage(mq.ActionDecreaseSeats, booking, booking.NumberOfSeats, now)
	if err != nil {
		return nil, err
	}

	if err := s.bookings.Create(ctx, booking, msg); err != nil {
		if apperror.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("trip_id", in.tripID.String()),
		zap.Int("seats", booking.NumberOfSeats),
		zap.String("charged_now_total", booking.ChargedNowTotal.StringFixed(2)),
		zap.String("chauffeur_payment_method", string(booking.ChauffeurPaymentMethod)),
	)

	s.publisher.PublishNow(ctx, msg)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// checkBookable applies the create rules in order: trip status, self-booking,
// departure date, then seats.
func checkBookable(trip *entity.TripSnapshot, userID uuid.UUID, in *bookingInput, now time.Time) error {
	if !trip.Status.Bookable() {
		return apperror.Domain(apperror.CodeTripNotBookable, "trip %s is %s", trip.ID, trip.Status)
	}
	if trip.DriverID == userID {
		return apperror.Domain(apperror.CodeSelfBooking, "drivers cannot book their own trip")
	}
	if in.driverID != nil && *in.driverID != trip.DriverID {
		return apperror.Validation("driver_id", "does not match the trip's driver")
	}
	if truncateDay(trip.DepartureDate).Before(truncateDay(now)) {
		return apperror.Domain(apperror.CodePastDeparture, "trip %s departed on %s", trip.ID, trip.DepartureDate.Format("2006-01-02"))
	}
	if trip.AvailableSeats < in.seats {
		return apperror.Domain(apperror.CodeInsufficientSeats,
			"trip %s has %d seats left, %d requested", trip.ID, trip.AvailableSeats, in.seats)
	}
	return nil
}

func seatMessage(action string, b *entity.Booking, seats int, now time.Time) (*entity.OutboxMessage, error) {
	msg, err := entity.NewOutboxMessage(mq.QueueTripUpdate, b.ID.String(), mq.SeatUpdateMessage{
		Action:        action,
		TripID:        b.TripID.String(),
		BookingID:     b.ID.String(),
		NumberOfSeats: seats,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("encode seat update: %w", err)
	}
	return msg, nil
}

func (s *bookingService) GetBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID string) (*response.BookingResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, apperror.Validation("booking_id", "must be a valid UUID")
	}

	b, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find booking %s: %w", id, err)
	}
	// other people's bookings look missing
	if b == nil || (!isAdmin && b.UserID != userID && b.DriverID != userID) {
		return nil, apperror.NotFound("booking", id.String())
	}

	resp := response.BookingToResponse(b)
	return &resp, nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	bookings, err := s.bookings.FindByUserID(ctx, userID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	total, err := s.bookings.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count user bookings: %w", err)
	}
	return response.NewPaginatedResponse(bookingsToResponse(bookings), req.Page, req.Limit(), total), nil
}

func (s *bookingService) GetDriverBookings(ctx context.Context, driverID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	bookings, err := s.bookings.FindByDriverID(ctx, driverID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list driver bookings: %w", err)
	}
	total, err := s.bookings.CountByDriverID(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("count driver bookings: %w", err)
	}
	return response.NewPaginatedResponse(bookingsToResponse(bookings), req.Page, req.Limit(), total), nil
}

func bookingsToResponse(bookings []*entity.Booking) []response.BookingResponse {
	data := make([]response.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		data = append(data, response.BookingToResponse(b))
	}
	return data
}

func (s *bookingService) GetTripPassengers(ctx context.Context, tripID string) ([]response.PassengerResponse, error) {
	id, err := uuid.Parse(tripID)
	if err != nil {
		return nil, apperror.Validation("trip_id", "must be a valid UUID")
	}

	bookings, err := s.bookings.FindActiveByTripID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list passengers of trip %s: %w", id, err)
	}

	out := make([]response.PassengerResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, response.PassengerToResponse(b))
	}
	return out, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID string) (*response.CancelBookingResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, apperror.Validation("booking_id", "must be a valid UUID")
	}

	now := s.now()
	var (
		refund  money.Refund
		restore *entity.OutboxMessage
	)

	booking, err := s.bookings.Mutate(ctx, id, func(b *entity.Booking) (*entity.OutboxMessage, error) {
		if !isAdmin && b.UserID != userID {
			return nil, apperror.NotFound("booking", id.String())
		}
		if !b.Status.CanTransitionTo(entity.BookingStatusCancelled) {
			return nil, apperror.InvalidTransition("booking", b.Status, entity.BookingStatusCancelled)
		}

		refund = money.ComputeCancellationRefund(b.CancellationSnapshot(), now)

		amount := refund.Amount
		b.Status = entity.BookingStatusCancelled
		b.CancelledAt = &now
		b.RefundAmount = &amount
		b.UpdatedAt = now
		// the driver is owed nothing for a ride cancelled in the free window
		if b.ChauffeurPaymentMethod == money.PayoutTransfer && refund.BeforeCutoff {
			b.DriverPayable = money.Zero
		}

		if refund.SeatsToRestore == 0 {
			return nil, nil
		}
		var err error
		restore, err = seatMessage(mq.ActionIncreaseSeats, b, refund.SeatsToRestore, now)
		return restore, err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", booking.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("before_cutoff", refund.BeforeCutoff),
		zap.String("refund_amount", refund.Amount.StringFixed(2)),
		zap.Int("seats_restored", refund.SeatsToRestore),
	)

	s.publisher.PublishNow(ctx, restore)

	return &response.CancelBookingResponse{
		Booking:       response.BookingToResponse(booking),
		RefundAmount:  refund.Amount,
		SeatsRestored: refund.SeatsToRestore,
		BeforeCutoff:  refund.BeforeCutoff,
	}, nil
}

func (s *bookingService) CompleteBookingsByTrip(ctx context.Context, tripID uuid.UUID) (*response.CompleteBookingsResponse, error) {
	n, err := s.bookings.CompleteByTrip(ctx, tripID, s.now())
	if err != nil {
		return nil, fmt.Errorf("complete bookings of trip %s: %w", tripID, err)
	}

	s.log.Info("Bookings completed", zap.String("trip_id", tripID.String()), zap.Int64("count", n))

	return &response.CompleteBookingsResponse{TripID: tripID.String(), Completed: n}, nil
}

func (s *bookingService) FailBooking(ctx context.Context, bookingID uuid.UUID) (*response.BookingResponse, error) {
	now := s.now()

	booking, err := s.bookings.Mutate(ctx, bookingID, func(b *entity.Booking) (*entity.OutboxMessage, error) {
		if !b.Status.CanTransitionTo(entity.BookingStatusFailed) {
			return nil, apperror.InvalidTransition("booking", b.Status, entity.BookingStatusFailed)
		}

		// no seats were ever held, so nothing goes back to the trip
		refund := b.ChargedNowTotal
		b.Status = entity.BookingStatusFailed
		b.CancelledAt = &now
		b.RefundAmount = &refund
		b.DriverPayable = money.Zero
		b.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn("Booking failed, seats unavailable",
		zap.String("booking_id", booking.ID.String()),
		zap.String("trip_id", booking.TripID.String()),
		zap.String("user_id", booking.UserID.String()),
		zap.String("refund_amount", booking.RefundAmount.StringFixed(2)),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}
