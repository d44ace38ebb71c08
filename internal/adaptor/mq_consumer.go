package adaptor

import (
	"context"
	"fmt"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/internal/usecase"
	"ride-booking/pkg/mq"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Consumer turns queue deliveries into service calls. Malformed messages are
// dropped; domain rejections, duplicates and unknown entities are acked;
// anything else is requeued.
type Consumer struct {
	trips    usecase.TripService
	bookings usecase.BookingService
	earnings usecase.EarningService
	log      *zap.Logger
}

func NewConsumer(service *usecase.Service, log *zap.Logger) *Consumer {
	return &Consumer{
		trips:    service.Trip,
		bookings: service.Booking,
		earnings: service.Earning,
		log:      log.With(zap.String("consumer", "mq")),
	}
}

// Subscriptions lists the queues this process consumes, by hosted service.
func (c *Consumer) Subscriptions() map[string]mq.Handler {
	subs := map[string]mq.Handler{}
	if c.trips != nil {
		subs[mq.QueueTripUpdate] = c.HandleSeatUpdate
	}
	if c.bookings != nil {
		subs[mq.QueueBookingTripCompleted] = c.HandleBookingTripCompleted
		subs[mq.QueueBookingSeatRejected] = c.HandleSeatRejected
	}
	if c.earnings != nil {
		subs[mq.QueueTripCompleted] = c.HandleTripCompleted
	}
	return subs
}

func (c *Consumer) HandleSeatUpdate(ctx context.Context, d mq.Delivery) error {
	msg, err := mq.DecodeSeatUpdate(d.Body)
	if err != nil {
		return c.drop(d, err)
	}
	tripID, err := uuid.Parse(msg.TripID)
	if err != nil {
		return c.drop(d, fmt.Errorf("trip_id: %w", err))
	}
	bookingID, err := uuid.Parse(msg.BookingID)
	if err != nil {
		return c.drop(d, fmt.Errorf("booking_id: %w", err))
	}

	direction := entity.SeatReserve
	if msg.Action == mq.ActionIncreaseSeats {
		direction = entity.SeatRelease
	}

	_, err = c.trips.ApplySeatDelta(ctx, entity.SeatDelta{
		TripID:    tripID,
		BookingID: bookingID,
		Direction: direction,
		Seats:     msg.NumberOfSeats,
	})
	return c.settle(d, "apply seat delta", err)
}

func (c *Consumer) HandleBookingTripCompleted(ctx context.Context, d mq.Delivery) error {
	_, tripID, err := decodeTripCompleted(d)
	if err != nil {
		return c.drop(d, err)
	}
	_, err = c.bookings.CompleteBookingsByTrip(ctx, tripID)
	return c.settle(d, "complete bookings", err)
}

func (c *Consumer) HandleSeatRejected(ctx context.Context, d mq.Delivery) error {
	msg, err := mq.DecodeSeatRejected(d.Body)
	if err != nil {
		return c.drop(d, err)
	}
	bookingID, err := uuid.Parse(msg.BookingID)
	if err != nil {
		return c.drop(d, fmt.Errorf("booking_id: %w", err))
	}
	_, err = c.bookings.FailBooking(ctx, bookingID)
	return c.settle(d, "fail booking", err)
}

func (c *Consumer) HandleTripCompleted(ctx context.Context, d mq.Delivery) error {
	msg, tripID, err := decodeTripCompleted(d)
	if err != nil {
		return c.drop(d, err)
	}
	_, err = c.earnings.MarkTripEarningsPayable(ctx, tripID, msg.CompletedAt)
	return c.settle(d, "mark earnings payable", err)
}

func decodeTripCompleted(d mq.Delivery) (mq.TripCompletedMessage, uuid.UUID, error) {
	msg, err := mq.DecodeTripCompleted(d.Body)
	if err != nil {
		return msg, uuid.Nil, err
	}
	tripID, err := uuid.Parse(msg.TripID)
	if err != nil {
		return msg, uuid.Nil, fmt.Errorf("trip_id: %w", err)
	}
	return msg, tripID, nil
}

// drop rejects a poison message without requeue.
func (c *Consumer) drop(d mq.Delivery, err error) error {
	c.log.Error("Dropping malformed message",
		zap.Error(err),
		zap.String("queue", d.Queue),
		zap.String("correlation_id", d.CorrelationID),
	)
	return err
}

func (c *Consumer) settle(d mq.Delivery, operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case apperror.IsDomain(err), apperror.IsNotFound(err), apperror.IsValidation(err):
		c.log.Warn(operation+" rejected, acking",
			zap.Error(err),
			zap.String("queue", d.Queue),
			zap.String("correlation_id", d.CorrelationID),
		)
		return nil
	default:
		c.log.Error(operation+" failed, requeueing",
			zap.Error(err),
			zap.String("queue", d.Queue),
			zap.String("correlation_id", d.CorrelationID),
			zap.Bool("redelivered", d.Redelivered),
		)
		return mq.Requeue(err)
	}
}
