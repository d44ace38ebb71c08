package repository

import (
	"ride-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Trip    TripRepository
	Booking BookingRepository
	Payment PaymentRepository
	Earning EarningRepository
	Payout  PayoutRepository
	Outbox  OutboxRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Trip:    NewTripRepository(db, log),
		Booking: NewBookingRepository(db, log),
		Payment: NewPaymentRepository(db, log),
		Earning: NewEarningRepository(db, log),
		Payout:  NewPayoutRepository(db, log),
		Outbox:  NewOutboxRepository(db, log),
	}
}
