package entity

import (
	"time"

	"ride-booking/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusFailed    BookingStatus = "failed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusFailed},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted, BookingStatusFailed},
	BookingStatusCancelled: nil,
	BookingStatusCompleted: nil,
	BookingStatusFailed:    nil,
}

func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) Terminal() bool {
	return s.Valid() && len(bookingTransitions[s]) == 0
}

func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Booking struct {
	Base
	UserID   uuid.UUID  `db:"user_id"`
	TripID   uuid.UUID  `db:"trip_id"`
	StopID   *uuid.UUID `db:"stop_id"`
	DriverID uuid.UUID  `db:"driver_id"`

	NumberOfSeats         int             `db:"number_of_seats"`
	PricePerSeat          decimal.Decimal `db:"price_per_seat"`
	ReservationFeePerSeat decimal.Decimal `db:"reservation_fee_per_seat"`
	Currency              string          `db:"currency"`
	TaxRate               decimal.Decimal `db:"tax_rate"`
	TaxRegion             *string         `db:"tax_region"`

	BaseTotal           decimal.Decimal `db:"base_total"`
	FeeTotal            decimal.Decimal `db:"fee_total"`
	TaxTotal            decimal.Decimal `db:"tax_total"`
	ChargedNowTotal     decimal.Decimal `db:"charged_now_total"`
	DriverPayable       decimal.Decimal `db:"driver_payable"`
	DriverCollectedCash decimal.Decimal `db:"driver_collected_cash"`

	ChauffeurPaymentMethod money.PayoutMethod `db:"chauffeur_payment_method"`
	PaymentMethodUsed      string             `db:"payment_method_used"`

	Status                BookingStatus    `db:"status"`
	FreeCancellationUntil time.Time        `db:"free_cancellation_until"`
	CancelledAt           *time.Time       `db:"cancelled_at"`
	RefundAmount          *decimal.Decimal `db:"refund_amount"`
}

// ApplyTotals copies a money snapshot onto the booking.
func (b *Booking) ApplyTotals(t money.Totals) {
	b.BaseTotal = t.Base
	b.FeeTotal = t.Fee
	b.TaxTotal = t.Tax
	b.ChargedNowTotal = t.ChargedNow
	b.DriverPayable = t.DriverPayable
	b.DriverCollectedCash = t.DriverCollectedCash
}

func (b *Booking) CancellationSnapshot() money.CancellationSnapshot {
	return money.CancellationSnapshot{
		Method:                b.ChauffeurPaymentMethod,
		Seats:                 b.NumberOfSeats,
		ChargedNowTotal:       b.ChargedNowTotal,
		FeeTotal:              b.FeeTotal,
		TaxRate:               b.TaxRate,
		FreeCancellationUntil: b.FreeCancellationUntil,
	}
}
