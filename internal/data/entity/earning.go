package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EarningStatus string

const (
	EarningStatusPendingTrip EarningStatus = "pending_trip"
	EarningStatusPayable     EarningStatus = "payable"
	EarningStatusRequested   EarningStatus = "requested"
	EarningStatusProcessing  EarningStatus = "processing"
	EarningStatusPaid        EarningStatus = "paid"
	EarningStatusFailed      EarningStatus = "failed"
)

var earningTransitions = map[EarningStatus][]EarningStatus{
	EarningStatusPendingTrip: {EarningStatusPayable},
	EarningStatusPayable:     {EarningStatusRequested},
	// back to payable when the payout is cancelled
	EarningStatusRequested:  {EarningStatusProcessing, EarningStatusPayable, EarningStatusFailed},
	EarningStatusProcessing: {EarningStatusPaid, EarningStatusFailed},
	EarningStatusPaid:       nil,
	EarningStatusFailed:     nil,
}

func (s EarningStatus) Valid() bool {
	_, ok := earningTransitions[s]
	return ok
}

func (s EarningStatus) CanTransitionTo(to EarningStatus) bool {
	for _, next := range earningTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Earning struct {
	BaseSimple
	DriverID  uuid.UUID       `db:"driver_id"`
	BookingID uuid.UUID       `db:"booking_id"`
	TripID    uuid.UUID       `db:"trip_id"`
	Amount    decimal.Decimal `db:"amount"`
	Currency  string          `db:"currency"`
	Status    EarningStatus   `db:"status"`

	TripDate      time.Time `db:"trip_date"`
	PassengerName *string   `db:"passenger_name"`
	Route         *string   `db:"route"`

	PayoutRequestID *uuid.UUID `db:"payout_request_id"`
	PayableAt       *time.Time `db:"payable_at"`
	RequestedAt     *time.Time `db:"requested_at"`
	ProcessingAt    *time.Time `db:"processing_at"`
	PaidAt          *time.Time `db:"paid_at"`
	FailedAt        *time.Time `db:"failed_at"`
}

// EarningsSummary backs the driver's cash-out screen.
type EarningsSummary struct {
	TotalMonth         decimal.Decimal
	AmountPayable      decimal.Decimal
	CountPayable       int
	AmountProcessing   decimal.Decimal
	CountProcessing    int
	AmountPaidTotal    decimal.Decimal
	PayableEarnings    []*Earning
	ProcessingEarnings []*Earning
}
