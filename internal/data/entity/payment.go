package entity

import (
	"fmt"
	"time"

	"ride-booking/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusSucceeded: {PaymentStatusRefunded},
	PaymentStatusFailed:    nil,
	PaymentStatusRefunded:  nil,
	PaymentStatusCancelled: nil,
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Payment struct {
	Base
	UserID    uuid.UUID `db:"user_id"`
	DriverID  uuid.UUID `db:"driver_id"`
	TripID    uuid.UUID `db:"trip_id"`
	BookingID uuid.UUID `db:"booking_id"`

	Amount    decimal.Decimal  `db:"amount"`
	Currency  string           `db:"currency"`
	Fee       *decimal.Decimal `db:"fee"`
	TaxRate   *decimal.Decimal `db:"tax_rate"`
	TaxRegion *string          `db:"tax_region"`

	GatewayIntentID string        `db:"gateway_intent_id"`
	ReceiptURL      *string       `db:"receipt_url"`
	Status          PaymentStatus `db:"status"`
	PaymentMethod   *string       `db:"payment_method"`

	// snapshot of booking and trip facts taken when the intent was created
	ChauffeurPaymentMethod money.PayoutMethod `db:"chauffeur_payment_method"`
	DriverPayable          decimal.Decimal    `db:"driver_payable"`
	TripDepartureCity      *string            `db:"trip_departure_city"`
	TripDestinationCity    *string            `db:"trip_destination_city"`
	TripDepartureDate      *time.Time         `db:"trip_departure_date"`
	PassengerName          *string            `db:"passenger_name"`
}

// Route renders "City → City", or a generic label when the snapshot is incomplete.
func (p *Payment) Route() string {
	if p.TripDepartureCity == nil || p.TripDestinationCity == nil ||
		*p.TripDepartureCity == "" || *p.TripDestinationCity == "" {
		return "Trip"
	}
	return fmt.Sprintf("%s → %s", *p.TripDepartureCity, *p.TripDestinationCity)
}

// CreatesEarning reports whether a succeeded payment owes the driver a transfer.
func (p *Payment) CreatesEarning() bool {
	return p.ChauffeurPaymentMethod == money.PayoutTransfer && p.DriverPayable.IsPositive()
}

type GatewayEventKind string

const (
	GatewayEventSucceeded GatewayEventKind = "succeeded"
	GatewayEventFailed    GatewayEventKind = "failed"
	GatewayEventRefunded  GatewayEventKind = "refunded"
)

func (k GatewayEventKind) TargetStatus() (PaymentStatus, bool) {
	switch k {
	case GatewayEventSucceeded:
		return PaymentStatusSucceeded, true
	case GatewayEventFailed:
		return PaymentStatusFailed, true
	case GatewayEventRefunded:
		return PaymentStatusRefunded, true
	}
	return "", false
}

// GatewayEvent is a normalized payment-gateway notification.
type GatewayEvent struct {
	ID         string
	Kind       GatewayEventKind
	IntentID   string
	ReceiptURL *string
	OccurredAt time.Time
}
