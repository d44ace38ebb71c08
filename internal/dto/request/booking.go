package request

import "time"

// CreateBookingRequest omits the money snapshot fields the server defaults:
// fee, tax rate, tax region and currency come from configuration when absent.
type CreateBookingRequest struct {
	TripID                 string     `json:"trip_id" validate:"required,uuid"`
	StopID                 *string    `json:"stop_id,omitempty" validate:"omitempty,uuid"`
	DriverID               *string    `json:"driver_id,omitempty" validate:"omitempty,uuid"`
	NumberOfSeats          int        `json:"number_of_seats" validate:"required,min=1,max=8"`
	PricePerSeat           string     `json:"price_per_seat" validate:"required,decimal=nonneg"`
	ReservationFeePerSeat  *string    `json:"reservation_fee_per_seat,omitempty" validate:"omitempty,decimal=nonneg"`
	Currency               *string    `json:"currency,omitempty" validate:"omitempty,len=3"`
	TaxRate                *string    `json:"tax_rate,omitempty" validate:"omitempty,decimal=nonneg"`
	TaxRegion              *string    `json:"tax_region,omitempty" validate:"omitempty,max=32"`
	ChauffeurPaymentMethod string     `json:"chauffeur_payment_method" validate:"required,oneof=cash transfer"`
	PaymentMethodUsed      *string    `json:"payment_method_used,omitempty" validate:"omitempty,max=32"`
	FreeCancellationUntil  *time.Time `json:"free_cancellation_until" validate:"required"`
}
