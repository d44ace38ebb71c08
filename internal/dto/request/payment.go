package request

import "time"

// CreatePaymentIntentRequest carries the booking and trip facts the payment
// service snapshots; it never reads the booking database.
type CreatePaymentIntentRequest struct {
	BookingID              string     `json:"booking_id" validate:"required,uuid"`
	TripID                 string     `json:"trip_id" validate:"required,uuid"`
	DriverID               string     `json:"driver_id" validate:"required,uuid"`
	Amount                 string     `json:"amount" validate:"required,decimal=nonneg"`
	Currency               string     `json:"currency" validate:"required,len=3"`
	Fee                    *string    `json:"fee,omitempty" validate:"omitempty,decimal=nonneg"`
	TaxRate                *string    `json:"tax_rate,omitempty" validate:"omitempty,decimal=nonneg"`
	TaxRegion              *string    `json:"tax_region,omitempty" validate:"omitempty,max=32"`
	PaymentMethod          *string    `json:"payment_method,omitempty" validate:"omitempty,max=32"`
	ChauffeurPaymentMethod string     `json:"chauffeur_payment_method" validate:"required,oneof=cash transfer"`
	DriverPayable          string     `json:"driver_payable" validate:"required,decimal=nonneg"`
	TripDepartureCity      *string    `json:"trip_departure_city,omitempty"`
	TripDestinationCity    *string    `json:"trip_destination_city,omitempty"`
	TripDepartureDate      *time.Time `json:"trip_departure_date,omitempty"`
	PassengerName          *string    `json:"passenger_name,omitempty" validate:"omitempty,max=120"`
}
