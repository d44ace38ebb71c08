package response

import (
	"time"

	"ride-booking/internal/data/entity"
	"ride-booking/pkg/money"

	"github.com/shopspring/decimal"
)

type BookingResponse struct {
	ID                     string               `json:"id"`
	UserID                 string               `json:"user_id"`
	TripID                 string               `json:"trip_id"`
	StopID                 *string              `json:"stop_id,omitempty"`
	DriverID               string               `json:"driver_id"`
	NumberOfSeats          int                  `json:"number_of_seats"`
	PricePerSeat           decimal.Decimal      `json:"price_per_seat"`
	ReservationFeePerSeat  decimal.Decimal      `json:"reservation_fee_per_seat"`
	Currency               string               `json:"currency"`
	TaxRate                decimal.Decimal      `json:"tax_rate"`
	TaxRegion              *string              `json:"tax_region,omitempty"`
	BaseTotal              decimal.Decimal      `json:"base_total"`
	FeeTotal               decimal.Decimal      `json:"fee_total"`
	TaxTotal               decimal.Decimal      `json:"tax_total"`
	ChargedNowTotal        decimal.Decimal      `json:"charged_now_total"`
	DriverPayable          decimal.Decimal      `json:"driver_payable"`
	DriverCollectedCash    decimal.Decimal      `json:"driver_collected_cash"`
	ChauffeurPaymentMethod money.PayoutMethod   `json:"chauffeur_payment_method"`
	PaymentMethodUsed      string               `json:"payment_method_used"`
	Status                 entity.BookingStatus `json:"status"`
	FreeCancellationUntil  time.Time            `json:"free_cancellation_until"`
	CancelledAt            *time.Time           `json:"cancelled_at,omitempty"`
	RefundAmount           *decimal.Decimal     `json:"refund_amount,omitempty"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
}

type CancelBookingResponse struct {
	Booking       BookingResponse `json:"booking"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	SeatsRestored int             `json:"seats_restored"`
	BeforeCutoff  bool            `json:"before_cutoff"`
}

type CompleteBookingsResponse struct {
	TripID    string `json:"trip_id"`
	Completed int64  `json:"completed"`
}

type PassengerResponse struct {
	BookingID     string               `json:"booking_id"`
	UserID        string               `json:"user_id"`
	NumberOfSeats int                  `json:"number_of_seats"`
	Status        entity.BookingStatus `json:"status"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                     b.ID.String(),
		UserID:                 b.UserID.String(),
		TripID:                 b.TripID.String(),
		DriverID:               b.DriverID.String(),
		NumberOfSeats:          b.NumberOfSeats,
		PricePerSeat:           b.PricePerSeat,
		ReservationFeePerSeat:  b.ReservationFeePerSeat,
		Currency:               b.Currency,
		TaxRate:                b.TaxRate,
		TaxRegion:              b.TaxRegion,
		BaseTotal:              b.BaseTotal,
		FeeTotal:               b.FeeTotal,
		TaxTotal:               b.TaxTotal,
		ChargedNowTotal:        b.ChargedNowTotal,
		DriverPayable:          b.DriverPayable,
		DriverCollectedCash:    b.DriverCollectedCash,
		ChauffeurPaymentMethod: b.ChauffeurPaymentMethod,
		PaymentMethodUsed:      b.PaymentMethodUsed,
		Status:                 b.Status,
		FreeCancellationUntil:  b.FreeCancellationUntil,
		CancelledAt:            b.CancelledAt,
		RefundAmount:           b.RefundAmount,
		CreatedAt:              b.CreatedAt,
		UpdatedAt:              b.UpdatedAt,
	}
	if b.StopID != nil {
		stop := b.StopID.String()
		resp.StopID = &stop
	}
	return resp
}

func PassengerToResponse(b *entity.Booking) PassengerResponse {
	return PassengerResponse{
		BookingID:     b.ID.String(),
		UserID:        b.UserID.String(),
		NumberOfSeats: b.NumberOfSeats,
		Status:        b.Status,
	}
}
