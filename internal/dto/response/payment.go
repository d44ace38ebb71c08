package response

import (
	"time"

	"ride-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

type PaymentResponse struct {
	ID              string               `json:"id"`
	BookingID       string               `json:"booking_id"`
	TripID          string               `json:"trip_id"`
	UserID          string               `json:"user_id"`
	DriverID        string               `json:"driver_id"`
	Amount          decimal.Decimal      `json:"amount"`
	Currency        string               `json:"currency"`
	Status          entity.PaymentStatus `json:"status"`
	GatewayIntentID string               `json:"gateway_intent_id"`
	ReceiptURL      *string              `json:"receipt_url,omitempty"`
	PaymentMethod   *string              `json:"payment_method,omitempty"`
	Route           string               `json:"route"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type PaymentIntentResponse struct {
	Payment      PaymentResponse `json:"payment"`
	ClientSecret string          `json:"client_secret"`
}

// GatewayEventResponse says what a webhook delivery did.
type GatewayEventResponse struct {
	EventID        string `json:"event_id"`
	Outcome        string `json:"outcome"`
	EarningCreated bool   `json:"earning_created"`
}

func PaymentToResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID.String(),
		BookingID:       p.BookingID.String(),
		TripID:          p.TripID.String(),
		UserID:          p.UserID.String(),
		DriverID:        p.DriverID.String(),
		Amount:          p.Amount,
		Currency:        p.Currency,
		Status:          p.Status,
		GatewayIntentID: p.GatewayIntentID,
		ReceiptURL:      p.ReceiptURL,
		PaymentMethod:   p.PaymentMethod,
		Route:           p.Route(),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
