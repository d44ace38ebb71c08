package response

import (
	"time"

	"ride-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

type TripResponse struct {
	ID              string            `json:"id"`
	DriverID        string            `json:"driver_id"`
	DepartureCity   string            `json:"departure_city"`
	DestinationCity string            `json:"destination_city"`
	DepartureDate   string            `json:"departure_date"`
	DepartureTime   *string           `json:"departure_time,omitempty"`
	TotalPrice      decimal.Decimal   `json:"total_price"`
	AvailableSeats  int               `json:"available_seats"`
	Status          entity.TripStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type SeatDeltaResponse struct {
	TripID         string                  `json:"trip_id"`
	BookingID      string                  `json:"booking_id"`
	Outcome        entity.SeatDeltaOutcome `json:"outcome"`
	Applied        bool                    `json:"applied"`
	AvailableSeats int                     `json:"available_seats"`
}

func TripToResponse(t *entity.Trip) TripResponse {
	return TripResponse{
		ID:              t.ID.String(),
		DriverID:        t.DriverID.String(),
		DepartureCity:   t.DepartureCity,
		DestinationCity: t.DestinationCity,
		DepartureDate:   t.DepartureDate.Format("2006-01-02"),
		DepartureTime:   t.DepartureTime,
		TotalPrice:      t.TotalPrice,
		AvailableSeats:  t.AvailableSeats,
		Status:          t.Status,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}
