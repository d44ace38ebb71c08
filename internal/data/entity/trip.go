package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TripStatus string

const (
	TripStatusPending   TripStatus = "pending"
	TripStatusOngoing   TripStatus = "ongoing"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

var tripTransitions = map[TripStatus][]TripStatus{
	TripStatusPending:   {TripStatusOngoing, TripStatusCancelled},
	TripStatusOngoing:   {TripStatusCompleted},
	TripStatusCompleted: nil,
	TripStatusCancelled: nil,
}

func (s TripStatus) Valid() bool {
	_, ok := tripTransitions[s]
	return ok
}

func (s TripStatus) Terminal() bool {
	return s.Valid() && len(tripTransitions[s]) == 0
}

func (s TripStatus) CanTransitionTo(to TripStatus) bool {
	for _, next := range tripTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// BookableTripStatuses lists the trip statuses that accept new bookings.
var BookableTripStatuses = []TripStatus{TripStatusPending}

func (s TripStatus) Bookable() bool {
	for _, b := range BookableTripStatuses {
		if s == b {
			return true
		}
	}
	return false
}

type Trip struct {
	Base
	DriverID        uuid.UUID       `db:"driver_id"`
	DepartureCity   string          `db:"departure_city"`
	DestinationCity string          `db:"destination_city"`
	DepartureDate   time.Time       `db:"departure_date"`
	DepartureTime   *string         `db:"departure_time"`
	TotalPrice      decimal.Decimal `db:"total_price"`
	AvailableSeats  int             `db:"available_seats"`
	Status          TripStatus      `db:"status"`
}

// TripSnapshot is what the booking side reads from the trip service.
type TripSnapshot struct {
	ID              uuid.UUID  `json:"id"`
	Status          TripStatus `json:"status"`
	DriverID        uuid.UUID  `json:"driver_id"`
	DepartureDate   time.Time  `json:"departure_date"`
	AvailableSeats  int        `json:"available_seats"`
	DepartureCity   string     `json:"departure_city"`
	DestinationCity string     `json:"destination_city"`
}

func (t *Trip) Snapshot() *TripSnapshot {
	return &TripSnapshot{
		ID:              t.ID,
		Status:          t.Status,
		DriverID:        t.DriverID,
		DepartureDate:   t.DepartureDate,
		AvailableSeats:  t.AvailableSeats,
		DepartureCity:   t.DepartureCity,
		DestinationCity: t.DestinationCity,
	}
}
