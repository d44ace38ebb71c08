package mq

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	QueueTripUpdate           = "trip_update_queue"
	QueueTripCompleted        = "trip_completed_queue"
	QueueBookingTripCompleted = "booking_trip_completed_queue"
	QueueBookingSeatRejected  = "booking_seat_rejected_queue"
)

const (
	ActionDecreaseSeats = "decrease_available_seats"
	ActionIncreaseSeats = "increase_available_seats"
	EventTripCompleted  = "trip.completed"
	EventSeatsRejected  = "seat_reservation.rejected"
)

// SeatUpdateMessage asks the trip service to move its seat counter.
// booking_id is the idempotency key together with the action.
type SeatUpdateMessage struct {
	Action        string `json:"action"`
	TripID        string `json:"trip_id"`
	BookingID     string `json:"booking_id"`
	NumberOfSeats int    `json:"number_of_seats"`
}

type TripCompletedMessage struct {
	Event       string    `json:"event"`
	TripID      string    `json:"trip_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// SeatRejectedMessage tells the booking service a reservation did not fit.
type SeatRejectedMessage struct {
	Event         string `json:"event"`
	TripID        string `json:"trip_id"`
	BookingID     string `json:"booking_id"`
	NumberOfSeats int    `json:"number_of_seats"`
}

func DecodeSeatUpdate(body []byte) (SeatUpdateMessage, error) {
	var msg SeatUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("decode seat update: %w", err)
	}
	switch msg.Action {
	case ActionDecreaseSeats, ActionIncreaseSeats:
	default:
		return msg, fmt.Errorf("unknown seat action %q", msg.Action)
	}
	if msg.TripID == "" || msg.BookingID == "" || msg.NumberOfSeats <= 0 {
		return msg, fmt.Errorf("incomplete seat update for booking %q", msg.BookingID)
	}
	return msg, nil
}

func DecodeTripCompleted(body []byte) (TripCompletedMessage, error) {
	var msg TripCompletedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("decode trip completed: %w", err)
	}
	if msg.Event != EventTripCompleted {
		return msg, fmt.Errorf("unexpected event %q", msg.Event)
	}
	if msg.TripID == "" {
		return msg, fmt.Errorf("trip completed event without trip_id")
	}
	if msg.CompletedAt.IsZero() {
		msg.CompletedAt = time.Now().UTC()
	}
	return msg, nil
}

func DecodeSeatRejected(body []byte) (SeatRejectedMessage, error) {
	var msg SeatRejectedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("decode seat rejection: %w", err)
	}
	if msg.Event != EventSeatsRejected {
		return msg, fmt.Errorf("unexpected event %q", msg.Event)
	}
	if msg.BookingID == "" {
		return msg, fmt.Errorf("seat rejection without booking_id")
	}
	return msg, nil
}
