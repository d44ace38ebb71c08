package entity

import (
	"time"

	"ride-booking/internal/apperror"

	"github.com/google/uuid"
)

type SeatDirection string

const (
	SeatReserve SeatDirection = "reserve"
	SeatRelease SeatDirection = "release"
)

func (d SeatDirection) Valid() bool {
	return d == SeatReserve || d == SeatRelease
}

// SeatDelta is one requested change to a trip's seat counter.
// (BookingID, Direction) is its idempotency key.
type SeatDelta struct {
	TripID    uuid.UUID
	BookingID uuid.UUID
	Direction SeatDirection
	Seats     int
}

// Signed returns the counter delta: negative reserves, positive releases.
func (d SeatDelta) Signed() int {
	if d.Direction == SeatReserve {
		return -d.Seats
	}
	return d.Seats
}

// SeatLedgerEntry records that a key was seen. Effective is false when the
// key was recorded without moving the counter.
type SeatLedgerEntry struct {
	TripID    uuid.UUID     `db:"trip_id"`
	BookingID uuid.UUID     `db:"booking_id"`
	Direction SeatDirection `db:"direction"`
	Seats     int           `db:"seats"`
	Delta     int           `db:"delta"`
	Effective bool          `db:"effective"`
	CreatedAt time.Time     `db:"created_at"`
}

type SeatDeltaOutcome string

const (
	SeatDeltaApplied   SeatDeltaOutcome = "applied"
	SeatDeltaDuplicate SeatDeltaOutcome = "duplicate"
	SeatDeltaSkipped   SeatDeltaOutcome = "skipped"
	// SeatDeltaRejected is a reserve that did not fit. The key is recorded so a
	// redelivery stays a no-op; the booking service is told to fail the booking.
	SeatDeltaRejected SeatDeltaOutcome = "rejected"
)

// SeatDeltaPlan is what the ledger must write for one delta. Entry is nil
// for duplicates.
type SeatDeltaPlan struct {
	Outcome   SeatDeltaOutcome
	Available int
	Entry     *SeatLedgerEntry
}

// PlanSeatDelta decides how a delta affects a trip given the ledger entries
// already recorded for the same booking.
//
// A release that arrives before (or without) its reserve is stored as a
// non-effective tombstone, and a reserve that arrives after a release is
// stored the same way, so redelivery in any order never double counts.
// A reserve larger than the remaining seats is stored non-effective too, with
// outcome SeatDeltaRejected; its later release is then a tombstone.
func PlanSeatDelta(available int, d SeatDelta, reserve, release *SeatLedgerEntry, now time.Time) (SeatDeltaPlan, error) {
	if d.Seats <= 0 {
		return SeatDeltaPlan{}, apperror.Validation("number_of_seats", "must be positive")
	}
	if !d.Direction.Valid() {
		return SeatDeltaPlan{}, apperror.Validation("direction", "must be reserve or release")
	}

	existing := reserve
	if d.Direction == SeatRelease {
		existing = release
	}
	if existing != nil {
		return SeatDeltaPlan{Outcome: SeatDeltaDuplicate, Available: available}, nil
	}

	entry := &SeatLedgerEntry{
		TripID:    d.TripID,
		BookingID: d.BookingID,
		Direction: d.Direction,
		Seats:     d.Seats,
		Delta:     d.Signed(),
		CreatedAt: now,
	}

	skip := func() (SeatDeltaPlan, error) {
		entry.Effective = false
		return SeatDeltaPlan{Outcome: SeatDeltaSkipped, Available: available, Entry: entry}, nil
	}

	switch d.Direction {
	case SeatReserve:
		if release != nil {
			return skip()
		}
		if available+entry.Delta < 0 {
			entry.Effective = false
			return SeatDeltaPlan{Outcome: SeatDeltaRejected, Available: available, Entry: entry}, nil
		}
	case SeatRelease:
		if reserve == nil || !reserve.Effective {
			return skip()
		}
		// never hand back more than this booking took
		if entry.Seats > reserve.Seats {
			entry.Seats = reserve.Seats
			entry.Delta = reserve.Seats
		}
	}

	entry.Effective = true
	return SeatDeltaPlan{Outcome: SeatDeltaApplied, Available: available + entry.Delta, Entry: entry}, nil
}
