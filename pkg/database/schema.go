package database

import (
	"context"
	"fmt"
)

// Constraint names the repositories map to domain errors.
const (
	ConstraintBookingActiveUnique = "uq_bookings_user_trip_active"
	ConstraintEarningBooking      = "uq_earnings_booking"
	ConstraintPaymentIntent       = "uq_payments_gateway_intent"
	ConstraintTripSeatsNonNeg     = "ck_trips_available_seats"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trips (
		id UUID PRIMARY KEY,
		driver_id UUID NOT NULL,
		departure_city TEXT NOT NULL,
		destination_city TEXT NOT NULL,
		departure_date DATE NOT NULL,
		departure_time TEXT,
		total_price NUMERIC(12,2) NOT NULL,
		available_seats INTEGER NOT NULL CONSTRAINT ck_trips_available_seats CHECK (available_seats >= 0),
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_status ON trips (status, departure_date)`,
	`CREATE TABLE IF NOT EXISTS seat_ledger_entries (
		booking_id UUID NOT NULL,
		direction TEXT NOT NULL,
		trip_id UUID NOT NULL REFERENCES trips (id),
		seats INTEGER NOT NULL,
		delta INTEGER NOT NULL,
		effective BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (booking_id, direction)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		trip_id UUID NOT NULL,
		stop_id UUID,
		driver_id UUID NOT NULL,
		number_of_seats INTEGER NOT NULL CHECK (number_of_seats > 0),
		price_per_seat NUMERIC(12,2) NOT NULL,
		reservation_fee_per_seat NUMERIC(12,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		tax_rate NUMERIC(6,4) NOT NULL,
		tax_region TEXT,
		base_total NUMERIC(12,2) NOT NULL,
		fee_total NUMERIC(12,2) NOT NULL,
		tax_total NUMERIC(12,2) NOT NULL,
		charged_now_total NUMERIC(12,2) NOT NULL,
		driver_payable NUMERIC(12,2) NOT NULL,
		driver_collected_cash NUMERIC(12,2) NOT NULL,
		chauffeur_payment_method TEXT NOT NULL,
		payment_method_used TEXT NOT NULL,
		status TEXT NOT NULL,
		free_cancellation_until TIMESTAMPTZ NOT NULL,
		cancelled_at TIMESTAMPTZ,
		refund_amount NUMERIC(12,2),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_user_trip_active
		ON bookings (user_id, trip_id) WHERE status IN ('confirmed', 'completed')`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_trip ON bookings (trip_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_driver ON bookings (driver_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		driver_id UUID NOT NULL,
		trip_id UUID NOT NULL,
		booking_id UUID NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		fee NUMERIC(12,2),
		tax_rate NUMERIC(6,4),
		tax_region TEXT,
		gateway_intent_id TEXT NOT NULL CONSTRAINT uq_payments_gateway_intent UNIQUE,
		receipt_url TEXT,
		status TEXT NOT NULL,
		payment_method TEXT,
		chauffeur_payment_method TEXT NOT NULL,
		driver_payable NUMERIC(12,2) NOT NULL,
		trip_departure_city TEXT,
		trip_destination_city TEXT,
		trip_departure_date DATE,
		passenger_name TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_booking ON payments (booking_id)`,
	`CREATE TABLE IF NOT EXISTS payout_requests (
		id UUID PRIMARY KEY,
		driver_id UUID NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		status TEXT NOT NULL,
		transfer_reference TEXT,
		admin_notes TEXT,
		failure_reason TEXT,
		requested_at TIMESTAMPTZ NOT NULL,
		approved_at TIMESTAMPTZ,
		eta_date DATE,
		paid_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS earnings (
		id UUID PRIMARY KEY,
		driver_id UUID NOT NULL,
		booking_id UUID NOT NULL CONSTRAINT uq_earnings_booking UNIQUE,
		trip_id UUID NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		currency CHAR(3) NOT NULL,
		status TEXT NOT NULL,
		trip_date DATE NOT NULL,
		passenger_name TEXT,
		route TEXT,
		payout_request_id UUID REFERENCES payout_requests (id),
		created_at TIMESTAMPTZ NOT NULL,
		payable_at TIMESTAMPTZ,
		requested_at TIMESTAMPTZ,
		processing_at TIMESTAMPTZ,
		paid_at TIMESTAMPTZ,
		failed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_earnings_driver ON earnings (driver_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_earnings_trip ON earnings (trip_id, status)`,
	`CREATE TABLE IF NOT EXISTS outbox_messages (
		id UUID PRIMARY KEY,
		queue TEXT NOT NULL,
		correlation_id TEXT NOT NULL,
		payload JSONB NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		published_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox_messages (created_at) WHERE published_at IS NULL`,
}

// Migrate creates the tables if they do not exist. Statements are idempotent.
func Migrate(ctx context.Context, db PgxIface) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
