package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TripRepository interface {
	Create(ctx context.Context, trip *entity.Trip) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Trip, error)
	FindAll(ctx context.Context, f TripFilter, limit, offset int) ([]*entity.Trip, error)
	Count(ctx context.Context, f TripFilter) (int64, error)

	// UpdateStatus moves the trip only if it is still in from. It reports
	// false when another writer got there first. outbox rows commit with it.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.TripStatus, now time.Time, outbox ...*entity.OutboxMessage) (bool, error)

	// ApplySeatDelta runs the seat ledger for one delta under a row lock on the trip.
	// onReject rows commit only when a reserve is rejected for lack of seats.
	ApplySeatDelta(ctx context.Context, d entity.SeatDelta, now time.Time, onReject ...*entity.OutboxMessage) (*entity.SeatDeltaPlan, error)
}

// TripFilter narrows trip listings. Zero fields match everything; the
// city fields are case-insensitive partial matches.
type TripFilter struct {
	Status          *entity.TripStatus
	DriverID        *uuid.UUID
	DepartureCity   string
	DestinationCity string
	DepartureDate   *time.Time
}

// where renders the filter as a WHERE clause over numbered placeholders.
func (f TripFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.DriverID != nil {
		add("driver_id = $%d", *f.DriverID)
	}
	if f.DepartureCity != "" {
		add("departure_city ILIKE '%%' || $%d || '%%'", f.DepartureCity)
	}
	if f.DestinationCity != "" {
		add("destination_city ILIKE '%%' || $%d || '%%'", f.DestinationCity)
	}
	if f.DepartureDate != nil {
		add("departure_date = $%d", *f.DepartureDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

type tripRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTripRepository(db database.PgxIface, log *zap.Logger) TripRepository {
	return &tripRepository{
		db:  db,
		log: log.With(zap.String("repository", "trip")),
	}
}

const tripColumns = `id, driver_id, departure_city, destination_city, departure_date, departure_time,
	total_price, available_seats, status, created_at, updated_at`

func scanTrip(row pgx.Row) (*entity.Trip, error) {
	var t entity.Trip
	err := row.Scan(
		&t.ID,
		&t.DriverID,
		&t.DepartureCity,
		&t.DestinationCity,
		&t.DepartureDate,
		&t.DepartureTime,
		&t.TotalPrice,
		&t.AvailableSeats,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tripRepository) Create(ctx context.Context, trip *entity.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		trip.ID,
		trip.DriverID,
		trip.DepartureCity,
		trip.DestinationCity,
		trip.DepartureDate,
		trip.DepartureTime,
		trip.TotalPrice,
		trip.AvailableSeats,
		trip.Status,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create trip",
			zap.Error(err),
			zap.String("driver_id", trip.DriverID.String()),
		)
		return fmt.Errorf("create trip: %w", err)
	}

	return nil
}

func (r *tripRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find trip by ID", zap.Error(err), zap.String("trip_id", id.String()))
		return nil, fmt.Errorf("find trip by ID %s: %w", id, err)
	}

	return trip, nil
}

func (r *tripRepository) FindAll(ctx context.Context, f TripFilter, limit, offset int) ([]*entity.Trip, error) {
	where, args := f.where()
	query := fmt.Sprintf(`
		SELECT `+tripColumns+`
		FROM trips
		%s
		ORDER BY departure_date, created_at
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		r.log.Error("Failed to list trips", zap.Error(err))
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []*entity.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			r.log.Error("Failed to scan trip row", zap.Error(err))
			return nil, fmt.Errorf("scan trip row: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

func (r *tripRepository) Count(ctx context.Context, f TripFilter) (int64, error) {
	where, args := f.where()
	query := `SELECT COUNT(*) FROM trips ` + where

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count trips", zap.Error(err))
		return 0, fmt.Errorf("count trips: %w", err)
	}

	return count, nil
}

func (r *tripRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.TripStatus, now time.Time, outbox ...*entity.OutboxMessage) (bool, error) {
	query := `UPDATE trips SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`

	var changed bool
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, id, from, to, now)
		if err != nil {
			return fmt.Errorf("update trip %s status to %s: %w", id, to, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		changed = true
		return insertOutbox(ctx, tx, outbox...)
	})
	if err != nil {
		r.log.Error("Failed to update trip status",
			zap.Error(err),
			zap.String("trip_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, err
	}

	return changed, nil
}

func (r *tripRepository) ApplySeatDelta(ctx context.Context, d entity.SeatDelta, now time.Time, onReject ...*entity.OutboxMessage) (*entity.SeatDeltaPlan, error) {
	var plan entity.SeatDeltaPlan

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var available int
		err := tx.QueryRow(ctx, `SELECT available_seats FROM trips WHERE id = $1 FOR UPDATE`, d.TripID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound("trip", d.TripID.String())
		}
		if err != nil {
			return fmt.Errorf("lock trip %s: %w", d.TripID, err)
		}

		reserve, release, err := r.ledgerEntries(ctx, tx, d.BookingID)
		if err != nil {
			return err
		}

		plan, err = entity.PlanSeatDelta(available, d, reserve, release, now)
		if err != nil {
			return err
		}

		if plan.Outcome == entity.SeatDeltaApplied {
			_, err := tx.Exec(ctx,
				`UPDATE trips SET available_seats = $2, updated_at = $3 WHERE id = $1`,
				d.TripID, plan.Available, now)
			if err != nil {
				return fmt.Errorf("update seats of trip %s: %w", d.TripID, err)
			}
		}

		if e := plan.Entry; e != nil {
			_, err := tx.Exec(ctx, `
				INSERT INTO seat_ledger_entries (booking_id, direction, trip_id, seats, delta, effective, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				e.BookingID, e.Direction, e.TripID, e.Seats, e.Delta, e.Effective, e.CreatedAt)
			if err != nil {
				return fmt.Errorf("record seat ledger entry for booking %s: %w", e.BookingID, err)
			}
		}

		if plan.Outcome == entity.SeatDeltaRejected {
			return insertOutbox(ctx, tx, onReject...)
		}
		return nil
	})
	if err != nil {
		if !apperror.IsDomain(err) && !apperror.IsNotFound(err) && !apperror.IsValidation(err) {
			r.log.Error("Failed to apply seat delta",
				zap.Error(err),
				zap.String("trip_id", d.TripID.String()),
				zap.String("booking_id", d.BookingID.String()),
			)
		}
		return nil, err
	}

	return &plan, nil
}

func (r *tripRepository) ledgerEntries(ctx context.Context, q querier, bookingID uuid.UUID) (reserve, release *entity.SeatLedgerEntry, err error) {
	rows, err := q.Query(ctx, `
		SELECT trip_id, booking_id, direction, seats, delta, effective, created_at
		FROM seat_ledger_entries
		WHERE booking_id = $1`, bookingID)
	if err != nil {
		return nil, nil, fmt.Errorf("read seat ledger for booking %s: %w", bookingID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e entity.SeatLedgerEntry
		if err := rows.Scan(&e.TripID, &e.BookingID, &e.Direction, &e.Seats, &e.Delta, &e.Effective, &e.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan seat ledger entry: %w", err)
		}
		switch e.Direction {
		case entity.SeatReserve:
			reserve = &e
		case entity.SeatRelease:
			release = &e
		}
	}

	return reserve, release, rows.Err()
}
