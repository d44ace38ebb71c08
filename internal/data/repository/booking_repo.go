package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BookingMutation changes a locked booking and may return an event to commit with it.
type BookingMutation func(b *entity.Booking) (*entity.OutboxMessage, error)

type BookingRepository interface {
	// Create stores the booking and its outbox rows in one transaction.
	Create(ctx context.Context, booking *entity.Booking, outbox ...*entity.OutboxMessage) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindActiveByUserAndTrip(ctx context.Context, userID, tripID uuid.UUID) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	FindByDriverID(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByDriverID(ctx context.Context, driverID uuid.UUID) (int64, error)
	FindActiveByTripID(ctx context.Context, tripID uuid.UUID) ([]*entity.Booking, error)

	// Mutate locks the booking row, applies fn and saves the result.
	Mutate(ctx context.Context, id uuid.UUID, fn BookingMutation) (*entity.Booking, error)

	// CompleteByTrip moves every confirmed booking of the trip to completed.
	CompleteByTrip(ctx context.Context, tripID uuid.UUID, now time.Time) (int64, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `id, user_id, trip_id, stop_id, driver_id, number_of_seats, price_per_seat,
	reservation_fee_per_seat, currency, tax_rate, tax_region, base_total, fee_total, tax_total,
	charged_now_total, driver_payable, driver_collected_cash, chauffeur_payment_method,
	payment_method_used, status, free_cancellation_until, cancelled_at, refund_amount,
	created_at, updated_at`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.TripID,
		&b.StopID,
		&b.DriverID,
		&b.NumberOfSeats,
		&b.PricePerSeat,
		&b.ReservationFeePerSeat,
		&b.Currency,
		&b.TaxRate,
		&b.TaxRegion,
		&b.BaseTotal,
		&b.FeeTotal,
		&b.TaxTotal,
		&b.ChargedNowTotal,
		&b.DriverPayable,
		&b.DriverCollectedCash,
		&b.ChauffeurPaymentMethod,
		&b.PaymentMethodUsed,
		&b.Status,
		&b.FreeCancellationUntil,
		&b.CancelledAt,
		&b.RefundAmount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) scanAll(rows pgx.Rows) ([]*entity.Booking, error) {
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepository) Create(ctx context.Context, b *entity.Booking, outbox ...*entity.OutboxMessage) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24, $25)
	`

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			b.ID,
			b.UserID,
			b.TripID,
			b.StopID,
			b.DriverID,
			b.NumberOfSeats,
			b.PricePerSeat,
			b.ReservationFeePerSeat,
			b.Currency,
			b.TaxRate,
			b.TaxRegion,
			b.BaseTotal,
			b.FeeTotal,
			b.TaxTotal,
			b.ChargedNowTotal,
			b.DriverPayable,
			b.DriverCollectedCash,
			b.ChauffeurPaymentMethod,
			b.PaymentMethodUsed,
			b.Status,
			b.FreeCancellationUntil,
			b.CancelledAt,
			b.RefundAmount,
			b.CreatedAt,
			b.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outbox...)
	})

	if database.IsUniqueViolation(err, database.ConstraintBookingActiveUnique) {
		return apperror.Domain(apperror.CodeDuplicateBooking,
			"user %s already holds a booking on trip %s", b.UserID, b.TripID)
	}
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", b.ID.String()),
			zap.String("user_id", b.UserID.String()),
			zap.String("trip_id", b.TripID.String()),
		)
		return fmt.Errorf("create booking %s: %w", b.ID, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID", zap.Error(err), zap.String("booking_id", id.String()))
		return nil, fmt.Errorf("find booking by ID %s: %w", id, err)
	}

	return b, nil
}

func (r *bookingRepository) FindActiveByUserAndTrip(ctx context.Context, userID, tripID uuid.UUID) (*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1 AND trip_id = $2 AND status IN ('confirmed', 'completed')
		LIMIT 1
	`

	b, err := scanBooking(r.db.QueryRow(ctx, query, userID, tripID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find active booking",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("trip_id", tripID.String()),
		)
		return nil, fmt.Errorf("find active booking of user %s on trip %s: %w", userID, tripID, err)
	}

	return b, nil
}

func (r *bookingRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user ID", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("find bookings by user ID %s: %w", userID, err)
	}

	return r.scanAll(rows)
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by user ID", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("count bookings by user ID %s: %w", userID, err)
	}
	return count, nil
}

func (r *bookingRepository) FindByDriverID(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, driverID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by driver ID", zap.Error(err), zap.String("driver_id", driverID.String()))
		return nil, fmt.Errorf("find bookings by driver ID %s: %w", driverID, err)
	}

	return r.scanAll(rows)
}

func (r *bookingRepository) CountByDriverID(ctx context.Context, driverID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE driver_id = $1`, driverID).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count bookings by driver ID", zap.Error(err), zap.String("driver_id", driverID.String()))
		return 0, fmt.Errorf("count bookings by driver ID %s: %w", driverID, err)
	}
	return count, nil
}

func (r *bookingRepository) FindActiveByTripID(ctx context.Context, tripID uuid.UUID) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE trip_id = $1 AND status IN ('confirmed', 'completed')
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, tripID)
	if err != nil {
		r.log.Error("Failed to find bookings by trip ID", zap.Error(err), zap.String("trip_id", tripID.String()))
		return nil, fmt.Errorf("find bookings by trip ID %s: %w", tripID, err)
	}

	return r.scanAll(rows)
}

func (r *bookingRepository) Mutate(ctx context.Context, id uuid.UUID, fn BookingMutation) (*entity.Booking, error) {
	var saved *entity.Booking

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound("booking", id.String())
		}
		if err != nil {
			return fmt.Errorf("lock booking %s: %w", id, err)
		}

		msg, err := fn(b)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE bookings
			SET status = $2, driver_payable = $3, cancelled_at = $4, refund_amount = $5, updated_at = $6
			WHERE id = $1`,
			b.ID, b.Status, b.DriverPayable, b.CancelledAt, b.RefundAmount, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update booking %s: %w", id, err)
		}

		if err := insertOutbox(ctx, tx, msg); err != nil {
			return err
		}
		saved = b
		return nil
	})
	if err != nil {
		if !apperror.IsDomain(err) && !apperror.IsNotFound(err) {
			r.log.Error("Failed to update booking", zap.Error(err), zap.String("booking_id", id.String()))
		}
		return nil, err
	}

	return saved, nil
}

func (r *bookingRepository) CompleteByTrip(ctx context.Context, tripID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE bookings
		SET status = 'completed', updated_at = $2
		WHERE trip_id = $1 AND status = 'confirmed'
	`

	tag, err := r.db.Exec(ctx, query, tripID, now)
	if err != nil {
		r.log.Error("Failed to complete bookings by trip", zap.Error(err), zap.String("trip_id", tripID.String()))
		return 0, fmt.Errorf("complete bookings of trip %s: %w", tripID, err)
	}

	return tag.RowsAffected(), nil
}
