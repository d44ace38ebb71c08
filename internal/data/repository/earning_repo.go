package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-booking/internal/data/entity"
	"ride-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EarningTotals are the aggregates behind the driver summary.
type EarningTotals struct {
	TotalMonth       decimal.Decimal
	AmountPayable    decimal.Decimal
	CountPayable     int
	AmountProcessing decimal.Decimal
	CountProcessing  int
	AmountPaidTotal  decimal.Decimal
}

type EarningRepository interface {
	// CreateIfAbsent inserts unless an earning already exists for the booking.
	CreateIfAbsent(ctx context.Context, earning *entity.Earning) (bool, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Earning, error)
	FindByDriver(ctx context.Context, driverID uuid.UUID, statuses ...entity.EarningStatus) ([]*entity.Earning, error)
	FindByPayout(ctx context.Context, payoutID uuid.UUID) ([]*entity.Earning, error)
	Totals(ctx context.Context, driverID uuid.UUID, monthStart time.Time) (*EarningTotals, error)

	// MarkTripPayable moves pending_trip earnings of the trip to payable.
	MarkTripPayable(ctx context.Context, tripID uuid.UUID, at time.Time) (int64, error)
}

type earningRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewEarningRepository(db database.PgxIface, log *zap.Logger) EarningRepository {
	return &earningRepository{
		db:  db,
		log: log.With(zap.String("repository", "earning")),
	}
}

const earningColumns = `id, driver_id, booking_id, trip_id, amount, currency, status, trip_date,
	passenger_name, route, payout_request_id, created_at, payable_at, requested_at, processing_at,
	paid_at, failed_at`

func scanEarning(row pgx.Row) (*entity.Earning, error) {
	var e entity.Earning
	err := row.Scan(
		&e.ID,
		&e.DriverID,
		&e.BookingID,
		&e.TripID,
		&e.Amount,
		&e.Currency,
		&e.Status,
		&e.TripDate,
		&e.PassengerName,
		&e.Route,
		&e.PayoutRequestID,
		&e.CreatedAt,
		&e.PayableAt,
		&e.RequestedAt,
		&e.ProcessingAt,
		&e.PaidAt,
		&e.FailedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEarnings(rows pgx.Rows) ([]*entity.Earning, error) {
	defer rows.Close()

	var earnings []*entity.Earning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("scan earning row: %w", err)
		}
		earnings = append(earnings, e)
	}
	return earnings, rows.Err()
}

func (r *earningRepository) CreateIfAbsent(ctx context.Context, e *entity.Earning) (bool, error) {
	query := `
		INSERT INTO earnings (` + earningColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (booking_id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		e.ID,
		e.DriverID,
		e.BookingID,
		e.TripID,
		e.Amount,
		e.Currency,
		e.Status,
		e.TripDate,
		e.PassengerName,
		e.Route,
		e.PayoutRequestID,
		e.CreatedAt,
		e.PayableAt,
		e.RequestedAt,
		e.ProcessingAt,
		e.PaidAt,
		e.FailedAt,
	)
	if err != nil {
		r.log.Error("Failed to create earning",
			zap.Error(err),
			zap.String("booking_id", e.BookingID.String()),
			zap.String("driver_id", e.DriverID.String()),
		)
		return false, fmt.Errorf("create earning for booking %s: %w", e.BookingID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *earningRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Earning, error) {
	query := `SELECT ` + earningColumns + ` FROM earnings WHERE booking_id = $1`

	e, err := scanEarning(r.db.QueryRow(ctx, query, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find earning by booking", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("find earning by booking %s: %w", bookingID, err)
	}
	return e, nil
}

func (r *earningRepository) FindByDriver(ctx context.Context, driverID uuid.UUID, statuses ...entity.EarningStatus) ([]*entity.Earning, error) {
	filter := make([]string, len(statuses))
	for i, s := range statuses {
		filter[i] = string(s)
	}

	query := `
		SELECT ` + earningColumns + `
		FROM earnings
		WHERE driver_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY trip_date DESC, created_at DESC
	`

	rows, err := r.db.Query(ctx, query, driverID, filter)
	if err != nil {
		r.log.Error("Failed to find earnings by driver", zap.Error(err), zap.String("driver_id", driverID.String()))
		return nil, fmt.Errorf("find earnings of driver %s: %w", driverID, err)
	}

	return scanEarnings(rows)
}

func (r *earningRepository) FindByPayout(ctx context.Context, payoutID uuid.UUID) ([]*entity.Earning, error) {
	query := `SELECT ` + earningColumns + ` FROM earnings WHERE payout_request_id = $1 ORDER BY trip_date`

	rows, err := r.db.Query(ctx, query, payoutID)
	if err != nil {
		r.log.Error("Failed to find earnings by payout", zap.Error(err), zap.String("payout_id", payoutID.String()))
		return nil, fmt.Errorf("find earnings of payout %s: %w", payoutID, err)
	}

	return scanEarnings(rows)
}

func (r *earningRepository) Totals(ctx context.Context, driverID uuid.UUID, monthStart time.Time) (*EarningTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE trip_date >= $2::date AND trip_date < $2::date + INTERVAL '1 month'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'payable'), 0),
			COUNT(*) FILTER (WHERE status = 'payable'),
			COALESCE(SUM(amount) FILTER (WHERE status IN ('requested', 'processing')), 0),
			COUNT(*) FILTER (WHERE status IN ('requested', 'processing')),
			COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0)
		FROM earnings
		WHERE driver_id = $1
	`

	var t EarningTotals
	err := r.db.QueryRow(ctx, query, driverID, monthStart).Scan(
		&t.TotalMonth,
		&t.AmountPayable,
		&t.CountPayable,
		&t.AmountProcessing,
		&t.CountProcessing,
		&t.AmountPaidTotal,
	)
	if err != nil {
		r.log.Error("Failed to total earnings", zap.Error(err), zap.String("driver_id", driverID.String()))
		return nil, fmt.Errorf("total earnings of driver %s: %w", driverID, err)
	}

	return &t, nil
}

func (r *earningRepository) MarkTripPayable(ctx context.Context, tripID uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE earnings
		SET status = 'payable', payable_at = $2
		WHERE trip_id = $1 AND status = 'pending_trip'
	`

	tag, err := r.db.Exec(ctx, query, tripID, at)
	if err != nil {
		r.log.Error("Failed to mark trip earnings payable", zap.Error(err), zap.String("trip_id", tripID.String()))
		return 0, fmt.Errorf("mark earnings of trip %s payable: %w", tripID, err)
	}

	return tag.RowsAffected(), nil
}
