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

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*entity.Payment, error)
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)

	// TransitionStatus is a compare-and-set on status. It reports false when
	// the payment was no longer in from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.PaymentStatus, receiptURL *string, now time.Time) (bool, error)

	// FindSucceededWithoutEarning lists transfer payments whose earning is missing.
	FindSucceededWithoutEarning(ctx context.Context, limit int) ([]*entity.Payment, error)
}

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, user_id, driver_id, trip_id, booking_id, amount, currency, fee, tax_rate,
	tax_region, gateway_intent_id, receipt_url, status, payment_method, chauffeur_payment_method,
	driver_payable, trip_departure_city, trip_destination_city, trip_departure_date, passenger_name,
	created_at, updated_at`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.DriverID,
		&p.TripID,
		&p.BookingID,
		&p.Amount,
		&p.Currency,
		&p.Fee,
		&p.TaxRate,
		&p.TaxRegion,
		&p.GatewayIntentID,
		&p.ReceiptURL,
		&p.Status,
		&p.PaymentMethod,
		&p.ChauffeurPaymentMethod,
		&p.DriverPayable,
		&p.TripDepartureCity,
		&p.TripDestinationCity,
		&p.TripDepartureDate,
		&p.PassengerName,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        $20, $21, $22)
	`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.DriverID,
		p.TripID,
		p.BookingID,
		p.Amount,
		p.Currency,
		p.Fee,
		p.TaxRate,
		p.TaxRegion,
		p.GatewayIntentID,
		p.ReceiptURL,
		p.Status,
		p.PaymentMethod,
		p.ChauffeurPaymentMethod,
		p.DriverPayable,
		p.TripDepartureCity,
		p.TripDestinationCity,
		p.TripDepartureDate,
		p.PassengerName,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if database.IsUniqueViolation(err, database.ConstraintPaymentIntent) {
		return apperror.Domain(apperror.CodePaymentAlreadyRegistered,
			"gateway intent %s is already registered", p.GatewayIntentID)
	}
	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("booking_id", p.BookingID.String()),
			zap.String("intent_id", p.GatewayIntentID),
		)
		return fmt.Errorf("create payment for booking %s: %w", p.BookingID, err)
	}

	return nil
}

func (r *paymentRepository) findOne(ctx context.Context, where string, arg any) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where + ` ORDER BY created_at DESC LIMIT 1`

	p, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment", zap.Error(err), zap.String("by", where), zap.Any("value", arg))
		return nil, fmt.Errorf("find payment by %s: %w", where, err)
	}
	return p, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *paymentRepository) FindByIntentID(ctx context.Context, intentID string) (*entity.Payment, error) {
	return r.findOne(ctx, "gateway_intent_id = $1", intentID)
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "booking_id = $1", bookingID)
}

func (r *paymentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.PaymentStatus, receiptURL *string, now time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = $3, receipt_url = COALESCE($4, receipt_url), updated_at = $5
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, id, from, to, receiptURL, now)
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("payment_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update payment %s status to %s: %w", id, to, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepository) FindSucceededWithoutEarning(ctx context.Context, limit int) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments p
		WHERE p.status = 'succeeded'
		  AND p.chauffeur_payment_method = 'transfer'
		  AND p.driver_payable > 0
		  AND NOT EXISTS (SELECT 1 FROM earnings e WHERE e.booking_id = p.booking_id)
		ORDER BY p.updated_at
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.Error("Failed to find payments without earning", zap.Error(err))
		return nil, fmt.Errorf("find payments without earning: %w", err)
	}
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}
