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

// PayoutBuilder validates the locked earnings and returns the payout to store.
type PayoutBuilder func(earnings []*entity.Earning) (*entity.PayoutRequest, error)

// PayoutMutation changes a locked payout. Linked earnings follow its new status.
type PayoutMutation func(p *entity.PayoutRequest) error

type PayoutRepository interface {
	// Request locks the named earnings, builds the payout and links them, all
	// or nothing.
	Request(ctx context.Context, earningIDs []uuid.UUID, build PayoutBuilder) (*entity.PayoutRequest, error)
	Transition(ctx context.Context, id uuid.UUID, now time.Time, fn PayoutMutation) (*entity.PayoutRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.PayoutRequest, error)
	FindAll(ctx context.Context, status *entity.PayoutStatus, limit, offset int) ([]*entity.PayoutRequest, error)
	Count(ctx context.Context, status *entity.PayoutStatus) (int64, error)
}

type payoutRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPayoutRepository(db database.PgxIface, log *zap.Logger) PayoutRepository {
	return &payoutRepository{
		db:  db,
		log: log.With(zap.String("repository", "payout")),
	}
}

const payoutColumns = `id, driver_id, total_amount, currency, status, transfer_reference, admin_notes,
	failure_reason, requested_at, approved_at, eta_date, paid_at`

func scanPayout(row pgx.Row) (*entity.PayoutRequest, error) {
	var p entity.PayoutRequest
	err := row.Scan(
		&p.ID,
		&p.DriverID,
		&p.TotalAmount,
		&p.Currency,
		&p.Status,
		&p.TransferReference,
		&p.AdminNotes,
		&p.FailureReason,
		&p.RequestedAt,
		&p.ApprovedAt,
		&p.EtaDate,
		&p.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *payoutRepository) Request(ctx context.Context, earningIDs []uuid.UUID, build PayoutBuilder) (*entity.PayoutRequest, error) {
	var payout *entity.PayoutRequest

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+earningColumns+` FROM earnings WHERE id = ANY($1) ORDER BY id FOR UPDATE`, earningIDs)
		if err != nil {
			return fmt.Errorf("lock earnings: %w", err)
		}
		earnings, err := scanEarnings(rows)
		if err != nil {
			return err
		}

		payout, err = build(earnings)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO payout_requests (`+payoutColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			payout.ID, payout.DriverID, payout.TotalAmount, payout.Currency, payout.Status,
			payout.TransferReference, payout.AdminNotes, payout.FailureReason, payout.RequestedAt,
			payout.ApprovedAt, payout.EtaDate, payout.PaidAt)
		if err != nil {
			return fmt.Errorf("insert payout request: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE earnings
			SET status = 'requested', requested_at = $2, payout_request_id = $3
			WHERE id = ANY($1) AND status = 'payable'`,
			earningIDs, payout.RequestedAt, payout.ID)
		if err != nil {
			return fmt.Errorf("link earnings to payout %s: %w", payout.ID, err)
		}
		if int(tag.RowsAffected()) != len(payout.Earnings) {
			return apperror.Conflict("earning", "earnings changed while the payout was being requested")
		}
		return nil
	})
	if err != nil {
		if !apperror.IsDomain(err) && !apperror.IsConflict(err) && !apperror.IsValidation(err) {
			r.log.Error("Failed to request payout", zap.Error(err), zap.Int("earnings", len(earningIDs)))
		}
		return nil, err
	}

	return payout, nil
}

func (r *payoutRepository) Transition(ctx context.Context, id uuid.UUID, now time.Time, fn PayoutMutation) (*entity.PayoutRequest, error) {
	var payout *entity.PayoutRequest

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		p, err := scanPayout(tx.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound("payout", id.String())
		}
		if err != nil {
			return fmt.Errorf("lock payout %s: %w", id, err)
		}

		rows, err := tx.Query(ctx, `SELECT `+earningColumns+` FROM earnings WHERE payout_request_id = $1 FOR UPDATE`, id)
		if err != nil {
			return fmt.Errorf("lock earnings of payout %s: %w", id, err)
		}
		if p.Earnings, err = scanEarnings(rows); err != nil {
			return err
		}

		if err := fn(p); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE payout_requests
			SET status = $2, transfer_reference = $3, admin_notes = $4, failure_reason = $5,
			    approved_at = $6, eta_date = $7, paid_at = $8
			WHERE id = $1`,
			p.ID, p.Status, p.TransferReference, p.AdminNotes, p.FailureReason, p.ApprovedAt, p.EtaDate, p.PaidAt)
		if err != nil {
			return fmt.Errorf("update payout %s: %w", id, err)
		}

		if err := r.syncEarnings(ctx, tx, p, now); err != nil {
			return err
		}
		payout = p
		return nil
	})
	if err != nil {
		if !apperror.IsDomain(err) && !apperror.IsNotFound(err) && !apperror.IsValidation(err) {
			r.log.Error("Failed to update payout", zap.Error(err), zap.String("payout_id", id.String()))
		}
		return nil, err
	}

	return payout, nil
}

// syncEarnings moves the payout's earnings to the status its own status implies.
func (r *payoutRepository) syncEarnings(ctx context.Context, tx pgx.Tx, p *entity.PayoutRequest, now time.Time) error {
	target := p.Status.EarningStatus()

	var query string
	args := []any{p.ID, target}
	switch target {
	case entity.EarningStatusProcessing:
		query = `UPDATE earnings SET status = $2, processing_at = $3 WHERE payout_request_id = $1`
		args = append(args, now)
	case entity.EarningStatusPaid:
		paidAt := now
		if p.PaidAt != nil {
			paidAt = *p.PaidAt
		}
		query = `UPDATE earnings SET status = $2, paid_at = $3 WHERE payout_request_id = $1`
		args = append(args, paidAt)
	case entity.EarningStatusFailed:
		query = `UPDATE earnings SET status = $2, failed_at = $3 WHERE payout_request_id = $1`
		args = append(args, now)
	case entity.EarningStatusPayable:
		query = `UPDATE earnings SET status = $2, payout_request_id = NULL, requested_at = NULL WHERE payout_request_id = $1`
	default:
		return nil
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("move earnings of payout %s to %s: %w", p.ID, target, err)
	}

	for _, e := range p.Earnings {
		e.Status = target
		switch target {
		case entity.EarningStatusProcessing:
			e.ProcessingAt = &now
		case entity.EarningStatusPaid:
			e.PaidAt = p.PaidAt
		case entity.EarningStatusFailed:
			e.FailedAt = &now
		case entity.EarningStatusPayable:
			e.PayoutRequestID = nil
			e.RequestedAt = nil
		}
	}
	return nil
}

func (r *payoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.PayoutRequest, error) {
	p, err := scanPayout(r.db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payout by ID", zap.Error(err), zap.String("payout_id", id.String()))
		return nil, fmt.Errorf("find payout by ID %s: %w", id, err)
	}
	return p, nil
}

func (r *payoutRepository) FindAll(ctx context.Context, status *entity.PayoutStatus, limit, offset int) ([]*entity.PayoutRequest, error) {
	query := `
		SELECT ` + payoutColumns + `
		FROM payout_requests
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		r.log.Error("Failed to list payouts", zap.Error(err))
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*entity.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout row: %w", err)
		}
		payouts = append(payouts, p)
	}

	return payouts, rows.Err()
}

func (r *payoutRepository) Count(ctx context.Context, status *entity.PayoutStatus) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payout_requests WHERE ($1::text IS NULL OR status = $1)`, status).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count payouts", zap.Error(err))
		return 0, fmt.Errorf("count payouts: %w", err)
	}
	return count, nil
}
