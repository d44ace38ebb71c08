package usecase

import (
	"context"
	"fmt"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/internal/data/repository"
	"ride-booking/internal/dto/request"
	"ride-booking/internal/dto/response"
	"ride-booking/pkg/money"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EarningService interface {
	// MarkTripEarningsPayable runs when a trip completes. Repeats move nothing.
	MarkTripEarningsPayable(ctx context.Context, tripID uuid.UUID, at time.Time) (int64, error)
	GetDriverEarningsSummary(ctx context.Context, driverID uuid.UUID) (*response.EarningsSummaryResponse, error)

	RequestPayout(ctx context.Context, driverID uuid.UUID, req *request.RequestPayoutRequest) (*response.PayoutResponse, error)
	ApprovePayout(ctx context.Context, payoutID string, req *request.ApprovePayoutRequest) (*response.PayoutResponse, error)
	MarkPayoutPaid(ctx context.Context, payoutID string, req *request.MarkPayoutPaidRequest) (*response.PayoutResponse, error)
	FailPayout(ctx context.Context, payoutID string, req *request.FailPayoutRequest) (*response.PayoutResponse, error)
	CancelPayout(ctx context.Context, actorID uuid.UUID, isAdmin bool, payoutID string) (*response.PayoutResponse, error)

	ListPayouts(ctx context.Context, req *request.ListPayoutsRequest) (*response.PaginatedResponse[response.PayoutResponse], error)
	GetPayout(ctx context.Context, actorID uuid.UUID, isAdmin bool, payoutID string) (*response.PayoutResponse, error)
}

type earningService struct {
	earnings repository.EarningRepository
	payouts  repository.PayoutRepository
	now      func() time.Time
	log      *zap.Logger
}

func NewEarningService(earnings repository.EarningRepository, payouts repository.PayoutRepository, log *zap.Logger) EarningService {
	return &earningService{
		earnings: earnings,
		payouts:  payouts,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With(zap.String("service", "earning")),
	}
}

func (s *earningService) MarkTripEarningsPayable(ctx context.Context, tripID uuid.UUID, at time.Time) (int64, error) {
	n, err := s.earnings.MarkTripPayable(ctx, tripID, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark earnings of trip %s payable: %w", tripID, err)
	}
	s.log.Info("Trip earnings payable", zap.String("trip_id", tripID.String()), zap.Int64("count", n))
	return n, nil
}

func (s *earningService) GetDriverEarningsSummary(ctx context.Context, driverID uuid.UUID) (*response.EarningsSummaryResponse, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	totals, err := s.earnings.Totals(ctx, driverID, monthStart)
	if err != nil {
		return nil, fmt.Errorf("earning totals: %w", err)
	}
	payable, err := s.earnings.FindByDriver(ctx, driverID, entity.EarningStatusPayable)
	if err != nil {
		return nil, fmt.Errorf("payable earnings: %w", err)
	}
	// "in transfer" covers requested and processing
	processing, err := s.earnings.FindByDriver(ctx, driverID, entity.EarningStatusRequested, entity.EarningStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("processing earnings: %w", err)
	}

	resp := response.EarningsSummaryToResponse(&entity.EarningsSummary{
		TotalMonth:         money.Quantize(totals.TotalMonth),
		AmountPayable:      money.Quantize(totals.AmountPayable),
		CountPayable:       totals.CountPayable,
		AmountProcessing:   money.Quantize(totals.AmountProcessing),
		CountProcessing:    totals.CountProcessing,
		AmountPaidTotal:    money.Quantize(totals.AmountPaidTotal),
		PayableEarnings:    payable,
		ProcessingEarnings: processing,
	})
	return &resp, nil
}

func (s *earningService) RequestPayout(ctx context.Context, driverID uuid.UUID, req *request.RequestPayoutRequest) (*response.PayoutResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(req.EarningIDs))
	ids := make([]uuid.UUID, 0, len(req.EarningIDs))
	for _, raw := range req.EarningIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperror.Validation("earning_ids", "must contain valid UUIDs")
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	now := s.now()
	payout, err := s.payouts.Request(ctx, ids, func(earnings []*entity.Earning) (*entity.PayoutRequest, error) {
		return buildPayout(driverID, ids, earnings, now)
	})
	if err != nil {
		if !apperror.IsDomain(err) {
			return nil, fmt.Errorf("request payout: %w", err)
		}
		s.log.Info("Payout request rejected", zap.Error(err), zap.String("driver_id", driverID.String()))
		return nil, err
	}

	s.log.Info("Payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("driver_id", driverID.String()),
		zap.Int("earnings", len(payout.Earnings)),
		zap.String("total_amount", payout.TotalAmount.StringFixed(2)),
	)

	resp := response.PayoutToResponse(payout)
	return &resp, nil
}

// buildPayout checks the locked earnings and totals them. Every requested id
// must be present, owned by the driver, payable and in one currency.
func buildPayout(driverID uuid.UUID, ids []uuid.UUID, earnings []*entity.Earning, now time.Time) (*entity.PayoutRequest, error) {
	if len(earnings) != len(ids) {
		return nil, apperror.Domain(apperror.CodeInvalidEarningSelection,
			"%d of %d earnings not found", len(ids)-len(earnings), len(ids))
	}

	payout := &entity.PayoutRequest{
		ID:          uuid.New(),
		DriverID:    driverID,
		Status:      entity.PayoutStatusRequested,
		RequestedAt: now,
		Earnings:    earnings,
	}

	total := money.Zero
	for _, e := range earnings {
		if e.DriverID != driverID {
			return nil, apperror.Domain(apperror.CodeInvalidEarningSelection, "earning %s belongs to another driver", e.ID)
		}
		if e.Status != entity.EarningStatusPayable {
			return nil, apperror.Domain(apperror.CodeInvalidEarningSelection, "earning %s is %s, not payable", e.ID, e.Status)
		}
		if payout.Currency == "" {
			payout.Currency = e.Currency
		} else if payout.Currency != e.Currency {
			return nil, apperror.Domain(apperror.CodeInvalidEarningSelection, "earnings mix %s and %s", payout.Currency, e.Currency)
		}
		total = total.Add(e.Amount)
	}
	payout.TotalAmount = money.Quantize(total)

	for _, e := range earnings {
		e.Status = entity.EarningStatusRequested
		e.RequestedAt = &now
		e.PayoutRequestID = &payout.ID
	}
	return payout, nil
}

func (s *earningService) transition(ctx context.Context, payoutID string, fn repository.PayoutMutation) (*response.PayoutResponse, error) {
	id, err := uuid.Parse(payoutID)
	if err != nil {
		return nil, apperror.Validation("payout_id", "must be a valid UUID")
	}

	var from entity.PayoutStatus
	payout, err := s.payouts.Transition(ctx, id, s.now(), func(p *entity.PayoutRequest) error {
		from = p.Status
		return fn(p)
	})
	if err != nil {
		if apperror.IsDomain(err) || apperror.IsNotFound(err) || apperror.IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update payout %s: %w", id, err)
	}

	s.log.Info("Payout status updated",
		zap.String("payout_id", payout.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(payout.Status)),
		zap.Int("earnings", len(payout.Earnings)),
	)

	resp := response.PayoutToResponse(payout)
	return &resp, nil
}

func moveTo(p *entity.PayoutRequest, to entity.PayoutStatus) error {
	if !p.Status.CanTransitionTo(to) {
		return apperror.InvalidTransition("payout", p.Status, to)
	}
	p.Status = to
	return nil
}

func (s *earningService) ApprovePayout(ctx context.Context, payoutID string, req *request.ApprovePayoutRequest) (*response.PayoutResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, payoutID, func(p *entity.PayoutRequest) error {
		if p.Status != entity.PayoutStatusRequested {
			return apperror.InvalidTransition("payout", p.Status, entity.PayoutStatusProcessing)
		}
		if err := moveTo(p, entity.PayoutStatusProcessing); err != nil {
			return err
		}
		now := s.now()
		eta := now.AddDate(0, 0, req.EtaDays)
		p.ApprovedAt = &now
		p.EtaDate = &eta
		p.TransferReference = req.TransferReference
		p.AdminNotes = req.AdminNotes
		return nil
	})
}

func (s *earningService) MarkPayoutPaid(ctx context.Context, payoutID string, req *request.MarkPayoutPaidRequest) (*response.PayoutResponse, error) {
	return s.transition(ctx, payoutID, func(p *entity.PayoutRequest) error {
		if err := moveTo(p, entity.PayoutStatusPaid); err != nil {
			return err
		}
		paidAt := s.now()
		if req != nil && req.PaidAt != nil {
			paidAt = req.PaidAt.UTC()
		}
		p.PaidAt = &paidAt
		return nil
	})
}

func (s *earningService) FailPayout(ctx context.Context, payoutID string, req *request.FailPayoutRequest) (*response.PayoutResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, payoutID, func(p *entity.PayoutRequest) error {
		if err := moveTo(p, entity.PayoutStatusFailed); err != nil {
			return err
		}
		reason := req.Reason
		p.FailureReason = &reason
		return nil
	})
}

func (s *earningService) CancelPayout(ctx context.Context, actorID uuid.UUID, isAdmin bool, payoutID string) (*response.PayoutResponse, error) {
	return s.transition(ctx, payoutID, func(p *entity.PayoutRequest) error {
		if !isAdmin && p.DriverID != actorID {
			return apperror.NotFound("payout", p.ID.String())
		}
		return moveTo(p, entity.PayoutStatusCancelled)
	})
}

func (s *earningService) ListPayouts(ctx context.Context, req *request.ListPayoutsRequest) (*response.PaginatedResponse[response.PayoutResponse], error) {
	var status *entity.PayoutStatus
	if req.Status != "" {
		st := entity.PayoutStatus(req.Status)
		if !st.Valid() {
			return nil, apperror.Validation("status", "unknown payout status")
		}
		status = &st
	}

	payouts, err := s.payouts.FindAll(ctx, status, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	total, err := s.payouts.Count(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("count payouts: %w", err)
	}

	data := make([]response.PayoutResponse, 0, len(payouts))
	for _, p := range payouts {
		data = append(data, response.PayoutToResponse(p))
	}
	return response.NewPaginatedResponse(data, req.Page, req.Limit(), total), nil
}

func (s *earningService) GetPayout(ctx context.Context, actorID uuid.UUID, isAdmin bool, payoutID string) (*response.PayoutResponse, error) {
	id, err := uuid.Parse(payoutID)
	if err != nil {
		return nil, apperror.Validation("payout_id", "must be a valid UUID")
	}

	p, err := s.payouts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find payout %s: %w", id, err)
	}
	if p == nil || (!isAdmin && p.DriverID != actorID) {
		return nil, apperror.NotFound("payout", id.String())
	}

	if p.Earnings, err = s.earnings.FindByPayout(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("earnings of payout %s: %w", p.ID, err)
	}

	resp := response.PayoutToResponse(p)
	return &resp, nil
}
