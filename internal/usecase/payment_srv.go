package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/internal/data/repository"
	"ride-booking/internal/dto/request"
	"ride-booking/internal/dto/response"
	"ride-booking/internal/gateway"
	"ride-booking/pkg/cache"
	"ride-booking/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Outcomes of one gateway event.
const (
	EventApplied   = "applied"
	EventDuplicate = "duplicate"
	EventIgnored   = "ignored"
)

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, userID uuid.UUID, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error)

	// HandleWebhook verifies a gateway delivery and reconciles it. Events that
	// cannot apply are reported as ignored rather than failed.
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*response.GatewayEventResponse, error)
	HandleGatewayEvent(ctx context.Context, ev *entity.GatewayEvent) (*response.GatewayEventResponse, error)

	// ReconcileMissingEarnings creates earnings that a succeeded transfer
	// payment should have produced but did not.
	ReconcileMissingEarnings(ctx context.Context, limit int) (int, error)

	GetPayment(ctx context.Context, userID uuid.UUID, isAdmin bool, paymentID string) (*response.PaymentResponse, error)
	GetPaymentByBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID string) (*response.PaymentResponse, error)
}

type paymentService struct {
	payments repository.PaymentRepository
	earnings repository.EarningRepository
	gateway  gateway.Gateway
	guard    cache.EventGuard
	now      func() time.Time
	log      *zap.Logger
}

func NewPaymentService(payments repository.PaymentRepository, earnings repository.EarningRepository, gw gateway.Gateway, guard cache.EventGuard, log *zap.Logger) PaymentService {
	if guard == nil {
		guard = cache.NoopEventGuard()
	}
	return &paymentService{
		payments: payments,
		earnings: earnings,
		gateway:  gw,
		guard:    guard,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, req *request.CreatePaymentIntentRequest) (*response.PaymentIntentResponse, error) {
	p, err := s.parseIntent(userID, req)
	if err != nil {
		return nil, err
	}

	charge, err := s.gateway.CreateCharge(ctx, gateway.ChargeRequest{
		Amount:         p.Amount,
		Currency:       p.Currency,
		IdempotencyKey: "booking-" + p.BookingID.String(),
		Metadata: map[string]string{
			"booking_id":               p.BookingID.String(),
			"trip_id":                  p.TripID.String(),
			"user_id":                  p.UserID.String(),
			"driver_id":                p.DriverID.String(),
			"chauffeur_payment_method": string(p.ChauffeurPaymentMethod),
		},
	})
	if err != nil {
		return nil, apperror.Transient("payment gateway", err)
	}
	p.GatewayIntentID = charge.IntentID

	if err := s.payments.Create(ctx, p); err != nil {
		if apperror.IsDomain(err) {
			return nil, err
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.log.Info("Payment intent created",
		zap.String("payment_id", p.ID.String()),
		zap.String("booking_id", p.BookingID.String()),
		zap.String("intent_id", p.GatewayIntentID),
		zap.String("amount", p.Amount.StringFixed(2)),
	)

	return &response.PaymentIntentResponse{
		Payment:      response.PaymentToResponse(p),
		ClientSecret: charge.ClientSecret,
	}, nil
}

func (s *paymentService) parseIntent(userID uuid.UUID, req *request.CreatePaymentIntentRequest) (*entity.Payment, error) {
	if errs := validate(req); errs != nil {
		return nil, errs
	}

	ids := make([]uuid.UUID, 3)
	for i, raw := range []string{req.BookingID, req.TripID, req.DriverID} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperror.Validation("id", "must be a valid UUID")
		}
		ids[i] = id
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, apperror.Validation("amount", "must be a positive decimal amount")
	}
	payable, err := decimal.NewFromString(req.DriverPayable)
	if err != nil {
		return nil, apperror.Validation("driver_payable", "must be a decimal amount")
	}

	p := &entity.Payment{
		Base:                   entity.NewBase(s.now()),
		UserID:                 userID,
		BookingID:              ids[0],
		TripID:                 ids[1],
		DriverID:               ids[2],
		Amount:                 money.Quantize(amount),
		Currency:               strings.ToUpper(req.Currency),
		TaxRegion:              req.TaxRegion,
		Status:                 entity.PaymentStatusPending,
		PaymentMethod:          req.PaymentMethod,
		ChauffeurPaymentMethod: money.PayoutMethod(req.ChauffeurPaymentMethod),
		DriverPayable:          money.Quantize(payable),
		TripDepartureCity:      req.TripDepartureCity,
		TripDestinationCity:    req.TripDestinationCity,
		TripDepartureDate:      req.TripDepartureDate,
		PassengerName:          req.PassengerName,
	}
	if p.Fee, err = optionalDecimal(req.Fee); err != nil {
		return nil, apperror.Validation("fee", "must be a decimal amount")
	}
	if p.TaxRate, err = optionalDecimal(req.TaxRate); err != nil {
		return nil, apperror.Validation("tax_rate", "must be a decimal rate")
	}
	return p, nil
}

func optionalDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*response.GatewayEventResponse, error) {
	ev, err := s.gateway.ParseEvent(payload, signature)
	if errors.Is(err, gateway.ErrIgnoredEvent) {
		s.log.Debug("Gateway event ignored", zap.Error(err))
		return &response.GatewayEventResponse{Outcome: EventIgnored}, nil
	}
	if err != nil {
		s.log.Warn("Rejected gateway webhook", zap.Error(err))
		return nil, apperror.ValidationError{Msg: "invalid webhook", Err: err}
	}

	resp, err := s.HandleGatewayEvent(ctx, ev)
	switch {
	case err == nil:
		return resp, nil
	case apperror.IsDomain(err), apperror.IsNotFound(err):
		// the gateway retries anything but 2xx; these would never succeed
		return &response.GatewayEventResponse{EventID: ev.ID, Outcome: EventIgnored}, nil
	default:
		return nil, err
	}
}

func (s *paymentService) HandleGatewayEvent(ctx context.Context, ev *entity.GatewayEvent) (*response.GatewayEventResponse, error) {
	log := s.log.With(
		zap.String("event_id", ev.ID),
		zap.String("intent_id", ev.IntentID),
		zap.String("kind", string(ev.Kind)),
	)
	resp := &response.GatewayEventResponse{EventID: ev.ID}

	target, ok := ev.Kind.TargetStatus()
	if !ok {
		return nil, apperror.Validation("kind", "unknown gateway event kind")
	}

	if ev.ID != "" {
		seen, err := s.guard.Seen(ctx, ev.ID)
		if err != nil {
			log.Warn("Event guard unavailable, falling back to status check", zap.Error(err))
		}
		if seen {
			log.Info("Gateway event replayed, skipping")
			resp.Outcome = EventDuplicate
			return resp, nil
		}
	}

	p, err := s.payments.FindByIntentID(ctx, ev.IntentID)
	if err != nil {
		return nil, fmt.Errorf("find payment by intent %s: %w", ev.IntentID, err)
	}
	if p == nil {
		log.Warn("Gateway event for unknown payment")
		return nil, apperror.NotFound("payment", ev.IntentID)
	}

	if p.Status == target {
		log.Info("Payment already in target status", zap.String("status", string(p.Status)))
		resp.Outcome = EventDuplicate
		if target == entity.PaymentStatusSucceeded {
			// a crash between the status update and the earning insert is repaired here
			resp.EarningCreated = s.ensureEarning(ctx, p)
		}
		s.markSeen(ctx, ev.ID)
		return resp, nil
	}

	if !p.Status.CanTransitionTo(target) {
		log.Warn("Gateway event would regress payment", zap.String("status", string(p.Status)))
		return nil, apperror.InvalidTransition("payment", p.Status, target)
	}

	won, err := s.payments.TransitionStatus(ctx, p.ID, p.Status, target, ev.ReceiptURL, s.now())
	if err != nil {
		return nil, fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	if !won {
		current, err := s.payments.FindByID(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("reload payment %s: %w", p.ID, err)
		}
		if current != nil && current.Status == target {
			resp.Outcome = EventDuplicate
			return resp, nil
		}
		return nil, apperror.Conflict("payment", "status changed concurrently")
	}

	log.Info("Payment status updated",
		zap.String("payment_id", p.ID.String()),
		zap.String("from", string(p.Status)),
		zap.String("to", string(target)),
	)
	p.Status = target
	if ev.ReceiptURL != nil {
		p.ReceiptURL = ev.ReceiptURL
	}

	resp.Outcome = EventApplied
	if target == entity.PaymentStatusSucceeded {
		resp.EarningCreated = s.ensureEarning(ctx, p)
	}
	s.markSeen(ctx, ev.ID)
	return resp, nil
}

func (s *paymentService) markSeen(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	if err := s.guard.Mark(ctx, eventID); err != nil {
		s.log.Warn("Failed to record processed event", zap.Error(err), zap.String("event_id", eventID))
	}
}

// ensureEarning creates the driver earning for a succeeded transfer payment.
// Failures are logged; ReconcileMissingEarnings retries them.
func (s *paymentService) ensureEarning(ctx context.Context, p *entity.Payment) bool {
	if !p.CreatesEarning() {
		return false
	}

	tripDate := p.CreatedAt
	if p.TripDepartureDate != nil {
		tripDate = *p.TripDepartureDate
	}
	route := p.Route()

	e := &entity.Earning{
		BaseSimple:    entity.BaseSimple{ID: uuid.New(), CreatedAt: s.now()},
		DriverID:      p.DriverID,
		BookingID:     p.BookingID,
		TripID:        p.TripID,
		Amount:        p.DriverPayable,
		Currency:      p.Currency,
		Status:        entity.EarningStatusPendingTrip,
		TripDate:      tripDate,
		PassengerName: p.PassengerName,
		Route:         &route,
	}

	created, err := s.earnings.CreateIfAbsent(ctx, e)
	if err != nil {
		s.log.Error("Failed to create driver earning",
			zap.Error(err),
			zap.String("payment_id", p.ID.String()),
			zap.String("booking_id", p.BookingID.String()),
		)
		return false
	}
	if created {
		s.log.Info("Driver earning created",
			zap.String("earning_id", e.ID.String()),
			zap.String("driver_id", e.DriverID.String()),
			zap.String("booking_id", e.BookingID.String()),
			zap.String("amount", e.Amount.StringFixed(2)),
		)
	}
	return created
}

func (s *paymentService) ReconcileMissingEarnings(ctx context.Context, limit int) (int, error) {
	payments, err := s.payments.FindSucceededWithoutEarning(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("find payments without earning: %w", err)
	}

	created := 0
	for _, p := range payments {
		if s.ensureEarning(ctx, p) {
			created++
		}
	}
	if created > 0 {
		s.log.Warn("Repaired missing earnings", zap.Int("created", created))
	}
	return created, nil
}

func (s *paymentService) GetPayment(ctx context.Context, userID uuid.UUID, isAdmin bool, paymentID string) (*response.PaymentResponse, error) {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, apperror.Validation("payment_id", "must be a valid UUID")
	}
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", id, err)
	}
	return s.visiblePayment(p, userID, isAdmin, id.String())
}

func (s *paymentService) GetPaymentByBooking(ctx context.Context, userID uuid.UUID, isAdmin bool, bookingID string) (*response.PaymentResponse, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, apperror.Validation("booking_id", "must be a valid UUID")
	}
	p, err := s.payments.FindByBookingID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find payment of booking %s: %w", id, err)
	}
	return s.visiblePayment(p, userID, isAdmin, id.String())
}

func (s *paymentService) visiblePayment(p *entity.Payment, userID uuid.UUID, isAdmin bool, ref string) (*response.PaymentResponse, error) {
	if p == nil || (!isAdmin && p.UserID != userID && p.DriverID != userID) {
		return nil, apperror.NotFound("payment", ref)
	}
	resp := response.PaymentToResponse(p)
	return &resp, nil
}
