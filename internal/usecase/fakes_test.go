package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/internal/data/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errBoom = errors.New("boom")

// ---- trips ----

type ledgerKey struct {
	booking   uuid.UUID
	direction entity.SeatDirection
}

type fakeTripRepo struct {
	mu       sync.Mutex
	trips    map[uuid.UUID]*entity.Trip
	ledger   map[ledgerKey]*entity.SeatLedgerEntry
	outbox   []*entity.OutboxMessage
	loseRace bool
}

func newFakeTripRepo() *fakeTripRepo {
	return &fakeTripRepo{
		trips:  map[uuid.UUID]*entity.Trip{},
		ledger: map[ledgerKey]*entity.SeatLedgerEntry{},
	}
}

func (r *fakeTripRepo) Create(ctx context.Context, t *entity.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.trips[t.ID] = &c
	return nil
}

func (r *fakeTripRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (r *fakeTripRepo) FindAll(ctx context.Context, f repository.TripFilter, limit, offset int) ([]*entity.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contains := func(field, sub string) bool {
		return strings.Contains(strings.ToLower(field), strings.ToLower(sub))
	}
	var out []*entity.Trip
	for _, t := range r.trips {
		switch {
		case f.Status != nil && t.Status != *f.Status:
		case f.DriverID != nil && t.DriverID != *f.DriverID:
		case !contains(t.DepartureCity, f.DepartureCity):
		case !contains(t.DestinationCity, f.DestinationCity):
		case f.DepartureDate != nil && !t.DepartureDate.Equal(*f.DepartureDate):
		default:
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeTripRepo) Count(ctx context.Context, f repository.TripFilter) (int64, error) {
	trips, _ := r.FindAll(ctx, f, 0, 0)
	return int64(len(trips)), nil
}

func (r *fakeTripRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.TripStatus, now time.Time, outbox ...*entity.OutboxMessage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok || r.loseRace || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = now
	r.outbox = append(r.outbox, outbox...)
	return true, nil
}

func (r *fakeTripRepo) ApplySeatDelta(ctx context.Context, d entity.SeatDelta, now time.Time, onReject ...*entity.OutboxMessage) (*entity.SeatDeltaPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[d.TripID]
	if !ok {
		return nil, apperror.NotFound("trip", d.TripID.String())
	}
	plan, err := entity.PlanSeatDelta(t.AvailableSeats, d,
		r.ledger[ledgerKey{d.BookingID, entity.SeatReserve}],
		r.ledger[ledgerKey{d.BookingID, entity.SeatRelease}], now)
	if err != nil {
		return nil, err
	}
	if plan.Entry != nil {
		r.ledger[ledgerKey{d.BookingID, d.Direction}] = plan.Entry
	}
	if plan.Outcome == entity.SeatDeltaRejected {
		r.outbox = append(r.outbox, onReject...)
	}
	t.AvailableSeats = plan.Available
	return &plan, nil
}

// tripLookup serves snapshots from the fake trip table.
type tripLookup struct {
	trips *fakeTripRepo
	err   error
}

func (l *tripLookup) GetTrip(ctx context.Context, id uuid.UUID) (*entity.TripSnapshot, error) {
	if l.err != nil {
		return nil, l.err
	}
	t, _ := l.trips.FindByID(ctx, id)
	if t == nil {
		return nil, apperror.NotFound("trip", id.String())
	}
	return t.Snapshot(), nil
}

// ---- bookings ----

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*entity.Booking
	outbox   []*entity.OutboxMessage
	// hideActive makes FindActiveByUserAndTrip miss, as in a race between two creates
	hideActive bool
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[uuid.UUID]*entity.Booking{}}
}

func active(b *entity.Booking) bool {
	return b.Status == entity.BookingStatusConfirmed || b.Status == entity.BookingStatusCompleted
}

func (r *fakeBookingRepo) Create(ctx context.Context, b *entity.Booking, outbox ...*entity.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.bookings {
		if other.UserID == b.UserID && other.TripID == b.TripID && active(other) {
			return apperror.Domain(apperror.CodeDuplicateBooking, "unique index")
		}
	}
	c := *b
	r.bookings[b.ID] = &c
	r.outbox = append(r.outbox, outbox...)
	return nil
}

func (r *fakeBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (r *fakeBookingRepo) FindActiveByUserAndTrip(ctx context.Context, userID, tripID uuid.UUID) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hideActive {
		return nil, nil
	}
	for _, b := range r.bookings {
		if b.UserID == userID && b.TripID == tripID && active(b) {
			c := *b
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) filter(keep func(*entity.Booking) bool) []*entity.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if keep(b) {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeBookingRepo) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return r.filter(func(b *entity.Booking) bool { return b.UserID == userID }), nil
}

func (r *fakeBookingRepo) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(b *entity.Booking) bool { return b.UserID == userID }))), nil
}

func (r *fakeBookingRepo) FindByDriverID(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return r.filter(func(b *entity.Booking) bool { return b.DriverID == driverID }), nil
}

func (r *fakeBookingRepo) CountByDriverID(ctx context.Context, driverID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(b *entity.Booking) bool { return b.DriverID == driverID }))), nil
}

func (r *fakeBookingRepo) FindActiveByTripID(ctx context.Context, tripID uuid.UUID) ([]*entity.Booking, error) {
	return r.filter(func(b *entity.Booking) bool { return b.TripID == tripID && active(b) }), nil
}

func (r *fakeBookingRepo) Mutate(ctx context.Context, id uuid.UUID, fn repository.BookingMutation) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bookings[id]
	if !ok {
		return nil, apperror.NotFound("booking", id.String())
	}
	c := *stored
	msg, err := fn(&c)
	if err != nil {
		return nil, err
	}
	r.bookings[id] = &c
	if msg != nil {
		r.outbox = append(r.outbox, msg)
	}
	out := c
	return &out, nil
}

func (r *fakeBookingRepo) CompleteByTrip(ctx context.Context, tripID uuid.UUID, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.bookings {
		if b.TripID == tripID && b.Status == entity.BookingStatusConfirmed {
			b.Status = entity.BookingStatusCompleted
			b.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// ---- payments ----

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*entity.Payment
	earnings *fakeEarningRepo
	// loseRace makes the next TransitionStatus report a lost compare-and-set
	// after applying the change, as a concurrent delivery would.
	loseRace bool
}

func newFakePaymentRepo(earnings *fakeEarningRepo) *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[uuid.UUID]*entity.Payment{}, earnings: earnings}
}

func (r *fakePaymentRepo) Create(ctx context.Context, p *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.payments {
		if other.GatewayIntentID == p.GatewayIntentID {
			return apperror.Domain(apperror.CodePaymentAlreadyRegistered, "intent %s", p.GatewayIntentID)
		}
	}
	c := *p
	r.payments[p.ID] = &c
	return nil
}

func (r *fakePaymentRepo) find(match func(*entity.Payment) bool) *entity.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if match(p) {
			c := *p
			return &c
		}
	}
	return nil
}

func (r *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.ID == id }), nil
}

func (r *fakePaymentRepo) FindByIntentID(ctx context.Context, intentID string) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.GatewayIntentID == intentID }), nil
}

func (r *fakePaymentRepo) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.find(func(p *entity.Payment) bool { return p.BookingID == bookingID }), nil
}

func (r *fakePaymentRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.PaymentStatus, receiptURL *string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	if r.loseRace {
		r.loseRace = false
		p.Status = to
		return false, nil
	}
	p.Status = to
	if receiptURL != nil {
		p.ReceiptURL = receiptURL
	}
	p.UpdatedAt = now
	return true, nil
}

func (r *fakePaymentRepo) FindSucceededWithoutEarning(ctx context.Context, limit int) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Payment
	for _, p := range r.payments {
		if p.Status != entity.PaymentStatusSucceeded || !p.CreatesEarning() {
			continue
		}
		if e, _ := r.earnings.FindByBookingID(ctx, p.BookingID); e != nil {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

// ---- earnings ----

type fakeEarningRepo struct {
	mu        sync.Mutex
	earnings  map[uuid.UUID]*entity.Earning
	createErr error
}

func newFakeEarningRepo() *fakeEarningRepo {
	return &fakeEarningRepo{earnings: map[uuid.UUID]*entity.Earning{}}
}

func (r *fakeEarningRepo) CreateIfAbsent(ctx context.Context, e *entity.Earning) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return false, r.createErr
	}
	for _, other := range r.earnings {
		if other.BookingID == e.BookingID {
			return false, nil
		}
	}
	c := *e
	r.earnings[e.ID] = &c
	return true, nil
}

func (r *fakeEarningRepo) all(match func(*entity.Earning) bool) []*entity.Earning {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Earning
	for _, e := range r.earnings {
		if match(e) {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TripDate.Before(out[j].TripDate) })
	return out
}

func (r *fakeEarningRepo) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Earning, error) {
	found := r.all(func(e *entity.Earning) bool { return e.BookingID == bookingID })
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r *fakeEarningRepo) FindByDriver(ctx context.Context, driverID uuid.UUID, statuses ...entity.EarningStatus) ([]*entity.Earning, error) {
	return r.all(func(e *entity.Earning) bool {
		if e.DriverID != driverID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, s := range statuses {
			if e.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (r *fakeEarningRepo) FindByPayout(ctx context.Context, payoutID uuid.UUID) ([]*entity.Earning, error) {
	return r.all(func(e *entity.Earning) bool { return e.PayoutRequestID != nil && *e.PayoutRequestID == payoutID }), nil
}

func (r *fakeEarningRepo) Totals(ctx context.Context, driverID uuid.UUID, monthStart time.Time) (*repository.EarningTotals, error) {
	t := &repository.EarningTotals{}
	monthEnd := monthStart.AddDate(0, 1, 0)
	for _, e := range r.all(func(e *entity.Earning) bool { return e.DriverID == driverID }) {
		if !e.TripDate.Before(monthStart) && e.TripDate.Before(monthEnd) {
			t.TotalMonth = t.TotalMonth.Add(e.Amount)
		}
		switch e.Status {
		case entity.EarningStatusPayable:
			t.AmountPayable = t.AmountPayable.Add(e.Amount)
			t.CountPayable++
		case entity.EarningStatusRequested, entity.EarningStatusProcessing:
			t.AmountProcessing = t.AmountProcessing.Add(e.Amount)
			t.CountProcessing++
		case entity.EarningStatusPaid:
			t.AmountPaidTotal = t.AmountPaidTotal.Add(e.Amount)
		}
	}
	return t, nil
}

func (r *fakeEarningRepo) MarkTripPayable(ctx context.Context, tripID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.earnings {
		if e.TripID == tripID && e.Status == entity.EarningStatusPendingTrip {
			e.Status = entity.EarningStatusPayable
			e.PayableAt = &at
			n++
		}
	}
	return n, nil
}

// ---- payouts ----

type fakePayoutRepo struct {
	mu       sync.Mutex
	payouts  map[uuid.UUID]*entity.PayoutRequest
	earnings *fakeEarningRepo
}

func newFakePayoutRepo(earnings *fakeEarningRepo) *fakePayoutRepo {
	return &fakePayoutRepo{payouts: map[uuid.UUID]*entity.PayoutRequest{}, earnings: earnings}
}

func (r *fakePayoutRepo) Request(ctx context.Context, ids []uuid.UUID, build repository.PayoutBuilder) (*entity.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	locked := r.earnings.all(func(e *entity.Earning) bool { return want[e.ID] })

	payout, err := build(locked)
	if err != nil {
		return nil, err
	}

	r.earnings.mu.Lock()
	for _, e := range payout.Earnings {
		stored := r.earnings.earnings[e.ID]
		stored.Status = entity.EarningStatusRequested
		stored.RequestedAt = &payout.RequestedAt
		id := payout.ID
		stored.PayoutRequestID = &id
	}
	r.earnings.mu.Unlock()

	c := *payout
	c.Earnings = nil
	r.payouts[payout.ID] = &c
	return payout, nil
}

func (r *fakePayoutRepo) Transition(ctx context.Context, id uuid.UUID, now time.Time, fn repository.PayoutMutation) (*entity.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.payouts[id]
	if !ok {
		return nil, apperror.NotFound("payout", id.String())
	}
	p := *stored
	p.Earnings, _ = r.earnings.FindByPayout(ctx, id)

	if err := fn(&p); err != nil {
		return nil, err
	}

	target := p.Status.EarningStatus()
	r.earnings.mu.Lock()
	for _, e := range p.Earnings {
		s := r.earnings.earnings[e.ID]
		s.Status = target
		switch target {
		case entity.EarningStatusProcessing:
			s.ProcessingAt = &now
		case entity.EarningStatusPaid:
			s.PaidAt = p.PaidAt
		case entity.EarningStatusFailed:
			s.FailedAt = &now
		case entity.EarningStatusPayable:
			s.PayoutRequestID = nil
			s.RequestedAt = nil
		}
		c := *s
		*e = c
	}
	r.earnings.mu.Unlock()

	saved := p
	saved.Earnings = nil
	r.payouts[id] = &saved
	return &p, nil
}

func (r *fakePayoutRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *fakePayoutRepo) FindAll(ctx context.Context, status *entity.PayoutStatus, limit, offset int) ([]*entity.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.PayoutRequest
	for _, p := range r.payouts {
		if status == nil || p.Status == *status {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (r *fakePayoutRepo) Count(ctx context.Context, status *entity.PayoutStatus) (int64, error) {
	all, _ := r.FindAll(ctx, status, 0, 0)
	return int64(len(all)), nil
}

// ---- outbox ----

type fakePublisher struct {
	mu   sync.Mutex
	sent []*entity.OutboxMessage
}

func (p *fakePublisher) PublishNow(ctx context.Context, msgs ...*entity.OutboxMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		if m != nil {
			p.sent = append(p.sent, m)
		}
	}
}

type fakeOutboxRepo struct {
	mu        sync.Mutex
	pending   []*entity.OutboxMessage
	published map[uuid.UUID]bool
	failures  map[uuid.UUID]string
}

func newFakeOutboxRepo(msgs ...*entity.OutboxMessage) *fakeOutboxRepo {
	return &fakeOutboxRepo{pending: msgs, published: map[uuid.UUID]bool{}, failures: map[uuid.UUID]string{}}
}

func (r *fakeOutboxRepo) FindUnpublished(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.OutboxMessage
	for _, m := range r.pending {
		if !r.published[m.ID] && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[id] = true
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[id] = reason
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
