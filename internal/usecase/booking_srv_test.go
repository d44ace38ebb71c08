package usecase

import (
	"context"
	"testing"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/internal/dto/request"
	"ride-booking/pkg/mq"
	"ride-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var testBookingDefaults = utils.BookingConfig{
	ReservationFeePerSeat: "3.50",
	TaxRate:               "0.15",
	TaxRegion:             "HST-NB",
	Currency:              "CAD",
}

type bookingFixture struct {
	trips    *fakeTripRepo
	lookup   *tripLookup
	bookings *fakeBookingRepo
	pub      *fakePublisher
	svc      *bookingService
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		trips:    newFakeTripRepo(),
		bookings: newFakeBookingRepo(),
		pub:      &fakePublisher{},
	}
	f.lookup = &tripLookup{trips: f.trips}
	f.svc = NewBookingService(f.bookings, f.lookup, f.pub, testBookingDefaults, zap.NewNop()).(*bookingService)
	f.svc.now = fixedClock(testNow)
	return f
}

func bookingRequest(tripID uuid.UUID, seats int, method string, cutoff time.Time) *request.CreateBookingRequest {
	return &request.CreateBookingRequest{
		TripID:                 tripID.String(),
		NumberOfSeats:          seats,
		PricePerSeat:           "25.00",
		ChauffeurPaymentMethod: method,
		FreeCancellationUntil:  &cutoff,
	}
}

func TestCreateBooking_TransferSnapshot(t *testing.T) {
	f := newBookingFixture()
	driverID := uuid.New()
	trip := seedTrip(t, f.trips, driverID, 3, entity.TripStatusPending)
	userID := uuid.New()

	resp, err := f.svc.CreateBooking(context.Background(), userID,
		bookingRequest(trip.ID, 2, "transfer", testNow.Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if resp.Status != entity.BookingStatusConfirmed {
		t.Fatalf("status %s want confirmed", resp.Status)
	}
	if resp.DriverID != driverID.String() {
		t.Fatalf("driver %s want %s", resp.DriverID, driverID)
	}
	want := map[string]string{
		"base_total":        resp.BaseTotal.StringFixed(2),
		"fee_total":         resp.FeeTotal.StringFixed(2),
		"tax_total":         resp.TaxTotal.StringFixed(2),
		"charged_now_total": resp.ChargedNowTotal.StringFixed(2),
		"driver_payable":    resp.DriverPayable.StringFixed(2),
	}
	expected := map[string]string{
		"base_total":        "50.00",
		"fee_total":         "7.00",
		"tax_total":         "8.55",
		"charged_now_total": "65.55",
		"driver_payable":    "50.00",
	}
	for k, v := range expected {
		if want[k] != v {
			t.Fatalf("%s: got %s want %s", k, want[k], v)
		}
	}
	if resp.Currency != "CAD" || resp.TaxRegion == nil || *resp.TaxRegion != "HST-NB" || resp.PaymentMethodUsed != "card" {
		t.Fatalf("defaults not applied: %+v", resp)
	}

	if len(f.bookings.outbox) != 1 || len(f.pub.sent) != 1 {
		t.Fatalf("expected one seat message committed and published")
	}
	msg, err := mq.DecodeSeatUpdate(f.pub.sent[0].Payload)
	if err != nil {
		t.Fatalf("decode seat update: %v", err)
	}
	if msg.Action != mq.ActionDecreaseSeats || msg.NumberOfSeats != 2 || msg.BookingID != resp.ID {
		t.Fatalf("unexpected seat message %+v", msg)
	}
	if f.pub.sent[0].Queue != mq.QueueTripUpdate {
		t.Fatalf("queue %s want %s", f.pub.sent[0].Queue, mq.QueueTripUpdate)
	}
}

func TestCreateBooking_CashChargesFeeOnly(t *testing.T) {
	f := newBookingFixture()
	trip := seedTrip(t, f.trips, uuid.New(), 3, entity.TripStatusPending)

	resp, err := f.svc.CreateBooking(context.Background(), uuid.New(),
		bookingRequest(trip.ID, 1, "cash", testNow.Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.ChargedNowTotal.StringFixed(2) != "4.03" {
		t.Fatalf("charged now %s want 4.03", resp.ChargedNowTotal.StringFixed(2))
	}
	if resp.DriverCollectedCash.StringFixed(2) != "25.00" || !resp.DriverPayable.IsZero() {
		t.Fatalf("cash split wrong: collected %s payable %s", resp.DriverCollectedCash, resp.DriverPayable)
	}
}

func TestCreateBooking_Rejections(t *testing.T) {
	cutoff := testNow.Add(48 * time.Hour)

	cases := []struct {
		name   string
		setup  func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest
		assert func(err error) bool
	}{
		{
			name: "trip not bookable",
			setup: func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest {
				trip := seedTrip(t, f.trips, uuid.New(), 3, entity.TripStatusOngoing)
				return bookingRequest(trip.ID, 1, "cash", cutoff)
			},
			assert: func(err error) bool { return apperror.HasCode(err, apperror.CodeTripNotBookable) },
		},
		{
			name: "driver books own trip",
			setup: func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest {
				trip := seedTrip(t, f.trips, userID, 3, entity.TripStatusPending)
				return bookingRequest(trip.ID, 1, "cash", cutoff)
			},
			assert: func(err error) bool { return apperror.HasCode(err, apperror.CodeSelfBooking) },
		},
		{
			name: "driver id mismatch",
			setup: func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest {
				trip := seedTrip(t, f.trips, uuid.New(), 3, entity.TripStatusPending)
				req := bookingRequest(trip.ID, 1, "cash", cutoff)
				other := uuid.NewString()
				req.DriverID = &other
				return req
			},
			assert: apperror.IsValidation,
		},
		{
			name: "departure in the past",
			setup: func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest {
				trip := seedTrip(t, f.trips, uuid.New(), 3, entity.TripStatusPending)
				f.trips.trips[trip.ID].DepartureDate = testNow.AddDate(0, 0, -1)
				return bookingRequest(trip.ID, 1, "cash", cutoff)
			},
			assert: func(err error) bool { return apperror.HasCode(err, apperror.CodePastDeparture) },
		},
		{
			name: "not enough seats",
			setup: func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest {
				trip := seedTrip(t, f.trips, uuid.New(), 1, entity.TripStatusPending)
				return bookingRequest(trip.ID, 2, "cash", cutoff)
			},
			assert: func(err error) bool { return apperror.HasCode(err, apperror.CodeInsufficientSeats) },
		},
		{
			name: "unknown trip",
			setup: func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest {
				return bookingRequest(uuid.New(), 1, "cash", cutoff)
			},
			assert: apperror.IsNotFound,
		},
		{
			name: "trip service down",
			setup: func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest {
				f.lookup.err = errBoom
				return bookingRequest(uuid.New(), 1, "cash", cutoff)
			},
			assert: apperror.IsTransient,
		},
		{
			name: "bad payment method",
			setup: func(t *testing.T, f *bookingFixture, userID uuid.UUID) *request.CreateBookingRequest {
				trip := seedTrip(t, f.trips, uuid.New(), 3, entity.TripStatusPending)
				return bookingRequest(trip.ID, 1, "cheque", cutoff)
			},
			assert: apperror.IsValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookingFixture()
			userID := uuid.New()

			_, err := f.svc.CreateBooking(context.Background(), userID, tc.setup(t, f, userID))
			if !tc.assert(err) {
				t.Fatalf("unexpected error %v", err)
			}
			if len(f.bookings.bookings) != 0 || len(f.pub.sent) != 0 {
				t.Fatalf("a rejected booking must leave no trace")
			}
		})
	}
}

func TestCreateBooking_StatusCheckedBeforeSeats(t *testing.T) {
	f := newBookingFixture()
	trip := seedTrip(t, f.trips, uuid.New(), 0, entity.TripStatusCancelled)

	_, err := f.svc.CreateBooking(context.Background(), uuid.New(),
		bookingRequest(trip.ID, 2, "cash", testNow.Add(time.Hour)))
	if !apperror.HasCode(err, apperror.CodeTripNotBookable) {
		t.Fatalf("expected trip_not_bookable first, got %v", err)
	}
}

func TestCreateBooking_Duplicate(t *testing.T) {
	f := newBookingFixture()
	trip := seedTrip(t, f.trips, uuid.New(), 5, entity.TripStatusPending)
	userID := uuid.New()
	req := bookingRequest(trip.ID, 1, "cash", testNow.Add(48*time.Hour))

	if _, err := f.svc.CreateBooking(context.Background(), userID, req); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := f.svc.CreateBooking(context.Background(), userID, req)
	if !apperror.HasCode(err, apperror.CodeDuplicateBooking) {
		t.Fatalf("expected duplicate_booking, got %v", err)
	}

	// the pre-check misses when two creates race; the store still refuses
	f.bookings.hideActive = true
	_, err = f.svc.CreateBooking(context.Background(), userID, req)
	if !apperror.HasCode(err, apperror.CodeDuplicateBooking) {
		t.Fatalf("expected duplicate_booking from the store, got %v", err)
	}
	if len(f.pub.sent) != 1 {
		t.Fatalf("only the first booking may publish, got %d", len(f.pub.sent))
	}
}

func TestCreateBooking_AllowedAgainAfterCancel(t *testing.T) {
	f := newBookingFixture()
	trip := seedTrip(t, f.trips, uuid.New(), 5, entity.TripStatusPending)
	userID := uuid.New()
	req := bookingRequest(trip.ID, 1, "cash", testNow.Add(48*time.Hour))

	first, err := f.svc.CreateBooking(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := f.svc.CancelBooking(context.Background(), userID, false, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.CreateBooking(context.Background(), userID, req); err != nil {
		t.Fatalf("rebooking after cancel: %v", err)
	}
}

func createBooking(t *testing.T, f *bookingFixture, userID uuid.UUID, method string, cutoff time.Time) string {
	t.Helper()
	trip := seedTrip(t, f.trips, uuid.New(), 3, entity.TripStatusPending)
	resp, err := f.svc.CreateBooking(context.Background(), userID, bookingRequest(trip.ID, 2, method, cutoff))
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	f.pub.sent = nil
	return resp.ID
}

func TestCancelBooking_Policy(t *testing.T) {
	cases := []struct {
		name        string
		method      string
		cutoff      time.Time
		refund      string
		seats       int
		payable     string
		publishSeat bool
	}{
		{"cash before cutoff", "cash", testNow.Add(time.Hour), "8.05", 2, "0.00", true},
		{"cash after cutoff", "cash", testNow.Add(-time.Hour), "0.00", 0, "0.00", false},
		{"transfer before cutoff", "transfer", testNow.Add(time.Hour), "65.55", 2, "0.00", true},
		{"transfer at cutoff", "transfer", testNow, "65.55", 2, "0.00", true},
		{"transfer after cutoff", "transfer", testNow.Add(-time.Hour), "57.50", 0, "50.00", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookingFixture()
			userID := uuid.New()
			id := createBooking(t, f, userID, tc.method, tc.cutoff)

			resp, err := f.svc.CancelBooking(context.Background(), userID, false, id)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if resp.RefundAmount.StringFixed(2) != tc.refund {
				t.Fatalf("refund %s want %s", resp.RefundAmount.StringFixed(2), tc.refund)
			}
			if resp.SeatsRestored != tc.seats {
				t.Fatalf("seats restored %d want %d", resp.SeatsRestored, tc.seats)
			}
			if resp.Booking.Status != entity.BookingStatusCancelled || resp.Booking.CancelledAt == nil {
				t.Fatalf("booking not cancelled: %+v", resp.Booking)
			}
			if resp.Booking.DriverPayable.StringFixed(2) != tc.payable {
				t.Fatalf("driver payable %s want %s", resp.Booking.DriverPayable.StringFixed(2), tc.payable)
			}

			if tc.publishSeat != (len(f.pub.sent) == 1) {
				t.Fatalf("seat release published %d messages", len(f.pub.sent))
			}
			if tc.publishSeat {
				msg, err := mq.DecodeSeatUpdate(f.pub.sent[0].Payload)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				if msg.Action != mq.ActionIncreaseSeats || msg.NumberOfSeats != tc.seats {
					t.Fatalf("unexpected release %+v", msg)
				}
			}
		})
	}
}

func TestCancelBooking_Twice(t *testing.T) {
	f := newBookingFixture()
	userID := uuid.New()
	id := createBooking(t, f, userID, "transfer", testNow.Add(time.Hour))

	if _, err := f.svc.CancelBooking(context.Background(), userID, false, id); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	f.pub.sent = nil

	_, err := f.svc.CancelBooking(context.Background(), userID, false, id)
	if !apperror.HasCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(f.pub.sent) != 0 {
		t.Fatalf("second cancel must not release seats again")
	}
}

func TestCancelBooking_NotOwner(t *testing.T) {
	f := newBookingFixture()
	id := createBooking(t, f, uuid.New(), "cash", testNow.Add(time.Hour))

	_, err := f.svc.CancelBooking(context.Background(), uuid.New(), false, id)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for a stranger, got %v", err)
	}

	stored, _ := f.bookings.FindByID(context.Background(), uuid.MustParse(id))
	if stored.Status != entity.BookingStatusConfirmed {
		t.Fatalf("status %s want confirmed", stored.Status)
	}

	if _, err := f.svc.CancelBooking(context.Background(), uuid.New(), true, id); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestCancelBooking_CompletedCannotCancel(t *testing.T) {
	f := newBookingFixture()
	userID := uuid.New()
	id := createBooking(t, f, userID, "cash", testNow.Add(time.Hour))
	stored, _ := f.bookings.FindByID(context.Background(), uuid.MustParse(id))

	if _, err := f.svc.CompleteBookingsByTrip(context.Background(), stored.TripID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := f.svc.CancelBooking(context.Background(), userID, false, id)
	if !apperror.HasCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestCompleteBookingsByTrip_Idempotent(t *testing.T) {
	f := newBookingFixture()
	trip := seedTrip(t, f.trips, uuid.New(), 6, entity.TripStatusPending)
	cutoff := testNow.Add(time.Hour)

	var ids []string
	for i := 0; i < 3; i++ {
		resp, err := f.svc.CreateBooking(context.Background(), uuid.New(), bookingRequest(trip.ID, 1, "cash", cutoff))
		if err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
		ids = append(ids, resp.ID)
	}
	if _, err := f.svc.CancelBooking(context.Background(), uuid.Nil, true, ids[2]); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	first, err := f.svc.CompleteBookingsByTrip(context.Background(), trip.ID)
	if err != nil || first.Completed != 2 {
		t.Fatalf("first completion: %+v %v", first, err)
	}
	second, err := f.svc.CompleteBookingsByTrip(context.Background(), trip.ID)
	if err != nil || second.Completed != 0 {
		t.Fatalf("second completion: %+v %v", second, err)
	}

	cancelled, _ := f.bookings.FindByID(context.Background(), uuid.MustParse(ids[2]))
	if cancelled.Status != entity.BookingStatusCancelled {
		t.Fatalf("cancelled booking moved to %s", cancelled.Status)
	}
}

func TestGetBooking_HiddenFromStrangers(t *testing.T) {
	f := newBookingFixture()
	userID := uuid.New()
	id := createBooking(t, f, userID, "cash", testNow.Add(time.Hour))

	if _, err := f.svc.GetBooking(context.Background(), userID, false, id); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.svc.GetBooking(context.Background(), uuid.New(), false, id); !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetTripPassengers_OnlyActive(t *testing.T) {
	f := newBookingFixture()
	trip := seedTrip(t, f.trips, uuid.New(), 6, entity.TripStatusPending)
	cutoff := testNow.Add(time.Hour)

	keep, err := f.svc.CreateBooking(context.Background(), uuid.New(), bookingRequest(trip.ID, 2, "cash", cutoff))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	drop, err := f.svc.CreateBooking(context.Background(), uuid.New(), bookingRequest(trip.ID, 1, "cash", cutoff))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := f.svc.CancelBooking(context.Background(), uuid.Nil, true, drop.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	passengers, err := f.svc.GetTripPassengers(context.Background(), trip.ID.String())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(passengers) != 1 || passengers[0].BookingID != keep.ID || passengers[0].NumberOfSeats != 2 {
		t.Fatalf("unexpected passengers %+v", passengers)
	}
}

func TestFailBooking_RefundsChargedAndAllowsRebooking(t *testing.T) {
	f := newBookingFixture()
	userID := uuid.New()
	id := createBooking(t, f, userID, "transfer", testNow.Add(48*time.Hour))
	bookingID := uuid.MustParse(id)
	outboxBefore := len(f.bookings.outbox)

	resp, err := f.svc.FailBooking(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Status != entity.BookingStatusFailed {
		t.Fatalf("status %s want failed", resp.Status)
	}
	if resp.RefundAmount == nil || !resp.RefundAmount.Equal(resp.ChargedNowTotal) {
		t.Fatalf("refund %v want %s", resp.RefundAmount, resp.ChargedNowTotal.StringFixed(2))
	}
	if !resp.DriverPayable.IsZero() {
		t.Fatalf("driver payable %s want 0", resp.DriverPayable.StringFixed(2))
	}
	if len(f.bookings.outbox) != outboxBefore || len(f.pub.sent) != 0 {
		t.Fatalf("a failed booking must not release seats")
	}

	_, err = f.svc.FailBooking(context.Background(), bookingID)
	if !apperror.HasCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition on redelivery, got %v", err)
	}

	stored, _ := f.bookings.FindByID(context.Background(), bookingID)
	if _, err := f.svc.CreateBooking(context.Background(), userID,
		bookingRequest(stored.TripID, 1, "cash", testNow.Add(time.Hour))); err != nil {
		t.Fatalf("rebooking after failure: %v", err)
	}
}

func TestFailBooking_CancelledStaysCancelled(t *testing.T) {
	f := newBookingFixture()
	userID := uuid.New()
	id := createBooking(t, f, userID, "cash", testNow.Add(time.Hour))
	if _, err := f.svc.CancelBooking(context.Background(), userID, false, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := f.svc.FailBooking(context.Background(), uuid.MustParse(id))
	if !apperror.HasCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	stored, _ := f.bookings.FindByID(context.Background(), uuid.MustParse(id))
	if stored.Status != entity.BookingStatusCancelled {
		t.Fatalf("status %s want cancelled", stored.Status)
	}
}
