package usecase

import (
	"context"
	"testing"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/internal/dto/request"
	"ride-booking/pkg/mq"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTripService(trips *fakeTripRepo, pub Publisher) *tripService {
	s := NewTripService(trips, pub, zap.NewNop()).(*tripService)
	s.now = fixedClock(testNow)
	return s
}

func seedTrip(t *testing.T, trips *fakeTripRepo, driverID uuid.UUID, seats int, status entity.TripStatus) *entity.Trip {
	t.Helper()
	trip := &entity.Trip{
		Base:            entity.NewBase(testNow),
		DriverID:        driverID,
		DepartureCity:   "Moncton",
		DestinationCity: "Halifax",
		DepartureDate:   testNow.AddDate(0, 0, 3).Truncate(24 * time.Hour),
		TotalPrice:      dec("25.00"),
		AvailableSeats:  seats,
		Status:          status,
	}
	if err := trips.Create(context.Background(), trip); err != nil {
		t.Fatalf("seed trip: %v", err)
	}
	return trip
}

func TestCreateTrip_RejectsPastDate(t *testing.T) {
	svc := newTripService(newFakeTripRepo(), &fakePublisher{})

	_, err := svc.CreateTrip(context.Background(), uuid.New(), &request.CreateTripRequest{
		DepartureCity:   "Moncton",
		DestinationCity: "Halifax",
		DepartureDate:   "2026-05-03",
		TotalPrice:      "25.00",
		AvailableSeats:  3,
	})
	if !apperror.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateTrip_StartsPending(t *testing.T) {
	trips := newFakeTripRepo()
	svc := newTripService(trips, &fakePublisher{})
	driverID := uuid.New()

	resp, err := svc.CreateTrip(context.Background(), driverID, &request.CreateTripRequest{
		DepartureCity:   "Moncton",
		DestinationCity: "Halifax",
		DepartureDate:   "2026-05-04",
		TotalPrice:      "25.00",
		AvailableSeats:  3,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Status != entity.TripStatusPending || resp.AvailableSeats != 3 || resp.DriverID != driverID.String() {
		t.Fatalf("unexpected trip %+v", resp)
	}
}

func TestUpdateTripStatus_IllegalTransitionLeavesTripUnchanged(t *testing.T) {
	trips := newFakeTripRepo()
	svc := newTripService(trips, &fakePublisher{})
	driverID := uuid.New()
	trip := seedTrip(t, trips, driverID, 3, entity.TripStatusCompleted)

	_, err := svc.UpdateTripStatus(context.Background(), driverID, false, trip.ID.String(),
		&request.UpdateTripStatusRequest{Status: "pending"})
	if !apperror.HasCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	stored, _ := trips.FindByID(context.Background(), trip.ID)
	if stored.Status != entity.TripStatusCompleted {
		t.Fatalf("trip moved to %s", stored.Status)
	}
}

func TestUpdateTripStatus_PendingCannotJumpToCompleted(t *testing.T) {
	trips := newFakeTripRepo()
	svc := newTripService(trips, &fakePublisher{})
	driverID := uuid.New()
	trip := seedTrip(t, trips, driverID, 3, entity.TripStatusPending)

	_, err := svc.UpdateTripStatus(context.Background(), driverID, false, trip.ID.String(),
		&request.UpdateTripStatusRequest{Status: "completed"})
	if !apperror.HasCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestUpdateTripStatus_CompletedFansOutEvent(t *testing.T) {
	trips := newFakeTripRepo()
	pub := &fakePublisher{}
	svc := newTripService(trips, pub)
	driverID := uuid.New()
	trip := seedTrip(t, trips, driverID, 3, entity.TripStatusOngoing)

	resp, err := svc.UpdateTripStatus(context.Background(), driverID, false, trip.ID.String(),
		&request.UpdateTripStatusRequest{Status: "completed"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Status != entity.TripStatusCompleted {
		t.Fatalf("status %s want completed", resp.Status)
	}

	if len(trips.outbox) != 2 || len(pub.sent) != 2 {
		t.Fatalf("expected 2 outbox rows and 2 publishes, got %d and %d", len(trips.outbox), len(pub.sent))
	}
	queues := map[string]bool{}
	for _, m := range trips.outbox {
		queues[m.Queue] = true
		ev, err := mq.DecodeTripCompleted(m.Payload)
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.TripID != trip.ID.String() || !ev.CompletedAt.Equal(testNow) {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	if !queues[mq.QueueTripCompleted] || !queues[mq.QueueBookingTripCompleted] {
		t.Fatalf("event must reach both queues, got %v", queues)
	}
}

func TestUpdateTripStatus_LostRaceIsConflict(t *testing.T) {
	trips := newFakeTripRepo()
	pub := &fakePublisher{}
	svc := newTripService(trips, pub)
	driverID := uuid.New()
	trip := seedTrip(t, trips, driverID, 3, entity.TripStatusOngoing)
	trips.loseRace = true

	_, err := svc.UpdateTripStatus(context.Background(), driverID, false, trip.ID.String(),
		&request.UpdateTripStatusRequest{Status: "completed"})
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatalf("nothing may be published when the update lost")
	}
}

func TestUpdateTripStatus_OnlyDriverOrAdmin(t *testing.T) {
	trips := newFakeTripRepo()
	svc := newTripService(trips, &fakePublisher{})
	trip := seedTrip(t, trips, uuid.New(), 3, entity.TripStatusPending)

	_, err := svc.UpdateTripStatus(context.Background(), uuid.New(), false, trip.ID.String(),
		&request.UpdateTripStatusRequest{Status: "ongoing"})
	if !apperror.HasCode(err, apperror.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := svc.UpdateTripStatus(context.Background(), uuid.New(), true, trip.ID.String(),
		&request.UpdateTripStatusRequest{Status: "ongoing"}); err != nil {
		t.Fatalf("admin must be allowed, got %v", err)
	}
}

func TestApplySeatDelta_RedeliveryDoesNotDoubleCount(t *testing.T) {
	trips := newFakeTripRepo()
	svc := newTripService(trips, &fakePublisher{})
	trip := seedTrip(t, trips, uuid.New(), 3, entity.TripStatusPending)
	d := entity.SeatDelta{TripID: trip.ID, BookingID: uuid.New(), Direction: entity.SeatReserve, Seats: 2}

	first, err := svc.ApplySeatDelta(context.Background(), d)
	if err != nil || !first.Applied || first.AvailableSeats != 1 {
		t.Fatalf("first delivery: %+v %v", first, err)
	}
	second, err := svc.ApplySeatDelta(context.Background(), d)
	if err != nil || second.Applied || second.AvailableSeats != 1 {
		t.Fatalf("redelivery: %+v %v", second, err)
	}
}

func TestApplySeatDelta_NeverBelowZero(t *testing.T) {
	trips := newFakeTripRepo()
	svc := newTripService(trips, &fakePublisher{})
	trip := seedTrip(t, trips, uuid.New(), 3, entity.TripStatusPending)

	// interleave reserves and releases for several bookings
	bookings := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	steps := []struct {
		booking int
		dir     entity.SeatDirection
		seats   int
	}{
		{0, entity.SeatReserve, 2},
		{1, entity.SeatReserve, 2},
		{0, entity.SeatRelease, 2},
		{1, entity.SeatReserve, 2},
		{2, entity.SeatRelease, 1},
		{2, entity.SeatReserve, 1},
		{1, entity.SeatRelease, 2},
		{0, entity.SeatReserve, 2},
	}
	for i, st := range steps {
		_, err := svc.ApplySeatDelta(context.Background(), entity.SeatDelta{
			TripID: trip.ID, BookingID: bookings[st.booking], Direction: st.dir, Seats: st.seats,
		})
		if err != nil {
			t.Fatalf("step %d: unexpected error %v", i, err)
		}
		stored, _ := trips.FindByID(context.Background(), trip.ID)
		if stored.AvailableSeats < 0 || stored.AvailableSeats > 3 {
			t.Fatalf("step %d: seats %d out of range", i, stored.AvailableSeats)
		}
	}

	stored, _ := trips.FindByID(context.Background(), trip.ID)
	if stored.AvailableSeats != 3 {
		t.Fatalf("every reserve was released, seats %d want 3", stored.AvailableSeats)
	}
}

func TestApplySeatDelta_RejectedReserveTellsBookingService(t *testing.T) {
	trips := newFakeTripRepo()
	pub := &fakePublisher{}
	svc := newTripService(trips, pub)
	trip := seedTrip(t, trips, uuid.New(), 1, entity.TripStatusPending)
	bookingID := uuid.New()

	resp, err := svc.ApplySeatDelta(context.Background(), entity.SeatDelta{
		TripID: trip.ID, BookingID: bookingID, Direction: entity.SeatReserve, Seats: 2,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Outcome != entity.SeatDeltaRejected || resp.Applied || resp.AvailableSeats != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}

	if len(trips.outbox) != 1 || len(pub.sent) != 1 {
		t.Fatalf("expected one rejection row and one publish, got %d and %d", len(trips.outbox), len(pub.sent))
	}
	m := trips.outbox[0]
	if m.Queue != mq.QueueBookingSeatRejected {
		t.Fatalf("queue %s want %s", m.Queue, mq.QueueBookingSeatRejected)
	}
	msg, err := mq.DecodeSeatRejected(m.Payload)
	if err != nil || msg.BookingID != bookingID.String() || msg.NumberOfSeats != 2 {
		t.Fatalf("unexpected rejection %+v %v", msg, err)
	}
}

func TestApplySeatDelta_AppliedReserveSendsNoRejection(t *testing.T) {
	trips := newFakeTripRepo()
	pub := &fakePublisher{}
	svc := newTripService(trips, pub)
	trip := seedTrip(t, trips, uuid.New(), 3, entity.TripStatusPending)

	if _, err := svc.ApplySeatDelta(context.Background(), entity.SeatDelta{
		TripID: trip.ID, BookingID: uuid.New(), Direction: entity.SeatReserve, Seats: 2,
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(trips.outbox) != 0 || len(pub.sent) != 0 {
		t.Fatalf("nothing may be sent for an applied reserve")
	}
}

func TestListTrips_SearchFilters(t *testing.T) {
	trips := newFakeTripRepo()
	svc := newTripService(trips, &fakePublisher{})

	moncton := seedTrip(t, trips, uuid.New(), 3, entity.TripStatusPending)
	fredericton := seedTrip(t, trips, uuid.New(), 3, entity.TripStatusPending)
	trips.trips[fredericton.ID].DepartureCity = "Fredericton"
	ongoing := seedTrip(t, trips, uuid.New(), 3, entity.TripStatusOngoing)

	page := request.PaginatedRequest{Page: 1, PerPage: 10}
	ids := func(resp []string) map[string]bool {
		out := map[string]bool{}
		for _, id := range resp {
			out[id] = true
		}
		return out
	}
	list := func(req *request.ListTripsRequest) map[string]bool {
		t.Helper()
		req.PaginatedRequest = page
		resp, err := svc.ListTrips(context.Background(), req)
		if err != nil {
			t.Fatalf("list trips: %v", err)
		}
		var got []string
		for _, tr := range resp.Data {
			got = append(got, tr.ID)
		}
		return ids(got)
	}

	all := list(&request.ListTripsRequest{})
	if len(all) != 2 || all[ongoing.ID.String()] {
		t.Fatalf("default search must show pending trips only, got %v", all)
	}

	byCity := list(&request.ListTripsRequest{DepartureCity: "FREDER"})
	if len(byCity) != 1 || !byCity[fredericton.ID.String()] {
		t.Fatalf("city filter got %v", byCity)
	}

	byDest := list(&request.ListTripsRequest{DestinationCity: "hali", DepartureDate: "2026-05-07"})
	if len(byDest) != 2 || !byDest[moncton.ID.String()] {
		t.Fatalf("destination and date filter got %v", byDest)
	}

	if none := list(&request.ListTripsRequest{DepartureDate: "2026-05-08"}); len(none) != 0 {
		t.Fatalf("date filter got %v", none)
	}

	ongoingOnly := list(&request.ListTripsRequest{Status: "ongoing"})
	if len(ongoingOnly) != 1 || !ongoingOnly[ongoing.ID.String()] {
		t.Fatalf("explicit status got %v", ongoingOnly)
	}

	_, err := svc.ListTrips(context.Background(), &request.ListTripsRequest{PaginatedRequest: page, DepartureDate: "07/05/2026"})
	if !apperror.IsValidation(err) {
		t.Fatalf("expected validation error for a bad date, got %v", err)
	}
}

func TestListDriverTrips_IncludesHistory(t *testing.T) {
	trips := newFakeTripRepo()
	svc := newTripService(trips, &fakePublisher{})
	driverID := uuid.New()

	seedTrip(t, trips, driverID, 3, entity.TripStatusPending)
	seedTrip(t, trips, driverID, 3, entity.TripStatusCompleted)
	seedTrip(t, trips, uuid.New(), 3, entity.TripStatusPending)

	page := request.PaginatedRequest{Page: 1, PerPage: 10}
	resp, err := svc.ListDriverTrips(context.Background(), driverID, &request.ListTripsRequest{PaginatedRequest: page})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Pagination.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("driver trips total %d len %d want 2", resp.Pagination.Total, len(resp.Data))
	}
	for _, tr := range resp.Data {
		if tr.DriverID != driverID.String() {
			t.Fatalf("trip %s belongs to %s", tr.ID, tr.DriverID)
		}
	}

	done, err := svc.ListDriverTrips(context.Background(), driverID, &request.ListTripsRequest{PaginatedRequest: page, Status: "completed"})
	if err != nil || done.Pagination.Total != 1 {
		t.Fatalf("completed history %+v %v", done, err)
	}
}
