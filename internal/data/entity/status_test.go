package entity

import "testing"

func TestTripTransitions(t *testing.T) {
	cases := []struct {
		from, to TripStatus
		ok       bool
	}{
		{TripStatusPending, TripStatusOngoing, true},
		{TripStatusPending, TripStatusCancelled, true},
		{TripStatusOngoing, TripStatusCompleted, true},
		{TripStatusPending, TripStatusCompleted, false},
		{TripStatusCompleted, TripStatusPending, false},
		{TripStatusCancelled, TripStatusOngoing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
	if !TripStatusPending.Bookable() || TripStatusOngoing.Bookable() {
		t.Fatalf("only pending trips are bookable")
	}
}

func TestBookingTransitions(t *testing.T) {
	if !BookingStatusConfirmed.CanTransitionTo(BookingStatusCancelled) {
		t.Fatalf("confirmed bookings must be cancellable")
	}
	if BookingStatusCancelled.CanTransitionTo(BookingStatusConfirmed) {
		t.Fatalf("cancelled is terminal")
	}
	if !BookingStatusCompleted.Terminal() || BookingStatusConfirmed.Terminal() {
		t.Fatalf("terminal flags are wrong")
	}
}

func TestPaymentTransitions(t *testing.T) {
	if !PaymentStatusPending.CanTransitionTo(PaymentStatusSucceeded) {
		t.Fatalf("pending -> succeeded must be legal")
	}
	if !PaymentStatusSucceeded.CanTransitionTo(PaymentStatusRefunded) {
		t.Fatalf("succeeded -> refunded must be legal")
	}
	if PaymentStatusFailed.CanTransitionTo(PaymentStatusSucceeded) {
		t.Fatalf("failed is terminal")
	}
	if PaymentStatusRefunded.CanTransitionTo(PaymentStatusSucceeded) {
		t.Fatalf("refunded is terminal")
	}
}

func TestPayoutEarningStatusStaysLegal(t *testing.T) {
	// every legal payout move must drag its earnings through a legal move too
	for from, nexts := range payoutTransitions {
		for _, to := range nexts {
			ef, et := from.EarningStatus(), to.EarningStatus()
			if ef == et {
				continue
			}
			if !ef.CanTransitionTo(et) {
				t.Fatalf("payout %s -> %s moves earnings %s -> %s illegally", from, to, ef, et)
			}
		}
	}
}

func TestPayoutTransitions(t *testing.T) {
	cases := []struct {
		from, to PayoutStatus
		ok       bool
	}{
		{PayoutStatusRequested, PayoutStatusApproved, true},
		{PayoutStatusApproved, PayoutStatusProcessing, true},
		{PayoutStatusApproved, PayoutStatusPaid, false},
		{PayoutStatusRequested, PayoutStatusPaid, false},
		{PayoutStatusProcessing, PayoutStatusPaid, true},
		{PayoutStatusRequested, PayoutStatusCancelled, true},
		{PayoutStatusPaid, PayoutStatusFailed, false},
		{PayoutStatusProcessing, PayoutStatusCancelled, false},
		{PayoutStatusCancelled, PayoutStatusRequested, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestEarningTransitions(t *testing.T) {
	if !EarningStatusPendingTrip.CanTransitionTo(EarningStatusPayable) {
		t.Fatalf("pending_trip -> payable must be legal")
	}
	if EarningStatusPendingTrip.CanTransitionTo(EarningStatusRequested) {
		t.Fatalf("earnings must become payable before they are requested")
	}
	if EarningStatusPaid.CanTransitionTo(EarningStatusPayable) {
		t.Fatalf("paid is terminal")
	}
	if EarningStatusRequested.CanTransitionTo(EarningStatusPaid) {
		t.Fatalf("requested earnings must pass through processing before paid")
	}
}
