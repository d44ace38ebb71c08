package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestHelpersSeeThroughWrapping(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", Validation("seats", "must be positive"), IsValidation},
		{"domain", Domain(CodeSelfBooking, "driver %s", "d-1"), IsDomain},
		{"conflict", Conflict("trip", "status changed"), IsConflict},
		{"transient", Transient("trip lookup", errors.New("timeout")), IsTransient},
		{"not found", NotFound("booking", "b-1"), IsNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			if !tc.check(wrapped) {
				t.Fatalf("expected %s to be recognised through wrapping", tc.name)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("create: %w", Domain(CodeDuplicateBooking, "user already booked"))
	if !HasCode(err, CodeDuplicateBooking) {
		t.Fatalf("expected duplicate_booking code")
	}
	if HasCode(err, CodeSelfBooking) {
		t.Fatalf("unexpected code match")
	}
	if HasCode(Conflict("trip", ""), CodeDuplicateBooking) {
		t.Fatalf("conflict errors carry no domain code")
	}
}

func TestFieldErrors(t *testing.T) {
	fields := FieldErrors(ValidationFields(map[string]string{"TripID": "This field is required"}, "bad request"))
	if fields["TripID"] != "This field is required" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if got := FieldErrors(Validation("seats", "must be positive")); got["seats"] != "must be positive" {
		t.Fatalf("single field not exposed, got %v", got)
	}
	if FieldErrors(errors.New("boom")) != nil {
		t.Fatalf("plain errors have no fields")
	}
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := InvalidTransition("trip", "completed", "pending")
	if !HasCode(err, CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition code")
	}
	if err.Error() != "invalid_transition: trip cannot move from completed to pending" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
