// Package money holds the fixed-point arithmetic behind booking snapshots and
// cancellation refunds. Every amount it returns is quantized to cents with
// round-half-up; nothing here performs I/O.
package money

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutMethod says how the driver receives the ride fare.
type PayoutMethod string

const (
	PayoutCash     PayoutMethod = "cash"
	PayoutTransfer PayoutMethod = "transfer"
)

func (m PayoutMethod) Valid() bool {
	return m == PayoutCash || m == PayoutTransfer
}

var (
	ErrInvalidSeats        = errors.New("number of seats must be positive")
	ErrNegativeAmount      = errors.New("amounts and tax rate must not be negative")
	ErrInvalidPayoutMethod = errors.New("payout method must be cash or transfer")
)

// Zero is 0.00.
var Zero = decimal.New(0, -2)

// Quantize rounds to 2 decimal places, halves away from zero.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Totals is the money snapshot stored on a booking.
type Totals struct {
	Base                decimal.Decimal
	Fee                 decimal.Decimal
	ChargedPretax       decimal.Decimal
	Tax                 decimal.Decimal
	ChargedNow          decimal.Decimal
	DriverPayable       decimal.Decimal
	DriverCollectedCash decimal.Decimal
}

// ComputeBookingTotals derives the booking snapshot.
//
// For cash the rider is charged the reservation fee only and the driver
// collects the fare in person. For transfer the platform charges fare plus fee
// and owes the fare to the driver. Tax applies to whatever is charged now.
// Each component is quantized before it is summed so stored snapshots add up
// exactly.
func ComputeBookingTotals(seats int, pricePerSeat, feePerSeat, taxRate decimal.Decimal, method PayoutMethod) (Totals, error) {
	if seats <= 0 {
		return Totals{}, ErrInvalidSeats
	}
	if pricePerSeat.IsNegative() || feePerSeat.IsNegative() || taxRate.IsNegative() {
		return Totals{}, ErrNegativeAmount
	}
	if !method.Valid() {
		return Totals{}, fmt.Errorf("%w: %q", ErrInvalidPayoutMethod, method)
	}

	n := decimal.NewFromInt(int64(seats))
	t := Totals{
		Base: Quantize(n.Mul(pricePerSeat)),
		Fee:  Quantize(n.Mul(feePerSeat)),
	}

	switch method {
	case PayoutCash:
		t.ChargedPretax = t.Fee
		t.DriverPayable = Zero
		t.DriverCollectedCash = t.Base
	case PayoutTransfer:
		t.ChargedPretax = t.Base.Add(t.Fee)
		t.DriverPayable = t.Base
		t.DriverCollectedCash = Zero
	}

	t.Tax = Quantize(t.ChargedPretax.Mul(taxRate))
	t.ChargedNow = Quantize(t.ChargedPretax.Add(t.Tax))

	return t, nil
}

// CancellationSnapshot is the part of a booking the refund policy reads.
type CancellationSnapshot struct {
	Method                PayoutMethod
	Seats                 int
	ChargedNowTotal       decimal.Decimal
	FeeTotal              decimal.Decimal
	TaxRate               decimal.Decimal
	FreeCancellationUntil time.Time
}

// Refund is an instruction for the payment side; it moves no funds itself.
type Refund struct {
	Amount         decimal.Decimal
	SeatsToRestore int
	BeforeCutoff   bool
}

// ComputeCancellationRefund applies the cancellation policy.
//
//	method    before cutoff         after cutoff
//	cash      charged, all seats    0, no seats
//	transfer  charged, all seats    charged - (fee + tax on fee), no seats
func ComputeCancellationRefund(b CancellationSnapshot, cancelledAt time.Time) Refund {
	before := !cancelledAt.UTC().After(b.FreeCancellationUntil.UTC())

	if before {
		return Refund{
			Amount:         Quantize(b.ChargedNowTotal),
			SeatsToRestore: b.Seats,
			BeforeCutoff:   true,
		}
	}

	if b.Method == PayoutCash {
		return Refund{Amount: Zero}
	}

	kept := Quantize(b.FeeTotal.Add(Quantize(b.FeeTotal.Mul(b.TaxRate))))
	amount := Quantize(b.ChargedNowTotal.Sub(kept))
	if amount.IsNegative() {
		amount = Zero
	}
	return Refund{Amount: amount}
}

// Sum adds amounts and quantizes the result.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Quantize(total)
}

// ToMinorUnits converts an amount to cents for gateways that bill in integers.
func ToMinorUnits(d decimal.Decimal) int64 {
	return Quantize(d).Shift(2).IntPart()
}
