package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutStatusRequested  PayoutStatus = "requested"
	PayoutStatusApproved   PayoutStatus = "approved"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

// Approve goes straight to processing; approved rows only come from older data.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusRequested:  {PayoutStatusApproved, PayoutStatusProcessing, PayoutStatusFailed, PayoutStatusCancelled},
	PayoutStatusApproved:   {PayoutStatusProcessing, PayoutStatusFailed, PayoutStatusCancelled},
	PayoutStatusProcessing: {PayoutStatusPaid, PayoutStatusFailed},
	PayoutStatusPaid:       nil,
	PayoutStatusFailed:     nil,
	PayoutStatusCancelled:  nil,
}

func (s PayoutStatus) Valid() bool {
	_, ok := payoutTransitions[s]
	return ok
}

func (s PayoutStatus) CanTransitionTo(to PayoutStatus) bool {
	for _, next := range payoutTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// EarningStatus is the status linked earnings must carry while the payout is in s.
func (s PayoutStatus) EarningStatus() EarningStatus {
	switch s {
	case PayoutStatusRequested, PayoutStatusApproved:
		return EarningStatusRequested
	case PayoutStatusProcessing:
		return EarningStatusProcessing
	case PayoutStatusPaid:
		return EarningStatusPaid
	case PayoutStatusFailed:
		return EarningStatusFailed
	case PayoutStatusCancelled:
		return EarningStatusPayable
	}
	return ""
}

type PayoutRequest struct {
	ID                uuid.UUID       `db:"id"`
	DriverID          uuid.UUID       `db:"driver_id"`
	TotalAmount       decimal.Decimal `db:"total_amount"`
	Currency          string          `db:"currency"`
	Status            PayoutStatus    `db:"status"`
	TransferReference *string         `db:"transfer_reference"`
	AdminNotes        *string         `db:"admin_notes"`
	FailureReason     *string         `db:"failure_reason"`
	RequestedAt       time.Time       `db:"requested_at"`
	ApprovedAt        *time.Time      `db:"approved_at"`
	EtaDate           *time.Time      `db:"eta_date"`
	PaidAt            *time.Time      `db:"paid_at"`

	Earnings []*Earning `db:"-"`
}
