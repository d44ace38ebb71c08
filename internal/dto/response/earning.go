package response

import (
	"time"

	"ride-booking/internal/data/entity"

	"github.com/shopspring/decimal"
)

type EarningResponse struct {
	ID              string               `json:"id"`
	BookingID       string               `json:"booking_id"`
	TripID          string               `json:"trip_id"`
	Amount          decimal.Decimal      `json:"amount"`
	Currency        string               `json:"currency"`
	Status          entity.EarningStatus `json:"status"`
	TripDate        string               `json:"trip_date"`
	PassengerName   *string              `json:"passenger_name,omitempty"`
	Route           *string              `json:"route,omitempty"`
	PayoutRequestID *string              `json:"payout_request_id,omitempty"`
	PayableAt       *time.Time           `json:"payable_at,omitempty"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
}

type EarningsSummaryResponse struct {
	TotalMonth         decimal.Decimal   `json:"total_month"`
	AmountPayable      decimal.Decimal   `json:"amount_payable"`
	CountPayable       int               `json:"count_payable"`
	AmountProcessing   decimal.Decimal   `json:"amount_processing"`
	CountProcessing    int               `json:"count_processing"`
	AmountPaidTotal    decimal.Decimal   `json:"amount_paid_total"`
	PayableEarnings    []EarningResponse `json:"payable_earnings"`
	ProcessingEarnings []EarningResponse `json:"processing_earnings"`
}

type PayoutResponse struct {
	ID                string              `json:"id"`
	DriverID          string              `json:"driver_id"`
	TotalAmount       decimal.Decimal     `json:"total_amount"`
	Currency          string              `json:"currency"`
	Status            entity.PayoutStatus `json:"status"`
	TransferReference *string             `json:"transfer_reference,omitempty"`
	AdminNotes        *string             `json:"admin_notes,omitempty"`
	FailureReason     *string             `json:"failure_reason,omitempty"`
	RequestedAt       time.Time           `json:"requested_at"`
	ApprovedAt        *time.Time          `json:"approved_at,omitempty"`
	EtaDate           *time.Time          `json:"eta_date,omitempty"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
	Earnings          []EarningResponse   `json:"earnings,omitempty"`
}

func EarningToResponse(e *entity.Earning) EarningResponse {
	resp := EarningResponse{
		ID:            e.ID.String(),
		BookingID:     e.BookingID.String(),
		TripID:        e.TripID.String(),
		Amount:        e.Amount,
		Currency:      e.Currency,
		Status:        e.Status,
		TripDate:      e.TripDate.Format("2006-01-02"),
		PassengerName: e.PassengerName,
		Route:         e.Route,
		PayableAt:     e.PayableAt,
		PaidAt:        e.PaidAt,
	}
	if e.PayoutRequestID != nil {
		id := e.PayoutRequestID.String()
		resp.PayoutRequestID = &id
	}
	return resp
}

func EarningsToResponse(earnings []*entity.Earning) []EarningResponse {
	out := make([]EarningResponse, 0, len(earnings))
	for _, e := range earnings {
		out = append(out, EarningToResponse(e))
	}
	return out
}

func EarningsSummaryToResponse(s *entity.EarningsSummary) EarningsSummaryResponse {
	return EarningsSummaryResponse{
		TotalMonth:         s.TotalMonth,
		AmountPayable:      s.AmountPayable,
		CountPayable:       s.CountPayable,
		AmountProcessing:   s.AmountProcessing,
		CountProcessing:    s.CountProcessing,
		AmountPaidTotal:    s.AmountPaidTotal,
		PayableEarnings:    EarningsToResponse(s.PayableEarnings),
		ProcessingEarnings: EarningsToResponse(s.ProcessingEarnings),
	}
}

func PayoutToResponse(p *entity.PayoutRequest) PayoutResponse {
	resp := PayoutResponse{
		ID:                p.ID.String(),
		DriverID:          p.DriverID.String(),
		TotalAmount:       p.TotalAmount,
		Currency:          p.Currency,
		Status:            p.Status,
		TransferReference: p.TransferReference,
		AdminNotes:        p.AdminNotes,
		FailureReason:     p.FailureReason,
		RequestedAt:       p.RequestedAt,
		ApprovedAt:        p.ApprovedAt,
		EtaDate:           p.EtaDate,
		PaidAt:            p.PaidAt,
	}
	if len(p.Earnings) > 0 {
		resp.Earnings = EarningsToResponse(p.Earnings)
	}
	return resp
}
