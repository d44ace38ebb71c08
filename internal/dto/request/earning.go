package request

import "time"

type RequestPayoutRequest struct {
	EarningIDs []string `json:"earning_ids" validate:"required,min=1,max=200,dive,uuid"`
}

type ApprovePayoutRequest struct {
	TransferReference *string `json:"transfer_reference,omitempty" validate:"omitempty,max=120"`
	EtaDays           int     `json:"eta_days" validate:"min=0,max=60"`
	AdminNotes        *string `json:"admin_notes,omitempty" validate:"omitempty,max=500"`
}

type MarkPayoutPaidRequest struct {
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

type FailPayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ListPayoutsRequest struct {
	PaginatedRequest
	Status string `json:"status" validate:"omitempty,oneof=requested approved processing paid failed cancelled"`
}
