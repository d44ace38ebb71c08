package adaptor

import (
	"net/http"

	"ride-booking/internal/dto/request"
	"ride-booking/internal/usecase"
	"ride-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type EarningHandler struct {
	service usecase.EarningService
	log     *zap.Logger
}

func NewEarningHandler(service usecase.EarningService, log *zap.Logger) *EarningHandler {
	return &EarningHandler{
		service: service,
		log:     log.With(zap.String("handler", "earning")),
	}
}

// GetSummary handles GET /api/driver/earnings/summary (driver)
func (h *EarningHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	driverID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetDriverEarningsSummary(r.Context(), driverID)
	if err != nil {
		handleServiceError(w, h.log, err, "get earnings summary")
		return
	}

	utils.ResponseSuccess(w, "success", summary)
}

// RequestPayout handles POST /api/driver/payouts (driver)
func (h *EarningHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	driverID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req request.RequestPayoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payout, err := h.service.RequestPayout(r.Context(), driverID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "request payout")
		return
	}

	utils.ResponseCreated(w, "Payout requested", payout)
}

// ==================== ADMIN METHODS ====================

// ListPayouts handles GET /api/admin/payouts?status= (admin)
func (h *EarningHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	req := &request.ListPayoutsRequest{
		PaginatedRequest: paginated(r),
		Status:           r.URL.Query().Get("status"),
	}

	payouts, err := h.service.ListPayouts(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.log, err, "list payouts")
		return
	}

	utils.ResponseSuccess(w, "success", payouts)
}

// GetPayout handles GET /api/admin/payouts/{id} (admin)
func (h *EarningHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := currentUser(w, r)
	if !ok {
		return
	}

	payout, err := h.service.GetPayout(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get payout")
		return
	}

	utils.ResponseSuccess(w, "success", payout)
}

// ApprovePayout handles POST /api/admin/payouts/{id}/approve (admin)
func (h *EarningHandler) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	var req request.ApprovePayoutRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	payout, err := h.service.ApprovePayout(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "approve payout")
		return
	}

	utils.ResponseSuccess(w, "Payout approved", payout)
}

// MarkPayoutPaid handles POST /api/admin/payouts/{id}/paid (admin)
func (h *EarningHandler) MarkPayoutPaid(w http.ResponseWriter, r *http.Request) {
	var req request.MarkPayoutPaidRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	payout, err := h.service.MarkPayoutPaid(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "mark payout paid")
		return
	}

	utils.ResponseSuccess(w, "Payout paid", payout)
}

// FailPayout handles POST /api/admin/payouts/{id}/fail (admin)
func (h *EarningHandler) FailPayout(w http.ResponseWriter, r *http.Request) {
	var req request.FailPayoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payout, err := h.service.FailPayout(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "fail payout")
		return
	}

	utils.ResponseSuccess(w, "Payout failed", payout)
}

// CancelPayout handles POST /api/admin/payouts/{id}/cancel (owning driver or admin)
func (h *EarningHandler) CancelPayout(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := currentUser(w, r)
	if !ok {
		return
	}

	payout, err := h.service.CancelPayout(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "cancel payout")
		return
	}

	utils.ResponseSuccess(w, "Payout cancelled", payout)
}
