package adaptor

import (
	"io"
	"net/http"

	"ride-booking/internal/dto/request"
	"ride-booking/internal/usecase"
	"ride-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxWebhookBytes bounds gateway webhook bodies.
const maxWebhookBytes = 64 << 10

const SignatureHeader = "Stripe-Signature"

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// CreatePaymentIntent handles POST /api/payments/intent
func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req request.CreatePaymentIntentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	intent, err := h.service.CreatePaymentIntent(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create payment intent")
		return
	}

	utils.ResponseCreated(w, "Payment intent created", intent)
}

// Webhook handles POST /api/payments/webhook (public, signature checked)
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		handleServiceError(w, h.log, err, "handle payment webhook")
		return
	}

	utils.ResponseSuccess(w, result.Outcome, result)
}

// GetPayment handles GET /api/payments/{id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := currentUser(w, r)
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get payment")
		return
	}

	utils.ResponseSuccess(w, "success", payment)
}

// GetBookingPayment handles GET /api/bookings/{id}/payment
func (h *PaymentHandler) GetBookingPayment(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := currentUser(w, r)
	if !ok {
		return
	}

	payment, err := h.service.GetPaymentByBooking(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get booking payment")
		return
	}

	utils.ResponseSuccess(w, "success", payment)
}
