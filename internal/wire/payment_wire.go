package wire

import (
	"net/http"

	"ride-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	auth func(http.Handler) http.Handler,
) {
	// Gateway callbacks carry a signature instead of a token
	r.Post("/api/payments/webhook", paymentHandler.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/api/payments/intent", paymentHandler.CreatePaymentIntent)
		r.Get("/api/payments/{id}", paymentHandler.GetPayment)
		r.Get("/api/bookings/{id}/payment", paymentHandler.GetBookingPayment)
	})
}
