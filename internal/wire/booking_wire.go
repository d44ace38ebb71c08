package wire

import (
	"net/http"

	"ride-booking/internal/adaptor"
	"ride-booking/pkg/middleware"
	"ride-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	auth func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/api/bookings", bookingHandler.CreateBooking)
		r.Get("/api/bookings/{id}", bookingHandler.GetBooking)
		r.Post("/api/bookings/{id}/cancel", bookingHandler.CancelBooking)
		r.Get("/api/user/bookings", bookingHandler.GetUserBookings)
	})

	// ==================== DRIVER ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireRole(log, utils.RoleDriver))

		r.Get("/api/driver/bookings", bookingHandler.GetDriverBookings)
		r.Get("/api/trips/{id}/passengers", bookingHandler.GetTripPassengers)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/trips", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.Admin(log))

		// Manual repair when a trip.completed message was lost
		r.Post("/{id}/complete-bookings", bookingHandler.CompleteTripBookings)
	})
}
