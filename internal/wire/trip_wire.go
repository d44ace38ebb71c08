package wire

import (
	"net/http"

	"ride-booking/internal/adaptor"
	"ride-booking/pkg/middleware"
	"ride-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireTrip(
	r chi.Router,
	tripHandler *adaptor.TripHandler,
	auth func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	// ==================== PUBLIC ROUTES ====================
	r.Get("/api/trips", tripHandler.ListTrips)
	r.Get("/api/trips/{id}", tripHandler.GetTrip)

	// Snapshot read by the booking service when it runs in another process.
	// Expected to be reachable on the private network only.
	r.Get("/internal/trips/{id}", tripHandler.GetTripSnapshot)

	// ==================== PROTECTED ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.With(middleware.RequireRole(log, utils.RoleDriver)).Post("/api/trips", tripHandler.CreateTrip)
		r.With(middleware.RequireRole(log, utils.RoleDriver)).Get("/api/trips/driver/me", tripHandler.ListDriverTrips)

		// Driver or admin; ownership is checked by the service
		r.Patch("/api/trips/{id}/status", tripHandler.UpdateTripStatus)
	})
}
