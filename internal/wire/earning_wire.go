package wire

import (
	"net/http"

	"ride-booking/internal/adaptor"
	"ride-booking/pkg/middleware"
	"ride-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireEarning(
	r chi.Router,
	earningHandler *adaptor.EarningHandler,
	auth func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	// ==================== DRIVER ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireRole(log, utils.RoleDriver))

		r.Get("/api/driver/earnings/summary", earningHandler.GetSummary)
		r.Post("/api/driver/payouts", earningHandler.RequestPayout)
		r.Get("/api/driver/payouts/{id}", earningHandler.GetPayout)
		r.Post("/api/driver/payouts/{id}/cancel", earningHandler.CancelPayout)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/payouts", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.Admin(log))

		r.Get("/", earningHandler.ListPayouts)
		r.Get("/{id}", earningHandler.GetPayout)
		r.Post("/{id}/approve", earningHandler.ApprovePayout)
		r.Post("/{id}/paid", earningHandler.MarkPayoutPaid)
		r.Post("/{id}/fail", earningHandler.FailPayout)
		r.Post("/{id}/cancel", earningHandler.CancelPayout)
	})
}
