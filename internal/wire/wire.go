package wire

import (
	"context"
	"net/http"
	"time"

	"ride-booking/internal/adaptor"
	"ride-booking/internal/data/repository"
	"ride-booking/internal/usecase"
	"ride-booking/pkg/middleware"
	"ride-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds what main needs to serve and consume.
type App struct {
	Router   *chi.Mux
	Service  *usecase.Service
	Consumer *adaptor.Consumer
}

// Probe is one dependency checked by /health.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Wiring builds the hosted services, their handlers and the router.
func Wiring(repo *repository.Repository, deps usecase.Deps, probes []Probe, config *utils.Config, logger *zap.Logger) *App {
	service := usecase.NewService(repo, deps, config, logger)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:   setupRouter(handler, probes, config, logger),
		Service:  service,
		Consumer: adaptor.NewConsumer(service, logger),
	}
}

func setupRouter(handler *adaptor.Handler, probes []Probe, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	auth := middleware.Auth(config.JWT, logger)

	// Areas not hosted by this process are simply not routed.
	if handler.Trip != nil {
		wireTrip(r, handler.Trip, auth, logger)
	}
	if handler.Booking != nil {
		wireBooking(r, handler.Booking, auth, logger)
	}
	if handler.Payment != nil {
		wirePayment(r, handler.Payment, auth)
	}
	if handler.Earning != nil {
		wireEarning(r, handler.Earning, auth, logger)
	}

	r.Get("/health", health(probes, logger))

	return r
}

func health(probes []Probe, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(probes))
		healthy := true
		for _, p := range probes {
			if err := p.Check(ctx); err != nil {
				logger.Warn("Health check failed", zap.String("dependency", p.Name), zap.Error(err))
				checks[p.Name] = err.Error()
				healthy = false
				continue
			}
			checks[p.Name] = "ok"
		}

		if !healthy {
			utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "unhealthy", checks, nil)
			return
		}
		utils.ResponseSuccess(w, "ok", checks)
	}
}
