package wire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ride-booking/internal/data/repository"
	"ride-booking/internal/gateway"
	"ride-booking/internal/usecase"
	"ride-booking/pkg/middleware"
	"ride-booking/pkg/mq"
	"ride-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"go.uber.org/zap"
)

func testConfig(service string) *utils.Config {
	return &utils.Config{
		App: utils.AppConfig{Service: service},
		JWT: utils.JWTConfig{Secret: "wire-secret", Issuer: "ride-booking"},
		Booking: utils.BookingConfig{
			ReservationFeePerSeat: "3.50",
			TaxRate:               "0.15",
			TaxRegion:             "HST-NB",
			Currency:              "CAD",
		},
	}
}

func newApp(t *testing.T, service string, probes ...Probe) (*App, *utils.Config) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock: %v", err)
	}
	t.Cleanup(mock.Close)

	config := testConfig(service)
	deps := usecase.Deps{Gateway: gateway.NewFake("whsec")}
	return Wiring(repository.NewRepository(mock, zap.NewNop()), deps, probes, config, zap.NewNop()), config
}

func token(t *testing.T, config *utils.Config, role string) string {
	t.Helper()
	tok, err := middleware.IssueToken(config.JWT, uuid.New(), role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

func TestRoutes_Access(t *testing.T) {
	app, config := newApp(t, utils.ServiceAll)
	passenger := token(t, config, utils.RolePassenger)

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"booking needs a token", http.MethodPost, "/api/bookings", "", http.StatusUnauthorized},
		{"payout admin only", http.MethodGet, "/api/admin/payouts", passenger, http.StatusForbidden},
		{"trip creation driver only", http.MethodPost, "/api/trips", passenger, http.StatusForbidden},
		{"earnings driver only", http.MethodGet, "/api/driver/earnings/summary", passenger, http.StatusForbidden},
		{"repair admin only", http.MethodPost, "/api/admin/trips/" + uuid.NewString() + "/complete-bookings", passenger, http.StatusForbidden},
		{"unknown route", http.MethodGet, "/api/movies", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()

			app.Router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("%s %s: status %d want %d", tc.method, tc.path, rec.Code, tc.want)
			}
			if rec.Header().Get(middleware.RequestIDHeader) == "" {
				t.Fatalf("missing request id header")
			}
		})
	}
}

func TestRoutes_OnlyHostedServices(t *testing.T) {
	app, _ := newApp(t, utils.ServiceBooking)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trips", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("trip routes must not be served by the booking service, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("booking route status %d want 401", rec.Code)
	}

	if app.Service.Trip != nil || app.Service.Payment != nil {
		t.Fatalf("only the booking service should be built")
	}
	if _, ok := app.Consumer.Subscriptions()[mq.QueueBookingTripCompleted]; !ok {
		t.Fatalf("booking service must consume trip completion")
	}
	if _, ok := app.Consumer.Subscriptions()[mq.QueueBookingSeatRejected]; !ok {
		t.Fatalf("booking service must consume seat rejections")
	}
}

func TestHealth(t *testing.T) {
	ok := Probe{Name: "postgres", Check: func(context.Context) error { return nil }}
	down := Probe{Name: "broker", Check: func(context.Context) error { return errors.New("not connected") }}

	app, _ := newApp(t, utils.ServiceAll, ok)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy: status %d want 200", rec.Code)
	}

	app, _ = newApp(t, utils.ServiceAll, ok, down)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded: status %d want 503", rec.Code)
	}
}
