package adaptor

import (
	"net/http"

	"ride-booking/internal/dto/request"
	"ride-booking/internal/usecase"
	"ride-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TripHandler struct {
	service usecase.TripService
	log     *zap.Logger
}

func NewTripHandler(service usecase.TripService, log *zap.Logger) *TripHandler {
	return &TripHandler{
		service: service,
		log:     log.With(zap.String("handler", "trip")),
	}
}

// CreateTrip handles POST /api/trips (driver)
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	driverID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req request.CreateTripRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trip, err := h.service.CreateTrip(r.Context(), driverID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create trip")
		return
	}

	utils.ResponseCreated(w, "Trip created", trip)
}

func listTripsRequest(r *http.Request) *request.ListTripsRequest {
	query := r.URL.Query()
	return &request.ListTripsRequest{
		PaginatedRequest: paginated(r),
		Status:           query.Get("status"),
		DepartureCity:    query.Get("departure_city"),
		DestinationCity:  query.Get("destination_city"),
		DepartureDate:    query.Get("departure_date"),
	}
}

// ListTrips handles GET /api/trips?departure_city=&destination_city=&departure_date=&status=&page=&per_page=
func (h *TripHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.service.ListTrips(r.Context(), listTripsRequest(r))
	if err != nil {
		handleServiceError(w, h.log, err, "list trips")
		return
	}

	utils.ResponseSuccess(w, "success", trips)
}

// ListDriverTrips handles GET /api/trips/driver/me (driver only)
func (h *TripHandler) ListDriverTrips(w http.ResponseWriter, r *http.Request) {
	driverID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	trips, err := h.service.ListDriverTrips(r.Context(), driverID, listTripsRequest(r))
	if err != nil {
		handleServiceError(w, h.log, err, "list driver trips")
		return
	}

	utils.ResponseSuccess(w, "success", trips)
}

// GetTrip handles GET /api/trips/{id}
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.service.GetTrip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get trip")
		return
	}

	utils.ResponseSuccess(w, "success", trip)
}

// GetTripSnapshot handles GET /internal/trips/{id}, read by the booking service.
func (h *TripHandler) GetTripSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetTripSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get trip snapshot")
		return
	}

	utils.ResponseSuccess(w, "success", snapshot)
}

// UpdateTripStatus handles PATCH /api/trips/{id}/status (trip driver or admin)
func (h *TripHandler) UpdateTripStatus(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req request.UpdateTripStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trip, err := h.service.UpdateTripStatus(r.Context(), userID, isAdmin, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "update trip status")
		return
	}

	utils.ResponseSuccess(w, "Trip status updated", trip)
}
