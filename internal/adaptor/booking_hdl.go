package adaptor

import (
	"net/http"

	"ride-booking/internal/apperror"
	"ride-booking/internal/dto/request"
	"ride-booking/internal/usecase"
	"ride-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking confirmed", booking)
}

// GetBooking handles GET /api/bookings/{id} (passenger, driver or admin)
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := currentUser(w, r)
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// GetUserBookings handles GET /api/user/bookings
func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	req := paginated(r)
	bookings, err := h.service.GetUserBookings(r.Context(), userID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "get user bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetDriverBookings handles GET /api/driver/bookings (driver)
func (h *BookingHandler) GetDriverBookings(w http.ResponseWriter, r *http.Request) {
	driverID, _, ok := currentUser(w, r)
	if !ok {
		return
	}

	req := paginated(r)
	bookings, err := h.service.GetDriverBookings(r.Context(), driverID, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "get driver bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetTripPassengers handles GET /api/trips/{id}/passengers (driver)
func (h *BookingHandler) GetTripPassengers(w http.ResponseWriter, r *http.Request) {
	passengers, err := h.service.GetTripPassengers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get trip passengers")
		return
	}

	utils.ResponseSuccess(w, "success", passengers)
}

// CancelBooking handles POST /api/bookings/{id}/cancel (passenger or admin)
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.service.CancelBooking(r.Context(), userID, isAdmin, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", result)
}

// CompleteTripBookings handles POST /api/admin/trips/{id}/complete-bookings (admin)
func (h *BookingHandler) CompleteTripBookings(w http.ResponseWriter, r *http.Request) {
	tripID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, apperror.Validation("trip_id", "must be a valid UUID"), "complete trip bookings")
		return
	}

	result, err := h.service.CompleteBookingsByTrip(r.Context(), tripID)
	if err != nil {
		handleServiceError(w, h.log, err, "complete trip bookings")
		return
	}

	utils.ResponseSuccess(w, "Bookings completed", result)
}
