package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"ride-booking/internal/apperror"
	"ride-booking/internal/dto/request"
	"ride-booking/internal/usecase"
	"ride-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler holds the handlers of the services this process hosts; the others
// stay nil and their routes are not mounted.
type Handler struct {
	Trip    *TripHandler
	Booking *BookingHandler
	Payment *PaymentHandler
	Earning *EarningHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	h := &Handler{}
	if service.Trip != nil {
		h.Trip = NewTripHandler(service.Trip, log)
	}
	if service.Booking != nil {
		h.Booking = NewBookingHandler(service.Booking, log)
	}
	if service.Payment != nil {
		h.Payment = NewPaymentHandler(service.Payment, log)
	}
	if service.Earning != nil {
		h.Earning = NewEarningHandler(service.Earning, log)
	}
	return h
}

// decodeJSON reads the request body into dst. It answers 400 itself and
// reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// currentUser reads the authenticated user, answering 401 when absent.
func currentUser(w http.ResponseWriter, r *http.Request) (userID uuid.UUID, isAdmin bool, ok bool) {
	id, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return uuid.Nil, false, false
	}
	return id, utils.IsAdmin(r.Context()), true
}

// paginated reads page and per_page from the query string.
func paginated(r *http.Request) request.PaginatedRequest {
	query := r.URL.Query()
	return request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
}

// handleServiceError maps the error taxonomy onto status codes.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var domainErr apperror.DomainError

	switch {
	case apperror.IsValidation(err):
		log.Warn(operation+" validation failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseBadRequest(w, err.Error(), apperror.FieldErrors(err))

	case apperror.IsNotFound(err):
		log.Warn(operation+" failed - not found", zap.Error(err), zap.String("operation", operation))
		utils.ResponseNotFound(w, err.Error())

	case errors.As(err, &domainErr):
		log.Warn(operation+" rejected",
			zap.Error(err),
			zap.String("operation", operation),
			zap.String("code", domainErr.Code))
		switch domainErr.Code {
		case apperror.CodeForbidden:
			utils.ResponseForbidden(w, err.Error())
		case apperror.CodeDuplicateBooking, apperror.CodePaymentAlreadyRegistered:
			utils.ResponseJSON(w, http.StatusConflict, false, err.Error(), nil, map[string]string{"code": domainErr.Code})
		default:
			utils.ResponseUnprocessable(w, err.Error(), map[string]string{"code": domainErr.Code})
		}

	case apperror.IsConflict(err):
		log.Warn(operation+" conflict", zap.Error(err), zap.String("operation", operation))
		utils.ResponseConflict(w, err.Error())

	case apperror.IsTransient(err):
		log.Error(operation+" dependency unavailable", zap.Error(err), zap.String("operation", operation))
		utils.ResponseUnavailable(w, "Service temporarily unavailable, retry later")

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
