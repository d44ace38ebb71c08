package usecase

import (
	"ride-booking/internal/apperror"
	"ride-booking/internal/data/repository"
	"ride-booking/internal/gateway"
	"ride-booking/pkg/cache"
	"ride-booking/pkg/utils"

	"go.uber.org/zap"
)

// Service groups the services this process hosts. Fields for services that
// are not hosted stay nil.
type Service struct {
	Trip    TripService
	Booking BookingService
	Payment PaymentService
	Earning EarningService
}

// Deps are the collaborators built in main.
type Deps struct {
	Publisher  Publisher
	TripLookup TripLookup
	Gateway    gateway.Gateway
	EventGuard cache.EventGuard
}

func NewService(repo *repository.Repository, deps Deps, config *utils.Config, log *zap.Logger) *Service {
	svc := &Service{}

	if config.App.Runs(utils.ServiceTrip) {
		svc.Trip = NewTripService(repo.Trip, deps.Publisher, log)
	}
	if config.App.Runs(utils.ServiceBooking) {
		svc.Booking = NewBookingService(repo.Booking, deps.TripLookup, deps.Publisher, config.Booking, log)
	}
	if config.App.Runs(utils.ServicePayment) {
		svc.Payment = NewPaymentService(repo.Payment, repo.Earning, deps.Gateway, deps.EventGuard, log)
		svc.Earning = NewEarningService(repo.Earning, repo.Payout, log)
	}

	return svc
}

// validate runs struct validation and converts failures to a ValidationError.
func validate(req any) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return apperror.ValidationFields(errs, utils.FormatValidationErrors(errs))
	}
	return nil
}
