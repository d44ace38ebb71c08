package request

type CreateTripRequest struct {
	DepartureCity   string  `json:"departure_city" validate:"required,max=120"`
	DestinationCity string  `json:"destination_city" validate:"required,max=120"`
	DepartureDate   string  `json:"departure_date" validate:"required,datetime=2006-01-02"`
	DepartureTime   *string `json:"departure_time,omitempty" validate:"omitempty,datetime=15:04"`
	TotalPrice      string  `json:"total_price" validate:"required,decimal=nonneg"`
	AvailableSeats  int     `json:"available_seats" validate:"required,min=1,max=60"`
}

type UpdateTripStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending ongoing completed cancelled"`
}

type ListTripsRequest struct {
	PaginatedRequest
	Status          string `json:"status" validate:"omitempty,oneof=pending ongoing completed cancelled"`
	DepartureCity   string `json:"departure_city" validate:"omitempty,max=120"`
	DestinationCity string `json:"destination_city" validate:"omitempty,max=120"`
	DepartureDate   string `json:"departure_date" validate:"omitempty,datetime=2006-01-02"`
}
