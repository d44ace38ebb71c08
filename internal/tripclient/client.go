// Package tripclient is the booking service's read path into the trip service.
package tripclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ride-booking/internal/apperror"
	"ride-booking/internal/data/entity"
	"ride-booking/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type envelope struct {
	Status  bool                `json:"status"`
	Message string              `json:"message"`
	Data    entity.TripSnapshot `json:"data"`
}

// HTTPLookup calls GET {base}/internal/trips/{id}.
type HTTPLookup struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPLookup(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPLookup {
	return &HTTPLookup{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With(zap.String("client", "trip")),
	}
}

func (l *HTTPLookup) GetTrip(ctx context.Context, id uuid.UUID) (*entity.TripSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/internal/trips/%s", l.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("build trip lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		l.log.Warn("Trip lookup failed", zap.Error(err), zap.String("trip_id", id.String()))
		return nil, apperror.Transient("trip lookup", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperror.NotFound("trip", id.String())
	case resp.StatusCode != http.StatusOK:
		l.log.Warn("Trip lookup returned unexpected status",
			zap.Int("status", resp.StatusCode),
			zap.String("trip_id", id.String()),
		)
		return nil, apperror.Transient("trip lookup", fmt.Errorf("status %d", resp.StatusCode))
	}

	var body envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperror.Transient("trip lookup", fmt.Errorf("decode response: %w", err))
	}
	return &body.Data, nil
}

// LocalLookup reads the trip table directly when the trip service shares the process.
type LocalLookup struct {
	trips repository.TripRepository
}

func NewLocalLookup(trips repository.TripRepository) *LocalLookup {
	return &LocalLookup{trips: trips}
}

func (l *LocalLookup) GetTrip(ctx context.Context, id uuid.UUID) (*entity.TripSnapshot, error) {
	trip, err := l.trips.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Transient("trip lookup", err)
	}
	if trip == nil {
		return nil, apperror.NotFound("trip", id.String())
	}
	return trip.Snapshot(), nil
}
