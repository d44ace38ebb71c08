// Package gateway talks to the card processor. The payment service only sees
// normalized charges and events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-booking/internal/data/entity"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DriverStripe = "stripe"
	DriverFake   = "fake"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrIgnoredEvent is returned for gateway event types the reconciler does not track.
	ErrIgnoredEvent = errors.New("ignored gateway event")
)

type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type Charge struct {
	IntentID     string
	ClientSecret string
}

type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	// ParseEvent verifies and normalizes a webhook delivery.
	ParseEvent(payload []byte, signature string) (*entity.GatewayEvent, error)
}

type Config struct {
	Driver        string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

func New(cfg Config, log *zap.Logger) (Gateway, error) {
	switch cfg.Driver {
	case DriverStripe:
		return NewStripe(cfg, log), nil
	case DriverFake, "":
		return NewFake(cfg.WebhookSecret), nil
	default:
		return nil, fmt.Errorf("unknown gateway driver %q", cfg.Driver)
	}
}
