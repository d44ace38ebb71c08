package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ride-booking/internal/data/entity"
	"ride-booking/pkg/money"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

type stripeGateway struct {
	api           *client.API
	webhookSecret string
	log           *zap.Logger
}

func NewStripe(cfg Config, log *zap.Logger) Gateway {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	api := &client.API{}
	api.Init(cfg.SecretKey, stripe.NewBackends(httpClient))

	return &stripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		log:           log.With(zap.String("gateway", DriverStripe)),
	}
}

func (g *stripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(money.ToMinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.log.Error("Failed to create payment intent", zap.Error(err), zap.String("idempotency_key", req.IdempotencyKey))
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Charge{IntentID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *stripeGateway) ParseEvent(payload []byte, signature string) (*entity.GatewayEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &entity.GatewayEvent{
		ID:         event.ID,
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}

	switch string(event.Type) {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
		out.Kind = entity.GatewayEventFailed
		if string(event.Type) == "payment_intent.succeeded" {
			out.Kind = entity.GatewayEventSucceeded
			if pi.LatestCharge != nil && pi.LatestCharge.ReceiptURL != "" {
				receipt := pi.LatestCharge.ReceiptURL
				out.ReceiptURL = &receipt
			}
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		if ch.PaymentIntent == nil {
			return nil, fmt.Errorf("%w: refunded charge %s has no payment intent", ErrIgnoredEvent, ch.ID)
		}
		out.Kind = entity.GatewayEventRefunded
		out.IntentID = ch.PaymentIntent.ID
		if ch.ReceiptURL != "" {
			receipt := ch.ReceiptURL
			out.ReceiptURL = &receipt
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	return out, nil
}
