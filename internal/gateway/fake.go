package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ride-booking/internal/data/entity"

	"github.com/google/uuid"
)

// Fake is an in-memory gateway for development and tests. Webhook payloads
// are plain JSON events; the signature must equal the configured secret.
type Fake struct {
	mu      sync.Mutex
	secret  string
	Charges map[string]ChargeRequest
	// Err, when set, fails every CreateCharge.
	Err error
}

func NewFake(secret string) *Fake {
	return &Fake{secret: secret, Charges: map[string]ChargeRequest{}}
}

func (f *Fake) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	id := "pi_" + uuid.NewString()
	f.Charges[id] = req
	return &Charge{IntentID: id, ClientSecret: id + "_secret"}, nil
}

// FakeEvent is the webhook body accepted by Fake.
type FakeEvent struct {
	ID         string                  `json:"id"`
	Kind       entity.GatewayEventKind `json:"kind"`
	IntentID   string                  `json:"intent_id"`
	ReceiptURL *string                 `json:"receipt_url,omitempty"`
}

func (f *Fake) ParseEvent(payload []byte, signature string) (*entity.GatewayEvent, error) {
	if f.secret != "" && signature != f.secret {
		return nil, ErrInvalidSignature
	}

	var ev FakeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode fake event: %w", err)
	}
	if _, ok := ev.Kind.TargetStatus(); !ok {
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, ev.Kind)
	}
	if ev.ID == "" {
		ev.ID = "evt_" + uuid.NewString()
	}

	return &entity.GatewayEvent{
		ID:         ev.ID,
		Kind:       ev.Kind,
		IntentID:   ev.IntentID,
		ReceiptURL: ev.ReceiptURL,
		OccurredAt: time.Now().UTC(),
	}, nil
}
