package gateway

import (
	"context"
	"errors"
	"testing"

	"ride-booking/internal/data/entity"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestFake_CreateChargeRecordsRequest(t *testing.T) {
	g := NewFake("whsec")

	charge, err := g.CreateCharge(context.Background(), ChargeRequest{
		Amount:   decimal.RequireFromString("65.55"),
		Currency: "CAD",
		Metadata: map[string]string{"booking_id": "b-1"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if charge.IntentID == "" || charge.ClientSecret == "" {
		t.Fatalf("expected intent id and client secret, got %+v", charge)
	}
	if got := g.Charges[charge.IntentID].Metadata["booking_id"]; got != "b-1" {
		t.Fatalf("metadata not recorded, got %q", got)
	}
}

func TestFake_ParseEvent(t *testing.T) {
	g := NewFake("whsec")

	ev, err := g.ParseEvent([]byte(`{"id":"evt_1","kind":"succeeded","intent_id":"pi_1"}`), "whsec")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ev.Kind != entity.GatewayEventSucceeded || ev.IntentID != "pi_1" || ev.ID != "evt_1" {
		t.Fatalf("unexpected event %+v", ev)
	}

	if _, err := g.ParseEvent([]byte(`{"kind":"succeeded"}`), "nope"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if _, err := g.ParseEvent([]byte(`{"kind":"disputed"}`), "whsec"); !errors.Is(err, ErrIgnoredEvent) {
		t.Fatalf("expected ignored event, got %v", err)
	}
}

func TestNew_SelectsDriver(t *testing.T) {
	g, err := New(Config{Driver: DriverFake}, zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := g.(*Fake); !ok {
		t.Fatalf("expected fake gateway, got %T", g)
	}
	if _, err := New(Config{Driver: "paypal"}, zap.NewNop()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
