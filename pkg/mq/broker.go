// Package mq is the at-least-once message fabric between the trip, booking and
// payment services. Handlers must be idempotent: every driver may redeliver.
package mq

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Delivery is one received message.
type Delivery struct {
	Queue         string
	CorrelationID string
	Body          []byte
	Redelivered   bool
}

// Handler processes a delivery. A nil error acknowledges it. An error wrapped
// with Requeue asks for redelivery; any other error drops the message.
type Handler func(ctx context.Context, d Delivery) error

type Broker interface {
	Publish(ctx context.Context, queue, correlationID string, body []byte) error
	// Consume blocks until ctx is cancelled or the broker is closed.
	Consume(ctx context.Context, queue string, h Handler) error
	Ready() bool
	Close() error
}

var ErrClosed = errors.New("broker closed")

type requeueError struct{ err error }

func (e requeueError) Error() string { return "requeue: " + e.err.Error() }
func (e requeueError) Unwrap() error { return e.err }

// Requeue marks err as retryable.
func Requeue(err error) error {
	if err == nil {
		return nil
	}
	return requeueError{err: err}
}

func ShouldRequeue(err error) bool {
	var target requeueError
	return errors.As(err, &target)
}

// New builds the broker selected by driver: rabbitmq, kafka or memory.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Broker, error) {
	switch cfg.Driver {
	case DriverRabbitMQ:
		return NewRabbitMQ(ctx, cfg, log)
	case DriverKafka:
		return NewKafka(ctx, cfg, log)
	case DriverMemory:
		return NewMemory(log), nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Driver)
	}
}
