package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dialAttempts      = 10
	dialRetryDelay    = 3 * time.Second
	reconnectBackoff  = 5 * time.Second
	reconnectBackoffM = 60 * time.Second
)

// RabbitMQ publishes persistent messages to durable queues on the default
// exchange and consumes them with manual acknowledgement. A lost connection
// is re-dialled in the background with exponential backoff.
type RabbitMQ struct {
	url      string
	prefetch int
	log      *zap.Logger

	mu       sync.RWMutex
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	declared map[string]bool
	closed   bool
	done     chan struct{}
}

func NewRabbitMQ(ctx context.Context, cfg Config, log *zap.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{
		url:      cfg.URL,
		prefetch: cfg.Prefetch,
		log:      log.With(zap.String("broker", DriverRabbitMQ)),
		declared: make(map[string]bool),
		done:     make(chan struct{}),
	}
	if r.prefetch <= 0 {
		r.prefetch = 10
	}

	var err error
	for i := 1; i <= dialAttempts; i++ {
		if err = r.connect(); err == nil {
			go r.monitor()
			return r, nil
		}
		r.log.Warn("RabbitMQ not ready, retrying", zap.Int("attempt", i), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryDelay):
		}
	}
	return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn = conn
	r.pubCh = ch
	r.declared = make(map[string]bool)
	r.mu.Unlock()
	return nil
}

func (r *RabbitMQ) monitor() {
	for {
		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		notify := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-r.done:
			return
		case amqpErr := <-notify:
			if amqpErr == nil {
				return
			}
			r.log.Error("RabbitMQ connection lost, reconnecting", zap.Error(amqpErr))
		}

		backoff := reconnectBackoff
		for {
			select {
			case <-r.done:
				return
			case <-time.After(backoff):
			}
			if err := r.connect(); err != nil {
				r.log.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("next_retry", backoff))
				backoff *= 2
				if backoff > reconnectBackoffM {
					backoff = reconnectBackoffM
				}
				continue
			}
			r.log.Info("RabbitMQ reconnected")
			break
		}
	}
}

func (r *RabbitMQ) declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	return err
}

func (r *RabbitMQ) Publish(ctx context.Context, queue, correlationID string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.pubCh == nil || r.pubCh.IsClosed() {
		return fmt.Errorf("publish to %s: channel not open", queue)
	}
	if !r.declared[queue] {
		if err := r.declare(r.pubCh, queue); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		r.declared[queue] = true
	}

	err := r.pubCh.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			MessageId:     correlationID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now().UTC(),
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

func (r *RabbitMQ) Consume(ctx context.Context, queue string, h Handler) error {
	log := r.log.With(zap.String("queue", queue))
	for {
		err := r.consumeOnce(ctx, queue, h, log)
		if ctx.Err() != nil {
			return nil
		}
		if r.isClosed() {
			return ErrClosed
		}
		log.Warn("Consumer stopped, resubscribing", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectBackoff):
		}
	}
}

func (r *RabbitMQ) consumeOnce(ctx context.Context, queue string, h Handler, log *zap.Logger) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("connection not open")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := r.declare(ch, queue); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	log.Info("Consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			r.dispatch(ctx, d, queue, h, log)
		}
	}
}

func (r *RabbitMQ) dispatch(ctx context.Context, d amqp.Delivery, queue string, h Handler, log *zap.Logger) {
	err := h(ctx, Delivery{
		Queue:         queue,
		CorrelationID: d.CorrelationId,
		Body:          d.Body,
		Redelivered:   d.Redelivered,
	})

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("Ack failed", zap.Error(ackErr))
		}
	case ShouldRequeue(err):
		log.Warn("Message requeued", zap.String("correlation_id", d.CorrelationId), zap.Error(err))
		// throttle redelivery of a failing message
		time.Sleep(time.Second)
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("Nack failed", zap.Error(nackErr))
		}
	default:
		log.Error("Message dropped", zap.String("correlation_id", d.CorrelationId), zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("Nack failed", zap.Error(nackErr))
		}
	}
}

func (r *RabbitMQ) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed && r.conn != nil && !r.conn.IsClosed()
}

func (r *RabbitMQ) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	if r.pubCh != nil {
		r.pubCh.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
