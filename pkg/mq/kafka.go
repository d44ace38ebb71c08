package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Kafka maps every queue to a topic. Messages are keyed by correlation id and
// offsets are committed only after the handler returns, so a crash replays the
// uncommitted tail. Kafka has no per-message requeue: a retryable failure is
// retried in place until it succeeds or the consumer stops.
type Kafka struct {
	brokers []string
	groupID string
	config  *sarama.Config
	log     *zap.Logger

	publishTimeout time.Duration

	producer sarama.SyncProducer

	mu     sync.Mutex
	groups []sarama.ConsumerGroup
	closed bool
}

// kafkaConfig builds the sarama config. A positive publish timeout bounds
// both the broker ack wait and each network round trip.
func kafkaConfig(cfg Config) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	config.Producer.Retry.Max = 5
	config.Version = sarama.V2_8_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Offsets.AutoCommit.Enable = true

	if cfg.PublishTimeout > 0 {
		config.Producer.Timeout = cfg.PublishTimeout
		config.Net.DialTimeout = cfg.PublishTimeout
		config.Net.ReadTimeout = cfg.PublishTimeout
		config.Net.WriteTimeout = cfg.PublishTimeout
	}
	return config
}

func NewKafka(ctx context.Context, cfg Config, log *zap.Logger) (*Kafka, error) {
	k := &Kafka{
		brokers:        cfg.KafkaBrokers,
		groupID:        cfg.KafkaGroupID,
		config:         kafkaConfig(cfg),
		publishTimeout: cfg.PublishTimeout,
		log:            log.With(zap.String("broker", DriverKafka)),
	}

	var err error
	for i := 1; i <= dialAttempts; i++ {
		k.producer, err = sarama.NewSyncProducer(k.brokers, k.config)
		if err == nil {
			return k, nil
		}
		k.log.Warn("Waiting for Kafka", zap.Int("attempt", i), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryDelay):
		}
	}
	return nil, fmt.Errorf("start kafka producer: %w", err)
}

// Publish waits for the broker ack until ctx is done, or for the publish
// timeout when ctx has no deadline. A send still in flight when ctx ends may
// yet land.
func (k *Kafka) Publish(ctx context.Context, queue, correlationID string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok && k.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.publishTimeout)
		defer cancel()
	}

	msg := &sarama.ProducerMessage{
		Topic: queue,
		Key:   sarama.StringEncoder(correlationID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("correlation_id"), Value: []byte(correlationID)},
		},
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := k.producer.SendMessage(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("publish to %s: %w", queue, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", queue, ctx.Err())
	}
}

func (k *Kafka) Consume(ctx context.Context, queue string, h Handler) error {
	group, err := sarama.NewConsumerGroup(k.brokers, k.groupID+"."+queue, k.config)
	if err != nil {
		return fmt.Errorf("create consumer group for %s: %w", queue, err)
	}

	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		group.Close()
		return ErrClosed
	}
	k.groups = append(k.groups, group)
	k.mu.Unlock()

	log := k.log.With(zap.String("queue", queue))
	go func() {
		for err := range group.Errors() {
			log.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	handler := &groupHandler{queue: queue, h: h, log: log}
	log.Info("Consumer started")
	for {
		if err := group.Consume(ctx, []string{queue}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return ErrClosed
			}
			log.Error("Consume session ended", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

type groupHandler struct {
	queue string
	h     Handler
	log   *zap.Logger
}

func (g *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (g *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !g.handle(ctx, msg) {
				return nil
			}
			session.MarkMessage(msg, "")
		}
	}
}

// handle returns false when the session ended before the message settled.
func (g *groupHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	d := Delivery{
		Queue:         g.queue,
		CorrelationID: string(msg.Key),
		Body:          msg.Value,
	}

	backoff := time.Second
	for attempt := 1; ; attempt++ {
		err := g.h(ctx, d)
		switch {
		case err == nil:
			return true
		case !ShouldRequeue(err):
			g.log.Error("Message dropped",
				zap.String("correlation_id", d.CorrelationID),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return true
		}

		g.log.Warn("Message retry",
			zap.String("correlation_id", d.CorrelationID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		d.Redelivered = true
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (k *Kafka) Ready() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return !k.closed
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true

	var errs []error
	for _, g := range k.groups {
		errs = append(errs, g.Close())
	}
	errs = append(errs, k.producer.Close())
	return errors.Join(errs...)
}
