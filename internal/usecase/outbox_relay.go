package usecase

import (
	"context"
	"time"

	"ride-booking/internal/data/entity"
	"ride-booking/internal/data/repository"
	"ride-booking/pkg/mq"

	"go.uber.org/zap"
)

// Publisher pushes committed outbox rows to the broker.
type Publisher interface {
	// PublishNow tries each message once. Failures stay in the outbox for the relay.
	PublishNow(ctx context.Context, msgs ...*entity.OutboxMessage)
}

type OutboxRelay struct {
	repo           repository.OutboxRepository
	broker         mq.Broker
	interval       time.Duration
	batchSize      int
	publishTimeout time.Duration
	log            *zap.Logger
}

func NewOutboxRelay(repo repository.OutboxRepository, broker mq.Broker, interval time.Duration, batchSize int, publishTimeout time.Duration, log *zap.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxRelay{
		repo:           repo,
		broker:         broker,
		interval:       interval,
		batchSize:      batchSize,
		publishTimeout: publishTimeout,
		log:            log.With(zap.String("worker", "outbox_relay")),
	}
}

func (r *OutboxRelay) PublishNow(ctx context.Context, msgs ...*entity.OutboxMessage) {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		r.publish(ctx, m)
	}
}

func (r *OutboxRelay) publish(ctx context.Context, m *entity.OutboxMessage) bool {
	pubCtx := ctx
	if r.publishTimeout > 0 {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(ctx, r.publishTimeout)
		defer cancel()
	}

	if err := r.broker.Publish(pubCtx, m.Queue, m.CorrelationID, m.Payload); err != nil {
		r.log.Warn("Publish failed, message left in outbox",
			zap.Error(err),
			zap.String("message_id", m.ID.String()),
			zap.String("queue", m.Queue),
		)
		if markErr := r.repo.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
			r.log.Error("Failed to record publish failure", zap.Error(markErr))
		}
		return false
	}

	// a crash before this update republishes the message; consumers are idempotent
	if err := r.repo.MarkPublished(ctx, m.ID, time.Now().UTC()); err != nil {
		r.log.Error("Failed to mark message published", zap.Error(err), zap.String("message_id", m.ID.String()))
		return false
	}

	r.log.Debug("Message published",
		zap.String("message_id", m.ID.String()),
		zap.String("queue", m.Queue),
		zap.String("correlation_id", m.CorrelationID),
	)
	return true
}

// Flush publishes one batch of pending messages and returns how many went out.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	msgs, err := r.repo.FindUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, m := range msgs {
		if ctx.Err() != nil {
			break
		}
		if r.publish(ctx, m) {
			sent++
		}
	}
	return sent, nil
}

// Run flushes the outbox every interval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("Outbox relay started", zap.Duration("interval", r.interval), zap.Int("batch_size", r.batchSize))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			if !r.broker.Ready() {
				continue
			}
			n, err := r.Flush(ctx)
			if err != nil {
				r.log.Error("Outbox flush failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.log.Info("Outbox flushed", zap.Int("published", n))
			}
		}
	}
}
