package repository

import (
	"context"
	"fmt"
	"time"

	"ride-booking/internal/data/entity"
	"ride-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	FindUnpublished(ctx context.Context, limit int) ([]*entity.OutboxMessage, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type outboxRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewOutboxRepository(db database.PgxIface, log *zap.Logger) OutboxRepository {
	return &outboxRepository{
		db:  db,
		log: log.With(zap.String("repository", "outbox")),
	}
}

func (r *outboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*entity.OutboxMessage, error) {
	query := `
		SELECT id, queue, correlation_id, payload, attempts, last_error, created_at, published_at
		FROM outbox_messages
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.Error("Failed to read outbox", zap.Error(err))
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	defer rows.Close()

	var msgs []*entity.OutboxMessage
	for rows.Next() {
		var m entity.OutboxMessage
		if err := rows.Scan(&m.ID, &m.Queue, &m.CorrelationID, &m.Payload, &m.Attempts, &m.LastError, &m.CreatedAt, &m.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		msgs = append(msgs, &m)
	}

	return msgs, rows.Err()
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE outbox_messages SET published_at = $2, attempts = attempts + 1 WHERE id = $1 AND published_at IS NULL`,
		id, at)
	if err != nil {
		r.log.Error("Failed to mark outbox message published", zap.Error(err), zap.String("message_id", id.String()))
		return fmt.Errorf("mark outbox message %s published: %w", id, err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE outbox_messages SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, reason)
	if err != nil {
		r.log.Error("Failed to record outbox failure", zap.Error(err), zap.String("message_id", id.String()))
		return fmt.Errorf("record outbox message %s failure: %w", id, err)
	}
	return nil
}
