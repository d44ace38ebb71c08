package repository

import (
	"context"
	"fmt"

	"ride-booking/internal/data/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertOutboxQuery = `
	INSERT INTO outbox_messages (id, queue, correlation_id, payload, attempts, created_at)
	VALUES ($1, $2, $3, $4, 0, $5)
`

func insertOutbox(ctx context.Context, q querier, msgs ...*entity.OutboxMessage) error {
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if _, err := q.Exec(ctx, insertOutboxQuery, m.ID, m.Queue, m.CorrelationID, m.Payload, m.CreatedAt); err != nil {
			return fmt.Errorf("insert outbox message for %s: %w", m.Queue, err)
		}
	}
	return nil
}
