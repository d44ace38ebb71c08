package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is an event committed with the entity that produced it and
// published afterwards, possibly more than once.
type OutboxMessage struct {
	ID            uuid.UUID       `db:"id"`
	Queue         string          `db:"queue"`
	CorrelationID string          `db:"correlation_id"`
	Payload       json.RawMessage `db:"payload"`
	Attempts      int             `db:"attempts"`
	LastError     *string         `db:"last_error"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
}

func NewOutboxMessage(queue, correlationID string, payload any, now time.Time) (*OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		ID:            uuid.New(),
		Queue:         queue,
		CorrelationID: correlationID,
		Payload:       body,
		CreatedAt:     now,
	}, nil
}
