package mq

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Memory is an in-process broker for single-binary development and tests.
// Messages are lost on restart.
type Memory struct {
	log *zap.Logger

	mu     sync.Mutex
	queues map[string]chan Delivery
	closed bool
	done   chan struct{}
}

func NewMemory(log *zap.Logger) *Memory {
	return &Memory{
		log:    log.With(zap.String("broker", DriverMemory)),
		queues: make(map[string]chan Delivery),
		done:   make(chan struct{}),
	}
}

func (m *Memory) queue(name string) chan Delivery {
	q, ok := m.queues[name]
	if !ok {
		q = make(chan Delivery, 1024)
		m.queues[name] = q
	}
	return q
}

func (m *Memory) Publish(ctx context.Context, queue, correlationID string, body []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	q := m.queue(queue)
	m.mu.Unlock()

	d := Delivery{Queue: queue, CorrelationID: correlationID, Body: append([]byte(nil), body...)}
	select {
	case q <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Consume(ctx context.Context, queue string, h Handler) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	q := m.queue(queue)
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return ErrClosed
		case d := <-q:
			err := h(ctx, d)
			if ShouldRequeue(err) {
				d.Redelivered = true
				time.AfterFunc(100*time.Millisecond, func() {
					select {
					case q <- d:
					default:
						m.log.Error("Requeue dropped, queue full", zap.String("queue", queue))
					}
				})
			} else if err != nil {
				m.log.Error("Message dropped", zap.String("queue", queue), zap.Error(err))
			}
		}
	}
}

// Pending returns the number of undelivered messages on queue.
func (m *Memory) Pending(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue(queue))
}

func (m *Memory) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
