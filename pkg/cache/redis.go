package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// EventGuard remembers gateway event ids that were fully processed so exact
// replays can be acknowledged without touching the database. It is an
// optimisation only; a miss falls through to the idempotent status check.
type EventGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type redisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEventGuard(client *redis.Client, ttl time.Duration) EventGuard {
	return &redisGuard{client: client, ttl: ttl}
}

func eventKey(eventID string) string {
	return "payments:event:" + eventID
}

func (g *redisGuard) Seen(ctx context.Context, eventID string) (bool, error) {
	err := g.client.Get(ctx, eventKey(eventID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", eventID, err)
	}
	return true, nil
}

// Mark keeps the first timestamp written for an event.
func (g *redisGuard) Mark(ctx context.Context, eventID string) error {
	if err := g.client.SetNX(ctx, eventKey(eventID), time.Now().UTC().Format(time.RFC3339), g.ttl).Err(); err != nil {
		return fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return nil
}

type noopGuard struct{}

// NoopEventGuard is used when Redis is disabled.
func NoopEventGuard() EventGuard { return noopGuard{} }

func (noopGuard) Seen(context.Context, string) (bool, error) { return false, nil }
func (noopGuard) Mark(context.Context, string) error         { return nil }
