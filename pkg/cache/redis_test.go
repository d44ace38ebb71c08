package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestNoopGuardNeverRemembers(t *testing.T) {
	g := NoopEventGuard()
	if err := g.Mark(context.Background(), "evt_1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err := g.Seen(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("noop guard must report unseen, got %v %v", seen, err)
	}
}

func TestEventKeyIsNamespaced(t *testing.T) {
	if got := eventKey("evt_1"); got != "payments:event:evt_1" {
		t.Fatalf("got %q", got)
	}
}

func newRedisGuard(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, EventGuard) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := ConnectRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisEventGuard(client, ttl)
}

func TestRedisGuard_MarkThenSeen(t *testing.T) {
	ctx := context.Background()
	mr, g := newRedisGuard(t, time.Hour)

	seen, err := g.Seen(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("fresh event reported seen: %v %v", seen, err)
	}

	if err := g.Mark(ctx, "evt_1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err = g.Seen(ctx, "evt_1")
	if err != nil || !seen {
		t.Fatalf("marked event reported unseen: %v %v", seen, err)
	}
	if ttl := mr.TTL(eventKey("evt_1")); ttl != time.Hour {
		t.Fatalf("ttl %s want 1h", ttl)
	}

	if seen, _ := g.Seen(ctx, "evt_2"); seen {
		t.Fatalf("other events must stay unseen")
	}
}

func TestRedisGuard_MarkKeepsFirstValue(t *testing.T) {
	ctx := context.Background()
	mr, g := newRedisGuard(t, time.Hour)

	if err := mr.Set(eventKey("evt_1"), "first"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := g.Mark(ctx, "evt_1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, err := mr.Get(eventKey("evt_1"))
	if err != nil || got != "first" {
		t.Fatalf("value %q %v, want first", got, err)
	}
}

func TestRedisGuard_Expires(t *testing.T) {
	ctx := context.Background()
	mr, g := newRedisGuard(t, time.Minute)

	if err := g.Mark(ctx, "evt_1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	seen, err := g.Seen(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("expired event reported seen: %v %v", seen, err)
	}
}

func TestRedisGuard_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	g := NewRedisEventGuard(client, time.Hour)
	mr.Close()

	if _, err := g.Seen(context.Background(), "evt_1"); err == nil {
		t.Fatalf("expected an error with redis down")
	}
	if err := g.Mark(context.Background(), "evt_1"); err == nil {
		t.Fatalf("expected an error with redis down")
	}
}
