package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator decides whether a notification type may be sent now. A true
// result claims the type for the rest of the window.
type Deduplicator interface {
	ShouldSend(ctx context.Context, t Type) bool
}

type InMemoryDeduplicator struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[Type]time.Time
}

func NewInMemoryDeduplicator(window time.Duration) *InMemoryDeduplicator {
	return &InMemoryDeduplicator{
		window: window,
		now:    time.Now,
		last:   make(map[Type]time.Time),
	}
}

func (d *InMemoryDeduplicator) ShouldSend(ctx context.Context, t Type) bool {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.last[t]; ok && now.Sub(prev) < d.window {
		return false
	}
	d.last[t] = now
	return true
}

// RedisDeduplicator shares claims across instances with SETNX, so only one
// replica alerts per window.
type RedisDeduplicator struct {
	client *redis.Client
	window time.Duration
	prefix string
}

func NewRedisDeduplicator(client *redis.Client, window time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{
		client: client,
		window: window,
		prefix: "ramadan:notify:",
	}
}

// ShouldSend fails open: a Redis outage may duplicate an alert but never
// swallows one.
func (d *RedisDeduplicator) ShouldSend(ctx context.Context, t Type) bool {
	acquired, err := d.client.SetNX(ctx, d.prefix+string(t), time.Now().Unix(), d.window).Result()
	if err != nil {
		slog.Warn("notification dedup unavailable, sending anyway", "type", t, "error", err)
		return true
	}
	return acquired
}
