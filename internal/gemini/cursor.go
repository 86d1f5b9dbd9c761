package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Cursor is the rotation state shared by every draw from a Pool.
// Next returns the current position and advances it by one, modulo size.
type Cursor interface {
	Next(ctx context.Context, size int) (int, error)
	Position(ctx context.Context, size int) (int, error)
	Reset(ctx context.Context) error
}

// InMemoryCursor serializes draws within a single process.
type InMemoryCursor struct {
	mu  sync.Mutex
	pos int
}

func NewInMemoryCursor() *InMemoryCursor {
	return &InMemoryCursor{}
}

func (c *InMemoryCursor) Next(ctx context.Context, size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("cursor size must be positive, got %d", size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.pos % size
	c.pos = (i + 1) % size
	return i, nil
}

func (c *InMemoryCursor) Position(ctx context.Context, size int) (int, error) {
	if size <= 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos % size, nil
}

func (c *InMemoryCursor) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = 0
	return nil
}

func (c *InMemoryCursor) seek(pos int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = pos
}

// RedisCursor shares the rotation position across instances with INCR.
// When Redis is unreachable draws fall back to a process-local cursor so
// the pool keeps rotating.
type RedisCursor struct {
	client   *redis.Client
	key      string
	fallback *InMemoryCursor
}

func NewRedisCursor(client *redis.Client, key string) *RedisCursor {
	if key == "" {
		key = "gemini:cursor"
	}
	return &RedisCursor{
		client:   client,
		key:      key,
		fallback: NewInMemoryCursor(),
	}
}

func (c *RedisCursor) Next(ctx context.Context, size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("cursor size must be positive, got %d", size)
	}

	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		slog.Warn("redis cursor unavailable, using local rotation", "error", err)
		return c.fallback.Next(ctx, size)
	}

	// Keep the local cursor one step behind Redis so an outage mid-dispatch
	// continues the rotation instead of restarting it.
	c.fallback.seek(int(n % int64(size)))
	return int((n - 1) % int64(size)), nil
}

func (c *RedisCursor) Position(ctx context.Context, size int) (int, error) {
	if size <= 0 {
		return 0, nil
	}

	n, err := c.client.Get(ctx, c.key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}

	return int(n % int64(size)), nil
}

func (c *RedisCursor) Reset(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}
	return c.fallback.Reset(ctx)
}
