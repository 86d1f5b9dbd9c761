package circuitbreaker

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/redis/go-redis/v9"
)

// transitionScript applies one event to the breaker hash atomically.
// KEYS[1] breaker hash
// ARGV: event (allow|success|failure), now_ms, failure_threshold,
// success_threshold, cooldown_ms
var transitionScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state') or 'closed'
local event = ARGV[1]
local now = tonumber(ARGV[2])

if event == 'allow' then
    if state == 'open' then
        local opened = tonumber(redis.call('HGET', KEYS[1], 'opened_at') or '0')
        if now - opened >= tonumber(ARGV[5]) then
            redis.call('HSET', KEYS[1], 'state', 'half-open', 'successes', '0')
            return 'half-open'
        end
    end
    return state
end

if event == 'success' then
    if state == 'closed' then
        redis.call('HSET', KEYS[1], 'failures', '0')
    elseif state == 'half-open' then
        local n = redis.call('HINCRBY', KEYS[1], 'successes', 1)
        if n >= tonumber(ARGV[4]) then
            redis.call('HSET', KEYS[1], 'state', 'closed', 'failures', '0', 'successes', '0')
            return 'closed'
        end
    end
    return state
end

if state == 'closed' then
    local n = redis.call('HINCRBY', KEYS[1], 'failures', 1)
    if n >= tonumber(ARGV[3]) then
        redis.call('HSET', KEYS[1], 'state', 'open', 'opened_at', ARGV[2], 'successes', '0')
        return 'open'
    end
elseif state == 'half-open' then
    redis.call('HSET', KEYS[1], 'state', 'open', 'opened_at', ARGV[2], 'successes', '0')
    return 'open'
end
return state
`)

// RedisBreaker keeps breaker state in a Redis hash so every instance sees
// the same upstream health. Redis errors fail open.
type RedisBreaker struct {
	client   *redis.Client
	key      string
	upstream string
	cfg      Config
	now      func() time.Time
}

func NewRedis(client *redis.Client, upstream string, cfg Config) *RedisBreaker {
	return &RedisBreaker{
		client:   client,
		key:      "ramadan:cb:" + upstream,
		upstream: upstream,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (b *RedisBreaker) run(ctx context.Context, event string) (string, error) {
	return transitionScript.Run(ctx, b.client, []string{b.key},
		event,
		b.now().UnixMilli(),
		b.cfg.FailureThreshold,
		b.cfg.SuccessThreshold,
		b.cfg.Cooldown.Milliseconds(),
	).Text()
}

func (b *RedisBreaker) Allow(ctx context.Context) error {
	state, err := b.run(ctx, "allow")
	if err != nil {
		slog.Warn("circuit breaker state unavailable, allowing", "upstream", b.upstream, "error", err)
		return nil
	}
	if state == "open" {
		return domain.ErrCircuitBreakerOpen
	}
	return nil
}

func (b *RedisBreaker) RecordSuccess(ctx context.Context) {
	if _, err := b.run(ctx, "success"); err != nil {
		slog.Warn("record breaker success failed", "upstream", b.upstream, "error", err)
	}
}

func (b *RedisBreaker) RecordFailure(ctx context.Context) {
	if _, err := b.run(ctx, "failure"); err != nil {
		slog.Warn("record breaker failure failed", "upstream", b.upstream, "error", err)
	}
}

func (b *RedisBreaker) State(ctx context.Context) State {
	s, err := b.client.HGet(ctx, b.key, "state").Result()
	if err != nil {
		return StateClosed
	}
	return parseState(s)
}

func (b *RedisBreaker) Failures(ctx context.Context) int {
	n, err := b.client.HGet(ctx, b.key, "failures").Result()
	if err != nil {
		return 0
	}
	v, _ := strconv.Atoi(n)
	return v
}

func (b *RedisBreaker) Reset(ctx context.Context) error {
	return b.client.Del(ctx, b.key).Err()
}
