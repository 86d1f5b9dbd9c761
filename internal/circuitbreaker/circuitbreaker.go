// Package circuitbreaker stops calling a content upstream (aladhan,
// alquran) after repeated failures and retries it after a cool-down.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/metrics"
	"github.com/redis/go-redis/v9"
)

type Breaker interface {
	Allow(ctx context.Context) error
	RecordSuccess(ctx context.Context)
	RecordFailure(ctx context.Context)
	State(ctx context.Context) State
}

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func parseState(s string) State {
	switch s {
	case "open":
		return StateOpen
	case "half-open":
		return StateHalfOpen
	default:
		return StateClosed
	}
}

type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Do runs fn through b. Client-side errors (bad input, unknown resource,
// cancelled context) do not count against the upstream.
func Do(ctx context.Context, b Breaker, fn func(context.Context) error) error {
	if err := b.Allow(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	switch {
	case err == nil:
		b.RecordSuccess(ctx)
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, context.Canceled):
	default:
		b.RecordFailure(ctx)
	}
	return err
}

type InMemoryBreaker struct {
	mu       sync.Mutex
	cfg      Config
	now      func() time.Time
	state    State
	failures int
	succ     int
	openedAt time.Time
}

func NewInMemory(cfg Config) *InMemoryBreaker {
	return &InMemoryBreaker{cfg: cfg, now: time.Now}
}

func (b *InMemoryBreaker) Allow(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
		return domain.ErrCircuitBreakerOpen
	}

	b.state = StateHalfOpen
	b.succ = 0
	return nil
}

func (b *InMemoryBreaker) RecordSuccess(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.succ++
		if b.succ >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.succ = 0
		}
	}
}

func (b *InMemoryBreaker) RecordFailure(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

func (b *InMemoryBreaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.succ = 0
}

func (b *InMemoryBreaker) State(ctx context.Context) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// observed publishes every state change of the wrapped breaker as the
// ramadan_circuit_breaker_state gauge.
type observed struct {
	Breaker
	upstream string
}

func (o observed) publish(ctx context.Context) {
	metrics.SetCircuitBreakerState(o.upstream, int(o.Breaker.State(ctx)))
}

func (o observed) Allow(ctx context.Context) error {
	err := o.Breaker.Allow(ctx)
	o.publish(ctx)
	return err
}

func (o observed) RecordSuccess(ctx context.Context) {
	o.Breaker.RecordSuccess(ctx)
	o.publish(ctx)
}

func (o observed) RecordFailure(ctx context.Context) {
	o.Breaker.RecordFailure(ctx)
	o.publish(ctx)
}

// Manager hands out one breaker per upstream name.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]Breaker
	factory  func(upstream string) Breaker
}

type ManagerOption func(*Manager)

// WithRedisClient shares breaker state across instances.
func WithRedisClient(client *redis.Client) ManagerOption {
	return func(m *Manager) {
		m.factory = func(upstream string) Breaker {
			return NewRedis(client, upstream, m.cfg)
		}
	}
}

func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg,
		breakers: make(map[string]Breaker),
	}
	m.factory = func(string) Breaker { return NewInMemory(m.cfg) }

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Get(upstream string) Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[upstream]; ok {
		return b
	}

	b := observed{Breaker: m.factory(upstream), upstream: upstream}
	m.breakers[upstream] = b
	return b
}

func (m *Manager) States(ctx context.Context) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]string, len(m.breakers))
	for name, b := range m.breakers {
		states[name] = b.State(ctx).String()
	}
	return states
}
