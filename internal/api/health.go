package api

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HealthChecker is one readiness dependency.
type HealthChecker interface {
	Check(ctx context.Context) error
	Name() string
}

type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

type RedisHealthChecker struct {
	client *redis.Client
}

func NewRedisHealthChecker(client *redis.Client) *RedisHealthChecker {
	return &RedisHealthChecker{client: client}
}

func (c *RedisHealthChecker) Name() string { return "redis" }

func (c *RedisHealthChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

type PostgresHealthChecker struct {
	db *sql.DB
}

func NewPostgresHealthChecker(db *sql.DB) *PostgresHealthChecker {
	return &PostgresHealthChecker{db: db}
}

func (c *PostgresHealthChecker) Name() string { return "postgres" }

func (c *PostgresHealthChecker) Check(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// runChecks runs every checker concurrently and reports whether all passed.
func runChecks(ctx context.Context, checkers []HealthChecker) (map[string]CheckResult, bool) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checkers))
		healthy = true
	)

	for _, c := range checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)
			res := CheckResult{Status: "ok", Duration: time.Since(start).String()}
			if err != nil {
				res.Status = "error"
				res.Error = err.Error()
			}

			mu.Lock()
			results[c.Name()] = res
			if err != nil {
				healthy = false
			}
			mu.Unlock()
		}(c)
	}

	wg.Wait()
	return results, healthy
}

func readyHandler(checkers []HealthChecker, timeout time.Duration, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results, healthy := runChecks(ctx, checkers)

		status, code := "ready", http.StatusOK
		if !healthy {
			status, code = "not_ready", http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]any{
			"status":  status,
			"version": version,
			"checks":  results,
		})
	}
}

// handleHealth summarises the service. Without Gemini keys the companion
// still serves prayer and Quran data, so it reports degraded, not down.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	keys := 0
	if h.pool != nil {
		keys = h.pool.Size()
	}
	if keys == 0 {
		status = "degraded"
	}

	resp := map[string]any{
		"status":      status,
		"version":     h.version,
		"gemini_keys": keys,
	}
	if h.breakers != nil {
		resp["circuit_breakers"] = h.breakers.States(r.Context())
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
