package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/metrics"
	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = iota

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// withRequestID echoes X-Request-ID or assigns a fresh one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMetrics records request count and latency labelled by the matched
// route pattern.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.IncrementActiveConnections()
		defer metrics.DecrementActiveConnections()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		metrics.RecordHTTPRequest(route, rec.status, duration.Seconds())

		if route != "GET /metrics" && !strings.HasPrefix(route, "GET /health") {
			slog.Info("request completed",
				"request_id", requestIDFrom(r.Context()),
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"latency_ms", duration.Milliseconds(),
			)
		}
	})
}

// limited applies the per-client tajweed quota to fn.
func (h *Handler) limited(route string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.rateLimiter == nil {
			fn(w, r)
			return
		}

		client := clientIP(r)
		decision, err := h.rateLimiter.Allow(r.Context(), "tajweed:"+client, h.tajweedRPM)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err, "request_id", requestIDFrom(r.Context()))
			fn(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.tajweedRPM))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", decision.ResetAt.Format(time.RFC3339))

		if !decision.Allowed {
			metrics.RecordRateLimitHit(route)
			slog.Warn("rate limit exceeded", "client", client, "route", route, "request_id", requestIDFrom(r.Context()))
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(time.Until(decision.ResetAt).Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		fn(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, set by the load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
