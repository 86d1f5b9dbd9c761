package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/circuitbreaker"
	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

func TestUpstream_GetData(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"code":200,"status":"OK","data":{"timings":{"Fajr":"04:30"}}}`))
	}))
	defer srv.Close()

	up := NewUpstream("aladhan", srv.URL+"/v1/", srv.Client(), nil)

	data, err := up.GetData(context.Background(), "/timings/01-03-2025", url.Values{"method": {"1"}})
	if err != nil {
		t.Fatalf("GetData() error = %v", err)
	}

	if got := data.Get("timings.Fajr").String(); got != "04:30" {
		t.Errorf("Fajr = %q, want 04:30", got)
	}
	if gotPath != "/v1/timings/01-03-2025" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "method=1" {
		t.Errorf("query = %s", gotQuery)
	}
}

func TestUpstream_EnvelopeErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"bad request", http.StatusBadRequest, `{"code":400,"status":"BAD_REQUEST","data":"Please specify a valid latitude"}`, domain.ErrInvalidRequest},
		{"not found", http.StatusNotFound, `{"code":404,"status":"NOT FOUND","data":"Not found."}`, domain.ErrNotFound},
		{"server error", http.StatusInternalServerError, `{"code":500,"status":"ERROR","data":"boom"}`, domain.ErrUpstream},
		{"code in body only", http.StatusOK, `{"code":500,"data":"boom"}`, domain.ErrUpstream},
		{"html error page", http.StatusBadGateway, `<html>bad gateway</html>`, domain.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewUpstream("alquran", srv.URL, srv.Client(), nil).GetData(context.Background(), "/surah/1", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetData() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpstream_CircuitBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":404,"data":"Not found."}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":500,"data":"down"}`))
	}))
	defer srv.Close()

	breaker := circuitbreaker.NewInMemory(circuitbreaker.Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
	})
	up := NewUpstream("aladhan", srv.URL, srv.Client(), breaker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		up.GetData(ctx, "/missing", nil)
	}
	if breaker.State(ctx) != circuitbreaker.StateClosed {
		t.Fatal("not-found responses should not trip the breaker")
	}

	up.GetData(ctx, "/timings", nil)
	up.GetData(ctx, "/timings", nil)

	before := calls
	_, err := up.GetData(ctx, "/timings", nil)
	if !errors.Is(err, domain.ErrCircuitBreakerOpen) {
		t.Fatalf("GetData() error = %v, want ErrCircuitBreakerOpen", err)
	}
	if calls != before {
		t.Error("open breaker should skip the network call")
	}
}
