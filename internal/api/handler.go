// Package api exposes the companion's HTTP surface: recitation feedback,
// prayer times, Quran text and the operator endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/circuitbreaker"
	"github.com/felipepmaragno/ramadan-companion/internal/content"
	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/gemini"
	"github.com/felipepmaragno/ramadan-companion/internal/prayer"
	"github.com/felipepmaragno/ramadan-companion/internal/queue"
	"github.com/felipepmaragno/ramadan-companion/internal/quran"
	"github.com/felipepmaragno/ramadan-companion/internal/ratelimit"
	"github.com/felipepmaragno/ramadan-companion/internal/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultTajweedRPM = 20

type TajweedService interface {
	Analyze(ctx context.Context, req domain.RecitationRequest) (*domain.Analysis, error)
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)
}

type PrayerService interface {
	Timings(ctx context.Context, q prayer.Query, date time.Time) (prayer.DayTimes, error)
	Calendar(ctx context.Context, q prayer.Query, year, month int) ([]prayer.CalendarDay, error)
	RamadanSchedule(ctx context.Context, q prayer.Query, hijriYear int) ([]prayer.RamadanDay, error)
}

type QuranService interface {
	Surahs(ctx context.Context) ([]quran.Surah, error)
	Featured(ctx context.Context) ([]quran.Surah, error)
	Surah(ctx context.Context, number int) (quran.SurahDetail, error)
	Audio(ctx context.Context, number int) (quran.SurahAudio, error)
	Search(ctx context.Context, query, edition string) (quran.SearchResult, error)
}

type HandlerConfig struct {
	Tajweed     TajweedService
	Prayer      PrayerService
	Quran       QuranService
	Analyses    repository.AnalysisRepository
	Queue       queue.Queue
	RateLimiter ratelimit.Limiter
	TajweedRPM  int

	// Content defaults to content.NewLibrary.
	Content *content.Library

	// Admin is mounted under /admin/ when set; wrap it in auth first.
	Admin http.Handler

	Pool          *gemini.Pool
	Breakers      *circuitbreaker.Manager
	Checkers      []HealthChecker
	HealthTimeout time.Duration
	Version       string
}

type Handler struct {
	tajweed     TajweedService
	prayer      PrayerService
	quran       QuranService
	analyses    repository.AnalysisRepository
	queue       queue.Queue
	rateLimiter ratelimit.Limiter
	tajweedRPM  int
	content     *content.Library
	pool        *gemini.Pool
	breakers    *circuitbreaker.Manager
	version     string
	now         func() time.Time
	mux         *http.ServeMux
	root        http.Handler
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.TajweedRPM <= 0 {
		cfg.TajweedRPM = defaultTajweedRPM
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	if cfg.Content == nil {
		cfg.Content = content.NewLibrary()
	}

	h := &Handler{
		tajweed:     cfg.Tajweed,
		prayer:      cfg.Prayer,
		quran:       cfg.Quran,
		analyses:    cfg.Analyses,
		queue:       cfg.Queue,
		rateLimiter: cfg.RateLimiter,
		tajweedRPM:  cfg.TajweedRPM,
		content:     cfg.Content,
		pool:        cfg.Pool,
		breakers:    cfg.Breakers,
		version:     cfg.Version,
		now:         time.Now,
		mux:         http.NewServeMux(),
	}

	h.mux.Handle("POST /api/tajweed/analyze", h.limited("tajweed.analyze", h.handleAnalyze))
	h.mux.Handle("POST /api/tajweed/analyze/async", h.limited("tajweed.analyze_async", h.handleAnalyzeAsync))
	h.mux.Handle("POST /api/tajweed/chat", h.limited("tajweed.chat", h.handleChat))
	h.mux.HandleFunc("GET /api/tajweed/analyses/{id}", h.handleGetAnalysis)
	h.mux.HandleFunc("GET /api/tajweed/rules", h.handleRules)
	h.mux.HandleFunc("GET /api/tajweed/practice-surahs", h.handlePracticeSurahs)

	h.mux.HandleFunc("GET /api/prayer-times", h.handlePrayerTimes)
	h.mux.HandleFunc("GET /api/prayer-times/next", h.handleNextPrayer)
	h.mux.HandleFunc("GET /api/prayer-times/calendar", h.handleCalendar)
	h.mux.HandleFunc("GET /api/prayer-times/ramadan", h.handleRamadan)

	h.mux.HandleFunc("GET /api/quran/surahs", h.handleSurahs)
	h.mux.HandleFunc("GET /api/quran/surahs/featured", h.handleFeaturedSurahs)
	h.mux.HandleFunc("GET /api/quran/surahs/{number}", h.handleSurah)
	h.mux.HandleFunc("GET /api/quran/surahs/{number}/audio", h.handleSurahAudio)
	h.mux.HandleFunc("GET /api/quran/search", h.handleQuranSearch)

	h.mux.HandleFunc("GET /api/locations/cities", h.handleCities)
	h.mux.HandleFunc("GET /api/locations/cities/{name}", h.handleCity)

	h.mux.HandleFunc("GET /api/duas", h.handleDuas)
	h.mux.HandleFunc("GET /api/inspirations", h.handleInspirations)
	h.mux.HandleFunc("GET /api/inspirations/daily", h.handleDailyInspiration)

	if cfg.Admin != nil {
		h.mux.Handle("/admin/", cfg.Admin)
	}

	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.Handle("GET /health/ready", readyHandler(cfg.Checkers, cfg.HealthTimeout, cfg.Version))
	h.mux.Handle("GET /metrics", promhttp.Handler())

	h.root = withRequestID(withMetrics(h.mux))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeDomainError maps service errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, detail(err, domain.ErrInvalidRequest))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, detail(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrKeysExhausted):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusServiceUnavailable, "All API keys exhausted. Please try again later.")
	case errors.Is(err, domain.ErrNoCredentials):
		writeError(w, http.StatusServiceUnavailable, "recitation analysis is not configured")
	case errors.Is(err, domain.ErrCircuitBreakerOpen):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "upstream temporarily unavailable")
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrEmptyResponse):
		slog.Warn("upstream failure", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusBadGateway, upstreamMessage(err))
	default:
		slog.Error("request failed", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// detail strips the wrapping down to the text after the sentinel, so
// "analyze recitation: invalid request: No audio provided" becomes
// "No audio provided".
func detail(err, sentinel error) string {
	if _, after, ok := strings.Cut(err.Error(), sentinel.Error()+": "); ok {
		return after
	}
	return sentinel.Error()
}

// upstreamMessage returns the endpoint's own message, untouched.
func upstreamMessage(err error) string {
	var up *gemini.UpstreamError
	if errors.As(err, &up) && up.Message != "" {
		return up.Message
	}
	if errors.Is(err, domain.ErrEmptyResponse) {
		return domain.ErrEmptyResponse.Error()
	}
	return detail(err, domain.ErrUpstream)
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return errBadBody
	}
	return nil
}

var (
	errBadBody      = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
