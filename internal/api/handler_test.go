package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/auth"
	"github.com/felipepmaragno/ramadan-companion/internal/circuitbreaker"
	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/gemini"
	"github.com/felipepmaragno/ramadan-companion/internal/prayer"
	"github.com/felipepmaragno/ramadan-companion/internal/queue"
	"github.com/felipepmaragno/ramadan-companion/internal/quran"
	"github.com/felipepmaragno/ramadan-companion/internal/ratelimit"
	"github.com/felipepmaragno/ramadan-companion/internal/repository"
)

type MockTajweedService struct {
	AnalyzeFunc func(ctx context.Context, req domain.RecitationRequest) (*domain.Analysis, error)
	ChatFunc    func(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)
}

func (m *MockTajweedService) Analyze(ctx context.Context, req domain.RecitationRequest) (*domain.Analysis, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *MockTajweedService) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type MockPrayerService struct {
	TimingsFunc         func(ctx context.Context, q prayer.Query, date time.Time) (prayer.DayTimes, error)
	CalendarFunc        func(ctx context.Context, q prayer.Query, year, month int) ([]prayer.CalendarDay, error)
	RamadanScheduleFunc func(ctx context.Context, q prayer.Query, hijriYear int) ([]prayer.RamadanDay, error)
}

func (m *MockPrayerService) Timings(ctx context.Context, q prayer.Query, date time.Time) (prayer.DayTimes, error) {
	if m.TimingsFunc != nil {
		return m.TimingsFunc(ctx, q, date)
	}
	return prayer.DayTimes{}, errors.New("not implemented")
}

func (m *MockPrayerService) Calendar(ctx context.Context, q prayer.Query, year, month int) ([]prayer.CalendarDay, error) {
	if m.CalendarFunc != nil {
		return m.CalendarFunc(ctx, q, year, month)
	}
	return nil, errors.New("not implemented")
}

func (m *MockPrayerService) RamadanSchedule(ctx context.Context, q prayer.Query, hijriYear int) ([]prayer.RamadanDay, error) {
	if m.RamadanScheduleFunc != nil {
		return m.RamadanScheduleFunc(ctx, q, hijriYear)
	}
	return nil, errors.New("not implemented")
}

type MockQuranService struct {
	SurahsFunc   func(ctx context.Context) ([]quran.Surah, error)
	FeaturedFunc func(ctx context.Context) ([]quran.Surah, error)
	SurahFunc    func(ctx context.Context, number int) (quran.SurahDetail, error)
	AudioFunc    func(ctx context.Context, number int) (quran.SurahAudio, error)
	SearchFunc   func(ctx context.Context, query, edition string) (quran.SearchResult, error)
}

func (m *MockQuranService) Surahs(ctx context.Context) ([]quran.Surah, error) {
	if m.SurahsFunc != nil {
		return m.SurahsFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *MockQuranService) Featured(ctx context.Context) ([]quran.Surah, error) {
	if m.FeaturedFunc != nil {
		return m.FeaturedFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *MockQuranService) Surah(ctx context.Context, number int) (quran.SurahDetail, error) {
	if m.SurahFunc != nil {
		return m.SurahFunc(ctx, number)
	}
	return quran.SurahDetail{}, errors.New("not implemented")
}

func (m *MockQuranService) Audio(ctx context.Context, number int) (quran.SurahAudio, error) {
	if m.AudioFunc != nil {
		return m.AudioFunc(ctx, number)
	}
	return quran.SurahAudio{}, errors.New("not implemented")
}

func (m *MockQuranService) Search(ctx context.Context, query, edition string) (quran.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, edition)
	}
	return quran.SearchResult{}, errors.New("not implemented")
}

type failingChecker struct{ name string }

func (c failingChecker) Name() string                    { return c.name }
func (c failingChecker) Check(ctx context.Context) error { return errors.New("connection refused") }

const testAudio = "ZmFrZSB3ZWJtIGJ5dGVz"

func newTestHandler(cfg HandlerConfig) *Handler {
	if cfg.Tajweed == nil {
		cfg.Tajweed = &MockTajweedService{}
	}
	if cfg.Prayer == nil {
		cfg.Prayer = &MockPrayerService{}
	}
	if cfg.Quran == nil {
		cfg.Quran = &MockQuranService{}
	}
	return NewHandler(cfg)
}

func do(h http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHandler_Analyze(t *testing.T) {
	var got domain.RecitationRequest
	h := newTestHandler(HandlerConfig{
		Tajweed: &MockTajweedService{
			AnalyzeFunc: func(_ context.Context, req domain.RecitationRequest) (*domain.Analysis, error) {
				got = req
				return &domain.Analysis{OverallScore: 91, Summary: "Well done"}, nil
			},
		},
	})

	rec := do(h, http.MethodPost, "/api/tajweed/analyze", domain.RecitationRequest{AudioBase64: testAudio, SurahNumber: 112})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	body := decode(t, rec)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	analysis := body["analysis"].(map[string]any)
	if analysis["overallScore"] != float64(91) {
		t.Errorf("overallScore = %v", analysis["overallScore"])
	}
	if got.SurahNumber != 112 || got.AudioBase64 != testAudio {
		t.Errorf("request = %+v", got)
	}
}

func TestHandler_AnalyzeRawFallback(t *testing.T) {
	h := newTestHandler(HandlerConfig{
		Tajweed: &MockTajweedService{
			AnalyzeFunc: func(context.Context, domain.RecitationRequest) (*domain.Analysis, error) {
				return &domain.Analysis{RawResponse: "Your recitation was clear."}, nil
			},
		},
	})

	rec := do(h, http.MethodPost, "/api/tajweed/analyze", domain.RecitationRequest{AudioBase64: testAudio})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	analysis := decode(t, rec)["analysis"].(map[string]any)
	if len(analysis) != 1 || analysis["rawResponse"] != "Your recitation was clear." {
		t.Errorf("analysis = %v, want only rawResponse", analysis)
	}
}

func TestHandler_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "no audio",
			err:        fmt.Errorf("%w: No audio provided", domain.ErrInvalidRequest),
			wantStatus: http.StatusBadRequest,
			wantError:  "No audio provided",
		},
		{
			name:       "keys exhausted",
			err:        fmt.Errorf("analyze recitation: %w", &gemini.ExhaustedError{Attempts: 3}),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "All API keys exhausted. Please try again later.",
		},
		{
			name:       "no credentials",
			err:        fmt.Errorf("analyze recitation: %w", domain.ErrNoCredentials),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "recitation analysis is not configured",
		},
		{
			name:       "upstream",
			err:        fmt.Errorf("analyze recitation: %w", &gemini.UpstreamError{StatusCode: 400, Message: "Invalid audio format"}),
			wantStatus: http.StatusBadGateway,
			wantError:  "Invalid audio format",
		},
		{
			name:       "upstream message with colons",
			err:        fmt.Errorf("analyze recitation: %w", &gemini.UpstreamError{StatusCode: 400, Message: "* GenerateContentRequest.contents: contents is not specified"}),
			wantStatus: http.StatusBadGateway,
			wantError:  "* GenerateContentRequest.contents: contents is not specified",
		},
		{
			name:       "empty response",
			err:        fmt.Errorf("analyze recitation: %w", domain.ErrEmptyResponse),
			wantStatus: http.StatusBadGateway,
			wantError:  "no response from Gemini",
		},
		{
			name:       "content upstream",
			err:        fmt.Errorf("fetch surah: %w: alquran returned 500: db: timeout", domain.ErrUpstream),
			wantStatus: http.StatusBadGateway,
			wantError:  "alquran returned 500: db: timeout",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(HandlerConfig{
				Tajweed: &MockTajweedService{
					AnalyzeFunc: func(context.Context, domain.RecitationRequest) (*domain.Analysis, error) {
						return nil, tt.err
					},
				},
			})

			rec := do(h, http.MethodPost, "/api/tajweed/analyze", domain.RecitationRequest{AudioBase64: testAudio})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decode(t, rec)["error"]; got != tt.wantError {
				t.Errorf("error = %v, want %q", got, tt.wantError)
			}
		})
	}
}

func TestHandler_AnalyzeBadBody(t *testing.T) {
	h := newTestHandler(HandlerConfig{})

	rec := do(h, http.MethodPost, "/api/tajweed/analyze", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_Chat(t *testing.T) {
	h := newTestHandler(HandlerConfig{
		Tajweed: &MockTajweedService{
			ChatFunc: func(_ context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
				if req.Context == nil || req.Context.OverallScore != 70 {
					t.Errorf("context = %+v", req.Context)
				}
				return &domain.ChatReply{Reply: "Practice daily", ReplyBn: "প্রতিদিন অনুশীলন করুন", Tip: "Slow down"}, nil
			},
		},
	})

	rec := do(h, http.MethodPost, "/api/tajweed/chat", `{"message":"How do I improve?","context":{"overallScore":70}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	body := decode(t, rec)
	if body["success"] != true || body["reply"] != "Practice daily" || body["tip"] != "Slow down" {
		t.Errorf("body = %v", body)
	}
	if _, nested := body["ChatReply"]; nested {
		t.Error("reply fields should be flattened into the response")
	}
}

func TestHandler_RateLimit(t *testing.T) {
	h := newTestHandler(HandlerConfig{
		Tajweed: &MockTajweedService{
			ChatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatReply, error) {
				return &domain.ChatReply{Reply: "ok"}, nil
			},
		},
		RateLimiter: ratelimit.NewInMemoryLimiter(time.Minute),
		TajweedRPM:  2,
	})

	for i := 0; i < 2; i++ {
		rec := do(h, http.MethodPost, "/api/tajweed/chat", `{"message":"hi"}`, "X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec := do(h, http.MethodPost, "/api/tajweed/chat", `{"message":"hi"}`, "X-Forwarded-For", "203.0.113.7")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" || rec.Header().Get("Retry-After") == "" {
		t.Errorf("headers = %v", rec.Header())
	}

	rec = do(h, http.MethodPost, "/api/tajweed/chat", `{"message":"hi"}`, "X-Forwarded-For", "198.51.100.2")
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}

	rec = do(h, http.MethodGet, "/api/tajweed/rules", nil, "X-Forwarded-For", "203.0.113.7")
	if rec.Code != http.StatusOK {
		t.Errorf("reference data should not be limited, status = %d", rec.Code)
	}
}

func TestHandler_AnalyzeAsync(t *testing.T) {
	q := queue.NewInMemoryQueue()
	repo := repository.NewInMemoryAnalysisRepository()
	h := newTestHandler(HandlerConfig{Queue: q, Analyses: repo})

	rec := do(h, http.MethodPost, "/api/tajweed/analyze/async", domain.RecitationRequest{AudioBase64: testAudio, SurahNumber: 1, AyahRange: "1-7"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	body := decode(t, rec)
	id, _ := body["id"].(string)
	if id == "" || body["status"] != "pending" {
		t.Fatalf("body = %v", body)
	}
	if rec.Header().Get("Location") != "/api/tajweed/analyses/"+id {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1", q.Len())
	}

	if err := repo.Complete(context.Background(), id, &domain.Analysis{OverallScore: 80}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	rec = do(h, http.MethodGet, "/api/tajweed/analyses/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decode(t, rec)
	if got["status"] != "completed" || got["surahNumber"] != float64(1) || got["ayahRange"] != "1-7" {
		t.Errorf("record = %v", got)
	}

	rec = do(h, http.MethodGet, "/api/tajweed/analyses/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestHandler_AnalyzeAsync_Invalid(t *testing.T) {
	q := queue.NewInMemoryQueue()
	h := newTestHandler(HandlerConfig{Queue: q, Analyses: repository.NewInMemoryAnalysisRepository()})

	rec := do(h, http.MethodPost, "/api/tajweed/analyze/async", domain.RecitationRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if decode(t, rec)["error"] != "No audio provided" {
		t.Errorf("body = %s", rec.Body)
	}
	if q.Len() != 0 {
		t.Error("invalid request should not be queued")
	}
}

func TestHandler_AnalyzeAsync_Disabled(t *testing.T) {
	h := newTestHandler(HandlerConfig{})

	rec := do(h, http.MethodPost, "/api/tajweed/analyze/async", domain.RecitationRequest{AudioBase64: testAudio})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandler_Rules(t *testing.T) {
	h := newTestHandler(HandlerConfig{})

	body := decode(t, do(h, http.MethodGet, "/api/tajweed/rules", nil))
	if rules := body["rules"].([]any); len(rules) != 9 {
		t.Errorf("len(rules) = %d, want 9", len(rules))
	}
	if sev := body["severities"].([]any); len(sev) != 4 {
		t.Errorf("len(severities) = %d, want 4", len(sev))
	}

	body = decode(t, do(h, http.MethodGet, "/api/tajweed/practice-surahs?difficulty=advanced", nil))
	if surahs := body["surahs"].([]any); len(surahs) != 3 {
		t.Errorf("len(surahs) = %d, want 3", len(surahs))
	}
}

var sampleDay = prayer.DayTimes{
	Timings: prayer.Timings{
		Fajr: "04:52", Sunrise: "06:07", Dhuhr: "12:09", Asr: "16:26",
		Maghrib: "18:11", Isha: "19:26", Suhur: "04:52", Iftar: "18:11",
	},
	Meta:      prayer.Meta{Timezone: "UTC"},
	HijriDate: prayer.HijriDate{Day: "01", MonthNumber: 9, Year: "1446"},
}

func TestHandler_PrayerTimes(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantLat    float64
		wantMethod int
		wantDate   string
	}{
		{"default city", "/api/prayer-times", http.StatusOK, 23.8103, 1, "01-03-2025"},
		{"named city", "/api/prayer-times?city=london&method=3", http.StatusOK, 51.5074, 3, "01-03-2025"},
		{"bangla city", "/api/prayer-times?city=" + url.QueryEscape("সিলেট"), http.StatusOK, 24.8949, 1, "01-03-2025"},
		{"coordinates and date", "/api/prayer-times?lat=21.4225&lng=39.8262&date=15-03-2025", http.StatusOK, 21.4225, 1, "15-03-2025"},
		{"unknown city", "/api/prayer-times?city=atlantis", http.StatusNotFound, 0, 0, ""},
		{"half coordinates", "/api/prayer-times?lat=21.4", http.StatusBadRequest, 0, 0, ""},
		{"bad date", "/api/prayer-times?date=2025-03-01", http.StatusBadRequest, 0, 0, ""},
		{"bad method", "/api/prayer-times?method=karachi", http.StatusBadRequest, 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery prayer.Query
			var gotDate time.Time
			h := newTestHandler(HandlerConfig{
				Prayer: &MockPrayerService{
					TimingsFunc: func(_ context.Context, q prayer.Query, date time.Time) (prayer.DayTimes, error) {
						gotQuery, gotDate = q, date
						return sampleDay, nil
					},
				},
			})
			h.now = func() time.Time { return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC) }

			rec := do(h, http.MethodGet, tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			if gotQuery.Latitude != tt.wantLat || gotQuery.Method != tt.wantMethod {
				t.Errorf("query = %+v", gotQuery)
			}
			if gotDate.Format("02-01-2006") != tt.wantDate {
				t.Errorf("date = %s, want %s", gotDate.Format("02-01-2006"), tt.wantDate)
			}
			if decode(t, rec)["isRamadan"] != true {
				t.Error("isRamadan should be true for Hijri month 9")
			}
		})
	}
}

func TestHandler_NextPrayer(t *testing.T) {
	h := newTestHandler(HandlerConfig{
		Prayer: &MockPrayerService{
			TimingsFunc: func(context.Context, prayer.Query, time.Time) (prayer.DayTimes, error) {
				return sampleDay, nil
			},
		},
	})
	h.now = func() time.Time { return time.Date(2025, time.March, 1, 17, 0, 0, 0, time.UTC) }

	rec := do(h, http.MethodGet, "/api/prayer-times/next", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	body := decode(t, rec)
	next := body["next"].(map[string]any)
	if next["name"] != "Maghrib" || next["isIftar"] != true {
		t.Errorf("next = %v", next)
	}
	remaining := body["remaining"].(map[string]any)
	if remaining["totalSeconds"] != float64(71*60) {
		t.Errorf("remaining = %v", remaining)
	}
}

func TestHandler_Calendar(t *testing.T) {
	var gotYear, gotMonth int
	h := newTestHandler(HandlerConfig{
		Prayer: &MockPrayerService{
			CalendarFunc: func(_ context.Context, _ prayer.Query, year, month int) ([]prayer.CalendarDay, error) {
				gotYear, gotMonth = year, month
				if month > 12 {
					return nil, fmt.Errorf("%w: month %d outside 1..12", domain.ErrInvalidRequest, month)
				}
				return []prayer.CalendarDay{{Date: "01-03-2025", IsRamadan: true}}, nil
			},
		},
	})
	h.now = func() time.Time { return time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC) }

	rec := do(h, http.MethodGet, "/api/prayer-times/calendar", nil)
	if rec.Code != http.StatusOK || gotYear != 2025 || gotMonth != 3 {
		t.Errorf("status = %d, year/month = %d/%d", rec.Code, gotYear, gotMonth)
	}

	rec = do(h, http.MethodGet, "/api/prayer-times/calendar?year=2026&month=13", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_Ramadan(t *testing.T) {
	var gotYear int
	svc := &MockPrayerService{
		TimingsFunc: func(context.Context, prayer.Query, time.Time) (prayer.DayTimes, error) {
			day := sampleDay
			day.HijriDate.MonthNumber = 10
			return day, nil
		},
		RamadanScheduleFunc: func(_ context.Context, _ prayer.Query, hijriYear int) ([]prayer.RamadanDay, error) {
			gotYear = hijriYear
			return []prayer.RamadanDay{{RamadanDay: 1, Suhur: "04:52", Iftar: "18:11"}}, nil
		},
	}
	h := newTestHandler(HandlerConfig{Prayer: svc})

	rec := do(h, http.MethodGet, "/api/prayer-times/ramadan", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if gotYear != 1447 {
		t.Errorf("hijriYear = %d, want 1447 (Shawwal rolls to next Ramadan)", gotYear)
	}

	do(h, http.MethodGet, "/api/prayer-times/ramadan?hijriYear=1450", nil)
	if gotYear != 1450 {
		t.Errorf("hijriYear = %d, want 1450", gotYear)
	}
}

func TestHandler_PrayerUpstreamDown(t *testing.T) {
	h := newTestHandler(HandlerConfig{
		Prayer: &MockPrayerService{
			TimingsFunc: func(context.Context, prayer.Query, time.Time) (prayer.DayTimes, error) {
				return prayer.DayTimes{}, fmt.Errorf("fetch prayer times: %w", domain.ErrCircuitBreakerOpen)
			},
		},
	})

	rec := do(h, http.MethodGet, "/api/prayer-times", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}
}

func TestHandler_Quran(t *testing.T) {
	var gotNumber int
	var gotSearch [2]string
	h := newTestHandler(HandlerConfig{
		Quran: &MockQuranService{
			SurahsFunc: func(context.Context) ([]quran.Surah, error) {
				return []quran.Surah{{Number: 1}, {Number: 2}}, nil
			},
			FeaturedFunc: func(context.Context) ([]quran.Surah, error) {
				return []quran.Surah{{Number: 36}}, nil
			},
			SurahFunc: func(_ context.Context, n int) (quran.SurahDetail, error) {
				gotNumber = n
				return quran.SurahDetail{Surah: quran.Surah{Number: n}}, nil
			},
			AudioFunc: func(_ context.Context, n int) (quran.SurahAudio, error) {
				return quran.SurahAudio{Number: n, Ayahs: []quran.AudioAyah{{Number: 1, AudioURL: "https://example.org/1.mp3"}}}, nil
			},
			SearchFunc: func(_ context.Context, q, edition string) (quran.SearchResult, error) {
				gotSearch = [2]string{q, edition}
				return quran.SearchResult{Count: 0, Matches: []quran.SearchMatch{}}, nil
			},
		},
	})

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"list", "/api/quran/surahs", http.StatusOK},
		{"featured", "/api/quran/surahs/featured", http.StatusOK},
		{"detail", "/api/quran/surahs/67", http.StatusOK},
		{"audio", "/api/quran/surahs/67/audio", http.StatusOK},
		{"search", "/api/quran/search?q=mercy&edition=bn.bengali", http.StatusOK},
		{"out of range", "/api/quran/surahs/115", http.StatusBadRequest},
		{"not a number", "/api/quran/surahs/yasin", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h, http.MethodGet, tt.target, nil); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}

	if gotNumber != 67 {
		t.Errorf("surah number = %d, want 67", gotNumber)
	}
	if gotSearch != [2]string{"mercy", "bn.bengali"} {
		t.Errorf("search = %v", gotSearch)
	}
}

func TestHandler_Locations(t *testing.T) {
	h := newTestHandler(HandlerConfig{})

	body := decode(t, do(h, http.MethodGet, "/api/locations/cities", nil))
	if cities := body["cities"].([]any); len(cities) != 24 {
		t.Errorf("len(cities) = %d, want 24", len(cities))
	}
	if def := body["default"].(map[string]any); def["name"] != "Dhaka" {
		t.Errorf("default = %v", def)
	}

	rec := do(h, http.MethodGet, "/api/locations/cities/Kuala%20Lumpur", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["country"] != "Malaysia" {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}

	if rec := do(h, http.MethodGet, "/api/locations/cities/atlantis", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandler_Duas(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
		category   string
	}{
		{"defaults", "/api/duas", http.StatusOK, 3, ""},
		{"count", "/api/duas?count=5", http.StatusOK, 5, ""},
		{"count clamped", "/api/duas?count=100", http.StatusOK, 12, ""},
		{"zero count uses default", "/api/duas?count=0", http.StatusOK, 3, ""},
		{"all", "/api/duas?category=all&count=12", http.StatusOK, 12, ""},
		{"category", "/api/duas?category=ramadan&count=10", http.StatusOK, 3, "ramadan"},
		{"small category", "/api/duas?category=distress", http.StatusOK, 1, "distress"},
		{"unknown category", "/api/duas?category=weekly", http.StatusBadRequest, 0, ""},
		{"bad count", "/api/duas?count=many", http.StatusBadRequest, 0, ""},
	}

	h := newTestHandler(HandlerConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			body := decode(t, rec)
			if tt.wantStatus != http.StatusOK {
				if body["error"] == "" {
					t.Error("expected error message")
				}
				return
			}

			duas := body["duas"].([]any)
			if len(duas) != tt.wantCount {
				t.Fatalf("len(duas) = %d, want %d", len(duas), tt.wantCount)
			}
			for _, d := range duas {
				if tt.category != "" && d.(map[string]any)["category"] != tt.category {
					t.Errorf("dua = %v, want category %s", d, tt.category)
				}
			}
			if cats := body["categories"].([]any); len(cats) != 5 {
				t.Errorf("len(categories) = %d, want 5", len(cats))
			}
		})
	}
}

func TestHandler_Inspirations(t *testing.T) {
	h := newTestHandler(HandlerConfig{})

	tests := []struct {
		target string
		want   int
	}{
		{"/api/inspirations", 2},
		{"/api/inspirations?count=1", 1},
		{"/api/inspirations?count=-3", 2},
		{"/api/inspirations?count=40", 10},
	}
	for _, tt := range tests {
		rec := do(h, http.MethodGet, tt.target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.target, rec.Code)
		}
		if got := decode(t, rec)["inspirations"].([]any); len(got) != tt.want {
			t.Errorf("%s: len = %d, want %d", tt.target, len(got), tt.want)
		}
	}

	first := decode(t, do(h, http.MethodGet, "/api/inspirations/daily?seed=abc", nil))
	again := decode(t, do(h, http.MethodGet, "/api/inspirations/daily?seed=abc", nil))
	if first["id"] != again["id"] {
		t.Errorf("seeded pick changed from %v to %v", first["id"], again["id"])
	}
	if _, ok := first["ayah"].(map[string]any); !ok {
		t.Errorf("inspiration = %v, want ayah object", first)
	}
}

func TestHandler_Admin(t *testing.T) {
	hash, err := auth.HashToken("operator-secret")
	if err != nil {
		t.Fatalf("HashToken() error = %v", err)
	}
	tokenAuth, err := auth.NewTokenAuth(hash)
	if err != nil {
		t.Fatalf("NewTokenAuth() error = %v", err)
	}

	pool := gemini.NewPool([]string{"key-a", "key-b", "key-c"}, gemini.NewInMemoryCursor())
	pool.Next(context.Background())
	breakers := circuitbreaker.NewManager(circuitbreaker.DefaultConfig())
	breakers.Get("aladhan")

	h := newTestHandler(HandlerConfig{
		Admin:    tokenAuth.Require(NewAdminHandler(pool, breakers)),
		Pool:     pool,
		Breakers: breakers,
	})

	if rec := do(h, http.MethodGet, "/admin/credentials", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/admin/credentials", nil, "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rec.Code)
	}

	rec := do(h, http.MethodGet, "/admin/credentials", nil, "Authorization", "Bearer operator-secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	if body["size"] != float64(3) || body["cursor"] != float64(1) {
		t.Errorf("body = %v", body)
	}
	if strings.Contains(rec.Body.String(), "key-a") {
		t.Error("response leaked key material")
	}
	if cb := body["circuit_breakers"].(map[string]any); cb["aladhan"] != "closed" {
		t.Errorf("circuit_breakers = %v", cb)
	}

	rec = do(h, http.MethodPost, "/admin/credentials/cursor/reset", nil, "Authorization", "Bearer operator-secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if pos, _ := pool.Position(context.Background()); pos != 0 {
		t.Errorf("cursor = %d after reset, want 0", pos)
	}
}

func TestHandler_AdminDisabled(t *testing.T) {
	tokenAuth, _ := auth.NewTokenAuth("")
	pool := gemini.NewPool([]string{"key-a"}, gemini.NewInMemoryCursor())
	h := newTestHandler(HandlerConfig{Admin: tokenAuth.Require(NewAdminHandler(pool, nil))})

	rec := do(h, http.MethodGet, "/admin/credentials", nil, "Authorization", "Bearer anything")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		pool       *gemini.Pool
		wantStatus string
	}{
		{"with keys", gemini.NewPool([]string{"k"}, gemini.NewInMemoryCursor()), "healthy"},
		{"without keys", nil, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(HandlerConfig{Pool: tt.pool, Version: "1.2.3"})

			rec := do(h, http.MethodGet, "/health", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			body := decode(t, rec)
			if body["status"] != tt.wantStatus || body["version"] != "1.2.3" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestHandler_HealthReady(t *testing.T) {
	h := newTestHandler(HandlerConfig{Checkers: []HealthChecker{failingChecker{name: "redis"}}})

	rec := do(h, http.MethodGet, "/health/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decode(t, rec)
	checks := body["checks"].(map[string]any)
	if redis := checks["redis"].(map[string]any); redis["status"] != "error" {
		t.Errorf("redis check = %v", redis)
	}

	h = newTestHandler(HandlerConfig{})
	if rec := do(h, http.MethodGet, "/health/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("no checkers status = %d, want 200", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want 200", rec.Code)
	}
}

func TestHandler_RequestID(t *testing.T) {
	h := newTestHandler(HandlerConfig{})

	rec := do(h, http.MethodGet, "/health/live", nil, "X-Request-ID", "req-123")
	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want echo", got)
	}

	rec = do(h, http.MethodGet, "/health/live", nil)
	if got := rec.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("X-Request-ID = %q, want a generated uuid", got)
	}
}

func TestHandler_Metrics(t *testing.T) {
	h := newTestHandler(HandlerConfig{})
	do(h, http.MethodGet, "/api/locations/cities", nil)

	rec := do(h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="GET /api/locations/cities"`) {
		t.Error("metrics should label requests by route pattern")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "10.0.0.2:1234", "203.0.113.7"},
		{"remote addr", "", "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", "", "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
