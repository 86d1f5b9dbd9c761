// Package gemini dispatches generateContent requests to the Gemini API,
// rotating through a pool of API keys. A rate-limited key is skipped in
// favour of the next one; every key is tried at most once per call.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/httputil"
	"github.com/felipepmaragno/ramadan-companion/internal/metrics"
	"github.com/felipepmaragno/ramadan-companion/internal/telemetry"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	defaultTemperature     = 0.3
	defaultMaxOutputTokens = 4096
	maxResponseBytes       = 10 << 20

	textPath         = "candidates.0.content.parts.0.text"
	errorMessagePath = "error.message"
)

type ResultKind int

const (
	ResultStructured ResultKind = iota
	ResultRawText
)

func (k ResultKind) String() string {
	switch k {
	case ResultStructured:
		return "structured"
	case ResultRawText:
		return "raw_text"
	default:
		return "unknown"
	}
}

// Result is either decoded structured data or, when the payload was not
// valid JSON, the payload text verbatim.
type Result struct {
	Kind       ResultKind
	Structured json.RawMessage
	RawText    string
}

// Decode unmarshals a structured result into v.
func (r Result) Decode(v any) error {
	if r.Kind != ResultStructured {
		return fmt.Errorf("decode %s result: not structured", r.Kind)
	}
	return json.Unmarshal(r.Structured, v)
}

type Config struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

type Dispatcher struct {
	pool    *Pool
	client  *http.Client
	baseURL string
	model   string
}

func New(pool *Pool, cfg Config) *Dispatcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httputil.DefaultClient()
	}

	return &Dispatcher{
		pool:    pool,
		client:  cfg.HTTPClient,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

func (d *Dispatcher) Pool() *Pool {
	return d.pool
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []domain.Part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// mergeConfig applies overrides on top of the baseline configuration.
func mergeConfig(overrides *domain.GenerationConfig) (generationConfig, error) {
	cfg := generationConfig{
		Temperature:      defaultTemperature,
		MaxOutputTokens:  defaultMaxOutputTokens,
		ResponseMimeType: "application/json",
	}
	if overrides == nil {
		return cfg, nil
	}

	if t := overrides.Temperature; t != nil {
		if *t < 0 || *t > 2 {
			return cfg, fmt.Errorf("%w: temperature %v outside 0.0-2.0", domain.ErrInvalidRequest, *t)
		}
		cfg.Temperature = *t
	}
	if m := overrides.MaxOutputTokens; m != nil {
		if *m <= 0 {
			return cfg, fmt.Errorf("%w: maxOutputTokens must be positive, got %d", domain.ErrInvalidRequest, *m)
		}
		cfg.MaxOutputTokens = *m
	}
	if s := overrides.StructuredOutput; s != nil && !*s {
		cfg.ResponseMimeType = ""
	}

	return cfg, nil
}

// Dispatch sends parts to the model, trying each pooled key at most once.
// A 429 moves on to the next key; any other failure is returned at once.
func (d *Dispatcher) Dispatch(ctx context.Context, parts []domain.Part, overrides *domain.GenerationConfig) (Result, error) {
	if len(parts) == 0 {
		return Result{}, fmt.Errorf("%w: at least one content part is required", domain.ErrInvalidRequest)
	}

	genCfg, err := mergeConfig(overrides)
	if err != nil {
		return Result{}, err
	}

	size := d.pool.Size()
	if size == 0 {
		metrics.RecordDispatch("no_credentials", 0)
		return Result{}, domain.ErrNoCredentials
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: parts}},
		GenerationConfig: genCfg,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "gemini.dispatch")
	defer span.End()

	start := time.Now()
	var lastErr error

	for i := 0; i < size; i++ {
		cred, err := d.pool.Next(ctx)
		if err != nil {
			telemetry.AddErrorAttribute(span, err)
			return Result{}, err
		}

		res := d.attempt(ctx, i+1, cred, body)
		metrics.RecordGeminiAttempt(cred.Index, res.outcome.String())

		switch res.outcome {
		case outcomeOK:
			telemetry.AddDispatchAttributes(span, i+1, res.result.Kind.String())
			metrics.RecordDispatch(res.result.Kind.String(), time.Since(start).Seconds())
			return res.result, nil

		case outcomeRateLimited:
			slog.Warn("gemini key rate limited, rotating",
				"attempt", i+1,
				"key_index", cred.Index,
				"key_fingerprint", cred.Fingerprint(),
			)
			lastErr = res.err
			continue

		default:
			telemetry.AddErrorAttribute(span, res.err)
			metrics.RecordDispatch("failed", time.Since(start).Seconds())
			return Result{}, res.err
		}
	}

	exhausted := &ExhaustedError{Attempts: size, Last: lastErr}
	telemetry.AddErrorAttribute(span, exhausted)
	metrics.RecordDispatch("exhausted", time.Since(start).Seconds())
	slog.Error("all gemini keys rate limited", "attempts", size)

	return Result{}, exhausted
}

type attemptOutcome int

const (
	outcomeOK attemptOutcome = iota
	outcomeRateLimited
	outcomeFailed
)

func (o attemptOutcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeRateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

type attemptResult struct {
	outcome attemptOutcome
	result  Result
	err     error
}

func failed(err error) attemptResult {
	return attemptResult{outcome: outcomeFailed, err: err}
}

// attempt performs exactly one network call with one key.
func (d *Dispatcher) attempt(ctx context.Context, n int, cred Credential, body []byte) attemptResult {
	ctx, span := telemetry.StartSpan(ctx, "gemini.attempt")
	defer span.End()
	telemetry.AddAttemptAttributes(span, n, cred.Index, cred.Fingerprint())

	endpoint := d.endpoint()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+url.Values{"key": {cred.Key}}.Encode(), bytes.NewReader(body))
	if err != nil {
		return failed(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = endpoint
		}
		return failed(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return attemptResult{
			outcome: outcomeRateLimited,
			err:     &RateLimitError{Attempt: n, KeyIndex: cred.Index},
		}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failed(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, errorMessagePath).String()
		if msg == "" {
			msg = fmt.Sprintf("Gemini API error: %d", resp.StatusCode)
		}
		return failed(&UpstreamError{StatusCode: resp.StatusCode, Message: msg})
	}

	text := gjson.GetBytes(respBody, textPath).String()
	if text == "" {
		return failed(domain.ErrEmptyResponse)
	}

	return attemptResult{outcome: outcomeOK, result: parseResult(text)}
}

func (d *Dispatcher) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", d.baseURL, d.model)
}

func parseResult(text string) Result {
	if json.Valid([]byte(text)) {
		return Result{Kind: ResultStructured, Structured: json.RawMessage(text)}
	}

	slog.Warn("gemini returned non-JSON payload, passing raw text through", "length", len(text))
	return Result{Kind: ResultRawText, RawText: text}
}
