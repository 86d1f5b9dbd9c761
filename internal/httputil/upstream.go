package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/felipepmaragno/ramadan-companion/internal/circuitbreaker"
	"github.com/felipepmaragno/ramadan-companion/internal/domain"
	"github.com/felipepmaragno/ramadan-companion/internal/metrics"
	"github.com/felipepmaragno/ramadan-companion/internal/telemetry"
	"github.com/tidwall/gjson"
)

const maxEnvelopeBytes = 8 << 20

// Upstream is a JSON API that wraps every payload in
// {"code": 200, "status": "OK", "data": ...}.
type Upstream struct {
	name    string
	baseURL string
	client  *http.Client
	breaker circuitbreaker.Breaker
}

// NewUpstream builds an Upstream. A nil client uses ContentConfig; a nil
// breaker disables circuit breaking.
func NewUpstream(name, baseURL string, client *http.Client, breaker circuitbreaker.Breaker) *Upstream {
	if client == nil {
		client = NewClient(ContentConfig())
	}
	return &Upstream{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: breaker,
	}
}

func (u *Upstream) Name() string {
	return u.name
}

// GetData fetches path and returns the envelope's data member. A non-200
// envelope code maps 400 to ErrInvalidRequest, 404 to ErrNotFound and
// anything else to ErrUpstream.
func (u *Upstream) GetData(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, u.name+".get")
	defer span.End()
	telemetry.AddUpstreamAttributes(span, u.name, path)

	var data gjson.Result
	call := func(ctx context.Context) error {
		var err error
		data, err = u.get(ctx, path, query)
		return err
	}

	var err error
	if u.breaker != nil {
		err = circuitbreaker.Do(ctx, u.breaker, call)
	} else {
		err = call(ctx)
	}

	if err != nil {
		if errors.Is(err, domain.ErrCircuitBreakerOpen) {
			metrics.RecordUpstreamRequest(u.name, "circuit_open")
		}
		telemetry.AddErrorAttribute(span, err)
		return gjson.Result{}, err
	}
	return data, nil
}

func (u *Upstream) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	endpoint := u.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create %s request: %w", u.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(u.name, "error")
		return gjson.Result{}, fmt.Errorf("%s request: %w", u.name, err)
	}
	defer resp.Body.Close()

	metrics.RecordUpstreamRequest(u.name, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read %s response: %w", u.name, err)
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: %s returned %d with a non-JSON body", domain.ErrUpstream, u.name, resp.StatusCode)
	}

	envelope := gjson.ParseBytes(body)
	code := envelope.Get("code").Int()
	if code == 0 {
		code = int64(resp.StatusCode)
	}
	if code != http.StatusOK {
		msg := envelope.Get("data").String()
		if msg == "" {
			msg = envelope.Get("status").String()
		}
		return gjson.Result{}, envelopeError(u.name, code, msg)
	}

	return envelope.Get("data"), nil
}

func envelopeError(name string, code int64, msg string) error {
	switch code {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s: %s", domain.ErrInvalidRequest, name, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s: %s", domain.ErrNotFound, name, msg)
	default:
		return fmt.Errorf("%w: %s returned %d: %s", domain.ErrUpstream, name, code, msg)
	}
}
