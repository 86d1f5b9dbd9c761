package domain

import "errors"

var (
	ErrNoCredentials      = errors.New("no Gemini API keys configured")
	ErrKeysExhausted      = errors.New("all API keys exhausted")
	ErrEmptyResponse      = errors.New("no response from Gemini")
	ErrUpstream           = errors.New("upstream error")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("not found")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)
