package gemini

import (
	"fmt"

	"github.com/felipepmaragno/ramadan-companion/internal/domain"
)

// RateLimitError records a 429 from the endpoint for one key. It only
// reaches callers wrapped in an ExhaustedError.
type RateLimitError struct {
	Attempt  int
	KeyIndex int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on key %d", e.Attempt)
}

func (e *RateLimitError) Is(target error) bool {
	return target == domain.ErrRateLimitExceeded
}

// UpstreamError is a non rate-limit failure status. Message is the
// endpoint's own error message when it sent one.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Is(target error) bool {
	return target == domain.ErrUpstream
}

// ExhaustedError means every key in the pool was rate limited during one
// Dispatch call.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return domain.ErrKeysExhausted.Error()
	}
	return fmt.Sprintf("%s after %d attempts: %v", domain.ErrKeysExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func (e *ExhaustedError) Is(target error) bool {
	return target == domain.ErrKeysExhausted
}
