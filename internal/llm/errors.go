package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrGenerationFailed is returned by Source.Fetch for any transport, parse or schema
	// failure. The cause is wrapped alongside it.
	ErrGenerationFailed = errors.New("llm: generation failed")

	// ErrMissingAPIKey is returned when a provider that needs credentials has none.
	ErrMissingAPIKey = errors.New("llm: API key is required")
)

// ErrInvalidResponse indicates the model returned content that is not a valid question.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down, unreachable or rate limiting.
type ErrProviderUnavailable struct {
	StatusCode int
	Err        error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }
