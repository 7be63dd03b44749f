package llm

import (
	"context"
	"fmt"
)

// NewProvider builds the configured Provider wrapped with logging.
// It returns ErrMissingAPIKey when a real provider is selected without credentials.
func NewProvider(ctx context.Context, c Config) (Provider, error) {
	var (
		base Provider
		err  error
	)

	switch c.Provider {
	case "gemini", "":
		base, err = NewGeminiProvider(ctx, c)
	case "anthropic":
		base, err = NewAnthropicProvider(c)
	case "openai":
		base, err = NewOpenAIProvider(c)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s provider: %w", c.Provider, err)
	}

	return WithLogging(base), nil
}

// NewSourceFromConfig is NewProvider followed by NewSource with the timing and sampling
// settings of c.
func NewSourceFromConfig(ctx context.Context, c Config) (*Source, error) {
	p, err := NewProvider(ctx, c)
	if err != nil {
		return nil, err
	}

	return NewSource(p, SourceConfig{
		Timeout:     c.Timeout,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}), nil
}
