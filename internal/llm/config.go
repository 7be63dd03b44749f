package llm

import "time"

// Config selects and configures a Provider.
type Config struct {
	// Provider is one of "gemini", "anthropic", "openai" or "mock".
	Provider string
	// Model is a friendly name (e.g. "gemini-flash") or a provider model ID.
	Model   string
	APIKey  string
	BaseURL string

	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		Provider:    "gemini",
		Model:       "gemini-flash",
		Timeout:     defaultSourceTimeout,
		Temperature: 0.9,
		MaxTokens:   defaultSourceMaxTokens,
	}
}

// resolveModel maps a friendly model name to a provider model ID. Unknown names are
// passed through so that direct model IDs work.
func resolveModel(name, fallback string, models map[string]string) string {
	if name == "" {
		name = fallback
	}
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
