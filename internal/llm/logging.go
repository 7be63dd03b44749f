package llm

import (
	"context"
	"log/slog"
	"time"
)

type loggingProvider struct {
	inner Provider
}

// WithLogging wraps p so that every call is logged with its model, latency and outcome.
func WithLogging(p Provider) Provider {
	return &loggingProvider{inner: p}
}

func (l *loggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	attrs := []any{
		"model", l.inner.ModelID(),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if resp != nil {
		attrs = append(attrs,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"stop_reason", resp.StopReason,
		)
	}

	if err != nil {
		slog.WarnContext(ctx, "LLM request failed", append(attrs, "error", err)...)
		return nil, err
	}

	slog.DebugContext(ctx, "LLM request completed", attrs...)
	return resp, nil
}

func (l *loggingProvider) ModelID() string {
	return l.inner.ModelID()
}
