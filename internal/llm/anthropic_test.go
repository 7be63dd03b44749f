package llm

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicMessage(stopReason string, content ...map[string]any) map[string]any {
	if content == nil {
		content = []map[string]any{}
	}

	return map[string]any{
		"id":            "msg_01",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-haiku-4-5-20251001",
		"content":       content,
		"stop_reason":   stopReason,
		"stop_sequence": nil,
		"usage": map[string]any{
			"input_tokens":  120,
			"output_tokens": 60,
		},
	}
}

func TestAnthropicProvider_Generate(t *testing.T) {
	tests := map[string]struct {
		status int
		reply  func(t *testing.T) string
		assert func(t *testing.T, resp *Response, err error)
	}{
		"text block after thinking": {
			status: http.StatusOK,
			reply: func(t *testing.T) string {
				return mustJSON(t, anthropicMessage("end_turn",
					map[string]any{"type": "thinking", "thinking": "Kenya it is.", "signature": "sig"},
					map[string]any{"type": "text", "text": questionJSON},
				))
			},
			assert: func(t *testing.T, resp *Response, err error) {
				require.NoError(t, err)
				assert.JSONEq(t, questionJSON, string(resp.Content))
				assert.Equal(t, "end", resp.StopReason)
				assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)
				assert.Equal(t, Usage{InputTokens: 120, OutputTokens: 60, TotalTokens: 180}, resp.Usage)
			},
		},
		"max tokens": {
			status: http.StatusOK,
			reply: func(t *testing.T) string {
				return mustJSON(t, anthropicMessage("max_tokens",
					map[string]any{"type": "text", "text": `{"question":"What is`},
				))
			},
			assert: func(t *testing.T, resp *Response, err error) {
				require.NoError(t, err)
				assert.Equal(t, "max_tokens", resp.StopReason)
			},
		},
		"no text block": {
			status: http.StatusOK,
			reply: func(t *testing.T) string {
				return mustJSON(t, anthropicMessage("end_turn"))
			},
			assert: func(t *testing.T, resp *Response, err error) {
				var invalid *ErrInvalidResponse
				assert.ErrorAs(t, err, &invalid)
			},
		},
		"rate limited": {
			status: http.StatusTooManyRequests,
			reply: func(t *testing.T) string {
				return `{"type":"error","error":{"type":"rate_limit_error","message":"Rate limit exceeded"}}`
			},
			assert: func(t *testing.T, resp *Response, err error) {
				assertUnavailable(t, err, http.StatusTooManyRequests)
			},
		},
		"overloaded": {
			status: http.StatusInternalServerError,
			reply: func(t *testing.T) string {
				return `{"type":"error","error":{"type":"api_error","message":"Internal server error"}}`
			},
			assert: func(t *testing.T, resp *Response, err error) {
				assertUnavailable(t, err, http.StatusInternalServerError)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, url := newFakeAPI(t, tc.status, tc.reply(t))
			p, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: url})
			require.NoError(t, err)

			resp, err := p.Generate(context.Background(), questionRequest())

			tc.assert(t, resp, err)
		})
	}
}

func TestAnthropicProvider_Request(t *testing.T) {
	f, url := newFakeAPI(t, http.StatusOK, mustJSON(t, anthropicMessage("end_turn",
		map[string]any{"type": "text", "text": questionJSON},
	)))
	p, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: url, Model: "claude-sonnet"})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), questionRequest())
	require.NoError(t, err)

	path, header, body := f.request()
	assert.Equal(t, "/v1/messages", path)
	assert.Equal(t, "test-key", header.Get("X-Api-Key"))
	assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
	assert.Equal(t, float64(512), body["max_tokens"])
	assert.Equal(t, 0.9, body["temperature"])

	system := body["system"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, system, systemPrompt)
	assert.Contains(t, system, `"correct_answer"`, "the schema rides in the system prompt")

	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}
