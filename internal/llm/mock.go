package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/victornm/geoquiz/internal/domain"
)

var errMockExhausted = errors.New("mock: no scripted reply left")

// MockReply scripts one answer of the MockProvider.
type MockReply struct {
	// Question is encoded as the model would answer it. It wins over Content.
	Question *domain.Question
	// Fenced wraps the answer in a ```json fence, as chat models often do.
	Fenced bool
	// Content is returned verbatim when Question is nil.
	Content string
	Err     error
	// Delay holds the reply back. A context that ends first wins.
	Delay time.Duration
}

// MockProvider plays scripted replies in order and records every request. Without a
// script it behaves like a provider that is down, so a generator built on it serves
// the fallback bank only.
type MockProvider struct {
	mu      sync.Mutex
	replies []MockReply
	calls   []Request
}

func NewMockProvider(replies ...MockReply) *MockProvider {
	return &MockProvider{replies: replies}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	reply, ok := m.next(req)
	if !ok {
		return nil, &ErrProviderUnavailable{StatusCode: http.StatusServiceUnavailable, Err: errMockExhausted}
	}

	if reply.Delay > 0 {
		t := time.NewTimer(reply.Delay)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return nil, &ErrProviderUnavailable{Err: ctx.Err()}
		case <-t.C:
		}
	}

	if reply.Err != nil {
		return nil, reply.Err
	}

	content := reply.Content
	if reply.Question != nil {
		b, err := json.Marshal(reply.Question)
		if err != nil {
			return nil, err
		}
		content = string(b)
	}
	if reply.Fenced {
		content = "```json\n" + content + "\n```"
	}

	in := estimateTokens(req)
	out := len(content) / 4

	return &Response{
		Content:    json.RawMessage(content),
		Usage:      Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
		Model:      "mock",
		StopReason: "end",
	}, nil
}

func (m *MockProvider) next(req Request) (MockReply, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if len(m.replies) == 0 {
		return MockReply{}, false
	}

	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, true
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

// Calls returns the requests received so far.
func (m *MockProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// estimateTokens approximates the prompt size at four characters per token.
func estimateTokens(req Request) int {
	var b strings.Builder
	b.WriteString(req.System)
	for _, msg := range req.Messages {
		b.WriteString(msg.Content)
	}
	return b.Len() / 4
}
