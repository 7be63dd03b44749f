package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/victornm/geoquiz/internal/domain"
)

const (
	defaultSourceTimeout   = 5 * time.Second
	defaultSourceMaxTokens = 512
)

const systemPrompt = `You write world geography quiz questions. Return ONLY the JSON object, no additional text or markdown.`

type SourceConfig struct {
	// Timeout bounds a single Fetch including the provider round trip.
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Source turns a Provider into a question source: one prompt per Fetch, no retries.
type Source struct {
	provider Provider
	cfg      SourceConfig
}

func NewSource(p Provider, cfg SourceConfig) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSourceTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultSourceMaxTokens
	}
	return &Source{provider: p, cfg: cfg}
}

// Fetch asks the model for one question of difficulty d. Every failure is reported as
// ErrGenerationFailed with the cause wrapped.
func (s *Source) Fetch(ctx context.Context, d domain.Difficulty) (*domain.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.provider.Generate(ctx, Request{
		System: systemPrompt,
		Messages: []Message{
			{Role: RoleUser, Content: questionPrompt(d)},
		},
		Schema:      QuestionSchema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	q, err := ParseQuestion(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return q, nil
}

// ParseQuestion decodes a model answer into a Question. It tolerates a surrounding
// markdown code fence and checks the result against QuestionSchema. Semantic checks
// such as option uniqueness are left to the caller.
func ParseQuestion(raw []byte) (*domain.Question, error) {
	content := json.RawMessage(StripCodeFence(string(raw)))
	if len(content) == 0 {
		return nil, &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("empty response")}
	}

	if err := validateResponse(QuestionSchema, content); err != nil {
		return nil, err
	}

	var q domain.Question
	if err := json.Unmarshal(content, &q); err != nil {
		return nil, &ErrInvalidResponse{Content: content, Err: err}
	}
	return &q, nil
}

// StripCodeFence removes a leading ```json or ``` fence and its closing ``` if present.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func questionPrompt(d domain.Difficulty) string {
	return fmt.Sprintf(`Generate a unique world geography multiple-choice question with these requirements:
- Difficulty level: %[1]s
- 1 correct answer and 3 plausible incorrect answers
- Include a brief hint
- Format as valid JSON with these exact keys:
{
  "question": "question text",
  "options": ["option1", "option2", "option3", "option4"],
  "correct_answer": "correct option",
  "hint": "helpful hint",
  "difficulty": "%[1]s"
}
Make sure the options are clear and distinct from each other.`, d)
}
