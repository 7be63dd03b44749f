package question

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/victornm/geoquiz/internal/domain"
)

//go:embed bank.json
var defaultBank []byte

// Bank is an immutable catalog of pre-authored questions used when the generative
// source is unavailable.
type Bank struct {
	questions []domain.Question
}

// NewBank validates every question and returns a bank holding copies of them.
// Question texts must be unique within a bank.
func NewBank(qs []domain.Question) (*Bank, error) {
	b := &Bank{questions: make([]domain.Question, 0, len(qs))}
	texts := make(map[string]struct{}, len(qs))

	for i, q := range qs {
		if err := Validate(q); err != nil {
			return nil, fmt.Errorf("bank question %d: %w", i, err)
		}
		if _, ok := texts[q.Text]; ok {
			return nil, fmt.Errorf("bank question %d: duplicate text %q", i, q.Text)
		}
		texts[q.Text] = struct{}{}

		q.Options = slices.Clone(q.Options)
		b.questions = append(b.questions, q)
	}

	return b, nil
}

// LoadBank reads a JSON array of questions.
func LoadBank(r io.Reader) (*Bank, error) {
	var qs []domain.Question
	if err := json.NewDecoder(r).Decode(&qs); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}

	return NewBank(qs)
}

func LoadBankFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bank: %w", err)
	}
	defer f.Close()

	return LoadBank(f)
}

// DefaultBank returns the catalog compiled into the binary.
func DefaultBank() *Bank {
	var qs []domain.Question
	if err := json.Unmarshal(defaultBank, &qs); err != nil {
		panic(fmt.Sprintf("question: embedded bank: %v", err))
	}

	b, err := NewBank(qs)
	if err != nil {
		panic(fmt.Sprintf("question: embedded bank: %v", err))
	}

	return b
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// All returns a copy of every question in the bank.
func (b *Bank) All() []domain.Question {
	return b.subset(func(domain.Question) bool { return true })
}

// UnusedSubset returns the questions whose text is not in used.
func (b *Bank) UnusedSubset(used []string) []domain.Question {
	return b.unused(toSet(used))
}

func (b *Bank) unused(used map[string]struct{}) []domain.Question {
	return b.subset(func(q domain.Question) bool {
		_, ok := used[q.Text]
		return !ok
	})
}

func (b *Bank) subset(keep func(domain.Question) bool) []domain.Question {
	out := make([]domain.Question, 0, len(b.questions))
	for _, q := range b.questions {
		if keep(q) {
			q.Options = slices.Clone(q.Options)
			out = append(out, q)
		}
	}
	return out
}

func toSet(ss []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}
