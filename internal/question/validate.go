package question

import (
	"fmt"
	"slices"

	"github.com/victornm/geoquiz/internal/domain"
)

// OptionCount is the number of options every question carries.
const OptionCount = 4

// ValidationError describes why a question candidate was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question rejected: %s", e.Reason)
}

func rejected(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a question: all fields present, exactly
// four distinct options and a correct answer that is one of them.
func Validate(q domain.Question) error {
	switch {
	case q.Text == "":
		return rejected("missing question text")
	case q.CorrectAnswer == "":
		return rejected("missing correct answer")
	case q.Hint == "":
		return rejected("missing hint")
	case q.Difficulty == "":
		return rejected("missing difficulty")
	case !q.Difficulty.Valid():
		return rejected("unknown difficulty %q", q.Difficulty)
	case len(q.Options) != OptionCount:
		return rejected("want %d options, got %d", OptionCount, len(q.Options))
	}

	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if o == "" {
			return rejected("empty option")
		}
		if _, ok := seen[o]; ok {
			return rejected("duplicate option %q", o)
		}
		seen[o] = struct{}{}
	}

	if !slices.Contains(q.Options, q.CorrectAnswer) {
		return rejected("correct answer %q is not one of the options", q.CorrectAnswer)
	}

	return nil
}

func validateCandidate(q domain.Question, used map[string]struct{}) error {
	if err := Validate(q); err != nil {
		return err
	}

	if _, ok := used[q.Text]; ok {
		return rejected("duplicate question %q", q.Text)
	}

	return nil
}
