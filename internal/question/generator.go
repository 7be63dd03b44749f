package question

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/errors"
)

const defaultMaxAttempts = 3

// ErrBankEmpty is returned when the source failed and there is no fallback question at
// all. This is a deployment fault; the request may still succeed later once the source
// recovers, hence retriable.
var ErrBankEmpty = errors.New(errors.CodeInternal,
	errors.WithMessagef("failed to generate question"),
	errors.WithRetriable(),
)

// Source produces questions from a generative service.
type Source interface {
	Fetch(ctx context.Context, d domain.Difficulty) (*domain.Question, error)
}

// Origin tells which path of the generator produced a question.
type Origin string

const (
	OriginGenerated Origin = "generated"
	OriginFallback  Origin = "fallback"
	// OriginFallbackReset means every bank question had been used, so the bank was
	// reused from the start for this call.
	OriginFallbackReset Origin = "fallback_reset"
)

// Result is a validated question together with the path that produced it.
type Result struct {
	Question domain.Question
	Origin   Origin
	// Attempts is the number of source calls made, successful or not.
	Attempts int
}

type Config struct {
	// Source may be nil, in which case every question comes from the bank.
	Source      Source
	Bank        *Bank
	MaxAttempts int
	// Rand is used for fallback picks and option shuffling. Nil uses the global source.
	Rand *rand.Rand
}

type Generator struct {
	source      Source
	bank        *Bank
	maxAttempts int

	mu   sync.Mutex
	rand *rand.Rand
}

func NewGenerator(c Config) *Generator {
	g := &Generator{
		source:      c.Source,
		bank:        c.Bank,
		maxAttempts: c.MaxAttempts,
		rand:        c.Rand,
	}

	if g.bank == nil {
		g.bank = &Bank{}
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}

	return g
}

// Generate returns a question at difficulty d whose text is not in used. The source is
// tried first; when every attempt fails or is rejected, a random unused bank question is
// picked, reusing the whole bank when all of it was used. Options are shuffled.
func (g *Generator) Generate(ctx context.Context, d domain.Difficulty, used []string) (*Result, error) {
	usedSet := toSet(used)

	attempts := 0
	for g.source != nil && attempts < g.maxAttempts && ctx.Err() == nil {
		attempts++

		q, err := g.source.Fetch(ctx, d)
		if err != nil {
			slog.WarnContext(ctx, "question: generation attempt failed",
				"attempt", attempts,
				"difficulty", d,
				"error", err,
			)
			continue
		}

		if err := validateCandidate(*q, usedSet); err != nil {
			slog.WarnContext(ctx, "question: generated candidate rejected",
				"attempt", attempts,
				"difficulty", d,
				"error", err,
			)
			continue
		}

		q.Difficulty = d
		return &Result{
			Question: g.shuffle(*q),
			Origin:   OriginGenerated,
			Attempts: attempts,
		}, nil
	}

	return g.fallback(ctx, usedSet, attempts)
}

func (g *Generator) fallback(ctx context.Context, used map[string]struct{}, attempts int) (*Result, error) {
	origin := OriginFallback
	candidates := g.bank.unused(used)
	if len(candidates) == 0 {
		origin = OriginFallbackReset
		candidates = g.bank.All()
	}

	if len(candidates) == 0 {
		slog.ErrorContext(ctx, "question: fallback bank is empty", "attempts", attempts)
		return nil, ErrBankEmpty
	}

	q := candidates[g.intN(len(candidates))]
	slog.InfoContext(ctx, "question: using fallback question",
		"origin", origin,
		"attempts", attempts,
	)

	return &Result{
		Question: g.shuffle(q),
		Origin:   origin,
		Attempts: attempts,
	}, nil
}

// shuffle returns q with a uniformly permuted copy of its options.
func (g *Generator) shuffle(q domain.Question) domain.Question {
	q.Options = slices.Clone(q.Options)
	swap := func(i, j int) { q.Options[i], q.Options[j] = q.Options[j], q.Options[i] }

	if g.rand == nil {
		rand.Shuffle(len(q.Options), swap)
		return q
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.rand.Shuffle(len(q.Options), swap)
	return q
}

func (g *Generator) intN(n int) int {
	if g.rand == nil {
		return rand.IntN(n)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rand.IntN(n)
}
