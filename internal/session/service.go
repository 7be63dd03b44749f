package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/errors"
	"github.com/victornm/geoquiz/internal/event"
	"github.com/victornm/geoquiz/internal/question"
)

// ImageFinder looks up an illustration for a search term. ok is false when there is none.
type ImageFinder interface {
	Lookup(ctx context.Context, term string) (url string, ok bool)
}

type Config struct {
	Store     Store
	Generator *question.Generator
	// Images may be nil, in which case questions carry no image unless DefaultImages is set.
	Images ImageFinder
	// DefaultImages substitutes a keyword-based placeholder when no image was found.
	DefaultImages   bool
	DefaultImageFor func(term string) string
	EventBus        *event.Bus
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store           Store
	generator       *question.Generator
	images          ImageFinder
	defaultImages   bool
	defaultImageFor func(string) string
	eb              *event.Bus
	now             func() time.Time

	locks *keyedMutex
}

func NewService(c Config) *Service {
	s := &Service{
		store:           c.Store,
		generator:       c.Generator,
		images:          c.Images,
		defaultImages:   c.DefaultImages,
		defaultImageFor: c.DefaultImageFor,
		eb:              c.EventBus,
		now:             c.Now,
		locks:           newKeyedMutex(),
	}

	if s.now == nil {
		s.now = time.Now
	}
	if s.eb == nil {
		s.eb = event.NewBus()
	}

	return s
}

// lock serializes work on one session within the process and, when the store is
// shared, across processes.
func (s *Service) lock(ctx context.Context, id string) (func(), error) {
	unlock := s.locks.Lock(id)

	l, ok := s.store.(Locker)
	if !ok {
		return unlock, nil
	}

	release, err := l.Lock(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}

	return func() {
		release()
		unlock()
	}, nil
}

// Start begins a new session under id, discarding whatever state it had.
func (s *Service) Start(ctx context.Context, id string) (*domain.SessionState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st := Begin()
	if err := s.store.Save(ctx, id, st); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.eb.Publish(ctx, domain.EventSessionStarted{SessionID: id})

	return st, nil
}

// End forgets the session. Ending an unknown session is not an error.
func (s *Service) End(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.eb.Publish(ctx, domain.EventSessionEnded{SessionID: id})

	return nil
}

// QuestionView is what a player sees of a question. The correct answer is withheld.
type QuestionView struct {
	Question   string
	Options    []string
	Hint       string
	Image      string
	Difficulty domain.Difficulty
}

// NextQuestion issues a new question at the session's current difficulty and makes it
// the pending question. A session that does not exist yet is started implicitly.
func (s *Service) NextQuestion(ctx context.Context, id string) (*QuestionView, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, err := s.loadOrBegin(ctx, id)
	if err != nil {
		return nil, err
	}

	d := CurrentDifficulty(st)
	res, err := s.generator.Generate(ctx, d, st.UsedQuestionTexts)
	if err != nil {
		return nil, err
	}

	q := res.Question
	image := s.imageFor(ctx, q)

	IssueQuestion(st, q, image, s.now())
	if err := s.store.Save(ctx, id, st); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.eb.Publish(ctx, domain.EventQuestionIssued{
		SessionID: id,
		Question:  q,
		Origin:    string(res.Origin),
		Attempts:  res.Attempts,
		HasImage:  image != "",
	})

	return &QuestionView{
		Question:   q.Text,
		Options:    q.Options,
		Hint:       q.Hint,
		Image:      image,
		Difficulty: q.Difficulty,
	}, nil
}

// imageFor looks the correct answer up first, then falls back to a placeholder chosen
// from the question text.
func (s *Service) imageFor(ctx context.Context, q domain.Question) string {
	if s.images != nil {
		if u, ok := s.images.Lookup(ctx, q.CorrectAnswer); ok {
			return u
		}
	}

	if s.defaultImages && s.defaultImageFor != nil {
		return s.defaultImageFor(q.Text)
	}

	return ""
}

// SubmitAnswer grades answer against the session's pending question.
func (s *Service) SubmitAnswer(ctx context.Context, id, answer string) (*domain.AnswerResult, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, err := s.loadOrBegin(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := SubmitAnswer(st, answer, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, id, st); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.eb.Publish(ctx, domain.EventAnswerSubmitted{
		SessionID:     id,
		Entry:         st.History[len(st.History)-1],
		Score:         res.Score,
		TotalAnswered: res.TotalAnswered,
		NewDifficulty: res.NewDifficulty,
	})

	return res, nil
}

type HistoryView struct {
	History       []domain.HistoryEntry
	Score         int
	TotalAnswered int
	// Accuracy is the percentage of correct answers rounded to two places.
	Accuracy decimal.Decimal
}

// History returns the answers recorded so far. It does not create a session.
func (s *Service) History(ctx context.Context, id string) (*HistoryView, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	st, found, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found {
		st = Begin()
	}

	return &HistoryView{
		History:       st.History,
		Score:         st.Score,
		TotalAnswered: st.TotalAnswered,
		Accuracy:      accuracy(st.Score, st.TotalAnswered),
	}, nil
}

// State returns the stored state of a session, or the zero state if it does not exist.
func (s *Service) State(ctx context.Context, id string) (*domain.SessionState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	st, found, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return Begin(), nil
	}
	return st, nil
}

func (s *Service) loadOrBegin(ctx context.Context, id string) (*domain.SessionState, error) {
	st, found, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if found {
		return st, nil
	}

	slog.DebugContext(ctx, "session: starting implicitly", "session_id", id)
	return Begin(), nil
}

func accuracy(score, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(score)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2)
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.InvalidArgument("session id is required")
	}
	return nil
}
