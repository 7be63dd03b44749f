package session

import (
	"slices"
	"time"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/errors"
)

const (
	mediumScore = 2
	hardScore   = 5
)

// ErrNoActiveQuestion is returned when an answer arrives before any question was issued.
var ErrNoActiveQuestion = errors.New(errors.CodeFailedPrecondition,
	errors.WithMessagef("no active question"),
)

// Begin returns the zero state of a fresh session.
func Begin() *domain.SessionState {
	return &domain.SessionState{
		UsedQuestionTexts: []string{},
		History:           []domain.HistoryEntry{},
	}
}

// DifficultyForScore maps a running score to the difficulty of the next question.
func DifficultyForScore(score int) domain.Difficulty {
	switch {
	case score >= hardScore:
		return domain.DifficultyHard
	case score >= mediumScore:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyEasy
	}
}

// CurrentDifficulty is the difficulty of the next question issued to s.
func CurrentDifficulty(s *domain.SessionState) domain.Difficulty {
	return DifficultyForScore(s.Score)
}

// IssueQuestion makes q the pending question of s, replacing any previous one, and
// records its text as used. The caller is responsible for q not being a repeat.
func IssueQuestion(s *domain.SessionState, q domain.Question, imageURL string, now time.Time) {
	if !slices.Contains(s.UsedQuestionTexts, q.Text) {
		s.UsedQuestionTexts = append(s.UsedQuestionTexts, q.Text)
	}

	q.Options = slices.Clone(q.Options)
	s.Pending = &domain.PendingQuestion{
		Question:  q,
		ImageURL:  imageURL,
		CreatedAt: now,
	}
}

// SubmitAnswer grades answer against the pending question by exact comparison and
// appends the outcome to the history. The pending question stays in place, so
// answering it again records another history entry.
func SubmitAnswer(s *domain.SessionState, answer string, now time.Time) (*domain.AnswerResult, error) {
	p := s.Pending
	if p == nil {
		return nil, ErrNoActiveQuestion
	}

	correct := answer == p.CorrectAnswer
	if correct {
		s.Score++
	}
	s.TotalAnswered++

	s.History = append(s.History, domain.HistoryEntry{
		QuestionText:  p.Text,
		UserAnswer:    answer,
		CorrectAnswer: p.CorrectAnswer,
		IsCorrect:     correct,
		Difficulty:    p.Difficulty,
		Timestamp:     p.CreatedAt,
		AnsweredAt:    now,
	})

	return &domain.AnswerResult{
		IsCorrect:     correct,
		CorrectAnswer: p.CorrectAnswer,
		Score:         s.Score,
		TotalAnswered: s.TotalAnswered,
		NewDifficulty: CurrentDifficulty(s),
	}, nil
}
