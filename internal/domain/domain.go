package domain

import (
	"time"
)

// Difficulty of a question, derived from the player's running score.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulty labels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

func (d Difficulty) String() string { return string(d) }

// Question is a multiple-choice question with exactly four distinct options,
// one of which is the correct answer.
type Question struct {
	Text          string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	Hint          string     `json:"hint"`
	Difficulty    Difficulty `json:"difficulty"`
}

// PendingQuestion is the question currently awaiting an answer within a session.
type PendingQuestion struct {
	Question
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry records one submitted answer. Entries are never modified once appended.
type HistoryEntry struct {
	QuestionText  string     `json:"question"`
	UserAnswer    string     `json:"user_answer"`
	CorrectAnswer string     `json:"correct_answer"`
	IsCorrect     bool       `json:"is_correct"`
	Difficulty    Difficulty `json:"difficulty"`
	Timestamp     time.Time  `json:"timestamp"`
	AnsweredAt    time.Time  `json:"answered_at"`
}

// SessionState is everything a single player session holds.
// TotalAnswered always equals len(History) and Score never exceeds TotalAnswered.
type SessionState struct {
	Score             int              `json:"score"`
	TotalAnswered     int              `json:"total_answered"`
	UsedQuestionTexts []string         `json:"used_question_texts"`
	Pending           *PendingQuestion `json:"pending,omitempty"`
	History           []HistoryEntry   `json:"history"`
}

// AnswerResult is the verdict returned after an answer is submitted.
type AnswerResult struct {
	IsCorrect     bool
	CorrectAnswer string
	Score         int
	TotalAnswered int
	NewDifficulty Difficulty
}
