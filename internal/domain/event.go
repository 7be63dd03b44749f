package domain

const (
	EventNameSessionStarted  = "session.started"
	EventNameSessionEnded    = "session.ended"
	EventNameQuestionIssued  = "question.issued"
	EventNameAnswerSubmitted = "answer.submitted"
)

type EventSessionStarted struct {
	SessionID string
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

type EventSessionEnded struct {
	SessionID string
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }

// EventQuestionIssued is published once a question became the session's pending question.
type EventQuestionIssued struct {
	SessionID string
	Question  Question
	// Origin tells where the question came from: "generated", "fallback" or "fallback_reset".
	Origin   string
	Attempts int
	HasImage bool
}

func (EventQuestionIssued) Name() string { return EventNameQuestionIssued }

type EventAnswerSubmitted struct {
	SessionID     string
	Entry         HistoryEntry
	Score         int
	TotalAnswered int
	NewDifficulty Difficulty
}

func (EventAnswerSubmitted) Name() string { return EventNameAnswerSubmitted }
