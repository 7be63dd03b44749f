package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/victornm/geoquiz/internal/domain"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	AnswerSubmitted struct {
		SessionID     string            `json:"session_id"`
		Question      string            `json:"question"`
		UserAnswer    string            `json:"user_answer"`
		CorrectAnswer string            `json:"correct_answer"`
		IsCorrect     bool              `json:"is_correct"`
		Score         int               `json:"score"`
		TotalAnswered int               `json:"total_answered"`
		NewDifficulty domain.Difficulty `json:"new_difficulty"`
	}

	SessionEnded struct {
		SessionID string `json:"session_id"`
	}
)

func (a *API) PublishAnswerSubmitted(ctx context.Context, e domain.EventAnswerSubmitted) error {
	return a.publishNotification(ctx, e.SessionID, e.Name(), AnswerSubmitted{
		SessionID:     e.SessionID,
		Question:      e.Entry.QuestionText,
		UserAnswer:    e.Entry.UserAnswer,
		CorrectAnswer: e.Entry.CorrectAnswer,
		IsCorrect:     e.Entry.IsCorrect,
		Score:         e.Score,
		TotalAnswered: e.TotalAnswered,
		NewDifficulty: e.NewDifficulty,
	})
}

func (a *API) PublishSessionEnded(ctx context.Context, e domain.EventSessionEnded) error {
	return a.publishNotification(ctx, e.SessionID, e.Name(), SessionEnded{SessionID: e.SessionID})
}

// SessionChannel is the pub/sub channel that carries the notifications of one session.
func SessionChannel(prefix, sessionID string) string {
	return fmt.Sprintf("%s:session:%s", prefix, sessionID)
}

func (a *API) publishNotification(ctx context.Context, sessionID, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %w", event, err)
	}

	return a.redis.Publish(ctx, SessionChannel(a.prefix, sessionID), b).Err()
}
