package api_test

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/geoquiz/internal/api"
	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/event"
	"github.com/victornm/geoquiz/internal/question"
	"github.com/victornm/geoquiz/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHTTP_Flow(t *testing.T) {
	h := makeHTTP(t, makeSessionService(t, nil, bankOf(t, brazil)), nil)

	// First contact issues a session id.
	rec := h.do(t, http.MethodPost, "/api/session", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(api.SessionHeader)
	require.NotEmpty(t, id)

	var started map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, map[string]any{
		"session_id":     id,
		"score":          float64(0),
		"total_answered": float64(0),
		"difficulty":     "easy",
	}, started)

	cookie := findCookie(rec, api.SessionCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, id, cookie.Value)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.True(t, cookie.HttpOnly)

	rec = h.do(t, http.MethodGet, "/api/question", id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var q map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, brazil.Text, q["question"])
	assert.ElementsMatch(t, []any{"Rio de Janeiro", "São Paulo", "Brasília", "Salvador"}, q["options"])
	assert.Equal(t, brazil.Hint, q["hint"])
	assert.Nil(t, q["image"])
	assert.Equal(t, "easy", q["difficulty"])
	assert.NotContains(t, q, "correct_answer")

	rec = h.do(t, http.MethodPost, "/api/answer", id, `{"answer":"Brasília"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"is_correct": true,
		"correct_answer": "Brasília",
		"score": 1,
		"total_answered": 1,
		"new_difficulty": "easy"
	}`, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/answer", id, `{"answer":"Salvador"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/history", id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		History []struct {
			Question   string `json:"question"`
			UserAnswer string `json:"user_answer"`
			IsCorrect  bool   `json:"is_correct"`
			Timestamp  string `json:"timestamp"`
		} `json:"history"`
		Score         int    `json:"score"`
		TotalAnswered int    `json:"total_answered"`
		Accuracy      string `json:"accuracy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, 1, hist.Score)
	assert.Equal(t, 2, hist.TotalAnswered)
	assert.Equal(t, "50.00", hist.Accuracy)
	require.Len(t, hist.History, 2)
	assert.True(t, hist.History[0].IsCorrect)
	assert.Equal(t, "Salvador", hist.History[1].UserAnswer)
	assert.Equal(t, hist.History[0].Timestamp, hist.History[1].Timestamp, "both answers refer to the same pending question")

	rec = h.do(t, http.MethodDelete, "/api/session", id, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/history", id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"history":[],"score":0,"total_answered":0,"accuracy":"0.00"}`, rec.Body.String())
}

func TestHTTP_Errors(t *testing.T) {
	tests := map[string]struct {
		bank   []domain.Question
		method string
		path   string
		body   string
		assert func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		"answer without active question": {
			bank:   []domain.Question{brazil},
			method: http.MethodPost,
			path:   "/api/answer",
			body:   `{"answer":"Brasília"}`,
			assert: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.JSONEq(t, `{"error":"no active question","code":"FailedPrecondition","retriable":false}`, rec.Body.String())
			},
		},
		"answer field missing": {
			bank:   []domain.Question{brazil},
			method: http.MethodPost,
			path:   "/api/answer",
			body:   `{"response":"Brasília"}`,
			assert: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.JSONEq(t, `{"error":"invalid request data","code":"InvalidArgument","retriable":false}`, rec.Body.String())
			},
		},
		"body is not JSON": {
			bank:   []domain.Question{brazil},
			method: http.MethodPost,
			path:   "/api/answer",
			body:   `answer=Brasília`,
			assert: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			},
		},
		"no question available": {
			method: http.MethodGet,
			path:   "/api/question",
			assert: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusInternalServerError, rec.Code)
				assert.JSONEq(t, `{"error":"failed to generate question","code":"Internal","retriable":true}`, rec.Body.String())
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := makeHTTP(t, makeSessionService(t, nil, bankOf(t, tc.bank...)), nil)

			rec := h.do(t, tc.method, tc.path, "s1", tc.body)

			tc.assert(t, rec)
		})
	}
}

func TestHTTP_SessionIdentity(t *testing.T) {
	h := makeHTTP(t, makeSessionService(t, nil, bankOf(t, brazil)), nil)

	// The cookie alone identifies the session.
	req := httptest.NewRequest(http.MethodGet, "/api/question", nil)
	req.AddCookie(&http.Cookie{Name: api.SessionCookie, Value: "cookie-session"})
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cookie-session", rec.Header().Get(api.SessionHeader))

	rec = h.do(t, http.MethodPost, "/api/answer", "cookie-session", `{"answer":"Brasília"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// A different id sees a different session.
	rec = h.do(t, http.MethodPost, "/api/answer", "other-session", `{"answer":"Brasília"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPubsub_AnswerSubmitted(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = rc.Close() })

	eb := event.NewBus()
	svc := session.NewService(session.Config{
		Store:     session.NewMemoryStore(),
		Generator: question.NewGenerator(question.Config{Bank: bankOf(t, brazil)}),
		EventBus:  eb,
	})
	h := makeHTTP(t, svc, &api.Config{EventBus: eb, Redis: rc, PubsubPrefix: "geoquiz"})

	ctx := context.Background()
	sub := rc.Subscribe(ctx, api.SessionChannel("geoquiz", "s1"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		got []api.Notification
	)
	wg.Add(2)
	go func() {
		ch := sub.Channel()
		for range 2 {
			select {
			case msg := <-ch:
				var n api.Notification
				if assert.NoError(t, json.Unmarshal([]byte(msg.Payload), &n)) {
					got = append(got, n)
				}
			case <-time.After(5 * time.Second):
			}
			wg.Done()
		}
	}()

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/question", "s1", "").Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/answer", "s1", `{"answer":"Brasília"}`).Code)
	eb.Stop()
	require.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/session", "s1", "").Code)
	eb.Stop()

	wg.Wait()
	require.Len(t, got, 2)
	assert.Equal(t, domain.EventNameAnswerSubmitted, got[0].Event)
	assert.Equal(t, map[string]any{
		"session_id":     "s1",
		"question":       brazil.Text,
		"user_answer":    "Brasília",
		"correct_answer": "Brasília",
		"is_correct":     true,
		"score":          float64(1),
		"total_answered": float64(1),
		"new_difficulty": "easy",
	}, got[0].Data)
	assert.Equal(t, domain.EventNameSessionEnded, got[1].Event)
}

var brazil = domain.Question{
	Text:          "What is the capital of Brazil?",
	Options:       []string{"Rio de Janeiro", "São Paulo", "Brasília", "Salvador"},
	CorrectAnswer: "Brasília",
	Hint:          "This planned city became the capital in 1960.",
	Difficulty:    domain.DifficultyEasy,
}

type httpHarness struct {
	engine *gin.Engine
}

func makeHTTP(t *testing.T, svc *session.Service, c *api.Config) *httpHarness {
	t.Helper()

	e := gin.New()
	cfg := api.Config{}
	if c != nil {
		cfg = *c
	}
	cfg.HTTP = e
	cfg.Session = svc
	api.New(cfg)

	return &httpHarness{engine: e}
}

func (h *httpHarness) do(t *testing.T, method, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(api.SessionHeader, sessionID)
	}

	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func makeSessionService(t *testing.T, src question.Source, bank *question.Bank) *session.Service {
	t.Helper()

	return session.NewService(session.Config{
		Store: session.NewMemoryStore(),
		Generator: question.NewGenerator(question.Config{
			Source: src,
			Bank:   bank,
			Rand:   rand.New(rand.NewPCG(7, 11)),
		}),
	})
}

func bankOf(t *testing.T, qs ...domain.Question) *question.Bank {
	t.Helper()

	b, err := question.NewBank(qs)
	require.NoError(t, err)
	return b
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
