package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/errors"
	"github.com/victornm/geoquiz/internal/session"
)

const (
	SessionCookie = "geoquiz_session"
	SessionHeader = "X-Session-ID"

	sessionCookieMaxAge = 24 * time.Hour
	sessionIDKey        = "session_id"
)

func (a *API) registerRoutes(r gin.IRouter) {
	g := r.Group("/api", a.withSession)
	g.POST("/session", a.startSession)
	g.DELETE("/session", a.endSession)
	g.GET("/question", a.nextQuestion)
	g.POST("/answer", a.submitAnswer)
	g.GET("/history", a.history)
}

// withSession resolves the caller's session id from the X-Session-ID header or the
// session cookie, issuing a new one when neither is present. The id is echoed back in
// both the header and the cookie.
func (a *API) withSession(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(SessionHeader))
	if id == "" {
		id, _ = c.Cookie(SessionCookie)
	}

	if id == "" {
		v, err := uuid.NewV7()
		if err != nil {
			abort(c, fmt.Errorf("generate session id: %w", err))
			return
		}
		id = v.String()
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, int(sessionCookieMaxAge.Seconds()), "/", "", a.secureCookie, true)
	c.Header(SessionHeader, id)
	c.Set(sessionIDKey, id)

	c.Next()
}

type sessionResponse struct {
	SessionID     string            `json:"session_id"`
	Score         int               `json:"score"`
	TotalAnswered int               `json:"total_answered"`
	Difficulty    domain.Difficulty `json:"difficulty"`
}

func (a *API) startSession(c *gin.Context) {
	id := c.GetString(sessionIDKey)

	st, err := a.qss.Start(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		SessionID:     id,
		Score:         st.Score,
		TotalAnswered: st.TotalAnswered,
		Difficulty:    session.CurrentDifficulty(st),
	})
}

func (a *API) endSession(c *gin.Context) {
	if err := a.qss.End(c.Request.Context(), c.GetString(sessionIDKey)); err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type questionResponse struct {
	Question   string            `json:"question"`
	Options    []string          `json:"options"`
	Hint       string            `json:"hint"`
	Image      *string           `json:"image"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

func (a *API) nextQuestion(c *gin.Context) {
	v, err := a.qss.NextQuestion(c.Request.Context(), c.GetString(sessionIDKey))
	if err != nil {
		abort(c, err)
		return
	}

	resp := questionResponse{
		Question:   v.Question,
		Options:    v.Options,
		Hint:       v.Hint,
		Difficulty: v.Difficulty,
	}
	if v.Image != "" {
		resp.Image = &v.Image
	}

	c.JSON(http.StatusOK, resp)
}

type answerRequest struct {
	Answer *string `json:"answer"`
}

type answerResponse struct {
	IsCorrect     bool              `json:"is_correct"`
	CorrectAnswer string            `json:"correct_answer"`
	Score         int               `json:"score"`
	TotalAnswered int               `json:"total_answered"`
	NewDifficulty domain.Difficulty `json:"new_difficulty"`
}

func (a *API) submitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Answer == nil {
		abort(c, errors.InvalidArgument("invalid request data"))
		return
	}

	res, err := a.qss.SubmitAnswer(c.Request.Context(), c.GetString(sessionIDKey), *req.Answer)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, answerResponse{
		IsCorrect:     res.IsCorrect,
		CorrectAnswer: res.CorrectAnswer,
		Score:         res.Score,
		TotalAnswered: res.TotalAnswered,
		NewDifficulty: res.NewDifficulty,
	})
}

type historyResponse struct {
	History       []domain.HistoryEntry `json:"history"`
	Score         int                   `json:"score"`
	TotalAnswered int                   `json:"total_answered"`
	Accuracy      string                `json:"accuracy"`
}

func (a *API) history(c *gin.Context) {
	h, err := a.qss.History(c.Request.Context(), c.GetString(sessionIDKey))
	if err != nil {
		abort(c, err)
		return
	}

	history := h.History
	if history == nil {
		history = []domain.HistoryEntry{}
	}

	c.JSON(http.StatusOK, historyResponse{
		History:       history,
		Score:         h.Score,
		TotalAnswered: h.TotalAnswered,
		Accuracy:      h.Accuracy.StringFixed(2),
	})
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retriable bool   `json:"retriable"`
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)

	if e.Code == errors.CodeInternal || e.Code == errors.CodeUnavailable {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), errorResponse{
		Error:     e.Message,
		Code:      codes.Code(e.Code).String(),
		Retriable: e.Retriable,
	})
}
