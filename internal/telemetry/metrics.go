package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/event"
)

const namespace = "geoquiz"

// Metrics holds the quiz counters. They are driven by domain events, so the session
// code does not know about them.
type Metrics struct {
	sessionsStarted  prometheus.Counter
	sessionsEnded    prometheus.Counter
	questionsIssued  *prometheus.CounterVec
	generateAttempts prometheus.Histogram
	answers          *prometheus.CounterVec

	httpRequests *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Number of sessions started or reset.",
		}),
		sessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Number of sessions ended.",
		}),
		questionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_issued_total",
			Help:      "Number of questions issued, by origin and difficulty.",
		}, []string{"origin", "difficulty", "image"}),
		generateAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "question_source_attempts",
			Help:      "Number of generative source calls made per issued question.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Number of submitted answers, by correctness and difficulty.",
		}, []string{"correct", "difficulty"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.sessionsStarted,
		m.sessionsEnded,
		m.questionsIssued,
		m.generateAttempts,
		m.answers,
		m.httpRequests,
	)

	return m
}

// Subscribe feeds the counters from the events published on eb.
func (m *Metrics) Subscribe(eb *event.Bus) {
	eb.Subscribe(domain.EventNameSessionStarted, func(context.Context, event.Event) error {
		m.sessionsStarted.Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameSessionEnded, func(context.Context, event.Event) error {
		m.sessionsEnded.Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameQuestionIssued, func(_ context.Context, e event.Event) error {
		qi := e.(domain.EventQuestionIssued)
		m.questionsIssued.WithLabelValues(qi.Origin, qi.Question.Difficulty.String(), strconv.FormatBool(qi.HasImage)).Inc()
		m.generateAttempts.Observe(float64(qi.Attempts))
		return nil
	})

	eb.Subscribe(domain.EventNameAnswerSubmitted, func(_ context.Context, e event.Event) error {
		as := e.(domain.EventAnswerSubmitted)
		m.answers.WithLabelValues(strconv.FormatBool(as.Entry.IsCorrect), as.Entry.Difficulty.String()).Inc()
		return nil
	})
}

// GinMiddleware records the latency of every routed HTTP request.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.httpRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
