package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/geoquiz/internal/domain"
	"github.com/victornm/geoquiz/internal/event"
	"github.com/victornm/geoquiz/internal/telemetry"
)

func TestMetrics_Subscribe(t *testing.T) {
	tests := map[string]struct {
		events []event.Event
		assert func(t *testing.T, reg *prometheus.Registry)
	}{
		"sessions": {
			events: []event.Event{
				domain.EventSessionStarted{SessionID: "s1"},
				domain.EventSessionStarted{SessionID: "s2"},
				domain.EventSessionEnded{SessionID: "s1"},
			},
			assert: func(t *testing.T, reg *prometheus.Registry) {
				assert.Equal(t, 2.0, gatheredValue(t, reg, "geoquiz_sessions_started_total", nil))
				assert.Equal(t, 1.0, gatheredValue(t, reg, "geoquiz_sessions_ended_total", nil))
			},
		},
		"questions issued": {
			events: []event.Event{
				domain.EventQuestionIssued{
					SessionID: "s1",
					Question:  domain.Question{Difficulty: domain.DifficultyEasy},
					Origin:    "generated",
					Attempts:  1,
					HasImage:  true,
				},
				domain.EventQuestionIssued{
					SessionID: "s1",
					Question:  domain.Question{Difficulty: domain.DifficultyEasy},
					Origin:    "fallback",
					Attempts:  3,
				},
			},
			assert: func(t *testing.T, reg *prometheus.Registry) {
				assert.Equal(t, 1.0, gatheredValue(t, reg, "geoquiz_questions_issued_total",
					map[string]string{"origin": "generated", "difficulty": "easy", "image": "true"}))
				assert.Equal(t, 1.0, gatheredValue(t, reg, "geoquiz_questions_issued_total",
					map[string]string{"origin": "fallback", "difficulty": "easy", "image": "false"}))
			},
		},
		"answers": {
			events: []event.Event{
				domain.EventAnswerSubmitted{Entry: domain.HistoryEntry{IsCorrect: true, Difficulty: domain.DifficultyMedium}},
				domain.EventAnswerSubmitted{Entry: domain.HistoryEntry{IsCorrect: true, Difficulty: domain.DifficultyMedium}},
				domain.EventAnswerSubmitted{Entry: domain.HistoryEntry{IsCorrect: false, Difficulty: domain.DifficultyHard}},
			},
			assert: func(t *testing.T, reg *prometheus.Registry) {
				assert.Equal(t, 2.0, gatheredValue(t, reg, "geoquiz_answers_total",
					map[string]string{"correct": "true", "difficulty": "medium"}))
				assert.Equal(t, 1.0, gatheredValue(t, reg, "geoquiz_answers_total",
					map[string]string{"correct": "false", "difficulty": "hard"}))
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			eb := event.NewBus()
			telemetry.NewMetrics(reg).Subscribe(eb)

			for _, e := range tc.events {
				eb.Publish(context.Background(), e)
			}
			eb.Stop()

			tc.assert(t, reg)
		})
	}
}

func TestMetrics_GinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	e := gin.New()
	e.Use(m.GinMiddleware())
	e.GET("/api/question", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/question", "/api/question", "/nope"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	n, err := testutil.GatherAndCount(reg, "geoquiz_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per route and status")
}

// gatheredValue returns the value of the counter series of name with exactly labels.
func gatheredValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) != len(labels) {
				continue
			}
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}

	t.Fatalf("series %s%v not found", name, labels)
	return 0
}
