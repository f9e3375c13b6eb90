package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Answer outcomes recorded by AnswerScored
const (
	OutcomeCorrect   = "correct"
	OutcomeIncorrect = "incorrect"
	OutcomeTimeout   = "timeout"
)

// Collector defines the metrics the coordinator records
type Collector interface {
	SessionOpened()
	SessionClosed()
	MatchStarted()
	MatchFinished(duration time.Duration)
	QuestionServed()
	AnswerScored(outcome string, points int)
	AnswerRejected()
	BroadcastFailed()
	ConnectionOpened()
	ConnectionClosed()
	PublishAttempt(eventType string, success bool, duration time.Duration)
}

// NoOp is a no-op implementation for when metrics aren't needed
type NoOp struct{}

func (NoOp) SessionOpened()                             {}
func (NoOp) SessionClosed()                             {}
func (NoOp) MatchStarted()                              {}
func (NoOp) MatchFinished(time.Duration)                {}
func (NoOp) QuestionServed()                            {}
func (NoOp) AnswerScored(string, int)                   {}
func (NoOp) AnswerRejected()                            {}
func (NoOp) BroadcastFailed()                           {}
func (NoOp) ConnectionOpened()                          {}
func (NoOp) ConnectionClosed()                          {}
func (NoOp) PublishAttempt(string, bool, time.Duration) {}

// Prometheus implements Collector using the Prometheus client library
type Prometheus struct {
	gatherer prometheus.Gatherer

	sessionsActive    prometheus.Gauge
	matchesStarted    prometheus.Counter
	matchDuration     prometheus.Histogram
	questionsServed   prometheus.Counter
	answers           *prometheus.CounterVec
	pointsAwarded     prometheus.Counter
	answersRejected   prometheus.Counter
	broadcastFailures prometheus.Counter
	connections       prometheus.Gauge
	publishAttempts   *prometheus.CounterVec
	publishDuration   *prometheus.HistogramVec
}

// NewPrometheus registers the trivia collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests.
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		gatherer: reg,
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "trivia",
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
		matchesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "matches_started_total",
			Help:      "Matches that left the lobby.",
		}),
		matchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trivia",
			Name:      "match_duration_seconds",
			Help:      "Wall time from start to finish of a match.",
			Buckets:   prometheus.ExponentialBuckets(30, 2, 8),
		}),
		questionsServed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "questions_served_total",
			Help:      "Questions broadcast to players.",
		}),
		answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "answers_scored_total",
			Help:      "Answers finalized at reveal, by outcome.",
		}, []string{"outcome"}),
		pointsAwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "points_awarded_total",
			Help:      "Points awarded across all answers.",
		}),
		answersRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "answers_rejected_total",
			Help:      "Answer submissions dropped as late, duplicate or unknown.",
		}),
		broadcastFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "broadcast_failures_total",
			Help:      "Channel sends that failed and detached the channel.",
		}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "trivia",
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
		publishAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trivia",
			Name:      "event_publish_attempts_total",
			Help:      "Lifecycle event publish attempts.",
		}, []string{"event_type", "status"}),
		publishDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trivia",
			Name:      "event_publish_duration_seconds",
			Help:      "Lifecycle event publish latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
}

func (m *Prometheus) SessionOpened()    { m.sessionsActive.Inc() }
func (m *Prometheus) SessionClosed()    { m.sessionsActive.Dec() }
func (m *Prometheus) MatchStarted()     { m.matchesStarted.Inc() }
func (m *Prometheus) QuestionServed()   { m.questionsServed.Inc() }
func (m *Prometheus) AnswerRejected()   { m.answersRejected.Inc() }
func (m *Prometheus) BroadcastFailed()  { m.broadcastFailures.Inc() }
func (m *Prometheus) ConnectionOpened() { m.connections.Inc() }
func (m *Prometheus) ConnectionClosed() { m.connections.Dec() }

func (m *Prometheus) MatchFinished(duration time.Duration) {
	m.matchDuration.Observe(duration.Seconds())
}

func (m *Prometheus) AnswerScored(outcome string, points int) {
	m.answers.WithLabelValues(outcome).Inc()
	if points > 0 {
		m.pointsAwarded.Add(float64(points))
	}
}

func (m *Prometheus) PublishAttempt(eventType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.publishAttempts.WithLabelValues(eventType, status).Inc()
	m.publishDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
