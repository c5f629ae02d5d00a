// Package metrics holds the Prometheus collectors for the trivia service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trivia"

// Collectors groups every metric the service exports. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	transitions     *prometheus.CounterVec
	fetchFailures   prometheus.Counter
	fetchDuration   prometheus.Histogram
	answers         *prometheus.CounterVec
	resolves        prometheus.Counter
	persistFailures prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Collectors {
	auto := promauto.With(reg)
	return &Collectors{
		transitions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Phase transitions performed, by target phase.",
		}, []string{"to"}),
		fetchFailures: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_fetch_failures_total",
			Help:      "Question provider fetches that failed or returned malformed data.",
		}),
		fetchDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "question_fetch_duration_seconds",
			Help:      "Latency of question provider fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		answers: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answer submissions, by result.",
		}, []string{"result"}),
		resolves: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Phase clock resolutions served.",
		}),
		persistFailures: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clock_persist_failures_total",
			Help:      "Phase clock writes that failed to reach the backing store.",
		}),
	}
}

func (c *Collectors) Transition(to string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(to).Inc()
}

func (c *Collectors) FetchFailed() {
	if c == nil {
		return
	}
	c.fetchFailures.Inc()
}

func (c *Collectors) ObserveFetch(d time.Duration) {
	if c == nil {
		return
	}
	c.fetchDuration.Observe(d.Seconds())
}

// Answer counts a submission; result is one of correct, incorrect, duplicate.
func (c *Collectors) Answer(result string) {
	if c == nil {
		return
	}
	c.answers.WithLabelValues(result).Inc()
}

func (c *Collectors) Resolved() {
	if c == nil {
		return
	}
	c.resolves.Inc()
}

func (c *Collectors) PersistFailed() {
	if c == nil {
		return
	}
	c.persistFailures.Inc()
}
