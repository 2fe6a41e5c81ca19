// Package metrics exposes Prometheus instrumentation for duels and matchmaking.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quiz_duel"

// Round resolution kinds.
const (
	RoundScored   = "scored"
	RoundUnscored = "unscored"
	RoundTimedOut = "timeout"
)

// Collector holds the service metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	duelsStarted  prometheus.Counter
	duelsFinished *prometheus.CounterVec
	duelDuration  prometheus.Histogram
	rounds        *prometheus.CounterVec
	staleAnswers  prometheus.Counter
	waiting       prometheus.Gauge
	active        prometheus.Gauge
}

// NewCollector registers the duel metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		duelsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duels_started_total",
			Help:      "Duels created by the matchmaker.",
		}),
		duelsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duels_finished_total",
			Help:      "Duels that reached the final round, by result.",
		}, []string{"result"}),
		duelDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duel_duration_seconds",
			Help:      "Time from pairing to the final round.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 8),
		}),
		rounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_resolved_total",
			Help:      "Resolved rounds by how they resolved.",
		}, []string{"kind"}),
		staleAnswers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_answers_total",
			Help:      "Answer submissions ignored as stale or duplicate.",
		}),
		waiting: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_participants",
			Help:      "Participants waiting for an opponent.",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_duels",
			Help:      "Duels currently in progress.",
		}),
	}
}

func (c *Collector) DuelStarted() {
	if c == nil {
		return
	}
	c.duelsStarted.Inc()
}

// DuelFinished counts a completed duel and records how long it ran.
func (c *Collector) DuelFinished(tie bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := "win"
	if tie {
		result = "tie"
	}
	c.duelsFinished.WithLabelValues(result).Inc()
	c.duelDuration.Observe(elapsed.Seconds())
}

func (c *Collector) RoundResolved(kind string) {
	if c == nil {
		return
	}
	c.rounds.WithLabelValues(kind).Inc()
}

func (c *Collector) StaleAnswer() {
	if c == nil {
		return
	}
	c.staleAnswers.Inc()
}

// Occupancy records the queue length and number of live duels.
func (c *Collector) Occupancy(waiting, active int) {
	if c == nil {
		return
	}
	c.waiting.Set(float64(waiting))
	c.active.Set(float64(active))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
